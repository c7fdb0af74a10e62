package orchestrate

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"telescribe/internal/remote"
)

// State is a phase of the remote transcription job
type State int

const (
	StateIdle State = iota
	StateStagingIn
	StateInvoking
	StateStagingOut
	StateCleaningUp
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateStagingIn:  "staging_in",
	StateInvoking:   "invoking",
	StateStagingOut: "staging_out",
	StateCleaningUp: "cleaning_up",
	StateDone:       "done",
	StateFailed:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ConnectivityError reports a failed probe or file copy, naming the step
type ConnectivityError struct {
	Step string
	Host string
	Err  error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: host %s: %v", e.Step, e.Host, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// RemoteExecError reports a non-zero exit from the remote worker
type RemoteExecError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *RemoteExecError) Error() string {
	return fmt.Sprintf("remote transcription failed (exit %d): %s", e.ExitCode, strings.TrimSpace(e.Stderr))
}

func (e *RemoteExecError) Unwrap() error { return e.Err }

// Job describes one remote transcription run
type Job struct {
	AudioPath string
	OutputDir string // empty = directory of the audio file
	Model     string
	Language  string
	Prompt    string
	Verbose   bool
}

// jobContext holds the remote working paths for one run. It is owned
// exclusively by the orchestrator and its remote files are removed at job
// end regardless of outcome.
type jobContext struct {
	remoteWorker     string
	remoteAudio      string
	remoteTranscript string
	localTranscript  string
}

// Orchestrator sequences stage-in, remote invocation, stage-out, and
// remote cleanup as a fail-fast pipeline over a remote channel. Each step
// either fully succeeds or the whole job aborts at that step; there are
// no per-step retries. Cleanup always runs, best-effort.
type Orchestrator struct {
	channel    remote.Channel
	host       string
	workerPath string // local worker program staged to the remote host
	remoteDir  string
	onState    func(State)
}

// New creates an orchestrator for one host. workerPath is the local
// transcribe-worker program copied to the remote host before each run.
func New(channel remote.Channel, host, workerPath string) *Orchestrator {
	return &Orchestrator{
		channel:    channel,
		host:       host,
		workerPath: workerPath,
		remoteDir:  "/tmp",
	}
}

// SetRemoteDir overrides the remote staging directory (default /tmp)
func (o *Orchestrator) SetRemoteDir(dir string) {
	o.remoteDir = dir
}

// OnState registers a callback invoked on every state transition
func (o *Orchestrator) OnState(cb func(State)) {
	o.onState = cb
}

func (o *Orchestrator) setState(s State) {
	if o.onState != nil {
		o.onState(s)
	}
}

// Run executes the full remote transcription job and returns the local
// path of the raw transcript. On failure no artifact is produced and the
// first error encountered is returned; remote cleanup is still attempted.
func (o *Orchestrator) Run(ctx context.Context, job Job) (string, error) {
	if _, err := os.Stat(job.AudioPath); err != nil {
		return "", fmt.Errorf("audio file not found: %s: %w", job.AudioPath, err)
	}

	jc := o.newJobContext(job)

	// Cleanup runs before either terminal state, even when staging never
	// completed; rm -f on unstaged paths is a no-op, so repeated failures
	// never accumulate orphaned remote files.
	if err := o.stageIn(ctx, jc, job); err != nil {
		o.cleanup(ctx, jc)
		o.setState(StateFailed)
		return "", err
	}
	if err := o.invoke(ctx, jc, job); err != nil {
		o.cleanup(ctx, jc)
		o.setState(StateFailed)
		return "", err
	}
	if err := o.stageOut(ctx, jc); err != nil {
		o.cleanup(ctx, jc)
		o.setState(StateFailed)
		return "", err
	}

	o.cleanup(ctx, jc)
	o.setState(StateDone)
	return jc.localTranscript, nil
}

func (o *Orchestrator) newJobContext(job Job) jobContext {
	base := filepath.Base(job.AudioPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	outputDir := job.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(job.AudioPath)
	}

	return jobContext{
		remoteWorker:     path.Join(o.remoteDir, filepath.Base(o.workerPath)),
		remoteAudio:      path.Join(o.remoteDir, base),
		remoteTranscript: path.Join(o.remoteDir, stem+".txt"),
		localTranscript:  filepath.Join(outputDir, stem+".txt"),
	}
}

// stageIn copies the worker program and the audio file to the remote host
func (o *Orchestrator) stageIn(ctx context.Context, jc jobContext, job Job) error {
	o.setState(StateStagingIn)

	if err := o.channel.CopyTo(ctx, o.workerPath, jc.remoteWorker); err != nil {
		return &ConnectivityError{Step: "staging_in", Host: o.host, Err: err}
	}
	if err := o.channel.CopyTo(ctx, job.AudioPath, jc.remoteAudio); err != nil {
		return &ConnectivityError{Step: "staging_in", Host: o.host, Err: err}
	}
	return nil
}

// invoke runs the staged worker on the remote host, redirecting its stdout
// to the remote transcript path
func (o *Orchestrator) invoke(ctx context.Context, jc jobContext, job Job) error {
	o.setState(StateInvoking)

	command := buildWorkerCommand(jc, job)
	result, err := o.channel.Run(ctx, command)
	if err != nil {
		return &RemoteExecError{
			Command:  command,
			ExitCode: result.ExitCode,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
			Err:      err,
		}
	}
	return nil
}

// stageOut copies the remote transcript back to the local output path
func (o *Orchestrator) stageOut(ctx context.Context, jc jobContext) error {
	o.setState(StateStagingOut)

	if err := os.MkdirAll(filepath.Dir(jc.localTranscript), 0o755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}
	if err := o.channel.CopyFrom(ctx, jc.remoteTranscript, jc.localTranscript); err != nil {
		return &ConnectivityError{Step: "staging_out", Host: o.host, Err: err}
	}
	return nil
}

// cleanup removes the staged remote files. Failure is logged as a warning
// and never changes the job's verdict: by this point the caller already
// has, or has definitively failed to get, the transcript.
func (o *Orchestrator) cleanup(ctx context.Context, jc jobContext) {
	o.setState(StateCleaningUp)

	command := "rm -f " + remote.QuoteAll(jc.remoteAudio, jc.remoteTranscript, jc.remoteWorker)
	if _, err := o.channel.Run(ctx, command); err != nil {
		log.Printf("Warning: failed to clean up remote files on %s: %v", o.host, err)
	}
}

// buildWorkerCommand assembles the remote invocation as a structured
// argument list with one quoting pass at the end. User-supplied values
// (prompt, paths) are never concatenated into the shell line unescaped.
func buildWorkerCommand(jc jobContext, job Job) string {
	args := []string{jc.remoteWorker, "-model", job.Model}
	if job.Language != "" {
		args = append(args, "-language", job.Language)
	}
	if job.Verbose {
		args = append(args, "-v")
	}
	if job.Prompt != "" {
		args = append(args, "-prompt", job.Prompt)
	}
	args = append(args, "-i", jc.remoteAudio)

	return remote.QuoteAll(args...) + " > " + remote.Quote(jc.remoteTranscript)
}
