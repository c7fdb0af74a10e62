package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"telescribe/internal/asr"
	"telescribe/internal/enhance"
	"telescribe/internal/orchestrate"
	"telescribe/internal/remote"
)

// ErrInvalidJob indicates a job spec that fails validation before any
// remote call is attempted
var ErrInvalidJob = errors.New("invalid job configuration")

// JobSpec is the full input of one transcription job
type JobSpec struct {
	Host      string
	AudioPath string
	OutputDir string // empty = directory of the audio file

	Model    string
	Language string
	Prompt   string
	Verbose  bool

	Enhance enhance.Options
}

// Summary reports what a job actually produced. Only artifacts that were
// written appear here.
type Summary struct {
	RawPath   string
	Artifacts []enhance.Artifact
	Outcomes  []enhance.Outcome
}

// Controller composes the remote orchestrator and the enhancement
// pipeline into one job run. Remote transcription failure aborts the job
// before any enhancement; enhancement failures degrade per stage.
type Controller struct {
	workerPath   string
	remoteDir    string
	probeTimeout time.Duration
	refiner      enhance.Refiner // nil = enhancement stages are skipped

	newChannel func(host string) remote.Channel
	onState    func(orchestrate.State)
}

// New creates a controller. refiner may be nil when no refinement service
// is configured; enhancement stages are then skipped with a warning.
func New(workerPath string, refiner enhance.Refiner) *Controller {
	return &Controller{
		workerPath:   workerPath,
		remoteDir:    "/tmp",
		probeTimeout: remote.DefaultConnectTimeout,
		refiner:      refiner,
		newChannel: func(host string) remote.Channel {
			return remote.NewSSHChannel(host)
		},
	}
}

// SetRemoteDir overrides the remote staging directory
func (c *Controller) SetRemoteDir(dir string) { c.remoteDir = dir }

// SetProbeTimeout overrides the liveness probe bound
func (c *Controller) SetProbeTimeout(d time.Duration) { c.probeTimeout = d }

// OnState registers a callback for orchestrator state transitions
func (c *Controller) OnState(cb func(orchestrate.State)) { c.onState = cb }

// Run executes one job end to end and reports every artifact produced
func (c *Controller) Run(ctx context.Context, spec JobSpec) (*Summary, error) {
	if spec.Host == "" {
		return nil, fmt.Errorf("%w: remote host is required", ErrInvalidJob)
	}
	if spec.AudioPath == "" {
		return nil, fmt.Errorf("%w: audio file path is required", ErrInvalidJob)
	}
	// Model validation happens before any remote call
	if err := asr.ValidateModel(spec.Model); err != nil {
		return nil, err
	}

	channel := c.newChannel(spec.Host)
	if err := channel.Probe(ctx, c.probeTimeout); err != nil {
		return nil, &orchestrate.ConnectivityError{Step: "probe", Host: spec.Host, Err: err}
	}

	orch := orchestrate.New(channel, spec.Host, c.workerPath)
	orch.SetRemoteDir(c.remoteDir)
	if c.onState != nil {
		orch.OnState(c.onState)
	}

	rawPath, err := orch.Run(ctx, orchestrate.Job{
		AudioPath: spec.AudioPath,
		OutputDir: spec.OutputDir,
		Model:     spec.Model,
		Language:  spec.Language,
		Prompt:    spec.Prompt,
		Verbose:   spec.Verbose,
	})
	if err != nil {
		return nil, err
	}

	rawText, err := os.ReadFile(rawPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript %s: %w", rawPath, err)
	}

	summary := &Summary{
		RawPath:   rawPath,
		Artifacts: []enhance.Artifact{{Name: "raw", Path: rawPath, Text: string(rawText)}},
	}

	wantsEnhancement := spec.Enhance.Clean || spec.Enhance.Summarize || spec.Enhance.ChannelFormat
	if !wantsEnhancement {
		return summary, nil
	}
	if c.refiner == nil {
		log.Printf("Warning: no refinement service configured, skipping transcript processing")
		return summary, nil
	}

	artifacts, outcomes := enhance.NewPipeline(c.refiner).Run(ctx, rawPath, string(rawText), spec.Enhance)
	summary.Artifacts = artifacts
	summary.Outcomes = outcomes
	return summary, nil
}

// NewForTests creates a controller with an injected channel factory
func NewForTests(workerPath string, refiner enhance.Refiner, newChannel func(host string) remote.Channel) *Controller {
	c := New(workerPath, refiner)
	c.newChannel = newChannel
	return c
}
