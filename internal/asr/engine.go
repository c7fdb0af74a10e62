package asr

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// chunkSeconds is how much audio is fed to the model per decode call.
// Whisper handles up to 30 seconds natively.
const chunkSeconds = 30

// Request describes one transcription. Immutable once constructed.
type Request struct {
	Model    string // must be in SupportedModels
	Language string // BCP-47-ish code ("en", "ja"); empty = auto-detect
	Prompt   string // optional initial context for the model
	Verbose  bool   // report progress while decoding
}

// Result is the output of one transcription
type Result struct {
	Text     string  // stripped transcript text; may be empty
	Language string  // detected (or requested) language
	Duration float64 // source audio duration in seconds
	Model    string  // model name that produced the text
}

// ProgressCallback reports decoding progress. done and total are seconds
// of source audio, so progress is meaningful for long recordings.
type ProgressCallback func(doneSeconds, totalSeconds float64)

// Engine turns audio files into transcripts. It holds at most one loaded
// model, keyed by model name and language; the handle is reused across
// calls and reloaded only when the key changes.
type Engine struct {
	modelDir string
	threads  int

	mu         sync.Mutex
	model      string
	language   string
	capability Capability

	// injectable for tests
	load        func(LoadOptions) (Capability, error)
	decode      func(context.Context, string) (Buffer, error)
	ensureCodec func() error
}

// NewEngine creates an engine whose model weights live under modelDir
func NewEngine(modelDir string) *Engine {
	return &Engine{
		modelDir:    modelDir,
		threads:     2,
		load:        LoadWhisper,
		decode:      DecodeFile,
		ensureCodec: EnsureCodecTools,
	}
}

// SetThreads sets the inference thread count for subsequent model loads
func (e *Engine) SetThreads(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > 0 {
		e.threads = n
	}
}

// Transcribe decodes the audio file, preprocesses it in memory, and runs
// the loaded model over it. Empty output text is valid, not an error.
func (e *Engine) Transcribe(ctx context.Context, audioPath string, req Request, onProgress ProgressCallback) (Result, error) {
	if err := ValidateModel(req.Model); err != nil {
		return Result{}, err
	}
	if err := e.ensureCodec(); err != nil {
		return Result{}, err
	}

	buf, err := e.decode(ctx, audioPath)
	if err != nil {
		return Result{}, err
	}
	buf = Preprocess(buf)
	total := buf.DurationSeconds()

	capability, err := e.loadModel(req)
	if err != nil {
		return Result{}, err
	}

	chunkSamples := OptimalSampleRate * chunkSeconds
	var text strings.Builder
	for offset := 0; offset < len(buf.Samples); offset += chunkSamples {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		end := offset + chunkSamples
		if end > len(buf.Samples) {
			end = len(buf.Samples)
		}

		chunk, err := capability.Transcribe(buf.Samples[offset:end], buf.SampleRate)
		if err != nil {
			return Result{}, fmt.Errorf("transcription failed at %ds: %w", offset/OptimalSampleRate, err)
		}
		text.WriteString(chunk)

		if req.Verbose && onProgress != nil {
			done := float64(end) / float64(OptimalSampleRate)
			onProgress(done, total)
		}
	}

	language := req.Language
	if language == "" {
		language = "unknown"
	}

	return Result{
		Text:     strings.TrimSpace(text.String()),
		Language: language,
		Duration: total,
		Model:    req.Model,
	}, nil
}

// loadModel returns the cached capability, reloading when the requested
// model or language differs from the loaded one
func (e *Engine) loadModel(req Request) (Capability, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.capability != nil && e.model == req.Model && e.language == req.Language {
		return e.capability, nil
	}

	if e.capability != nil {
		e.capability.Close()
		e.capability = nil
	}

	capability, err := e.load(LoadOptions{
		ModelDir: e.modelDir,
		Model:    req.Model,
		Language: req.Language,
		Prompt:   req.Prompt,
		Threads:  e.threads,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load model %q: %w", req.Model, err)
	}

	e.capability = capability
	e.model = req.Model
	e.language = req.Language
	return capability, nil
}

// Close releases the loaded model, if any
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capability != nil {
		e.capability.Close()
		e.capability = nil
		e.model = ""
	}
}

// NewEngineForTests creates an engine with injected dependencies
func NewEngineForTests(
	modelDir string,
	load func(LoadOptions) (Capability, error),
	decode func(context.Context, string) (Buffer, error),
	ensureCodec func() error,
) *Engine {
	return &Engine{
		modelDir:    modelDir,
		load:        load,
		decode:      decode,
		ensureCodec: ensureCodec,
	}
}
