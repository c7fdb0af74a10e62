package enhance

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Stage is one unit of the enhancement chain
type Stage string

const (
	StageClean         Stage = "clean"
	StageSummarize     Stage = "summarize"
	StageChannelFormat Stage = "channel_format"
)

// Default refinement instructions. Clean and Summarize may be overridden
// per run; the Slack directive is appended to the terminal stage when
// channel formatting is requested.
const (
	DefaultCleanInstruction   = "The following is an audio recording transcript. Process it to remove any clear transcription errors."
	DefaultSummaryInstruction = "Process the following transcript and attempt to provide the full content, but in format that logically flows and has structure and headings."

	slackDirective = " Format as a Slack message."
)

// Refiner rewrites text according to an instruction. Implementations call
// a remote AI service; failure is expected and handled per stage.
type Refiner interface {
	Refine(ctx context.Context, instruction, text string) (string, error)
}

// Options select which stages run. Summarize implies Clean: summaries are
// always generated from cleaned text, never raw.
type Options struct {
	Clean         bool
	Summarize     bool
	ChannelFormat bool

	CleanInstruction   string // override for the clean stage
	SummaryInstruction string // override for the summarize stage
}

// Artifact is one named output of a run. Artifacts are append-only: once
// written they are never overwritten within the run.
type Artifact struct {
	Name string // raw | cleaned | summary | cleaned_slack | summary_slack
	Path string
	Text string
}

// Outcome records one stage attempt. A failed stage leaves the chain's
// current text at the prior stage's output.
type Outcome struct {
	Stage    Stage
	Produced bool
	Artifact string // artifact name when Produced
	Err      error  // set when the stage failed
}

// Pipeline runs the enhancement chain Clean -> Summarize -> ChannelFormat
// over a raw transcript. Each stage compounds over the previous one's
// output and falls back to it on failure; a failed stage never aborts the
// run and never writes an artifact.
type Pipeline struct {
	refiner Refiner
}

// NewPipeline creates a pipeline backed by the given refiner
func NewPipeline(refiner Refiner) *Pipeline {
	return &Pipeline{refiner: refiner}
}

// Run executes the enabled stages. rawPath is the raw transcript file
// ("<dir>/<stem>.txt"); derived artifacts are written next to it as
// "<stem>_<name>.txt". The returned artifacts always start with raw.
func (p *Pipeline) Run(ctx context.Context, rawPath, rawText string, opts Options) ([]Artifact, []Outcome) {
	artifacts := []Artifact{{Name: "raw", Path: rawPath, Text: rawText}}
	var outcomes []Outcome

	// Summarize always runs against cleaned text
	if opts.Summarize {
		opts.Clean = true
	}
	// Channel formatting is applied to a refinement pass; with no
	// refinement stage enabled there is nothing to format.
	if !opts.Clean {
		return artifacts, outcomes
	}

	current := rawText
	lastRefined := "" // artifact name of the last successful refinement

	if opts.Clean {
		instruction := opts.CleanInstruction
		if instruction == "" {
			instruction = DefaultCleanInstruction
		}
		outcome, artifact := p.runStage(ctx, StageClean, "cleaned", rawPath, instruction, current)
		outcomes = append(outcomes, outcome)
		if outcome.Produced {
			artifacts = append(artifacts, artifact)
			current = artifact.Text
			lastRefined = "cleaned"
		}
	}

	if opts.Summarize {
		instruction := opts.SummaryInstruction
		if instruction == "" {
			instruction = DefaultSummaryInstruction
		}
		outcome, artifact := p.runStage(ctx, StageSummarize, "summary", rawPath, instruction, current)
		outcomes = append(outcomes, outcome)
		if outcome.Produced {
			artifacts = append(artifacts, artifact)
			current = artifact.Text
			lastRefined = "summary"
		}
	}

	if opts.ChannelFormat {
		// Reformat the best text produced so far. The artifact name
		// follows the stage that text came from; when every refinement
		// failed the slack pass itself cleans the raw text, so the
		// cleaned name still applies.
		name := "cleaned_slack"
		if lastRefined == "summary" {
			name = "summary_slack"
		}
		instruction := DefaultCleanInstruction + slackDirective
		outcome, artifact := p.runStage(ctx, StageChannelFormat, name, rawPath, instruction, current)
		outcomes = append(outcomes, outcome)
		if outcome.Produced {
			artifacts = append(artifacts, artifact)
		}
	}

	return artifacts, outcomes
}

// runStage invokes the refiner and writes the stage artifact. Any failure
// (service or filesystem) downgrades to a logged warning.
func (p *Pipeline) runStage(ctx context.Context, stage Stage, name, rawPath, instruction, text string) (Outcome, Artifact) {
	refined, err := p.refiner.Refine(ctx, instruction, text)
	if err != nil {
		log.Printf("Warning: %s stage failed, continuing with previous text: %v", stage, err)
		return Outcome{Stage: stage, Err: err}, Artifact{}
	}

	artifact := Artifact{
		Name: name,
		Path: ArtifactPath(rawPath, name),
		Text: refined,
	}
	if err := os.WriteFile(artifact.Path, []byte(refined), 0o644); err != nil {
		err = fmt.Errorf("failed to write %s artifact: %w", name, err)
		log.Printf("Warning: %v", err)
		return Outcome{Stage: stage, Err: err}, Artifact{}
	}

	return Outcome{Stage: stage, Produced: true, Artifact: name}, artifact
}

// ArtifactPath derives a named artifact path from the raw transcript path:
// "<dir>/<stem>.txt" -> "<dir>/<stem>_<name>.txt"
func ArtifactPath(rawPath, name string) string {
	ext := filepath.Ext(rawPath)
	stem := strings.TrimSuffix(rawPath, ext)
	return stem + "_" + name + ext
}
