package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"telescribe/internal/asr"
)

// transcribe-worker runs on the transcription host. It reads an audio
// file, transcribes it with the local whisper model, and prints the text
// to stdout; the orchestrator redirects stdout to the transcript file.
func main() {
	var (
		inputFile  = flag.String("i", "", "Input audio file")
		model      = flag.String("model", "turbo", "Whisper model: tiny, base, small, medium, medium.en, large, turbo")
		language   = flag.String("language", "", "Spoken language hint (e.g. en, ja)")
		prompt     = flag.String("prompt", "", "Initial prompt for the recognizer")
		modelDir   = flag.String("model-dir", defaultModelDir(), "Model weights directory")
		numThreads = flag.Int("threads", 2, "Number of threads for inference")
		verbose    = flag.Bool("v", false, "Verbose output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -i audio.m4a -model turbo > transcript.txt\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i audio.wav -model large -language ja -v\n", os.Args[0])
	}

	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Error: Input file is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(*inputFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: Input file not found: %s\n", *inputFile)
		os.Exit(1)
	}

	engine := asr.NewEngine(*modelDir)
	engine.SetThreads(*numThreads)
	defer engine.Close()

	var progress asr.ProgressCallback
	if *verbose {
		fmt.Fprintf(os.Stderr, "Transcribing %s with model %s\n", *inputFile, *model)
		progress = func(done, total float64) {
			fmt.Fprintf(os.Stderr, "  %.0f/%.0f seconds\n", done, total)
		}
	}

	result, err := engine.Transcribe(context.Background(), *inputFile, asr.Request{
		Model:    *model,
		Language: *language,
		Prompt:   *prompt,
		Verbose:  *verbose,
	}, progress)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Transcription failed: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Transcribed %.1f seconds of audio (language: %s)\n", result.Duration, result.Language)
	}

	fmt.Println(result.Text)
}

func defaultModelDir() string {
	if dir := os.Getenv("TELESCRIBE_MODEL_DIR"); dir != "" {
		return dir
	}
	return "models"
}
