package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"telescribe/internal/config"
	"telescribe/internal/enhance"
	"telescribe/internal/fetch"
	"telescribe/internal/orchestrate"
	"telescribe/internal/pipeline"
	"telescribe/internal/version"

	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み（存在しない場合はスキップ）
	_ = godotenv.Load()
	cfg := config.Load()

	var (
		inputFile = flag.String("i", "", "Input audio file")
		videoURL  = flag.String("url", "", "YouTube URL to download and transcribe (alternative to -i)")
		host      = flag.String("host", cfg.DefaultHost, "Remote host (user@host), default from TRANSCRIPT_HOST")
		outputDir = flag.String("o", "", "Output directory (default: directory of the audio file)")
		model     = flag.String("model", "turbo", "Whisper model: tiny, base, small, medium, medium.en, large, turbo")
		language  = flag.String("language", "", "Spoken language hint (e.g. en, ja)")
		prompt    = flag.String("prompt", "", "Initial prompt passed to the recognizer")
		clean     = flag.Bool("clean", false, "Remove transcription errors with AI")
		summarize = flag.Bool("summarize", false, "Summarize the transcript (implies -clean)")
		slack     = flag.Bool("slack", false, "Additionally format the result as a Slack message")

		cleanInstruction   = flag.String("clean-instruction", "", "Override the clean stage instruction")
		summaryInstruction = flag.String("summary-instruction", "", "Override the summarize stage instruction")

		verbose = flag.Bool("v", false, "Verbose output")
		showVer = flag.Bool("version", false, "Print version and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Transcribe an audio file on a remote host and refine the transcript.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -i standup.m4a -host user@gpu-box\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i standup.m4a -summarize -slack\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i interview.wav -model large -language ja -clean\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -url https://youtu.be/VIDEO -summarize\n", os.Args[0])
	}

	flag.Parse()

	if *showVer {
		fmt.Printf("telescribe v%s\n", version.Version)
		return
	}

	if (*inputFile == "") == (*videoURL == "") {
		fmt.Fprintf(os.Stderr, "Error: Exactly one of -i and -url is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if *host == "" {
		fmt.Fprintf(os.Stderr, "Error: Remote host is required (-host or TRANSCRIPT_HOST)\n")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	audioPath := *inputFile
	if *videoURL != "" {
		if *verbose {
			fmt.Fprintf(os.Stderr, "Downloading audio from %s\n", *videoURL)
		}
		downloaded, err := fetch.NewYouTubeClient().DownloadAudio(ctx, *videoURL, cfg.DataDir)
		if err != nil {
			log.Fatalf("Error: Failed to download audio: %v", err)
		}
		audioPath = downloaded
		if *verbose {
			fmt.Fprintf(os.Stderr, "Downloaded to %s\n", audioPath)
		}
	}

	var refiner enhance.Refiner
	if cfg.AnthropicKey != "" {
		refiner = enhance.NewAnthropicRefiner(cfg.AnthropicKey, cfg.AnthropicModel)
	}

	ctrl := pipeline.New(cfg.WorkerPath, refiner)
	ctrl.SetRemoteDir(cfg.RemoteDir)
	ctrl.SetProbeTimeout(cfg.ProbeTimeout)
	if *verbose {
		ctrl.OnState(func(s orchestrate.State) {
			fmt.Fprintf(os.Stderr, "[%s]\n", s)
		})
	}

	summary, err := ctrl.Run(ctx, pipeline.JobSpec{
		Host:      *host,
		AudioPath: audioPath,
		OutputDir: *outputDir,
		Model:     *model,
		Language:  *language,
		Prompt:    *prompt,
		Verbose:   *verbose,
		Enhance: enhance.Options{
			Clean:              *clean,
			Summarize:          *summarize,
			ChannelFormat:      *slack,
			CleanInstruction:   *cleanInstruction,
			SummaryInstruction: *summaryInstruction,
		},
	})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	for _, artifact := range summary.Artifacts {
		fmt.Printf("%-14s %s\n", artifact.Name, artifact.Path)
	}
	for _, outcome := range summary.Outcomes {
		if outcome.Err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %s stage failed: %v\n",
				strings.ReplaceAll(string(outcome.Stage), "_", " "), outcome.Err)
		}
	}
}
