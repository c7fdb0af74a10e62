package asr

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// MissingDependencyError reports a required external tool that is absent
// from PATH, with installation guidance for the current OS.
type MissingDependencyError struct {
	Tool string
	Hint string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("required tool %s not found in PATH: %s", e.Tool, e.Hint)
}

// codecCheck caches the ffmpeg/ffprobe presence check for the process
// lifetime. The result is write-once: a missing codec tool is fatal and
// installing it requires a restart anyway.
var codecCheck struct {
	once sync.Once
	err  error
}

// EnsureCodecTools verifies ffmpeg and ffprobe are installed. The check
// runs at most once per process and the result is cached.
func EnsureCodecTools() error {
	codecCheck.once.Do(func() {
		codecCheck.err = probeCodecTools(exec.LookPath)
	})
	return codecCheck.err
}

func probeCodecTools(lookPath func(string) (string, error)) error {
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := lookPath(tool); err != nil {
			return &MissingDependencyError{Tool: tool, Hint: codecInstallHint()}
		}
	}
	return nil
}

// codecInstallHint returns per-OS installation guidance for ffmpeg
func codecInstallHint() string {
	switch runtime.GOOS {
	case "darwin":
		return "install with: brew install ffmpeg"
	case "linux":
		return "install with: sudo apt-get install ffmpeg (Debian/Ubuntu) or sudo dnf install ffmpeg (Fedora)"
	case "windows":
		return "install with: winget install ffmpeg, or download from https://ffmpeg.org/download.html"
	default:
		return "download from https://ffmpeg.org/download.html"
	}
}

// DecodeFile decodes an audio file into an in-memory PCM buffer at its
// native sample rate and channel count. Format conversion happens later,
// in memory, via Preprocess.
func DecodeFile(ctx context.Context, path string) (Buffer, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Buffer{}, fmt.Errorf("audio file not found: %s: %w", path, fs.ErrNotExist)
		}
		return Buffer{}, fmt.Errorf("cannot access audio file %s: %w", path, err)
	}

	sampleRate, channels, err := probeStream(ctx, path)
	if err != nil {
		return Buffer{}, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-loglevel", "error",
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Buffer{}, fmt.Errorf("failed to decode %s: %w (%s)",
			filepath.Base(path), err, strings.TrimSpace(stderr.String()))
	}

	return Buffer{
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    bytesToFloat32(stdout.Bytes()),
	}, nil
}

// probeStream reads sample rate and channel count of the first audio stream
func probeStream(ctx context.Context, path string) (sampleRate, channels int, err error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels",
		"-of", "csv=p=0",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	parts := strings.Split(strings.TrimSpace(string(output)), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected ffprobe output: %q", strings.TrimSpace(string(output)))
	}
	sampleRate, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid sample rate %q: %w", parts[0], err)
	}
	channels, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid channel count %q: %w", parts[1], err)
	}
	return sampleRate, channels, nil
}

// AudioDuration returns the duration of an audio file in seconds
func AudioDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to get audio duration: %w", err)
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &duration); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return duration, nil
}
