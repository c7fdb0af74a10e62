package asr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakeCapability returns canned text and records decode calls
type fakeCapability struct {
	text    string
	calls   int
	closed  bool
	decodeE error
}

func (f *fakeCapability) Transcribe(samples []float32, sampleRate int) (string, error) {
	f.calls++
	if f.decodeE != nil {
		return "", f.decodeE
	}
	return f.text, nil
}

func (f *fakeCapability) Close() { f.closed = true }

func stubDecode(buf Buffer, err error) func(context.Context, string) (Buffer, error) {
	return func(context.Context, string) (Buffer, error) {
		return buf, err
	}
}

func noCodecCheck() error { return nil }

func TestTranscribeRejectsUnknownModelBeforeLoading(t *testing.T) {
	loads := 0
	engine := NewEngineForTests("models",
		func(LoadOptions) (Capability, error) {
			loads++
			return &fakeCapability{}, nil
		},
		stubDecode(makeBuffer(16000, 1, 0.1, 0.3), nil),
		noCodecCheck,
	)

	_, err := engine.Transcribe(context.Background(), "a.wav", Request{Model: "gigantic"}, nil)
	if !errors.Is(err, ErrUnsupportedModel) {
		t.Fatalf("Expected ErrUnsupportedModel, got %v", err)
	}
	if loads != 0 {
		t.Errorf("Model must not be loaded for an invalid name, loads = %d", loads)
	}
}

func TestTranscribeCachesModelHandle(t *testing.T) {
	loads := 0
	capability := &fakeCapability{text: "hello "}
	engine := NewEngineForTests("models",
		func(opts LoadOptions) (Capability, error) {
			loads++
			return capability, nil
		},
		stubDecode(makeBuffer(16000, 1, 0.1, 0.3), nil),
		noCodecCheck,
	)

	req := Request{Model: "base", Language: "en"}
	for i := 0; i < 3; i++ {
		if _, err := engine.Transcribe(context.Background(), "a.wav", req, nil); err != nil {
			t.Fatalf("Transcribe %d failed: %v", i, err)
		}
	}
	if loads != 1 {
		t.Errorf("Expected one model load for repeated requests, got %d", loads)
	}

	// Different model forces a reload and closes the old handle
	req.Model = "large"
	if _, err := engine.Transcribe(context.Background(), "a.wav", req, nil); err != nil {
		t.Fatalf("Transcribe with new model failed: %v", err)
	}
	if loads != 2 {
		t.Errorf("Expected reload on model change, loads = %d", loads)
	}
	if !capability.closed {
		t.Error("Previous model handle should be closed on reload")
	}
}

func TestTranscribeEmptyTextIsNotAnError(t *testing.T) {
	engine := NewEngineForTests("models",
		func(LoadOptions) (Capability, error) {
			return &fakeCapability{text: "   "}, nil
		},
		stubDecode(makeBuffer(16000, 1, 0.2, 0.3), nil),
		noCodecCheck,
	)

	result, err := engine.Transcribe(context.Background(), "silence.wav", Request{Model: "base"}, nil)
	if err != nil {
		t.Fatalf("Empty output must not fail: %v", err)
	}
	if result.Text != "" {
		t.Errorf("Expected stripped empty text, got %q", result.Text)
	}
	if result.Language != "unknown" {
		t.Errorf("Expected unknown language for auto-detect, got %q", result.Language)
	}
}

func TestTranscribePropagatesDecodeError(t *testing.T) {
	decodeErr := fmt.Errorf("failed to decode talk.m4a: corrupt header")
	engine := NewEngineForTests("models",
		func(LoadOptions) (Capability, error) {
			t.Fatal("Model must not be loaded when decoding fails")
			return nil, nil
		},
		stubDecode(Buffer{}, decodeErr),
		noCodecCheck,
	)

	_, err := engine.Transcribe(context.Background(), "talk.m4a", Request{Model: "base"}, nil)
	if err == nil || !strings.Contains(err.Error(), "talk.m4a") {
		t.Fatalf("Decode error should carry the file name, got %v", err)
	}
}

func TestTranscribePropagatesCodecCheck(t *testing.T) {
	depErr := &MissingDependencyError{Tool: "ffmpeg", Hint: "install with: brew install ffmpeg"}
	engine := NewEngineForTests("models",
		func(LoadOptions) (Capability, error) { return &fakeCapability{}, nil },
		stubDecode(makeBuffer(16000, 1, 0.1, 0.3), nil),
		func() error { return depErr },
	)

	_, err := engine.Transcribe(context.Background(), "a.wav", Request{Model: "base"}, nil)
	var missing *MissingDependencyError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingDependencyError, got %v", err)
	}
	if !strings.Contains(missing.Error(), "brew install") {
		t.Errorf("Error should carry installation guidance, got %v", missing)
	}
}

func TestTranscribeReportsProgressInSeconds(t *testing.T) {
	engine := NewEngineForTests("models",
		func(LoadOptions) (Capability, error) {
			return &fakeCapability{text: "chunk "}, nil
		},
		// 75 seconds of audio = 3 chunks (30 + 30 + 15)
		stubDecode(makeBuffer(16000, 1, 75, 0.3), nil),
		noCodecCheck,
	)

	var reports [][2]float64
	_, err := engine.Transcribe(context.Background(), "long.wav",
		Request{Model: "base", Verbose: true},
		func(done, total float64) {
			reports = append(reports, [2]float64{done, total})
		})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if len(reports) != 3 {
		t.Fatalf("Expected 3 progress reports, got %d", len(reports))
	}
	if reports[0][0] != 30 || reports[1][0] != 60 {
		t.Errorf("Progress should advance in audio seconds, got %v", reports)
	}
	last := reports[len(reports)-1]
	if last[0] < 74.9 || last[0] > 75.1 {
		t.Errorf("Final progress should reach audio duration, got %f", last[0])
	}
	if last[1] < 74.9 || last[1] > 75.1 {
		t.Errorf("Total should equal audio duration in seconds, got %f", last[1])
	}
}

func TestProbeCodecToolsMissing(t *testing.T) {
	err := probeCodecTools(func(name string) (string, error) {
		if name == "ffprobe" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	})

	var missing *MissingDependencyError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingDependencyError, got %v", err)
	}
	if missing.Tool != "ffprobe" {
		t.Errorf("Expected ffprobe reported, got %s", missing.Tool)
	}
	if missing.Hint == "" {
		t.Error("Hint must carry installation guidance")
	}
}

func TestProbeCodecToolsPresent(t *testing.T) {
	err := probeCodecTools(func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
}

func TestValidateModel(t *testing.T) {
	for _, name := range SupportedModels {
		if err := ValidateModel(name); err != nil {
			t.Errorf("ValidateModel(%q) = %v", name, err)
		}
	}
	for _, name := range []string{"", "large-v3", "Base", "whisper"} {
		if err := ValidateModel(name); !errors.Is(err, ErrUnsupportedModel) {
			t.Errorf("ValidateModel(%q) should fail, got %v", name, err)
		}
	}
}
