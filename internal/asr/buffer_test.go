package asr

import (
	"math"
	"testing"
)

// makeBuffer builds a test tone with the given shape
func makeBuffer(rate, channels int, seconds float64, amplitude float32) Buffer {
	frames := int(float64(rate) * seconds)
	samples := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		v := amplitude * float32(math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}
	return Buffer{SampleRate: rate, Channels: channels, Samples: samples}
}

func TestPreprocessInvariants(t *testing.T) {
	tests := []struct {
		name     string
		rate     int
		channels int
	}{
		{"already optimal mono", 16000, 1},
		{"stereo 44.1k", 44100, 2},
		{"stereo 48k", 48000, 2},
		{"mono 8k upsampled", 8000, 1},
		{"5.1 surround", 48000, 6},
		{"mono 22.05k", 22050, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := makeBuffer(tt.rate, tt.channels, 0.5, 0.3)
			out := Preprocess(in)

			if out.Channels != 1 {
				t.Errorf("Expected mono output, got %d channels", out.Channels)
			}
			if out.SampleRate != OptimalSampleRate {
				t.Errorf("Expected %d Hz, got %d", OptimalSampleRate, out.SampleRate)
			}

			var peak float32
			for _, s := range out.Samples {
				if a := float32(math.Abs(float64(s))); a > peak {
					peak = a
				}
			}
			if peak > 1.0 {
				t.Errorf("Normalized peak exceeds full scale: %f", peak)
			}
			if math.Abs(float64(peak)-normalizePeak) > 0.02 {
				t.Errorf("Expected peak near %f, got %f", normalizePeak, peak)
			}
		})
	}
}

func TestPreprocessIsIdempotent(t *testing.T) {
	in := makeBuffer(44100, 2, 0.25, 0.5)
	once := Preprocess(in)
	twice := Preprocess(once)

	if len(once.Samples) != len(twice.Samples) {
		t.Fatalf("Sample count changed on second pass: %d -> %d", len(once.Samples), len(twice.Samples))
	}
	for i := range once.Samples {
		if math.Abs(float64(once.Samples[i]-twice.Samples[i])) > 1e-4 {
			t.Fatalf("Sample %d changed on second pass: %f -> %f", i, once.Samples[i], twice.Samples[i])
		}
	}
}

func TestPreprocessPreservesDuration(t *testing.T) {
	in := makeBuffer(48000, 2, 1.0, 0.4)
	out := Preprocess(in)

	if math.Abs(out.DurationSeconds()-1.0) > 0.01 {
		t.Errorf("Duration changed by preprocessing: %f", out.DurationSeconds())
	}
}

func TestNormalizeSilence(t *testing.T) {
	in := Buffer{SampleRate: 16000, Channels: 1, Samples: make([]float32, 1600)}
	out := in.Normalize()

	for i, s := range out.Samples {
		if s != 0 {
			t.Fatalf("Silence must stay silent, sample %d = %f", i, s)
		}
	}
}

func TestDownmixAverages(t *testing.T) {
	in := Buffer{SampleRate: 16000, Channels: 2, Samples: []float32{1, 0, 0.5, 0.5, -1, 1}}
	out := in.Downmix()

	want := []float32{0.5, 0.5, 0}
	if len(out.Samples) != len(want) {
		t.Fatalf("Expected %d frames, got %d", len(want), len(out.Samples))
	}
	for i, w := range want {
		if math.Abs(float64(out.Samples[i]-w)) > 1e-6 {
			t.Errorf("Frame %d: got %f, want %f", i, out.Samples[i], w)
		}
	}
}

func TestBytesToFloat32(t *testing.T) {
	// 0x7FFF = max positive, 0x8000 = max negative
	data := []byte{0xFF, 0x7F, 0x00, 0x80, 0x00, 0x00}
	samples := bytesToFloat32(data)

	if len(samples) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(samples))
	}
	if samples[0] < 0.99 || samples[0] > 1.0 {
		t.Errorf("Max positive sample = %f", samples[0])
	}
	if samples[1] != -1.0 {
		t.Errorf("Max negative sample = %f", samples[1])
	}
	if samples[2] != 0 {
		t.Errorf("Zero sample = %f", samples[2])
	}
}
