package asr

import "math"

// OptimalSampleRate is the rate the speech models expect
const OptimalSampleRate = 16000

// normalizePeak is the target peak amplitude after normalization
const normalizePeak = 0.97

// Buffer is decoded PCM audio held entirely in memory.
// Samples are interleaved float32 in [-1, 1].
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// DurationSeconds returns the audio duration in seconds
func (b Buffer) DurationSeconds() float64 {
	if b.SampleRate == 0 || b.Channels == 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.Channels) / float64(b.SampleRate)
}

// Preprocess prepares a buffer for transcription: mono, 16kHz, normalized.
// Each step is skipped when the buffer already satisfies it, so the
// function is idempotent. Downstream consumers may rely on all three
// properties without re-checking.
func Preprocess(b Buffer) Buffer {
	if b.Channels > 1 {
		b = b.Downmix()
	}
	if b.SampleRate != OptimalSampleRate {
		b = b.Resample(OptimalSampleRate)
	}
	return b.Normalize()
}

// Downmix averages all channels into a single mono channel
func (b Buffer) Downmix() Buffer {
	if b.Channels <= 1 {
		return b
	}
	frames := len(b.Samples) / b.Channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < b.Channels; ch++ {
			sum += b.Samples[i*b.Channels+ch]
		}
		mono[i] = sum / float32(b.Channels)
	}
	return Buffer{SampleRate: b.SampleRate, Channels: 1, Samples: mono}
}

// Resample converts the buffer to the target sample rate using linear
// interpolation. The buffer must be mono (call Downmix first).
func (b Buffer) Resample(rate int) Buffer {
	if b.SampleRate == rate || b.SampleRate == 0 || len(b.Samples) == 0 {
		b.SampleRate = rate
		return b
	}

	ratio := float64(b.SampleRate) / float64(rate)
	outLen := int(math.Round(float64(len(b.Samples)) / ratio))
	if outLen < 1 {
		outLen = 1
	}
	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(b.Samples)-1 {
			out[i] = b.Samples[len(b.Samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = b.Samples[idx]*(1-frac) + b.Samples[idx+1]*frac
	}
	return Buffer{SampleRate: rate, Channels: b.Channels, Samples: out}
}

// Normalize scales samples so the peak amplitude reaches a standard level.
// Silent buffers and already-normalized buffers are returned unchanged.
func (b Buffer) Normalize() Buffer {
	var peak float32
	for _, s := range b.Samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return b
	}
	gain := normalizePeak / peak
	if math.Abs(float64(gain)-1) < 1e-3 {
		return b
	}

	out := make([]float32, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s * gain
	}
	return Buffer{SampleRate: b.SampleRate, Channels: b.Channels, Samples: out}
}

// bytesToFloat32 converts 16-bit little-endian PCM bytes to float32 samples
func bytesToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := 0; i < len(samples); i++ {
		sample := int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}
