package asr

import (
	"fmt"
	"os"
	"path/filepath"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// Capability is a loaded speech-to-text model. It consumes mono 16kHz
// samples and produces text; everything else about the model is opaque.
type Capability interface {
	Transcribe(samples []float32, sampleRate int) (string, error)
	Close()
}

// LoadOptions selects the model files and decoding parameters.
// Prompt is accepted for contract compatibility with other engines; the
// sherpa whisper decoder has no prompt conditioning, so it is unused here.
type LoadOptions struct {
	ModelDir string
	Model    string
	Language string
	Prompt   string
	Threads  int
}

// whisperCapability wraps a sherpa-onnx offline whisper recognizer
type whisperCapability struct {
	recognizer *sherpa.OfflineRecognizer
}

// LoadWhisper creates a recognizer for the named model. Model weights are
// discovered in opts.ModelDir, preferring int8-quantized and fp32 ONNX
// files; fp16 variants are never selected.
func LoadWhisper(opts LoadOptions) (Capability, error) {
	if opts.Threads <= 0 {
		opts.Threads = 4
	}

	encoderPath := findModelFile(opts.ModelDir, modelFileCandidates(opts.Model, "encoder"))
	decoderPath := findModelFile(opts.ModelDir, modelFileCandidates(opts.Model, "decoder"))
	tokensPath := findModelFile(opts.ModelDir, []string{
		opts.Model + "-tokens.txt",
		"tokens.txt",
	})

	if encoderPath == "" {
		return nil, fmt.Errorf("encoder model for %q not found in %s", opts.Model, opts.ModelDir)
	}
	if decoderPath == "" {
		return nil, fmt.Errorf("decoder model for %q not found in %s", opts.Model, opts.ModelDir)
	}
	if tokensPath == "" {
		return nil, fmt.Errorf("tokens file for %q not found in %s", opts.Model, opts.ModelDir)
	}

	sherpaConfig := sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: OptimalSampleRate,
			FeatureDim: 80,
		},
		ModelConfig: sherpa.OfflineModelConfig{
			Whisper: sherpa.OfflineWhisperModelConfig{
				Encoder:  encoderPath,
				Decoder:  decoderPath,
				Language: opts.Language,
				Task:     "transcribe",
			},
			Tokens:     tokensPath,
			NumThreads: opts.Threads,
			Debug:      0,
		},
	}

	recognizer := sherpa.NewOfflineRecognizer(&sherpaConfig)
	if recognizer == nil {
		return nil, fmt.Errorf("failed to create whisper recognizer for model %q", opts.Model)
	}

	return &whisperCapability{recognizer: recognizer}, nil
}

// Transcribe decodes one chunk of samples
func (c *whisperCapability) Transcribe(samples []float32, sampleRate int) (string, error) {
	stream := sherpa.NewOfflineStream(c.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(sampleRate, samples)
	c.recognizer.Decode(stream)

	result := stream.GetResult()
	if result == nil {
		return "", nil
	}
	return result.Text, nil
}

// Close releases the recognizer resources
func (c *whisperCapability) Close() {
	if c.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(c.recognizer)
		c.recognizer = nil
	}
}

// modelFileCandidates lists weight file names to try for a model part,
// most specific and most quantized first
func modelFileCandidates(model, part string) []string {
	return []string{
		model + "-" + part + ".int8.onnx",
		model + "-" + part + ".onnx",
		part + ".int8.onnx",
		part + ".onnx",
	}
}

// findModelFile returns the first existing candidate in dir, or ""
func findModelFile(dir string, candidates []string) string {
	for _, candidate := range candidates {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
