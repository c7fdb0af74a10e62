package config

import (
	"os"
	"time"
)

// Config holds process configuration, loaded from environment variables.
// Mains call godotenv.Load() first so a local .env file works too.
type Config struct {
	Port         string // HTTP server port
	DatabasePath string // sqlite job store
	DataDir      string // uploaded/downloaded audio and transcripts

	DefaultHost  string        // default remote transcription host
	WorkerPath   string        // local transcribe-worker program staged to the host
	RemoteDir    string        // remote staging directory
	ProbeTimeout time.Duration // ssh liveness probe bound

	ModelDir string // model weights directory for the local worker

	AnthropicKey   string // empty = enhancement stages are skipped
	AnthropicModel string
}

// Load reads configuration from the environment with defaults
func Load() Config {
	return Config{
		Port:           getenv("PORT", "8080"),
		DatabasePath:   getenv("TELESCRIBE_DB", "data/telescribe.db"),
		DataDir:        getenv("TELESCRIBE_DATA_DIR", "data"),
		DefaultHost:    os.Getenv("TRANSCRIPT_HOST"),
		WorkerPath:     getenv("TELESCRIBE_WORKER", "transcribe-worker"),
		RemoteDir:      getenv("TELESCRIBE_REMOTE_DIR", "/tmp"),
		ProbeTimeout:   duration(getenv("TELESCRIBE_PROBE_TIMEOUT", "5s"), 5*time.Second),
		ModelDir:       getenv("TELESCRIBE_MODEL_DIR", "models"),
		AnthropicKey:   os.Getenv("ANTHROPIC_KEY"),
		AnthropicModel: os.Getenv("ANTHROPIC_MODEL"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
