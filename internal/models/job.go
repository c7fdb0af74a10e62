package models

import "time"

// TranscriptionJob is one queued transcription run: stage the audio to a
// remote host, transcribe it there, retrieve the transcript, then apply
// the requested refinement stages locally.
type TranscriptionJob struct {
	ID        string `json:"id"`
	Host      string `json:"host"`
	AudioPath string `json:"audio_path"`
	OutputDir string `json:"output_dir,omitempty"`

	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`

	Clean         bool `json:"clean"`
	Summarize     bool `json:"summarize"`
	ChannelFormat bool `json:"channel_format"`

	Status      string `json:"status"`
	Priority    int    `json:"priority"`
	Progress    int    `json:"progress"`
	CurrentStep string `json:"current_step,omitempty"`
	RetryCount  int    `json:"retry_count"`
	Error       string `json:"error,omitempty"`

	// Artifacts maps artifact name (raw, cleaned, summary, ...) to the
	// local file path, populated when the job completes.
	Artifacts map[string]string `json:"artifacts,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ジョブステータス
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// ジョブ優先度（0は未指定としてNormalに補正される）
const (
	JobPriorityImmediate = 1 // 即時処理
	JobPriorityNormal    = 5 // 通常処理
	JobPriorityBatch     = 9 // バッチ処理
)

// JobStatusCount is one row of the per-status job statistics
type JobStatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}
