package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"telescribe/internal/models"
)

const jobColumns = `id, host, audio_path, output_dir, model, language, prompt,
	clean, summarize, channel_format,
	status, priority, progress, current_step, retry_count, error, artifacts,
	created_at, started_at, completed_at`

// JobRepository はジョブのデータアクセス層
type JobRepository struct {
	db *DB
}

// NewJobRepository は新しいJobRepositoryを作成
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create は新しいジョブを作成
func (r *JobRepository) Create(ctx context.Context, job *models.TranscriptionJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.CreatedAt = time.Now()
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	if job.Priority == 0 {
		job.Priority = models.JobPriorityNormal
	}

	artifacts, err := marshalArtifacts(job.Artifacts)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transcription_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Host, job.AudioPath, job.OutputDir,
		job.Model, job.Language, job.Prompt,
		job.Clean, job.Summarize, job.ChannelFormat,
		job.Status, job.Priority, job.Progress, job.CurrentStep,
		job.RetryCount, job.Error, artifacts,
		job.CreatedAt, job.StartedAt, job.CompletedAt,
	)
	return err
}

// GetByID はIDでジョブを取得（存在しない場合はnil）
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.TranscriptionJob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM transcription_jobs WHERE id = ?`, id)
	return scanJob(row)
}

// GetNextQueued は次に処理すべきキュー済みジョブを取得（優先度順）
func (r *JobRepository) GetNextQueued(ctx context.Context) (*models.TranscriptionJob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM transcription_jobs
		WHERE status = ?
		ORDER BY priority ASC, created_at ASC
		LIMIT 1`, models.JobStatusQueued)
	return scanJob(row)
}

// Start はジョブを開始状態にする
func (r *JobRepository) Start(ctx context.Context, id string) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE transcription_jobs
		SET status = ?, started_at = ?, current_step = ''
		WHERE id = ?`, models.JobStatusRunning, now, id)
	return err
}

// UpdateStep はジョブの進捗と現在ステップを更新
func (r *JobRepository) UpdateStep(ctx context.Context, id string, progress int, step string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transcription_jobs SET progress = ?, current_step = ? WHERE id = ?`,
		progress, step, id)
	return err
}

// Complete はジョブを完了状態にし、生成されたアーティファクトを記録する
func (r *JobRepository) Complete(ctx context.Context, id string, artifacts map[string]string) error {
	encoded, err := marshalArtifacts(artifacts)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = r.db.ExecContext(ctx, `
		UPDATE transcription_jobs
		SET status = ?, progress = 100, completed_at = ?, artifacts = ?
		WHERE id = ?`, models.JobStatusCompleted, now, encoded, id)
	return err
}

// Fail はジョブを失敗状態にする
func (r *JobRepository) Fail(ctx context.Context, id string, errorMsg string) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE transcription_jobs
		SET status = ?, error = ?, completed_at = ?
		WHERE id = ?`, models.JobStatusFailed, errorMsg, now, id)
	return err
}

// Retry はジョブを再試行キューに戻す
func (r *JobRepository) Retry(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transcription_jobs
		SET status = ?, retry_count = retry_count + 1,
		    started_at = NULL, completed_at = NULL, error = ''
		WHERE id = ?`, models.JobStatusQueued, id)
	return err
}

// ListRecent は最近のジョブ一覧を取得
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]models.TranscriptionJob, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM transcription_jobs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListByStatus はステータスでジョブ一覧を取得
func (r *JobRepository) ListByStatus(ctx context.Context, status string, limit int) ([]models.TranscriptionJob, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM transcription_jobs
		WHERE status = ?
		ORDER BY created_at DESC
		LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// Delete はジョブを削除
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transcription_jobs WHERE id = ?`, id)
	return err
}

// CleanupCompleted は完了済みジョブを削除（指定日数より古いもの）
func (r *JobRepository) CleanupCompleted(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM transcription_jobs
		WHERE status IN (?, ?) AND completed_at < ?`,
		models.JobStatusCompleted, models.JobStatusFailed, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountByStatus はステータスごとのジョブ数を取得
func (r *JobRepository) CountByStatus(ctx context.Context) ([]models.JobStatusCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM transcription_jobs GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.JobStatusCount
	for rows.Next() {
		var c models.JobStatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row *sql.Row) (*models.TranscriptionJob, error) {
	job, err := scanJobRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func scanJobs(rows *sql.Rows) ([]models.TranscriptionJob, error) {
	var jobs []models.TranscriptionJob
	for rows.Next() {
		job, err := scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJobRow(s rowScanner) (*models.TranscriptionJob, error) {
	var job models.TranscriptionJob
	var artifacts string
	err := s.Scan(
		&job.ID, &job.Host, &job.AudioPath, &job.OutputDir,
		&job.Model, &job.Language, &job.Prompt,
		&job.Clean, &job.Summarize, &job.ChannelFormat,
		&job.Status, &job.Priority, &job.Progress, &job.CurrentStep,
		&job.RetryCount, &job.Error, &artifacts,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if artifacts != "" && artifacts != "{}" {
		if err := json.Unmarshal([]byte(artifacts), &job.Artifacts); err != nil {
			return nil, fmt.Errorf("failed to decode artifacts for job %s: %w", job.ID, err)
		}
	}
	return &job, nil
}

func marshalArtifacts(artifacts map[string]string) (string, error) {
	if len(artifacts) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(artifacts)
	if err != nil {
		return "", fmt.Errorf("failed to encode artifacts: %w", err)
	}
	return string(encoded), nil
}
