package storage

import (
	"context"
	"path/filepath"
	"testing"

	"telescribe/internal/models"
)

func newTestRepo(t *testing.T) *JobRepository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewJobRepository(db)
}

func TestJobCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	job := &models.TranscriptionJob{
		Host:      "user@box",
		AudioPath: "/audio/standup.m4a",
		Model:     "turbo",
		Summarize: true,
	}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.ID == "" {
		t.Fatal("Create should assign an ID")
	}
	if job.Status != models.JobStatusQueued {
		t.Errorf("Status = %q, want queued", job.Status)
	}
	if job.Priority != models.JobPriorityNormal {
		t.Errorf("Priority = %d, want %d", job.Priority, models.JobPriorityNormal)
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetByID returned nil for existing job")
	}
	if got.Host != "user@box" || got.Model != "turbo" || !got.Summarize || got.Clean {
		t.Errorf("Round-trip mismatch: %+v", got)
	}
}

func TestGetByIDMissing(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing job, got %+v", got)
	}
}

func TestGetNextQueuedHonorsPriority(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	batch := &models.TranscriptionJob{Host: "h", AudioPath: "a.m4a", Model: "base", Priority: models.JobPriorityBatch}
	if err := repo.Create(ctx, batch); err != nil {
		t.Fatal(err)
	}
	urgent := &models.TranscriptionJob{Host: "h", AudioPath: "b.m4a", Model: "base", Priority: models.JobPriorityImmediate}
	if err := repo.Create(ctx, urgent); err != nil {
		t.Fatal(err)
	}

	next, err := repo.GetNextQueued(ctx)
	if err != nil {
		t.Fatalf("GetNextQueued failed: %v", err)
	}
	if next == nil {
		t.Fatal("Expected a queued job")
	}
	if next.ID != urgent.ID {
		t.Errorf("Queue should order by priority ascending, got job %s (priority %d)", next.ID, next.Priority)
	}
}

func TestJobLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	job := &models.TranscriptionJob{Host: "h", AudioPath: "a.m4a", Model: "base"}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatal(err)
	}

	if err := repo.Start(ctx, job.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	got, _ := repo.GetByID(ctx, job.ID)
	if got.Status != models.JobStatusRunning || got.StartedAt == nil {
		t.Errorf("After Start: %+v", got)
	}

	if err := repo.UpdateStep(ctx, job.ID, 40, "invoking"); err != nil {
		t.Fatalf("UpdateStep failed: %v", err)
	}
	got, _ = repo.GetByID(ctx, job.ID)
	if got.Progress != 40 || got.CurrentStep != "invoking" {
		t.Errorf("After UpdateStep: %+v", got)
	}

	artifacts := map[string]string{"raw": "/out/a.txt", "cleaned": "/out/a_cleaned.txt"}
	if err := repo.Complete(ctx, job.ID, artifacts); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	got, _ = repo.GetByID(ctx, job.ID)
	if got.Status != models.JobStatusCompleted || got.CompletedAt == nil || got.Progress != 100 {
		t.Errorf("After Complete: %+v", got)
	}
	if got.Artifacts["cleaned"] != "/out/a_cleaned.txt" {
		t.Errorf("Artifacts = %v", got.Artifacts)
	}
}

func TestJobFailAndRetry(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	job := &models.TranscriptionJob{Host: "h", AudioPath: "a.m4a", Model: "base"}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatal(err)
	}

	if err := repo.Fail(ctx, job.ID, "host unreachable"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	got, _ := repo.GetByID(ctx, job.ID)
	if got.Status != models.JobStatusFailed || got.Error != "host unreachable" {
		t.Errorf("After Fail: %+v", got)
	}

	if err := repo.Retry(ctx, job.ID); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	got, _ = repo.GetByID(ctx, job.ID)
	if got.Status != models.JobStatusQueued || got.RetryCount != 1 || got.Error != "" {
		t.Errorf("After Retry: %+v", got)
	}
	if got.StartedAt != nil || got.CompletedAt != nil {
		t.Errorf("Retry should reset timestamps: %+v", got)
	}
}

func TestListAndCount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		job := &models.TranscriptionJob{Host: "h", AudioPath: "a.m4a", Model: "base"}
		if err := repo.Create(ctx, job); err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			if err := repo.Fail(ctx, job.ID, "boom"); err != nil {
				t.Fatal(err)
			}
		}
	}

	recent, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Errorf("ListRecent = %d jobs, want 3", len(recent))
	}

	queued, err := repo.ListByStatus(ctx, models.JobStatusQueued, 10)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(queued) != 2 {
		t.Errorf("ListByStatus(queued) = %d, want 2", len(queued))
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	byStatus := map[string]int{}
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}
	if byStatus[models.JobStatusQueued] != 2 || byStatus[models.JobStatusFailed] != 1 {
		t.Errorf("CountByStatus = %v", byStatus)
	}
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	job := &models.TranscriptionJob{Host: "h", AudioPath: "a.m4a", Model: "base"}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, job.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err := repo.GetByID(ctx, job.ID)
	if err != nil || got != nil {
		t.Errorf("Job should be gone: %v %v", got, err)
	}
}
