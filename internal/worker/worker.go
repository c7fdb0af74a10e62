package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"telescribe/internal/models"
	"telescribe/internal/storage"
)

// JobHandler processes a job and returns the artifact name -> path map
// of everything it produced
type JobHandler func(ctx context.Context, job *models.TranscriptionJob) (map[string]string, error)

// Worker processes queued transcription jobs one at a time. Remote
// transcription is fail-fast, so jobs are not retried unless a retry
// budget is configured explicitly.
type Worker struct {
	jobRepo    *storage.JobRepository
	handler    JobHandler
	interval   time.Duration
	maxRetries int
	stop       chan struct{}
	wg         sync.WaitGroup
}

// NewWorker creates a new worker
func NewWorker(jobRepo *storage.JobRepository, handler JobHandler) *Worker {
	return &Worker{
		jobRepo:  jobRepo,
		handler:  handler,
		interval: 1 * time.Second,
		stop:     make(chan struct{}),
	}
}

// SetInterval sets the polling interval
func (w *Worker) SetInterval(interval time.Duration) {
	w.interval = interval
}

// SetMaxRetries allows failed jobs to be requeued up to n times
func (w *Worker) SetMaxRetries(n int) {
	w.maxRetries = n
}

// Start begins processing jobs
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
	log.Println("Worker started")
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stop)
	w.wg.Wait()
	log.Println("Worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.processNextJob(ctx)
		}
	}
}

func (w *Worker) processNextJob(ctx context.Context) {
	job, err := w.jobRepo.GetNextQueued(ctx)
	if err != nil {
		log.Printf("Error getting next job: %v", err)
		return
	}
	if job == nil {
		return // No jobs to process
	}

	if err := w.jobRepo.Start(ctx, job.ID); err != nil {
		log.Printf("Error starting job %s: %v", job.ID, err)
		return
	}

	log.Printf("Processing job %s (%s on %s)", job.ID, job.AudioPath, job.Host)

	artifacts, err := w.handler(ctx, job)
	if err != nil {
		log.Printf("Job %s failed: %v", job.ID, err)
		w.handleJobFailure(ctx, job, err)
		return
	}

	if err := w.jobRepo.Complete(ctx, job.ID, artifacts); err != nil {
		log.Printf("Error completing job %s: %v", job.ID, err)
		return
	}

	log.Printf("Job %s completed", job.ID)
}

func (w *Worker) handleJobFailure(ctx context.Context, job *models.TranscriptionJob, jobErr error) {
	if job.RetryCount < w.maxRetries {
		if err := w.jobRepo.Retry(ctx, job.ID); err != nil {
			log.Printf("Error retrying job %s: %v", job.ID, err)
		} else {
			log.Printf("Job %s queued for retry (attempt %d/%d)", job.ID, job.RetryCount+1, w.maxRetries)
		}
		return
	}
	if err := w.jobRepo.Fail(ctx, job.ID, jobErr.Error()); err != nil {
		log.Printf("Error failing job %s: %v", job.ID, err)
	}
}

// SubmitJob queues a job and returns it with its assigned ID
func (w *Worker) SubmitJob(ctx context.Context, job *models.TranscriptionJob) (*models.TranscriptionJob, error) {
	if err := w.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}
	log.Printf("Job %s submitted (audio: %s, priority: %d)", job.ID, job.AudioPath, job.Priority)
	return job, nil
}
