package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"telescribe/internal/config"
	"telescribe/internal/enhance"
	"telescribe/internal/fetch"
	"telescribe/internal/handlers"
	"telescribe/internal/models"
	"telescribe/internal/orchestrate"
	"telescribe/internal/pipeline"
	"telescribe/internal/storage"
	"telescribe/internal/version"
	"telescribe/internal/worker"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	// .envファイルを読み込み（存在しない場合はスキップ）
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	jobRepo := storage.NewJobRepository(db)

	var refiner enhance.Refiner
	if cfg.AnthropicKey != "" {
		refiner = enhance.NewAnthropicRefiner(cfg.AnthropicKey, cfg.AnthropicModel)
	} else {
		log.Println("ANTHROPIC_KEY not set, transcript refinement is disabled")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w := worker.NewWorker(jobRepo, jobHandler(cfg, refiner, jobRepo))
	w.Start(ctx)
	defer w.Stop()

	// Echoインスタンスの作成
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	transcriptions := handlers.NewTranscriptionHandler(jobRepo, fetch.NewYouTubeClient(), cfg.DataDir, cfg.DefaultHost)
	jobs := handlers.NewJobHandler(jobRepo)

	// ルートの登録
	e.POST("/api/transcriptions", transcriptions.Create)
	e.POST("/api/transcriptions/upload", transcriptions.Upload)
	e.GET("/api/jobs", jobs.List)
	e.GET("/api/jobs/stats", jobs.Stats)
	e.GET("/api/jobs/:id", jobs.Get)
	e.DELETE("/api/jobs/:id", jobs.Delete)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	})

	// サーバー起動
	log.Printf("Starting telescribe v%s on port %s", version.Version, cfg.Port)
	if err := e.Start(fmt.Sprintf(":%s", cfg.Port)); err != nil {
		log.Fatal(err)
	}
}

// stateProgress maps orchestrator phases to a coarse progress percentage
var stateProgress = map[orchestrate.State]int{
	orchestrate.StateStagingIn:  10,
	orchestrate.StateInvoking:   30,
	orchestrate.StateStagingOut: 80,
	orchestrate.StateCleaningUp: 90,
}

// jobHandler adapts the pipeline controller to the worker queue. A fresh
// controller is built per job so state callbacks can update that job's row.
func jobHandler(cfg config.Config, refiner enhance.Refiner, jobRepo *storage.JobRepository) worker.JobHandler {
	return func(ctx context.Context, job *models.TranscriptionJob) (map[string]string, error) {
		ctrl := pipeline.New(cfg.WorkerPath, refiner)
		ctrl.SetRemoteDir(cfg.RemoteDir)
		ctrl.SetProbeTimeout(cfg.ProbeTimeout)
		ctrl.OnState(func(s orchestrate.State) {
			if pct, ok := stateProgress[s]; ok {
				if err := jobRepo.UpdateStep(ctx, job.ID, pct, s.String()); err != nil {
					log.Printf("Error updating job %s step: %v", job.ID, err)
				}
			}
		})

		summary, err := ctrl.Run(ctx, pipeline.JobSpec{
			Host:      job.Host,
			AudioPath: job.AudioPath,
			OutputDir: job.OutputDir,
			Model:     job.Model,
			Language:  job.Language,
			Prompt:    job.Prompt,
			Enhance: enhance.Options{
				Clean:         job.Clean,
				Summarize:     job.Summarize,
				ChannelFormat: job.ChannelFormat,
			},
		})
		if err != nil {
			return nil, err
		}

		artifacts := make(map[string]string, len(summary.Artifacts))
		for _, a := range summary.Artifacts {
			artifacts[a.Name] = a.Path
		}
		return artifacts, nil
	}
}
