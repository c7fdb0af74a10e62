package handlers

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"telescribe/internal/asr"
	"telescribe/internal/models"
	"telescribe/internal/storage"

	"github.com/labstack/echo/v4"
)

// AudioFetcher downloads remote audio (YouTube) into a local directory
type AudioFetcher interface {
	DownloadAudio(ctx context.Context, url, dir string) (string, error)
}

// TranscriptionHandler accepts transcription requests and queues jobs
type TranscriptionHandler struct {
	repo        *storage.JobRepository
	fetcher     AudioFetcher
	dataDir     string
	defaultHost string
}

// NewTranscriptionHandler creates a handler. fetcher may be nil to reject
// URL-based requests.
func NewTranscriptionHandler(repo *storage.JobRepository, fetcher AudioFetcher, dataDir, defaultHost string) *TranscriptionHandler {
	return &TranscriptionHandler{
		repo:        repo,
		fetcher:     fetcher,
		dataDir:     dataDir,
		defaultHost: defaultHost,
	}
}

// CreateRequest is the JSON body of a transcription request. Exactly one
// of AudioPath and YouTubeURL must be set.
type CreateRequest struct {
	AudioPath  string `json:"audio_path"`
	YouTubeURL string `json:"youtube_url"`
	Host       string `json:"host"`

	Model    string `json:"model"`
	Language string `json:"language"`
	Prompt   string `json:"prompt"`

	Clean         bool `json:"clean"`
	Summarize     bool `json:"summarize"`
	ChannelFormat bool `json:"channel_format"`

	Priority int `json:"priority"`
}

// Create queues a transcription job for a local file or a YouTube URL
// POST /api/transcriptions
func (h *TranscriptionHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if (req.AudioPath == "") == (req.YouTubeURL == "") {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "exactly one of audio_path and youtube_url is required"})
	}

	host := req.Host
	if host == "" {
		host = h.defaultHost
	}
	if host == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "host is required"})
	}

	model := req.Model
	if model == "" {
		model = "turbo"
	}
	if err := asr.ValidateModel(model); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	audioPath := req.AudioPath
	if req.YouTubeURL != "" {
		if h.fetcher == nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "youtube downloads are not configured"})
		}
		downloaded, err := h.fetcher.DownloadAudio(ctx, req.YouTubeURL, h.dataDir)
		if err != nil {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		audioPath = downloaded
	} else if _, err := os.Stat(audioPath); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "audio file not found: " + audioPath})
	}

	job := &models.TranscriptionJob{
		Host:          host,
		AudioPath:     audioPath,
		Model:         model,
		Language:      req.Language,
		Prompt:        req.Prompt,
		Clean:         req.Clean,
		Summarize:     req.Summarize,
		ChannelFormat: req.ChannelFormat,
		Priority:      req.Priority,
	}
	if err := h.repo.Create(ctx, job); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, job)
}

// Upload accepts a multipart audio file, stores it in the data directory,
// and queues a transcription job
// POST /api/transcriptions/upload
func (h *TranscriptionHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "file is required"})
	}

	host := c.FormValue("host")
	if host == "" {
		host = h.defaultHost
	}
	if host == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "host is required"})
	}

	model := c.FormValue("model")
	if model == "" {
		model = "turbo"
	}
	if err := asr.ValidateModel(model); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := os.MkdirAll(h.dataDir, 0755); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to open upload"})
	}
	defer src.Close()

	audioPath := filepath.Join(h.dataDir, filepath.Base(fileHeader.Filename))
	dst, err := os.Create(audioPath)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(audioPath)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	job := &models.TranscriptionJob{
		Host:          host,
		AudioPath:     audioPath,
		Model:         model,
		Language:      c.FormValue("language"),
		Prompt:        c.FormValue("prompt"),
		Clean:         c.FormValue("clean") == "true",
		Summarize:     c.FormValue("summarize") == "true",
		ChannelFormat: c.FormValue("channel_format") == "true",
	}
	if err := h.repo.Create(ctx, job); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, job)
}
