package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ytdl "github.com/kkdai/youtube/v2"
)

// YouTubeClient downloads audio tracks from YouTube videos so they can be
// queued for transcription like any local recording.
type YouTubeClient struct {
	client ytdl.Client
}

// NewYouTubeClient creates a client
func NewYouTubeClient() *YouTubeClient {
	return &YouTubeClient{client: ytdl.Client{}}
}

// audioExtension maps an audio MIME type to a file extension
func audioExtension(mimeType string) string {
	if strings.Contains(mimeType, "mp4") {
		return ".m4a"
	}
	if strings.Contains(mimeType, "webm") {
		return ".webm"
	}
	return ".audio"
}

// DownloadAudio fetches the highest-bitrate audio-only track of videoURL
// into dir and returns the local file path
func (c *YouTubeClient) DownloadAudio(ctx context.Context, videoURL, dir string) (string, error) {
	video, err := c.client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return "", fmt.Errorf("failed to get video: %w", err)
	}

	format := bestAudioFormat(video.Formats)
	if format == nil {
		return "", fmt.Errorf("no audio-only format available for %s", videoURL)
	}

	stream, _, err := c.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return "", fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()

	outputPath := filepath.Join(dir, sanitizeFilename(video.Title)+audioExtension(format.MimeType))
	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, stream); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("failed to download audio: %w", err)
	}
	return outputPath, nil
}

// bestAudioFormat picks the highest-bitrate audio-only format, preferring
// the default audio track when the video carries several languages
func bestAudioFormat(formats ytdl.FormatList) *ytdl.Format {
	var audio []*ytdl.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if f.AudioTrack != nil && !f.AudioTrack.AudioIsDefault {
			continue
		}
		audio = append(audio, f)
	}
	sort.Slice(audio, func(i, j int) bool {
		return audio[i].Bitrate > audio[j].Bitrate
	})
	if len(audio) == 0 {
		return nil
	}
	return audio[0]
}

// sanitizeFilename replaces characters that cannot appear in file names
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
