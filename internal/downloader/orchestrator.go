// Package downloader runs the multi-strategy extraction pipeline: an
// ordered chain of yt-dlp invocation recipes tried until one produces a
// local artifact.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"ytgrab/internal/cache"
	"ytgrab/internal/ytdlp"
	"ytgrab/pkg/models"
)

// ErrAllStrategiesFailed is returned when every applicable strategy has
// been exhausted for a request
var ErrAllStrategiesFailed = errors.New("all download strategies failed")

// Strategy is one invocation recipe: a tag recorded with the cache entry
// and a fetch function that either produces a local artifact or fails.
type Strategy struct {
	Name  string
	Fetch func(ctx context.Context, videoID string) (string, error)
}

// HistoryStore records finished download attempts
type HistoryStore interface {
	CreateDownload(download *models.Download) error
}

// Orchestrator coordinates the strategy chain, the result cache and the
// download history
type Orchestrator struct {
	client  *ytdlp.Client
	cache   *cache.Cache
	history HistoryStore
	logger  *slog.Logger

	audioStrategies []Strategy
	videoStrategies []Strategy
}

// New creates an orchestrator with the standard strategy chains
func New(client *ytdlp.Client, store *cache.Cache, history HistoryStore) *Orchestrator {
	o := &Orchestrator{
		client:  client,
		cache:   store,
		history: history,
		logger:  slog.Default(),
	}

	o.audioStrategies = []Strategy{
		{Name: "smart_audio", Fetch: o.fetchAudioDirect},
		{Name: "smart_audio", Fetch: o.fetchAudioExtract},
		{Name: "fast_fallback", Fetch: o.fetchAudioFallback},
		{Name: "last_resort", Fetch: o.fetchLastResortAudio},
	}
	o.videoStrategies = []Strategy{
		{Name: "fast_video", Fetch: o.fetchVideo},
		{Name: "last_resort", Fetch: o.fetchLastResortVideo},
	}

	return o
}

// Download returns a local artifact for the video and kind, serving from
// cache when possible and otherwise walking the strategy chain in order.
// Concurrent requests for the same key are not deduplicated; both may
// invoke the tool and the last cache write wins.
func (o *Orchestrator) Download(ctx context.Context, videoID string, kind models.MediaKind) (string, error) {
	if entry, ok := o.cache.Get(videoID, kind); ok {
		o.logger.Info("Cache hit", "video_id", videoID, "kind", kind, "path", entry.Path)
		return entry.Path, nil
	}

	o.logger.Info("Starting download", "video_id", videoID, "kind", kind)
	start := time.Now()

	strategies := o.audioStrategies
	if kind == models.KindVideo {
		strategies = o.videoStrategies
	}

	for _, strategy := range strategies {
		path, err := strategy.Fetch(ctx, videoID)
		if err != nil {
			o.logger.Warn("Strategy failed",
				"video_id", videoID,
				"kind", kind,
				"strategy", strategy.Name,
				"error", err)
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			o.logger.Warn("Strategy reported success but artifact is missing",
				"video_id", videoID,
				"strategy", strategy.Name,
				"path", path)
			continue
		}

		o.cache.Put(videoID, kind, path, strategy.Name, info.Size())
		o.record(videoID, kind, strategy.Name, path, info.Size(), start, nil)

		o.logger.Info("Download completed",
			"video_id", videoID,
			"kind", kind,
			"strategy", strategy.Name,
			"size_bytes", info.Size(),
			"elapsed", time.Since(start))
		return path, nil
	}

	o.record(videoID, kind, "", "", 0, start, ErrAllStrategiesFailed)
	o.logger.Error("All download strategies failed", "video_id", videoID, "kind", kind)
	return "", ErrAllStrategiesFailed
}

// record writes one history row; history failures are logged, never fatal
func (o *Orchestrator) record(videoID string, kind models.MediaKind, strategy, path string, size int64, start time.Time, downloadErr error) {
	download := &models.Download{
		VideoID:    videoID,
		MediaKind:  kind,
		Strategy:   strategy,
		FilePath:   path,
		FileSize:   size,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     models.StatusCompleted,
		CreatedAt:  time.Now(),
	}
	if downloadErr != nil {
		download.Status = models.StatusFailed
		download.ErrorMessage = downloadErr.Error()
	}

	if err := o.history.CreateDownload(download); err != nil {
		o.logger.Error("Failed to record download history", "video_id", videoID, "error", err)
	}
}

// fetchAudioDirect probes the format table and, when a direct m4a stream
// exists, requests exactly that format. Smaller format codes tend to be
// the standard-quality direct stream, so the lowest code is tried.
func (o *Orchestrator) fetchAudioDirect(ctx context.Context, videoID string) (string, error) {
	formats := o.client.ProbeAudioFormats(ctx, videoID)

	var direct []string
	for code, container := range formats {
		if container == "m4a" {
			direct = append(direct, code)
		}
	}
	if len(direct) == 0 {
		return "", fmt.Errorf("no direct m4a format available")
	}
	sort.Strings(direct)

	out := o.cache.ArtifactPath(videoID, "audio", "m4a")
	err := o.client.RunDownload(ctx, 30*time.Second,
		"--no-warnings", "--quiet", "--no-progress", "--no-playlist",
		"--force-ipv4",
		"--socket-timeout", "15",
		"--retries", "2",
		"--downloader", "aria2c",
		"--downloader-args", "aria2c:-x 16 -s 16 -k 4M",
		"-f", direct[0],
		"-o", out,
		"https://youtu.be/"+videoID)
	if err != nil {
		return "", fmt.Errorf("direct format %s: %w", direct[0], err)
	}

	return out, nil
}

// fetchAudioExtract requests best available audio and post-processes it
// into the m4a container
func (o *Orchestrator) fetchAudioExtract(ctx context.Context, videoID string) (string, error) {
	out := o.cache.ArtifactPath(videoID, "audio", "m4a")
	err := o.client.RunDownload(ctx, 45*time.Second,
		"--no-warnings", "--quiet", "--no-progress", "--no-playlist",
		"--force-ipv4",
		"--socket-timeout", "20",
		"--retries", "2",
		"--concurrent-fragments", "4",
		"-f", "bestaudio[ext=m4a]/bestaudio",
		"--extract-audio",
		"--audio-format", "m4a",
		"--audio-quality", "0",
		"--postprocessor-args", "-vn -c:a copy -movflags +faststart",
		"-o", out,
		"https://youtu.be/"+videoID)
	if err != nil {
		return "", fmt.Errorf("audio extraction: %w", err)
	}

	return out, nil
}

// fetchAudioFallback uses a minimal, maximally compatible option set
func (o *Orchestrator) fetchAudioFallback(ctx context.Context, videoID string) (string, error) {
	out := o.cache.ArtifactPath(videoID, "fallback", "m4a")
	err := o.client.RunDownload(ctx, 60*time.Second,
		"--no-warnings", "--quiet",
		"-f", "bestaudio",
		"--extract-audio",
		"--audio-format", "m4a",
		"-o", out,
		"https://youtu.be/"+videoID)
	if err != nil {
		return "", fmt.Errorf("audio fallback: %w", err)
	}

	return out, nil
}

// fetchVideo requests the best stream at or below 720p, remuxed into mp4
func (o *Orchestrator) fetchVideo(ctx context.Context, videoID string) (string, error) {
	out := o.cache.ArtifactPath(videoID, "video", "mp4")
	err := o.client.RunDownload(ctx, 180*time.Second,
		"--no-warnings", "--quiet", "--no-progress", "--no-playlist",
		"--force-ipv4",
		"--socket-timeout", "30",
		"--retries", "3",
		"--fragment-retries", "3",
		"--skip-unavailable-fragments",
		"--concurrent-fragments", "4",
		"-f", "best[height<=720]/best[height<=480]/best",
		"--merge-output-format", "mp4",
		"--recode-video", "mp4",
		"-o", out,
		"https://youtu.be/"+videoID)
	if err != nil {
		return "", fmt.Errorf("video download: %w", err)
	}

	return out, nil
}

// fetchLastResortAudio is the bare-bones invocation tried when everything
// else has failed
func (o *Orchestrator) fetchLastResortAudio(ctx context.Context, videoID string) (string, error) {
	out := o.cache.ArtifactPath(videoID, "last", "m4a")
	err := o.client.RunDownload(ctx, 180*time.Second,
		"--quiet",
		"-f", "bestaudio",
		"--extract-audio",
		"--audio-format", "m4a",
		"-o", out,
		"https://youtu.be/"+videoID)
	if err != nil {
		return "", fmt.Errorf("last resort audio: %w", err)
	}

	return out, nil
}

func (o *Orchestrator) fetchLastResortVideo(ctx context.Context, videoID string) (string, error) {
	out := o.cache.ArtifactPath(videoID, "last", "mp4")
	err := o.client.RunDownload(ctx, 180*time.Second,
		"--quiet",
		"-f", "best",
		"-o", out,
		"https://youtu.be/"+videoID)
	if err != nil {
		return "", fmt.Errorf("last resort video: %w", err)
	}

	return out, nil
}
