// Package handlers provides the HTTP handlers for the extraction API
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ytgrab/internal/cache"
	"ytgrab/internal/database"
	"ytgrab/internal/downloader"
	"ytgrab/internal/token"
	"ytgrab/internal/videoid"
	"ytgrab/internal/ytdlp"
	"ytgrab/pkg/models"
)

// streamChunkSize is the fixed chunk size for artifact streaming
const streamChunkSize = 64 * 1024

// supportedURLForms is returned with invalid-input rejections as a hint
var supportedURLForms = []string{
	"https://www.youtube.com/watch?v=VIDEO_ID",
	"https://youtu.be/VIDEO_ID",
	"https://www.youtube.com/live/VIDEO_ID",
	"https://www.youtube.com/embed/VIDEO_ID",
	"https://www.youtube.com/watch?v=VIDEO_ID&si=...",
	"https://www.youtube.com/live/VIDEO_ID?si=...",
}

// Handlers contains all HTTP handlers and their dependencies
type Handlers struct {
	client       *ytdlp.Client
	orchestrator *downloader.Orchestrator
	cache        *cache.Cache
	tokens       *token.Registry
	db           *database.DB
	logger       *slog.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(client *ytdlp.Client, orch *downloader.Orchestrator, store *cache.Cache, tokens *token.Registry, db *database.DB) *Handlers {
	return &Handlers{
		client:       client,
		orchestrator: orch,
		cache:        store,
		tokens:       tokens,
		db:           db,
		logger:       slog.Default(),
	}
}

// writeJSON serializes v with the given status code
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// Index returns a small JSON service index
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"service": "ytgrab",
		"endpoints": map[string]string{
			"metadata": "/api/metadata?url=YOUTUBE_URL",
			"download": "/download?url=YOUTUBE_URL&type=audio|video",
			"status":   "/status",
		},
	})
}

// Metadata handles GET /api/metadata?url=
func (h *Handlers) Metadata(w http.ResponseWriter, r *http.Request) {
	id := videoid.Extract(r.URL.Query().Get("url"))
	if !videoid.IsValid(id) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"status":         "error",
			"error":          "Invalid YouTube URL or Video ID. Extracted ID: " + id,
			"supported_urls": supportedURLForms,
		})
		return
	}

	meta := h.client.Metadata(r.Context(), id)
	h.writeJSON(w, http.StatusOK, meta)
}

// DownloadToken handles GET /download?url=&type= and issues a single-use
// token for a subsequent stream request
func (h *Handlers) DownloadToken(w http.ResponseWriter, r *http.Request) {
	kind := models.MediaKind(r.URL.Query().Get("type"))
	if kind == "" {
		kind = models.KindAudio
	}
	if !kind.Valid() {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Type must be 'audio' or 'video'"})
		return
	}

	id := videoid.Extract(r.URL.Query().Get("url"))
	if !videoid.IsValid(id) {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid video ID"})
		return
	}

	tok, ttl := h.tokens.Issue(id, kind)

	directURL := "/audio/" + id
	if kind == models.KindVideo {
		directURL = "/video/" + id
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"download_token": tok,
		"video_id":       id,
		"type":           kind,
		"expires_in":     int(ttl.Seconds()),
		"direct_url":     directURL,
	})
}

// Stream handles GET /stream/{id}?type=&token=. The token is optional, but
// when present it must redeem cleanly.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	kind := models.MediaKind(r.URL.Query().Get("type"))
	if kind == "" {
		kind = models.KindAudio
	}
	if !kind.Valid() {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Type must be 'audio' or 'video'"})
		return
	}

	if tok := r.URL.Query().Get("token"); tok != "" {
		if _, _, err := h.tokens.Redeem(tok); err != nil {
			h.logger.Warn("Token rejected", "error", err)
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
			return
		}
	}

	id := videoid.Extract(r.PathValue("id"))
	h.logger.Info("Stream request", "video_id", id, "kind", kind)

	path, err := h.download(r, id, kind)
	if err != nil {
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Could not download " + string(kind)})
		return
	}

	h.serveArtifact(w, path, kind, "inline")
}

// Audio handles GET /audio/{id}, the direct attachment download
func (h *Handlers) Audio(w http.ResponseWriter, r *http.Request) {
	id := videoid.Extract(r.PathValue("id"))
	h.logger.Info("Audio request", "video_id", id)

	path, err := h.download(r, id, models.KindAudio)
	if err != nil {
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Audio download failed"})
		return
	}

	h.serveArtifact(w, path, models.KindAudio, "attachment")
}

// Video handles GET /video/{id}, the direct attachment download
func (h *Handlers) Video(w http.ResponseWriter, r *http.Request) {
	id := videoid.Extract(r.PathValue("id"))
	h.logger.Info("Video request", "video_id", id)

	path, err := h.download(r, id, models.KindVideo)
	if err != nil {
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Video download failed"})
		return
	}

	h.serveArtifact(w, path, models.KindVideo, "attachment")
}

// download runs the orchestrator detached from the request context: a
// client that disconnects mid-download does not cancel the extraction,
// and the artifact still lands in the cache.
func (h *Handlers) download(r *http.Request, id string, kind models.MediaKind) (string, error) {
	return h.orchestrator.Download(context.WithoutCancel(r.Context()), id, kind)
}

// serveArtifact streams the artifact bytes in fixed-size chunks. Each
// chunk is read in full before being written, so a read error mid-stream
// aborts the transfer without handing off a partial chunk.
func (h *Handlers) serveArtifact(w http.ResponseWriter, path string, kind models.MediaKind, disposition string) {
	file, err := os.Open(path)
	if err != nil {
		h.logger.Error("Failed to open artifact", "path", path, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Artifact unavailable"})
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		h.logger.Error("Failed to stat artifact", "path", path, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Artifact unavailable"})
		return
	}

	w.Header().Set("Content-Type", kind.ContentType())
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition", disposition+`; filename="`+filepath.Base(path)+`"`)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "public, max-age=3600")

	buf := make([]byte, streamChunkSize)
	for {
		n, readErr := io.ReadFull(file, buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				h.logger.Warn("Client aborted stream", "path", path, "error", writeErr)
				return
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return
		}
		if readErr != nil {
			h.logger.Error("Stream read error", "path", path, "error", readErr)
			return
		}
	}
}

// Status handles GET /status, the liveness and counters endpoint
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	completed, err := h.db.CountDownloads(models.StatusCompleted)
	if err != nil {
		h.logger.Error("Failed to count completed downloads", "error", err)
	}
	failed, err := h.db.CountDownloads(models.StatusFailed)
	if err != nil {
		h.logger.Error("Failed to count failed downloads", "error", err)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "running",
		"mode":      "metadata_api",
		"timestamp": time.Now().Format(time.RFC3339),
		"endpoints": map[string]string{
			"metadata": "/api/metadata?url=YOUTUBE_URL",
			"home":     "/",
			"status":   "/status",
		},
		"performance": map[string]any{
			"cache_size":     h.cache.Len(),
			"active_tokens":  h.tokens.Count(),
			"cache_dir_size": h.cache.DiskSizeMB(),
		},
		"history": map[string]int64{
			"completed": completed,
			"failed":    failed,
		},
	})
}

// History handles GET /api/history, the recent download records
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	downloads, err := h.db.ListRecentDownloads(50)
	if err != nil {
		h.logger.Error("Failed to list downloads", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}
	if downloads == nil {
		downloads = []*models.Download{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"downloads": downloads})
}

// Test handles GET /test/{id}, the quick title-only availability probe
func (h *Handlers) Test(w http.ResponseWriter, r *http.Request) {
	id := videoid.Extract(r.PathValue("id"))

	result := h.client.Title(r.Context(), id)
	timestamp := time.Now().Format(time.RFC3339)

	switch result.Status {
	case models.MetadataAvailable:
		h.writeJSON(w, http.StatusOK, map[string]string{
			"video_id":  id,
			"status":    "available",
			"title":     result.Title,
			"timestamp": timestamp,
		})
	case models.MetadataTimeout:
		h.writeJSON(w, http.StatusRequestTimeout, map[string]string{
			"video_id":  id,
			"status":    "timeout",
			"timestamp": timestamp,
		})
	case models.MetadataUnavailable:
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"video_id":  id,
			"status":    "unavailable",
			"error":     result.Error,
			"timestamp": timestamp,
		})
	default:
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"video_id":  id,
			"status":    "error",
			"error":     result.Error,
			"timestamp": timestamp,
		})
	}
}
