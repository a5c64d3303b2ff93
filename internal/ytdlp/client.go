package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"ytgrab/pkg/models"
)

const (
	metadataTimeout = 15 * time.Second
	formatsTimeout  = 10 * time.Second
	probeTimeout    = 15 * time.Second
	titleTimeout    = 15 * time.Second

	maxDescriptionLen = 200
	maxTags           = 5
	maxVideoFormats   = 5
	maxAudioFormats   = 3
	maxNoteLen        = 50
	maxErrorLen       = 100
	maxTitleLen       = 100
)

// Client provides metadata and format lookups for video IDs
type Client struct {
	runner      Runner
	cookiesFile string
	hasCookies  bool
	logger      *slog.Logger
}

// NewClient creates a client on top of the given runner. The cookies file
// is probed once at startup, matching how the service is deployed (the
// file is mounted before the process starts or not at all).
func NewClient(runner Runner, cookiesFile string) *Client {
	hasCookies := false
	if cookiesFile != "" {
		if _, err := os.Stat(cookiesFile); err == nil {
			hasCookies = true
		}
	}

	return &Client{
		runner:      runner,
		cookiesFile: cookiesFile,
		hasCookies:  hasCookies,
		logger:      slog.Default(),
	}
}

// HasCookies reports whether credential material is configured
func (c *Client) HasCookies() bool {
	return c.hasCookies
}

// watchURL returns the canonical short URL handed to the tool
func watchURL(videoID string) string {
	return "https://youtu.be/" + videoID
}

// withCookies injects the cookies flag after the leading option block when
// credential material is configured
func (c *Client) withCookies(args []string, at int) []string {
	if !c.hasCookies {
		return args
	}

	out := make([]string, 0, len(args)+2)
	out = append(out, args[:at]...)
	out = append(out, "--cookies", c.cookiesFile)
	out = append(out, args[at:]...)
	return out
}

// ytdlpJSON is the subset of the tool's --dump-json output we consume
type ytdlpJSON struct {
	Title          string   `json:"title"`
	Duration       int64    `json:"duration"`
	DurationString string   `json:"duration_string"`
	Uploader       string   `json:"uploader"`
	ViewCount      int64    `json:"view_count"`
	LikeCount      int64    `json:"like_count"`
	Thumbnail      string   `json:"thumbnail"`
	Description    string   `json:"description"`
	Categories     []string `json:"categories"`
	Tags           []string `json:"tags"`
	UploadDate     string   `json:"upload_date"`
}

// Metadata fetches the metadata snapshot for a video ID. It never returns
// an error: every failure mode is encoded in the Status field so one bad
// upstream call cannot fail the whole request.
func (c *Client) Metadata(ctx context.Context, videoID string) *models.Metadata {
	args := []string{"--no-warnings", "--quiet", "--dump-json", "--skip-download", watchURL(videoID)}
	args = c.withCookies(args, 4)

	stdout, stderr, err := c.runner.Run(ctx, metadataTimeout, args...)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return &models.Metadata{
				VideoID: videoID,
				Status:  models.MetadataTimeout,
				Error:   "Request timed out",
			}
		}
		return &models.Metadata{
			VideoID: videoID,
			Title:   "Video Unavailable",
			Status:  models.MetadataUnavailable,
			Error:   truncate(firstNonEmpty(strings.TrimSpace(stderr), "Unknown error"), maxErrorLen),
		}
	}

	var info ytdlpJSON
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		return &models.Metadata{
			VideoID: videoID,
			Status:  models.MetadataError,
			Error:   "Invalid response from YouTube",
		}
	}

	meta := &models.Metadata{
		VideoID:        videoID,
		Title:          firstNonEmpty(info.Title, "Unknown Title"),
		Duration:       info.Duration,
		DurationString: firstNonEmpty(info.DurationString, "0:00"),
		Uploader:       firstNonEmpty(info.Uploader, "Unknown Uploader"),
		ViewCount:      info.ViewCount,
		LikeCount:      info.LikeCount,
		Thumbnail:      info.Thumbnail,
		Description:    truncateEllipsis(info.Description, maxDescriptionLen),
		Categories:     info.Categories,
		Tags:           capStrings(info.Tags, maxTags),
		UploadDate:     info.UploadDate,
		VideoFormats:   []models.VideoFormat{},
		AudioFormats:   []models.AudioFormat{},
		Status:         models.MetadataAvailable,
	}

	// Second pass for the format table. A failure here degrades to empty
	// format lists rather than failing the metadata call.
	listOut, _, err := c.runner.Run(ctx, formatsTimeout, "--no-warnings", "--quiet", "--list-formats", watchURL(videoID))
	if err != nil {
		c.logger.Debug("Format listing failed", "video_id", videoID, "error", err)
		return meta
	}

	meta.VideoFormats, meta.AudioFormats = parseFormatTable(listOut)
	return meta
}

// ProbeAudioFormats returns a mapping of audio-only format codes to their
// container type. Any invocation failure yields an empty map; an empty
// result means "no format preference available", not an error.
func (c *Client) ProbeAudioFormats(ctx context.Context, videoID string) map[string]string {
	stdout, _, err := c.runner.Run(ctx, probeTimeout, "--no-warnings", "--quiet", "--list-formats", watchURL(videoID))
	if err != nil {
		c.logger.Debug("Format probe failed", "video_id", videoID, "error", err)
		return map[string]string{}
	}

	formats := make(map[string]string)
	for _, line := range strings.Split(stdout, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "audio only") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) == 0 || !isDigits(parts[0]) {
			continue
		}
		switch {
		case strings.Contains(lower, "m4a") || strings.Contains(lower, "mp4"):
			formats[parts[0]] = "m4a"
		case strings.Contains(lower, "webm"):
			formats[parts[0]] = "webm"
		default:
			formats[parts[0]] = "opus"
		}
	}

	return formats
}

// RunDownload invokes the tool with a download argument set, adding the
// cookies flag when credential material is configured. The last argument
// must be the target URL.
func (c *Client) RunDownload(ctx context.Context, timeout time.Duration, args ...string) error {
	if c.hasCookies && len(args) > 0 {
		url := args[len(args)-1]
		withAuth := make([]string, 0, len(args)+2)
		withAuth = append(withAuth, args[:len(args)-1]...)
		withAuth = append(withAuth, "--cookies", c.cookiesFile, url)
		args = withAuth
	}

	_, _, err := c.runner.Run(ctx, timeout, args...)
	return err
}

// TitleResult is the outcome of a quick availability probe
type TitleResult struct {
	Title  string
	Status models.MetadataStatus
	Error  string
}

// Title runs a title-only lookup used as a cheap availability check
func (c *Client) Title(ctx context.Context, videoID string) TitleResult {
	stdout, stderr, err := c.runner.Run(ctx, titleTimeout, "--no-warnings", "--skip-download", "--get-title", watchURL(videoID))
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return TitleResult{Status: models.MetadataTimeout}
		}
		return TitleResult{
			Status: models.MetadataUnavailable,
			Error:  truncate(firstNonEmpty(strings.TrimSpace(stderr), "Unknown error"), 200),
		}
	}

	title := strings.TrimSpace(stdout)
	if title == "" {
		return TitleResult{Status: models.MetadataUnavailable, Error: "Unknown error"}
	}

	return TitleResult{Title: truncate(title, maxTitleLen), Status: models.MetadataAvailable}
}

// parseFormatTable classifies the tabular --list-formats output into video
// and audio entries. Individual unparsable lines are skipped.
func parseFormatTable(output string) ([]models.VideoFormat, []models.AudioFormat) {
	videoFormats := []models.VideoFormat{}
	audioFormats := []models.AudioFormat{}

	for _, line := range strings.Split(output, "\n") {
		lower := strings.ToLower(line)
		parts := strings.Fields(line)
		if len(parts) < 2 || !isDigits(parts[0]) {
			continue
		}

		switch {
		case strings.Contains(lower, "audio only"):
			ext := "opus"
			if strings.Contains(lower, "m4a") {
				ext = "m4a"
			} else if strings.Contains(lower, "webm") {
				ext = "webm"
			}
			audioFormats = append(audioFormats, models.AudioFormat{
				FormatID: parts[0],
				Ext:      ext,
				Note:     formatNote(line, parts[1]),
			})
		case strings.Contains(lower, "video only") || strings.Contains(lower, "mp4"):
			videoFormats = append(videoFormats, models.VideoFormat{
				FormatID:   parts[0],
				Resolution: parts[1],
				Note:       formatNote(line, parts[1]),
			})
		}
	}

	if len(videoFormats) > maxVideoFormats {
		videoFormats = videoFormats[:maxVideoFormats]
	}
	if len(audioFormats) > maxAudioFormats {
		audioFormats = audioFormats[:maxAudioFormats]
	}

	return videoFormats, audioFormats
}

// formatNote grabs the trailing free-text of a format line, after the
// second column, capped for response size
func formatNote(line, secondField string) string {
	idx := strings.Index(line, secondField)
	if idx < 0 {
		return ""
	}
	return truncate(strings.TrimSpace(line[idx+len(secondField):]), maxNoteLen)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// truncateEllipsis hard-truncates s at n characters, marking the cut
func truncateEllipsis(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func capStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
