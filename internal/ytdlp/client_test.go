package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"ytgrab/internal/ytdlp/mocks"
	"ytgrab/pkg/models"
)

const testVideoID = "zsj9W7mUY2I"

const formatTable = `ID  EXT   RESOLUTION FPS CH |   FILESIZE   TBR PROTO | VCODEC          VBR ACODEC      ABR ASR MORE INFO
139 m4a   audio only      2 |    1.23MiB   49k https | audio only          mp4a.40.5   49k 22k low, m4a_dash
140 m4a   audio only      2 |    3.28MiB  129k https | audio only          mp4a.40.2  129k 44k medium, m4a_dash
251 webm  audio only      2 |    3.41MiB  135k https | audio only          opus       135k 48k medium, webm_dash
160 mp4   256x144     30    |    1.01MiB   40k https | avc1.4d400c     40k video only
134 mp4   640x360     30    |    4.97MiB  196k https | avc1.4d401e    196k video only
`

func TestClient_Metadata(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	client := NewClient(runner, "")

	metadataJSON := `{
		"title": "Test Video",
		"duration": 213,
		"duration_string": "3:33",
		"uploader": "Test Channel",
		"view_count": 1000,
		"like_count": 50,
		"thumbnail": "https://example.com/thumb.jpg",
		"description": "short description",
		"categories": ["Music"],
		"tags": ["one", "two", "three", "four", "five", "six", "seven"],
		"upload_date": "20240101"
	}`

	runner.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ time.Duration, args ...string) (string, string, error) {
			if contains(args, "--dump-json") {
				return metadataJSON, "", nil
			}
			require.True(t, contains(args, "--list-formats"))
			return formatTable, "", nil
		}).
		Times(2)

	meta := client.Metadata(context.Background(), testVideoID)

	require.Equal(t, models.MetadataAvailable, meta.Status)
	require.Equal(t, testVideoID, meta.VideoID)
	require.Equal(t, "Test Video", meta.Title)
	require.Equal(t, int64(213), meta.Duration)
	require.Equal(t, "3:33", meta.DurationString)
	require.Equal(t, "Test Channel", meta.Uploader)
	require.Equal(t, "short description", meta.Description)
	require.Len(t, meta.Tags, 5)

	require.Len(t, meta.AudioFormats, 3)
	require.Equal(t, "139", meta.AudioFormats[0].FormatID)
	require.Equal(t, "m4a", meta.AudioFormats[0].Ext)
	require.Equal(t, "webm", meta.AudioFormats[2].Ext)

	require.Len(t, meta.VideoFormats, 2)
	require.Equal(t, "160", meta.VideoFormats[0].FormatID)
	require.Equal(t, "mp4", meta.VideoFormats[0].Resolution)
	require.LessOrEqual(t, len(meta.VideoFormats[0].Note), 50)
}

func TestClient_Metadata_LongDescriptionTruncated(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	client := NewClient(runner, "")

	long := strings.Repeat("x", 300)
	runner.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ time.Duration, args ...string) (string, string, error) {
			if contains(args, "--dump-json") {
				return `{"title": "t", "description": "` + long + `"}`, "", nil
			}
			return "", "", nil
		}).
		Times(2)

	meta := client.Metadata(context.Background(), testVideoID)

	require.Equal(t, models.MetadataAvailable, meta.Status)
	require.Len(t, meta.Description, 203)
	require.True(t, strings.HasSuffix(meta.Description, "..."))
}

func TestClient_Metadata_Failures(t *testing.T) {
	tests := []struct {
		name       string
		stdout     string
		stderr     string
		err        error
		wantStatus models.MetadataStatus
		wantError  string
	}{
		{
			name:       "tool failure",
			stderr:     "ERROR: video unavailable",
			err:        errors.New("yt-dlp failed: exit status 1"),
			wantStatus: models.MetadataUnavailable,
			wantError:  "ERROR: video unavailable",
		},
		{
			name:       "timeout",
			err:        ErrTimeout,
			wantStatus: models.MetadataTimeout,
			wantError:  "Request timed out",
		},
		{
			name:       "unparsable JSON",
			stdout:     "not json",
			wantStatus: models.MetadataError,
			wantError:  "Invalid response from YouTube",
		},
		{
			name:       "failure with empty stderr",
			err:        errors.New("yt-dlp failed: exit status 1"),
			wantStatus: models.MetadataUnavailable,
			wantError:  "Unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runner := mocks.NewMockRunner(ctrl)
			client := NewClient(runner, "")

			runner.EXPECT().
				Run(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(tt.stdout, tt.stderr, tt.err)

			meta := client.Metadata(context.Background(), testVideoID)
			require.Equal(t, tt.wantStatus, meta.Status)
			require.Equal(t, tt.wantError, meta.Error)
		})
	}
}

func TestClient_Metadata_StderrTruncated(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	client := NewClient(runner, "")

	runner.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", strings.Repeat("e", 500), errors.New("exit status 1"))

	meta := client.Metadata(context.Background(), testVideoID)
	require.Equal(t, models.MetadataUnavailable, meta.Status)
	require.Len(t, meta.Error, 100)
}

func TestClient_Metadata_FormatListingFailureDegrades(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	client := NewClient(runner, "")

	runner.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ time.Duration, args ...string) (string, string, error) {
			if contains(args, "--dump-json") {
				return `{"title": "t"}`, "", nil
			}
			return "", "", errors.New("exit status 1")
		}).
		Times(2)

	meta := client.Metadata(context.Background(), testVideoID)

	require.Equal(t, models.MetadataAvailable, meta.Status)
	require.Empty(t, meta.VideoFormats)
	require.Empty(t, meta.AudioFormats)
}

func TestClient_ProbeAudioFormats(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	client := NewClient(runner, "")

	runner.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(formatTable, "", nil)

	formats := client.ProbeAudioFormats(context.Background(), testVideoID)

	require.Equal(t, map[string]string{
		"139": "m4a",
		"140": "m4a",
		"251": "webm",
	}, formats)
}

func TestClient_ProbeAudioFormats_FailureYieldsEmptyMap(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	client := NewClient(runner, "")

	runner.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", "boom", errors.New("exit status 1"))

	formats := client.ProbeAudioFormats(context.Background(), testVideoID)
	require.Empty(t, formats)
	require.NotNil(t, formats)
}

func TestClient_Title(t *testing.T) {
	tests := []struct {
		name       string
		stdout     string
		stderr     string
		err        error
		wantStatus models.MetadataStatus
		wantTitle  string
	}{
		{
			name:       "available",
			stdout:     "My Video Title\n",
			wantStatus: models.MetadataAvailable,
			wantTitle:  "My Video Title",
		},
		{
			name:       "long title truncated",
			stdout:     strings.Repeat("t", 150),
			wantStatus: models.MetadataAvailable,
			wantTitle:  strings.Repeat("t", 100),
		},
		{
			name:       "unavailable",
			stderr:     "ERROR: Private video",
			err:        errors.New("exit status 1"),
			wantStatus: models.MetadataUnavailable,
		},
		{
			name:       "timeout",
			err:        ErrTimeout,
			wantStatus: models.MetadataTimeout,
		},
		{
			name:       "empty title treated as unavailable",
			stdout:     "  \n",
			wantStatus: models.MetadataUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runner := mocks.NewMockRunner(ctrl)
			client := NewClient(runner, "")

			runner.EXPECT().
				Run(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(tt.stdout, tt.stderr, tt.err)

			result := client.Title(context.Background(), testVideoID)
			require.Equal(t, tt.wantStatus, result.Status)
			require.Equal(t, tt.wantTitle, result.Title)
		})
	}
}

func TestClient_CookiesPassthrough(t *testing.T) {
	cookies := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(cookies, []byte("# Netscape HTTP Cookie File"), 0o644))

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	client := NewClient(runner, cookies)
	require.True(t, client.HasCookies())

	runner.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ time.Duration, args ...string) (string, string, error) {
			require.True(t, contains(args, "--cookies"))
			require.True(t, contains(args, cookies))
			// URL stays the final argument
			require.Equal(t, "https://youtu.be/"+testVideoID, args[len(args)-1])
			return "", "", nil
		})

	err := client.RunDownload(context.Background(), time.Second, "--quiet", "-f", "bestaudio", "-o", "out.m4a", "https://youtu.be/"+testVideoID)
	require.NoError(t, err)
}

func TestClient_NoCookiesFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	client := NewClient(runner, filepath.Join(t.TempDir(), "missing.txt"))
	require.False(t, client.HasCookies())

	runner.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ time.Duration, args ...string) (string, string, error) {
			require.False(t, contains(args, "--cookies"))
			return "", "", nil
		})

	err := client.RunDownload(context.Background(), time.Second, "--quiet", "https://youtu.be/"+testVideoID)
	require.NoError(t, err)
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
