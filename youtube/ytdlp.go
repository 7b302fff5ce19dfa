package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"ytscribe/internal/retry"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 10 * time.Minute
)

// YtdlpResolver implements VideoResolver using yt-dlp as a subprocess.
// It handles both playlist URLs and single video URLs.
type YtdlpResolver struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string

	// Timeout is the maximum time to wait for yt-dlp. Defaults to 10 minutes.
	Timeout time.Duration

	// ExtraArgs are additional arguments to pass to yt-dlp.
	ExtraArgs []string

	// RetryConfig holds retry behavior configuration.
	RetryConfig *retry.Config
}

// NewYtdlpResolver creates a new yt-dlp based video resolver.
func NewYtdlpResolver() *YtdlpResolver {
	cfg := retry.DefaultConfig()
	return &YtdlpResolver{
		Path:        defaultYtdlpPath,
		Timeout:     defaultYtdlpTimeout,
		RetryConfig: &cfg,
	}
}

// Resolve enumerates the videos behind a playlist or video URL using
// yt-dlp's flat playlist mode.
func (y *YtdlpResolver) Resolve(ctx context.Context, url string) ([]Video, error) {
	// Check if yt-dlp is installed
	if err := y.CheckInstalled(ctx); err != nil {
		return nil, err
	}

	cfg := y.RetryConfig
	if cfg == nil {
		defaultCfg := retry.DefaultConfig()
		cfg = &defaultCfg
	}

	var videos []Video
	err := retry.Do(ctx, *cfg, ytdlpErrorClassifier, func(ctx context.Context) error {
		args := []string{
			"--flat-playlist",
			"-J", // JSON output
			"--no-warnings",
		}
		args = append(args, y.ExtraArgs...)
		args = append(args, url)

		timeout := y.Timeout
		if timeout == 0 {
			timeout = defaultYtdlpTimeout
		}
		cmdCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(cmdCtx, y.path(), args...)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		if err != nil {
			if cmdCtx.Err() == context.DeadlineExceeded {
				return &ResolverError{Source: "ytdlp", URL: url, Err: ErrNetworkTimeout}
			}
			if cmdCtx.Err() == context.Canceled {
				return &ResolverError{Source: "ytdlp", URL: url, Err: context.Canceled}
			}

			// Check for common error patterns in stderr
			errMsg := stderr.String()
			if strings.Contains(errMsg, "not found") || strings.Contains(errMsg, "does not exist") ||
				strings.Contains(errMsg, "not a valid URL") {
				return &ResolverError{Source: "ytdlp", URL: url, Err: ErrPlaylistNotFound}
			}
			if strings.Contains(errMsg, "rate") || strings.Contains(errMsg, "429") {
				return &ResolverError{Source: "ytdlp", URL: url, Err: ErrRateLimited}
			}

			return &ResolverError{Source: "ytdlp", URL: url,
				Err: fmt.Errorf("yt-dlp failed: %w: %s", err, errMsg)}
		}

		parsed, parseErr := parseYtdlpOutput(stdout.Bytes())
		if parseErr != nil {
			return &ResolverError{Source: "ytdlp", URL: url, Err: parseErr}
		}
		videos = parsed
		return nil
	})

	if err != nil {
		return nil, err
	}

	return videos, nil
}

// CheckInstalled verifies that yt-dlp is available.
func (y *YtdlpResolver) CheckInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, y.path(), "--version")
	if err := cmd.Run(); err != nil {
		return &ResolverError{Source: "ytdlp", URL: "", Err: ErrYtdlpNotInstalled}
	}
	return nil
}

func (y *YtdlpResolver) path() string {
	if y.Path != "" {
		return y.Path
	}
	return defaultYtdlpPath
}

// ytdlpPlaylist represents yt-dlp's JSON output for a playlist.
// For a single video the same shape is returned with no entries.
type ytdlpPlaylist struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Uploader string       `json:"uploader"`
	Entries  []ytdlpEntry `json:"entries"`
}

// ytdlpEntry represents a single video in yt-dlp's JSON output.
type ytdlpEntry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Duration float64 `json:"duration"` // seconds
}

// parseYtdlpOutput parses yt-dlp's flat-playlist JSON into a Video slice.
// Output with no entries but a top-level ID is a single video.
func parseYtdlpOutput(data []byte) ([]Video, error) {
	var playlist ytdlpPlaylist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}

	if len(playlist.Entries) == 0 {
		if playlist.ID == "" {
			return nil, ErrPlaylistNotFound
		}
		// Single video, not a playlist
		return []Video{{
			ID:       playlist.ID,
			Title:    playlist.Title,
			Uploader: playlist.Uploader,
		}}, nil
	}

	videos := make([]Video, 0, len(playlist.Entries))
	for _, entry := range playlist.Entries {
		if entry.ID == "" {
			continue
		}
		videos = append(videos, Video{
			ID:       entry.ID,
			Title:    entry.Title,
			Uploader: coalesce(entry.Uploader, playlist.Uploader),
			Duration: time.Duration(entry.Duration) * time.Second,
		})
	}

	return videos, nil
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ytdlpErrorClassifier determines if a yt-dlp error is retryable.
func ytdlpErrorClassifier(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	// Permanent errors - don't retry
	var resErr *ResolverError
	if errors.As(err, &resErr) {
		switch {
		case errors.Is(resErr.Err, ErrPlaylistNotFound),
			errors.Is(resErr.Err, ErrInvalidURL),
			errors.Is(resErr.Err, ErrYtdlpNotInstalled):
			return false
		default:
			// Retryable: rate limit, timeout, network errors
			return true
		}
	}

	// Default to retryable for unknown errors
	return true
}
