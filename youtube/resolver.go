// Package youtube provides video resolution and audio download for YouTube
// playlists and single videos.
package youtube

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for video resolution operations.
var (
	ErrPlaylistNotFound  = errors.New("youtube: playlist or video not found")
	ErrRateLimited       = errors.New("youtube: rate limited")
	ErrNetworkTimeout    = errors.New("youtube: network timeout")
	ErrInvalidURL        = errors.New("youtube: invalid URL")
	ErrYtdlpNotInstalled = errors.New("youtube: yt-dlp not installed")
)

// VideoResolver defines the interface for resolving a playlist or video URL
// into an ordered list of videos. Different implementations may use different
// strategies (yt-dlp subprocess, Data API).
type VideoResolver interface {
	// Resolve returns the videos addressed by url, in playlist order.
	// A URL for a single video yields exactly one entry.
	Resolve(ctx context.Context, url string) ([]Video, error)
}

// Video contains the metadata needed to download and transcribe one video.
type Video struct {
	// ID is the YouTube video ID (e.g., "dQw4w9WgXcQ").
	ID string `json:"id"`

	// Title is the video title.
	Title string `json:"title"`

	// Uploader is the display name of the channel, when known.
	Uploader string `json:"uploader,omitempty"`

	// Duration is the video length. May be zero for some sources.
	Duration time.Duration `json:"duration,omitempty"`
}

// URL returns the full YouTube watch URL for this video.
func (v Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

// ResolverError wraps resolution errors with context about what failed.
// Use errors.As() to extract this error type and get operation details:
//
//	var resErr *youtube.ResolverError
//	if errors.As(err, &resErr) {
//		fmt.Printf("Failed to resolve %s: %v\n", resErr.URL, resErr.Err)
//	}
type ResolverError struct {
	// Source indicates which resolver produced the error ("ytdlp", "api").
	Source string
	// URL is the playlist or video URL that was being resolved.
	URL string
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the resolution error.
func (e *ResolverError) Error() string {
	return "youtube: " + e.Source + " resolving " + e.URL + ": " + e.Err.Error()
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *ResolverError) Unwrap() error { return e.Err }
