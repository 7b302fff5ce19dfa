package youtube

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const defaultAudioQuality = 192 // kbps

// AudioFile describes a downloaded audio artifact.
type AudioFile struct {
	// VideoID is the YouTube video ID the audio was extracted from.
	VideoID string
	// Path is the location of the audio file on disk.
	Path string
	// Size is the file size in bytes.
	Size int64
}

// DownloadError wraps audio download failures with the video they belong to.
type DownloadError struct {
	// VideoID is the video whose download failed.
	VideoID string
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the download error.
func (e *DownloadError) Error() string {
	return "youtube: download " + e.VideoID + ": " + e.Err.Error()
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *DownloadError) Unwrap() error { return e.Err }

// AudioFetcher downloads video audio as MP3 using yt-dlp.
type AudioFetcher struct {
	// YtdlpPath is the path to the yt-dlp executable. Defaults to "yt-dlp".
	YtdlpPath string
	// Dir is the directory audio files are written to.
	Dir string
	// Timeout is the maximum duration for one download.
	Timeout time.Duration
	// AudioQuality is the MP3 bitrate in kbps. Defaults to 192.
	AudioQuality int
}

// NewAudioFetcher creates an AudioFetcher writing into dir.
func NewAudioFetcher(dir string) *AudioFetcher {
	return &AudioFetcher{
		YtdlpPath:    defaultYtdlpPath,
		Dir:          dir,
		Timeout:      defaultYtdlpTimeout,
		AudioQuality: defaultAudioQuality,
	}
}

// AudioPath returns the deterministic path the audio for a video lands at.
// Files are keyed by video ID so a rerun can detect prior downloads exactly.
func (f *AudioFetcher) AudioPath(videoID string) string {
	return filepath.Join(f.Dir, videoID+".mp3")
}

// Fetch downloads the audio for a video, skipping the download entirely if
// the target file already exists from a previous run.
func (f *AudioFetcher) Fetch(ctx context.Context, video Video) (*AudioFile, error) {
	target := f.AudioPath(video.ID)

	// Prior run left the file in place: reuse it, no subprocess
	if info, err := os.Stat(target); err == nil {
		return &AudioFile{VideoID: video.ID, Path: target, Size: info.Size()}, nil
	}

	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return nil, &DownloadError{VideoID: video.ID, Err: fmt.Errorf("create downloads directory: %w", err)}
	}

	quality := f.AudioQuality
	if quality <= 0 {
		quality = defaultAudioQuality
	}

	args := []string{
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", fmt.Sprintf("%d", quality),
		"-o", filepath.Join(f.Dir, video.ID+".%(ext)s"),
		"--no-warnings",
		video.URL(),
	}

	timeout := f.Timeout
	if timeout == 0 {
		timeout = defaultYtdlpTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, f.path(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return nil, &DownloadError{VideoID: video.ID, Err: ErrNetworkTimeout}
		}
		if stderrStr := stderr.String(); stderrStr != "" {
			return nil, &DownloadError{VideoID: video.ID, Err: fmt.Errorf("yt-dlp failed: %w: %s", err, stderrStr)}
		}
		return nil, &DownloadError{VideoID: video.ID, Err: fmt.Errorf("yt-dlp failed: %w", err)}
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, &DownloadError{VideoID: video.ID, Err: fmt.Errorf("downloaded file missing: %w", err)}
	}

	return &AudioFile{VideoID: video.ID, Path: target, Size: info.Size()}, nil
}

func (f *AudioFetcher) path() string {
	if f.YtdlpPath != "" {
		return f.YtdlpPath
	}
	return defaultYtdlpPath
}
