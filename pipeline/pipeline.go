// Package pipeline orchestrates the transcription run: resolve videos,
// download audio, transcribe, write transcripts, skip already-done items.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
	"ytscribe/internal/storage"
	"ytscribe/youtube"

	"golang.org/x/time/rate"
)

// Fetcher downloads a video's audio to local storage.
type Fetcher interface {
	Fetch(ctx context.Context, video youtube.Video) (*youtube.AudioFile, error)
}

// Transcriber converts an audio file into transcript text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio *youtube.AudioFile) (string, error)
}

// Summary is the outcome of one pipeline run.
type Summary struct {
	// Total is the number of videos resolved.
	Total int
	// Transcribed is the number of transcripts written in this run.
	Transcribed int
	// Skipped is the number of videos whose transcript already existed.
	Skipped int
	// Failed is the number of videos that failed at some stage.
	Failed int
}

// Runner drives the sequential pipeline. Per-video failures are logged and
// skipped; only resolution failures abort the run.
type Runner struct {
	// Resolver enumerates videos for the target URL.
	Resolver youtube.VideoResolver
	// Fetcher downloads audio for each video.
	Fetcher Fetcher
	// Transcriber produces transcript text from audio.
	Transcriber Transcriber
	// Store records per-video state for the run. Optional.
	Store *storage.RunStore
	// OutputDir is where transcript files are written.
	OutputDir string
	// Delay is the minimum spacing between transcription attempts.
	Delay time.Duration
}

// TranscriptPath returns the deterministic transcript location for a video.
// Its existence is the resume marker: present means done.
func (r *Runner) TranscriptPath(videoID string) string {
	return filepath.Join(r.OutputDir, videoID+".txt")
}

// Run processes every video behind url in resolution order.
func (r *Runner) Run(ctx context.Context, url string) (*Summary, error) {
	videos, err := r.Resolver.Resolve(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", url, err)
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("resolve %s: no videos found", url)
	}

	if err := os.MkdirAll(r.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	log.Printf("ytscribe: resolved %d video(s)", len(videos))
	r.recordRunStart(url, videos)

	// Token bucket spaced at one transcription per Delay. The first item
	// proceeds immediately; later items wait out whatever remains of the
	// interval after download and API time.
	limiter := rate.NewLimiter(rate.Every(r.Delay), 1)

	summary := &Summary{Total: len(videos)}
	for i, video := range videos {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		// Resume marker check comes first: no download, no API call
		if _, err := os.Stat(r.TranscriptPath(video.ID)); err == nil {
			log.Printf("ytscribe: [%d/%d] %s: transcript exists, skipping", i+1, len(videos), video.ID)
			r.recordStatus(video.ID, storage.StatusSkipped)
			summary.Skipped++
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return summary, err
		}

		if err := r.processOne(ctx, i, len(videos), video); err != nil {
			summary.Failed++
			continue
		}
		summary.Transcribed++
	}

	r.recordRunFinish()
	return summary, nil
}

// processOne runs download -> transcribe -> write for a single video.
// Errors are logged and recorded here; the caller only counts them.
func (r *Runner) processOne(ctx context.Context, i, total int, video youtube.Video) error {
	log.Printf("ytscribe: [%d/%d] %s: downloading audio", i+1, total, video.ID)
	r.recordStatus(video.ID, storage.StatusDownloading)

	audio, err := r.Fetcher.Fetch(ctx, video)
	if err != nil {
		log.Printf("ytscribe: [%d/%d] %s: download failed: %v", i+1, total, video.ID, err)
		r.recordFailure(video.ID, "download", err)
		return err
	}

	log.Printf("ytscribe: [%d/%d] %s: transcribing %.1fMB", i+1, total, video.ID, float64(audio.Size)/(1024*1024))
	r.recordStatus(video.ID, storage.StatusTranscribing)

	text, err := r.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		log.Printf("ytscribe: [%d/%d] %s: transcription failed: %v", i+1, total, video.ID, err)
		r.recordFailure(video.ID, "transcribe", err)
		return err
	}

	if err := storage.WriteFileAtomic(r.TranscriptPath(video.ID), []byte(text)); err != nil {
		log.Printf("ytscribe: [%d/%d] %s: write failed: %v", i+1, total, video.ID, err)
		r.recordFailure(video.ID, "write", err)
		return err
	}

	log.Printf("ytscribe: [%d/%d] %s: transcript written", i+1, total, video.ID)
	r.recordStatus(video.ID, storage.StatusWritten)
	return nil
}

// recordRunStart registers the run in the manifest. Manifest failures are
// logged, never fatal: the transcript files carry the resume semantics.
func (r *Runner) recordRunStart(url string, videos []youtube.Video) {
	if r.Store == nil {
		return
	}
	ids := make([]string, 0, len(videos))
	titles := make(map[string]string, len(videos))
	for _, v := range videos {
		ids = append(ids, v.ID)
		titles[v.ID] = v.Title
	}
	if _, err := r.Store.StartRun(url, ids, titles); err != nil {
		log.Printf("ytscribe: failed to record run start: %v", err)
	}
}

func (r *Runner) recordStatus(videoID string, status storage.Status) {
	if r.Store == nil {
		return
	}
	if err := r.Store.SetStatus(videoID, status); err != nil {
		log.Printf("ytscribe: failed to record %s state for %s: %v", status, videoID, err)
	}
}

func (r *Runner) recordFailure(videoID, stage string, cause error) {
	if r.Store == nil {
		return
	}
	if err := r.Store.MarkFailed(videoID, stage, cause.Error()); err != nil {
		log.Printf("ytscribe: failed to record failure for %s: %v", videoID, err)
	}
}

func (r *Runner) recordRunFinish() {
	if r.Store == nil {
		return
	}
	if err := r.Store.FinishRun(); err != nil {
		log.Printf("ytscribe: failed to record run finish: %v", err)
	}
}
