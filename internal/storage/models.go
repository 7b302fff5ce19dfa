// Package storage persists the run manifest: a JSON record of what happened
// to each video in a run. The manifest is informational; the transcript file
// on disk remains the authoritative resume marker.
package storage

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for storage conditions.
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("storage: not found")
	// ErrStorageCorrupt indicates data corruption was detected.
	ErrStorageCorrupt = errors.New("storage: data corruption detected")
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
	// ErrInvalidTransition indicates a disallowed video status change.
	ErrInvalidTransition = errors.New("storage: invalid status transition")
)

// StorageError wraps storage errors with operation and entity context.
type StorageError struct {
	// Op is the operation that failed ("read", "write", "lock").
	Op string
	// Entity is the entity type ("manifest", "run", "video").
	Entity string
	// ID is the entity ID if applicable.
	ID string
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the storage error.
func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }

// Status is the processing state of one video within a run.
type Status string

const (
	// StatusPending means the video has been resolved but not yet processed.
	StatusPending Status = "pending"
	// StatusDownloading means audio download is in progress.
	StatusDownloading Status = "downloading"
	// StatusTranscribing means the audio has been sent for transcription.
	StatusTranscribing Status = "transcribing"
	// StatusWritten means the transcript file was written. Terminal.
	StatusWritten Status = "written"
	// StatusFailed means some stage failed for this video. Terminal for the
	// video; the run continues with the next one.
	StatusFailed Status = "failed"
	// StatusSkipped means a transcript already existed and nothing was done.
	// Terminal.
	StatusSkipped Status = "skipped"
)

// validTransitions maps each status to the statuses it may move to.
var validTransitions = map[Status][]Status{
	StatusPending:      {StatusDownloading, StatusSkipped, StatusFailed},
	StatusDownloading:  {StatusTranscribing, StatusFailed},
	StatusTranscribing: {StatusWritten, StatusFailed},
}

// CanTransition reports whether a video may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// VideoState records one video's progress through the pipeline.
type VideoState struct {
	// VideoID is the YouTube video ID.
	VideoID string `json:"video_id"`
	// Title is the video title as resolved.
	Title string `json:"title,omitempty"`
	// Status is the current pipeline status.
	Status Status `json:"status"`
	// FailedStage names the stage that failed ("download", "transcribe",
	// "write") when Status is failed.
	FailedStage string `json:"failed_stage,omitempty"`
	// Error is the failure message when Status is failed.
	Error string `json:"error,omitempty"`
	// UpdatedAt is when this state last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Run records one invocation of the pipeline.
type Run struct {
	// ID is a unique identifier for this run (UUID).
	ID string `json:"id"`
	// URL is the playlist or video URL the run was started with.
	URL string `json:"url"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run completed. Zero while in progress.
	FinishedAt time.Time `json:"finished_at,omitempty"`
	// Videos maps video ID to its state. Order lives in VideoOrder.
	Videos map[string]*VideoState `json:"videos"`
	// VideoOrder preserves resolution order.
	VideoOrder []string `json:"video_order"`
}
