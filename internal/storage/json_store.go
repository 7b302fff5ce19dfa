package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	schemaVersion = "1.0"
	lockTimeout   = 5 * time.Second
)

// RunStore persists run manifests in a single JSON file, guarded by an
// advisory file lock so concurrent runs over the same output directory fail
// fast instead of corrupting each other's state.
type RunStore struct {
	path string
	lock *FileLock
	data *storeData
	mu   sync.Mutex

	current *Run
}

// storeData is the top-level JSON structure.
type storeData struct {
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Runs      []*Run    `json:"runs"`
}

// NewRunStore creates a run store at the given path.
// If the file exists, it is loaded; otherwise an empty store is created.
// The parent directory is created if needed: the store opens before the
// pipeline has made the output directory on a first run.
func NewRunStore(path string) (*RunStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &StorageError{Op: "write", Entity: "manifest", Err: err}
	}

	s := &RunStore{
		path: path,
		lock: NewFileLock(path),
	}

	if err := s.lock.Lock(lockTimeout); err != nil {
		return nil, err
	}

	if err := s.load(); err != nil {
		s.lock.Unlock()
		return nil, err
	}

	return s, nil
}

// load reads the JSON file into memory. Creates empty data if file doesn't exist.
func (s *RunStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.data = &storeData{Version: schemaVersion, UpdatedAt: time.Now()}
			// Save immediately to catch permission errors early
			return s.save()
		}
		return &StorageError{Op: "read", Entity: "manifest", Err: err}
	}

	s.data = &storeData{}
	if err := json.Unmarshal(data, s.data); err != nil {
		return &StorageError{Op: "read", Entity: "manifest", Err: ErrStorageCorrupt}
	}

	return nil
}

// save persists the data to disk atomically.
func (s *RunStore) save() error {
	s.data.UpdatedAt = time.Now()

	writer, err := NewAtomicWriter(s.path)
	if err != nil {
		return &StorageError{Op: "write", Entity: "manifest", Err: err}
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		writer.Abort()
		return &StorageError{Op: "write", Entity: "manifest", Err: err}
	}

	if err := writer.Commit(); err != nil {
		return &StorageError{Op: "write", Entity: "manifest", Err: err}
	}

	return nil
}

// StartRun begins a new run for the given URL and records the resolved
// videos as pending, in order.
func (s *RunStore) StartRun(url string, videoIDs []string, titles map[string]string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := &Run{
		ID:        uuid.NewString(),
		URL:       url,
		StartedAt: time.Now(),
		Videos:    make(map[string]*VideoState, len(videoIDs)),
	}
	for _, id := range videoIDs {
		run.Videos[id] = &VideoState{
			VideoID:   id,
			Title:     titles[id],
			Status:    StatusPending,
			UpdatedAt: time.Now(),
		}
		run.VideoOrder = append(run.VideoOrder, id)
	}

	s.data.Runs = append(s.data.Runs, run)
	s.current = run

	if err := s.save(); err != nil {
		return nil, err
	}
	return run, nil
}

// SetStatus moves a video in the current run to the given status, enforcing
// the pipeline's transition rules.
func (s *RunStore) SetStatus(videoID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.videoState(videoID)
	if err != nil {
		return err
	}

	if !state.Status.CanTransition(status) {
		return &StorageError{Op: "write", Entity: "video", ID: videoID,
			Err: errInvalidTransition(state.Status, status)}
	}

	state.Status = status
	state.UpdatedAt = time.Now()
	return s.save()
}

// MarkFailed moves a video to failed and records the stage and message.
// Failed is reachable from any non-terminal status.
func (s *RunStore) MarkFailed(videoID, stage, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.videoState(videoID)
	if err != nil {
		return err
	}

	if state.Status.Terminal() {
		return &StorageError{Op: "write", Entity: "video", ID: videoID,
			Err: errInvalidTransition(state.Status, StatusFailed)}
	}

	state.Status = StatusFailed
	state.FailedStage = stage
	state.Error = message
	state.UpdatedAt = time.Now()
	return s.save()
}

// FinishRun stamps the current run as complete.
func (s *RunStore) FinishRun() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return &StorageError{Op: "write", Entity: "run", Err: ErrNotFound}
	}
	s.current.FinishedAt = time.Now()
	return s.save()
}

// CurrentRun returns the in-progress run, or nil if none was started.
func (s *RunStore) CurrentRun() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Runs returns all recorded runs, oldest first.
func (s *RunStore) Runs() []*Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Run, len(s.data.Runs))
	copy(out, s.data.Runs)
	return out
}

// Close releases resources held by the store.
func (s *RunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Unlock()
}

// videoState looks up a video in the current run. Caller holds s.mu.
func (s *RunStore) videoState(videoID string) (*VideoState, error) {
	if s.current == nil {
		return nil, &StorageError{Op: "write", Entity: "run", Err: ErrNotFound}
	}
	state, ok := s.current.Videos[videoID]
	if !ok {
		return nil, &StorageError{Op: "write", Entity: "video", ID: videoID, Err: ErrNotFound}
	}
	return state, nil
}

func errInvalidTransition(from, to Status) error {
	return &transitionError{from: from, to: to}
}

type transitionError struct {
	from, to Status
}

func (e *transitionError) Error() string {
	return string(e.from) + " -> " + string(e.to) + ": " + ErrInvalidTransition.Error()
}

func (e *transitionError) Unwrap() error { return ErrInvalidTransition }
