package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := NewRunStore(path)
	if err != nil {
		t.Fatalf("NewRunStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewRunStore_CreatesParentDirectory(t *testing.T) {
	// First runs open the store before anything has made the output
	// directory, so the store must create it itself.
	path := filepath.Join(t.TempDir(), "transcriptions", ".ytscribe-state.json")

	store, err := NewRunStore(path)
	if err != nil {
		t.Fatalf("NewRunStore() in fresh directory error = %v, want nil", err)
	}
	defer store.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("manifest file not created: %v", err)
	}
}

func TestRunStore_StartRun(t *testing.T) {
	store := newTestStore(t)

	run, err := store.StartRun("https://www.youtube.com/playlist?list=PL1",
		[]string{"a", "b"}, map[string]string{"a": "First", "b": "Second"})
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	if run.ID == "" {
		t.Error("StartRun() run ID is empty, want UUID")
	}
	if len(run.Videos) != 2 {
		t.Fatalf("StartRun() recorded %d videos, want 2", len(run.Videos))
	}
	if got := run.Videos["a"].Status; got != StatusPending {
		t.Errorf("initial status = %q, want %q", got, StatusPending)
	}
	if got := run.VideoOrder; got[0] != "a" || got[1] != "b" {
		t.Errorf("VideoOrder = %v, want [a b]", got)
	}
}

func TestRunStore_StatusTransitions(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.StartRun("url", []string{"a"}, nil); err != nil {
		t.Fatal(err)
	}

	steps := []Status{StatusDownloading, StatusTranscribing, StatusWritten}
	for _, status := range steps {
		if err := store.SetStatus("a", status); err != nil {
			t.Fatalf("SetStatus(%q) error = %v", status, err)
		}
	}

	// Written is terminal
	err := store.SetStatus("a", StatusDownloading)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SetStatus() after terminal = %v, want ErrInvalidTransition", err)
	}
}

func TestRunStore_InvalidTransition(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.StartRun("url", []string{"a"}, nil); err != nil {
		t.Fatal(err)
	}

	// Cannot jump straight from pending to written
	err := store.SetStatus("a", StatusWritten)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SetStatus(pending -> written) = %v, want ErrInvalidTransition", err)
	}
}

func TestRunStore_MarkFailed(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.StartRun("url", []string{"a"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := store.SetStatus("a", StatusDownloading); err != nil {
		t.Fatal(err)
	}

	if err := store.MarkFailed("a", "download", "yt-dlp exited 1"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	state := store.CurrentRun().Videos["a"]
	if state.Status != StatusFailed {
		t.Errorf("status = %q, want %q", state.Status, StatusFailed)
	}
	if state.FailedStage != "download" {
		t.Errorf("FailedStage = %q, want %q", state.FailedStage, "download")
	}

	// Failed is terminal for the video
	if err := store.MarkFailed("a", "transcribe", "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("MarkFailed() on failed video = %v, want ErrInvalidTransition", err)
	}
}

func TestRunStore_UnknownVideo(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.StartRun("url", []string{"a"}, nil); err != nil {
		t.Fatal(err)
	}

	err := store.SetStatus("nope", StatusDownloading)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus(unknown) = %v, want ErrNotFound", err)
	}
}

func TestRunStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := NewRunStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.StartRun("url", []string{"a"}, map[string]string{"a": "Title"}); err != nil {
		t.Fatal(err)
	}
	if err := store.SetStatus("a", StatusDownloading); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkFailed("a", "download", "boom"); err != nil {
		t.Fatal(err)
	}
	if err := store.FinishRun(); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewRunStore(path)
	if err != nil {
		t.Fatalf("NewRunStore() reopen error = %v", err)
	}
	defer reopened.Close()

	runs := reopened.Runs()
	if len(runs) != 1 {
		t.Fatalf("Runs() = %d runs, want 1", len(runs))
	}
	state := runs[0].Videos["a"]
	if state == nil || state.Status != StatusFailed || state.Error != "boom" {
		t.Errorf("reloaded state = %+v, want failed/boom", state)
	}
	if runs[0].FinishedAt.IsZero() {
		t.Error("reloaded run FinishedAt is zero, want set")
	}
}

func TestRunStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewRunStore(path)
	if !errors.Is(err, ErrStorageCorrupt) {
		t.Errorf("NewRunStore(corrupt) = %v, want ErrStorageCorrupt", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "transcript.txt")

	if err := WriteFileAtomic(path, []byte("hello")); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("file content = %q, want %q", data, "hello")
	}

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".ytscribe-") {
			t.Errorf("leftover temp file %q", e.Name())
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusWritten, StatusFailed, StatusSkipped} {
		if !s.Terminal() {
			t.Errorf("Status(%q).Terminal() = false, want true", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusDownloading, StatusTranscribing} {
		if s.Terminal() {
			t.Errorf("Status(%q).Terminal() = true, want false", s)
		}
	}
}
