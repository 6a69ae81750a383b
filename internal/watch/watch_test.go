package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jwhitfield/ambientlog/internal/journal"
)

type fakeTranscriber struct {
	err error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, wav []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "heard: " + string(wav), nil
}

func newTestWatcher(t *testing.T, tr Transcriber) (*Watcher, *journal.Journal, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jnl := journal.New(filepath.Join(t.TempDir(), "journal.jsonl"), logger)
	dir := t.TempDir()

	w := New(dir, tr, jnl, logger)
	w.settle = 50 * time.Millisecond
	w.tick = 25 * time.Millisecond
	return w, jnl, dir
}

func TestStartRequiresDir(t *testing.T) {
	w := New("", &fakeTranscriber{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := w.Start(); err == nil {
		t.Fatal("Start with empty dir should fail")
	}
}

func TestStartCreatesMissingDir(t *testing.T) {
	w, _, _ := newTestWatcher(t, &fakeTranscriber{})
	w.dir = filepath.Join(t.TempDir(), "inbox", "nested")

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if _, err := os.Stat(w.dir); err != nil {
		t.Errorf("watch dir was not created: %v", err)
	}
}

func TestStopTwiceIsHarmless(t *testing.T) {
	w, _, _ := newTestWatcher(t, &fakeTranscriber{})
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Shutdown paths can reach Stop more than once.
	w.Stop()
	w.Stop()
}

func TestDroppedAudioFileIsJournaled(t *testing.T) {
	w, jnl, dir := newTestWatcher(t, &fakeTranscriber{})

	sub := jnl.Subscribe()
	defer jnl.Unsubscribe(sub)

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "memo.wav"), []byte("memo-audio"), 0o644); err != nil {
		t.Fatalf("write audio file: %v", err)
	}

	select {
	case rec := <-sub.Records():
		if rec.Source != journal.SourceCapture {
			t.Errorf("source = %q, want capture", rec.Source)
		}
		if !strings.Contains(rec.Text, "memo.wav") || !strings.Contains(rec.Text, "heard: memo-audio") {
			t.Errorf("text = %q, want filename and transcription", rec.Text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for journaled record")
	}

	// The record was durably appended, not just broadcast.
	data, err := jnl.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !strings.Contains(string(data), "memo.wav") {
		t.Error("journal file should contain the dropped file's record")
	}
}

func TestNonAudioFilesIgnored(t *testing.T) {
	w, jnl, dir := newTestWatcher(t, &fakeTranscriber{})

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not audio"), 0o644)
	os.WriteFile(filepath.Join(dir, "image.png"), []byte("not audio"), 0o644)

	time.Sleep(300 * time.Millisecond)

	data, err := jnl.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("journal should be empty, got %q", data)
	}
}

func TestTranscriptionFailureDoesNotJournal(t *testing.T) {
	w, jnl, dir := newTestWatcher(t, &fakeTranscriber{err: fmt.Errorf("backend down")})

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	os.WriteFile(filepath.Join(dir, "memo.mp3"), []byte("audio"), 0o644)
	time.Sleep(300 * time.Millisecond)

	data, _ := jnl.ReadAll()
	if len(data) != 0 {
		t.Errorf("failed transcription must not journal, got %q", data)
	}
}
