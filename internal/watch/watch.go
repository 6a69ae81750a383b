// Package watch monitors a drop folder for audio files and transcribes them
// into the journal. Files recorded elsewhere (phone memos, meeting captures)
// land in the same append-only log and fan-out stream as live chunks, tagged
// as capture records without an assistant annotation.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jwhitfield/ambientlog/internal/journal"
)

// audioExtensions are the file types picked up from the drop folder.
var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".mp4":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
	".webm": true,
	".opus": true,
}

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Watcher monitors a directory and journals transcriptions of new files.
type Watcher struct {
	dir         string
	transcriber Transcriber
	journal     *journal.Journal
	logger      *slog.Logger

	fsw      *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once

	// Files already handled this process lifetime. Editors and download
	// managers fire multiple events per file.
	processed map[string]bool

	// Debounce tuning, shortened in tests.
	settle time.Duration
	tick   time.Duration
}

// New creates a Watcher for dir. Transcriptions go through t into jnl.
func New(dir string, t Transcriber, jnl *journal.Journal, logger *slog.Logger) *Watcher {
	return &Watcher{
		dir:         dir,
		transcriber: t,
		journal:     jnl,
		logger:      logger,
		stopCh:      make(chan struct{}),
		processed:   make(map[string]bool),
		settle:      3 * time.Second,
		tick:        2 * time.Second,
	}
}

// Start begins watching the directory. Call Stop to clean up.
func (w *Watcher) Start() error {
	if w.dir == "" {
		return fmt.Errorf("watch directory is empty")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watch dir %s: %w", w.dir, err)
	}
	w.fsw = fsw

	w.logger.Info("drop folder watcher started", "dir", w.dir)
	go w.loop()
	return nil
}

// Stop shuts down the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.fsw != nil {
			w.fsw.Close()
		}
	})
}

func (w *Watcher) loop() {
	// A file is processed once no write events have touched it for a full
	// settle period — half-copied uploads transcribe to garbage.
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !audioExtensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			now := time.Now()
			for path, lastSeen := range pending {
				if now.Sub(lastSeen) < w.settle {
					continue
				}
				delete(pending, path)
				if w.processed[path] {
					continue
				}
				w.processed[path] = true
				go w.processFile(path)
			}
		}
	}
}

// processFile transcribes one dropped file and journals the result. The
// append happens before the broadcast, same as the live pipeline.
func (w *Watcher) processFile(path string) {
	filename := filepath.Base(path)
	w.logger.Info("transcribing dropped file", "file", filename)

	audio, err := os.ReadFile(path)
	if err != nil {
		w.logger.Error("read dropped file failed", "file", filename, "error", err)
		return
	}

	text, err := w.transcriber.Transcribe(context.Background(), audio)
	if err != nil {
		w.logger.Error("drop folder transcription failed", "file", filename, "error", err)
		return
	}
	if text == "" {
		w.logger.Info("dropped file transcribed to nothing", "file", filename)
		return
	}

	rec := journal.NewRecord(journal.SourceCapture, fmt.Sprintf("[%s] %s", filename, text))
	if err := w.journal.Append(rec); err != nil {
		w.logger.Error("journal dropped transcription failed", "file", filename, "error", err)
		return
	}
	w.journal.Publish(rec)
	w.logger.Info("dropped file journaled", "file", filename, "chars", len(text))
}
