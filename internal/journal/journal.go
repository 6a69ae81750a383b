// Package journal is the append-only record of everything the pipeline hears
// and says. Each completed cycle appends one "capture" record (the transcript)
// and one "assistant" record (the annotation) to a JSONL file, then broadcasts
// both to any connected SSE subscribers.
//
// The durable write always happens before the broadcast: a subscriber can
// never observe a record that is not already on disk.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Record sources.
const (
	SourceCapture   = "capture"
	SourceAssistant = "assistant"
)

// ErrWrite marks durable-write failures. These imply local storage or
// permission problems, not an external dependency, so callers can tell them
// apart from network errors.
var ErrWrite = errors.New("journal write failed")

// Record is one immutable journal line.
type Record struct {
	Timestamp string `json:"timestamp"` // RFC3339 with zone
	Source    string `json:"source"`    // "capture" or "assistant"
	Text      string `json:"text"`
}

// NewRecord stamps a record with the current time.
func NewRecord(source, text string) Record {
	return Record{
		Timestamp: time.Now().Format(time.RFC3339),
		Source:    source,
		Text:      text,
	}
}

// subscriberBuffer is the per-client delivery buffer. A subscriber that falls
// further behind than this observes a gap instead of stalling the publisher.
const subscriberBuffer = 16

// Subscriber is one live consumer of the broadcast stream.
type Subscriber struct {
	ch     chan Record
	missed atomic.Int64
}

// Records yields the live, in-order stream of records published after the
// subscription was created. The channel is closed on Unsubscribe.
func (s *Subscriber) Records() <-chan Record {
	return s.ch
}

// TakeMissed returns the number of records dropped since the last call and
// resets the counter.
func (s *Subscriber) TakeMissed() int64 {
	return s.missed.Swap(0)
}

// Journal owns the durable file and the set of live subscribers.
type Journal struct {
	path   string
	logger *slog.Logger

	wmu sync.Mutex // serializes file appends

	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// New creates a Journal writing to path. The file is created on first append;
// readers tolerate it not existing yet.
func New(path string, logger *slog.Logger) *Journal {
	return &Journal{
		path:   path,
		logger: logger,
		subs:   make(map[*Subscriber]struct{}),
	}
}

// Append serializes the record and appends it as one line, fsyncing before
// returning so a crash immediately afterwards never loses an already-visible
// record.
func (j *Journal) Append(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrWrite, err)
	}

	j.wmu.Lock()
	defer j.wmu.Unlock()

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrWrite, j.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: append: %v", ErrWrite, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrWrite, err)
	}
	return nil
}

// Publish delivers the record to every current subscriber. Fire-and-forget:
// a subscriber whose buffer is full misses the record and its gap counter is
// bumped instead of blocking the pipeline.
func (j *Journal) Publish(rec Record) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for sub := range j.subs {
		select {
		case sub.ch <- rec:
		default:
			sub.missed.Add(1)
		}
	}
}

// Subscribe registers a new live consumer. Late joiners receive only records
// published from this point forward — no replay.
func (j *Journal) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan Record, subscriberBuffer)}
	j.mu.Lock()
	j.subs[sub] = struct{}{}
	j.mu.Unlock()
	return sub
}

// Unsubscribe removes a consumer and closes its stream.
func (j *Journal) Unsubscribe(sub *Subscriber) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.subs[sub]; !ok {
		return
	}
	delete(j.subs, sub)
	close(sub.ch)
}

// SubscriberCount reports how many live consumers are connected.
func (j *Journal) SubscriberCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.subs)
}

// ReadAll returns the full durable log contents for catch-up reads.
// A missing file reads as empty, not as an error.
func (j *Journal) ReadAll() ([]byte, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read journal %s: %w", j.path, err)
	}
	return data, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.path
}
