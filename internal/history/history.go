// Package history holds the bounded conversation context fed to the
// annotation model. Entries are role-tagged text: "user" entries come from
// transcription, "assistant" entries from the model's replies.
package history

import "sync"

// Roles for conversation entries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultMaxEntries caps the conversation context at 20 exchanges.
// Older entries are evicted from the front when the cap is exceeded.
const DefaultMaxEntries = 40

// Message is one role-tagged conversation entry.
type Message struct {
	Role string `json:"role"`
	Text string `json:"content"`
}

// Log is a bounded, ordered conversation history. The capture loop is the
// only writer, but the mutex keeps Snapshot safe for concurrent readers.
type Log struct {
	mu      sync.Mutex
	max     int
	entries []Message
}

// New creates a Log capped at max entries. max <= 0 selects DefaultMaxEntries.
func New(max int) *Log {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Log{max: max}
}

// Push appends an entry, evicting the oldest entries when the cap would be
// exceeded. Relative order of the survivors is preserved.
func (l *Log) Push(role, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, Message{Role: role, Text: text})
	if excess := len(l.entries) - l.max; excess > 0 {
		l.entries = append(l.entries[:0], l.entries[excess:]...)
	}
}

// Snapshot returns a copy of the current entries in order.
func (l *Log) Snapshot() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the current number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Max reports the configured entry cap.
func (l *Log) Max() int {
	return l.max
}

// Reset drops all entries. Not called by the capture loop itself — history
// survives stop/start and is cleared only on process restart or by an
// explicit external call.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
