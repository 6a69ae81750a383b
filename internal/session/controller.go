// Package session coordinates the continuous capture/annotate lifecycle: a
// single recording flag, the last completed cycle's outputs, and the loop
// that owns them while recording is active.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwhitfield/ambientlog/internal/capture"
	"github.com/jwhitfield/ambientlog/internal/history"
	"github.com/jwhitfield/ambientlog/internal/journal"
)

// ErrAlreadyActive is the defined alternate outcome of Start when a loop
// already owns the session. Not a failure.
var ErrAlreadyActive = errors.New("recording already active")

// Transcriber converts one captured audio chunk to text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Annotator generates a response for the given role-tagged context.
type Annotator interface {
	Chat(ctx context.Context, messages []history.Message) (string, error)
}

// Snapshot is a point-in-time copy of the observable session state.
type Snapshot struct {
	Active     bool   `json:"active"`
	Transcript string `json:"transcript"`
	Response   string `json:"response"`
}

// Controller is the only mutator of the recording flag. Request handlers
// call Start/Stop/State; the capture loop reports results back through
// completeCycle. One mutex covers the read-modify-write of the flag.
type Controller struct {
	logger      *slog.Logger
	recorder    capture.Recorder
	transcriber Transcriber
	annotator   Annotator
	hist        *history.Log
	journal     *journal.Journal

	chunkDuration time.Duration
	systemPrompt  string

	mu             sync.Mutex
	active         bool
	lastTranscript string
	lastResponse   string
	loopDone       chan struct{} // closed when the current loop exits
}

// NewController wires the pipeline collaborators together.
func NewController(
	logger *slog.Logger,
	recorder capture.Recorder,
	transcriber Transcriber,
	annotator Annotator,
	hist *history.Log,
	jnl *journal.Journal,
	chunkDuration time.Duration,
	systemPrompt string,
) *Controller {
	return &Controller{
		logger:        logger,
		recorder:      recorder,
		transcriber:   transcriber,
		annotator:     annotator,
		hist:          hist,
		journal:       jnl,
		chunkDuration: chunkDuration,
		systemPrompt:  systemPrompt,
	}
}

// Start flips the session to active and hands ownership to exactly one
// capture loop goroutine. Returns ErrAlreadyActive (and does nothing else)
// when a loop is already running — including a stopped loop that is still
// draining its final in-flight cycle. Never waits for a cycle.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return ErrAlreadyActive
	}
	// Stop is cooperative: the previous loop may still be finishing a cycle.
	// Spawning a second loop before it exits would interleave cycles.
	if c.loopDone != nil {
		select {
		case <-c.loopDone:
		default:
			return ErrAlreadyActive
		}
	}
	c.active = true
	c.loopDone = make(chan struct{})

	sessionID := uuid.NewString()
	c.logger.Info("session started",
		"session_id", sessionID,
		"chunk_seconds", int(c.chunkDuration.Seconds()),
	)
	go c.runLoop(sessionID, c.loopDone)
	return nil
}

// Stop unconditionally clears the flag and returns immediately. The running
// loop observes the flag at its next checkpoint; an in-flight cycle is never
// interrupted.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
	c.logger.Info("stop requested")
}

// State returns the last completed cycle's outputs and the current flag.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Active:     c.active,
		Transcript: c.lastTranscript,
		Response:   c.lastResponse,
	}
}

// Wait blocks until the most recently started loop has exited, or ctx ends.
// Used for graceful shutdown; returns immediately if no loop was started.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.loopDone
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shouldContinue is the loop's checkpoint read of the flag. The loop passes
// its own done channel so it can verify it still owns the session: a loop
// that was stopped must never resume cycling because a later start flipped
// the flag back on.
func (c *Controller) shouldContinue(done chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active && c.loopDone == done
}

// completeCycle atomically records a finished cycle's outputs.
func (c *Controller) completeCycle(transcript, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastTranscript = transcript
	c.lastResponse = response
}
