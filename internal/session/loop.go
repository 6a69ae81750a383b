package session

import (
	"context"
	"fmt"

	"github.com/jwhitfield/ambientlog/internal/history"
	"github.com/jwhitfield/ambientlog/internal/journal"
)

// runLoop drives capture cycles strictly sequentially while the session is
// active. The flag is re-checked before and after every cycle; a cycle
// failure ends the loop without clearing the flag — the client sees stale
// state until an explicit stop, which is the documented behavior.
func (c *Controller) runLoop(sessionID string, done chan struct{}) {
	defer close(done)

	ctx := context.Background()
	cycles := 0

	for {
		if !c.shouldContinue(done) {
			break
		}
		if err := c.runCycle(ctx); err != nil {
			c.logger.Error("capture cycle failed — ending session",
				"session_id", sessionID,
				"cycles_completed", cycles,
				"error", err,
			)
			return
		}
		cycles++
		if !c.shouldContinue(done) {
			break
		}
	}

	c.logger.Info("session stopped", "session_id", sessionID, "cycles_completed", cycles)
}

// runCycle performs one capture → transcribe → annotate → journal → publish
// iteration. Side effects are strictly ordered: both records are durably
// appended before they are broadcast, and the shared state is updated only
// after both records are logged.
func (c *Controller) runCycle(ctx context.Context) error {
	wav, err := c.recorder.Record(ctx, c.chunkDuration)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	// An empty transcript with a successful response is still a valid chunk
	// (a silent room transcribes to nothing).
	transcript, err := c.transcriber.Transcribe(ctx, wav)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	c.hist.Push(history.RoleUser, transcript)

	// The newest user entry is already in the history — the context is the
	// system instruction plus the full history, nothing appended twice.
	entries := c.hist.Snapshot()
	messages := make([]history.Message, 0, len(entries)+1)
	messages = append(messages, history.Message{Role: "system", Text: c.systemPrompt})
	messages = append(messages, entries...)

	response, err := c.annotator.Chat(ctx, messages)
	if err != nil {
		// The unpaired user entry stays in the history; accepted state.
		return fmt.Errorf("annotate: %w", err)
	}

	c.hist.Push(history.RoleAssistant, response)

	captureRec := journal.NewRecord(journal.SourceCapture, transcript)
	if err := c.journal.Append(captureRec); err != nil {
		return fmt.Errorf("journal transcript: %w", err)
	}
	c.journal.Publish(captureRec)

	assistantRec := journal.NewRecord(journal.SourceAssistant, response)
	if err := c.journal.Append(assistantRec); err != nil {
		return fmt.Errorf("journal response: %w", err)
	}
	c.journal.Publish(assistantRec)

	c.completeCycle(transcript, response)
	return nil
}
