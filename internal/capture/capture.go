// Package capture records fixed-duration audio chunks from the local
// microphone by shelling out to arecord (ALSA). The output is CD-quality
// WAV written to stdout so no temp files are left behind.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// Recorder captures one audio chunk of the given duration and returns the
// encoded bytes. Implementations must respect ctx cancellation.
type Recorder interface {
	Record(ctx context.Context, duration time.Duration) ([]byte, error)
}

// ArecordRecorder shells out to arecord. The "-d" flag makes arecord stop
// on its own after the requested duration, so no process killing is needed.
type ArecordRecorder struct {
	// Binary overrides the executable name, mostly for tests.
	Binary string
}

// Record runs `arecord -d <seconds> -f cd -t wav -` and returns its stdout.
func (r *ArecordRecorder) Record(ctx context.Context, duration time.Duration) ([]byte, error) {
	seconds := int(duration.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}

	bin := r.Binary
	if bin == "" {
		bin = "arecord"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-d", strconv.Itoa(seconds), "-f", "cd", "-t", "wav", "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, fmt.Errorf("arecord: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("arecord: %w", err)
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("arecord produced no audio data")
	}
	return stdout.Bytes(), nil
}
