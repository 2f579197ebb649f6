package logger

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sync"
)

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")

// Transcript accumulates the plain-text record of a run so it can be
// persisted once, next to the file the run operated on.
type Transcript struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer. Color escapes are dropped.
func (t *Transcript) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.buf.Write(ansiEscape.ReplaceAll(p, nil)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// String returns everything written so far.
func (t *Transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

// Flush writes the transcript to path, replacing any previous content.
func (t *Transcript) Flush(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	// #nosec G306 -- markers are diagnostics meant to be read by installers.
	if err := os.WriteFile(path, t.buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write transcript to %s: %w", path, err)
	}
	return nil
}
