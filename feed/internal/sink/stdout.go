// CLAUDE:SUMMARY Line-delimited JSON sink: one {"type":"feed","data":...} object per update.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// Stdout encodes each update as one JSON line.
type Stdout struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdout writes to w, or os.Stdout when w is nil.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w}
}

func (s *Stdout) Send(_ context.Context, u Update) error {
	line, err := json.Marshal(envelope{Type: "feed", Data: u})
	if err != nil {
		return fmt.Errorf("stdout: marshal: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("stdout: write: %w", err)
	}
	return nil
}

func (s *Stdout) Close() error { return nil }
