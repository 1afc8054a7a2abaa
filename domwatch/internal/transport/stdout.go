package transport

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

// Stdout writes messages as JSON lines, tagged with the page they came
// from.
type Stdout struct {
	mu    sync.Mutex
	enc   *json.Encoder
	tabID string
}

// NewStdout returns a channel writing to w (os.Stdout when nil).
func NewStdout(w io.Writer, tabID string) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w), tabID: tabID}
}

type line struct {
	Tab     string           `json:"tab"`
	Message mutation.Message `json:"message"`
}

func (s *Stdout) Send(_ context.Context, msg mutation.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(line{Tab: s.tabID, Message: msg})
}

func (s *Stdout) Close() error { return nil }
