package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/pageprobe/report"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout). Snapshot
// sources are omitted; only their hash and size are written.
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

func (s *Stdout) Send(_ context.Context, o report.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "outcome", Data: o})
}

func (s *Stdout) SendSnapshot(_ context.Context, snap report.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "snapshot", Data: snapshotRef{
		ID:         snap.ID,
		RunID:      snap.RunID,
		PageURL:    snap.PageURL,
		SourceHash: snap.SourceHash,
		Size:       len(snap.Source),
	}})
}

func (s *Stdout) Close() error { return nil }

type snapshotRef struct {
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	PageURL    string `json:"page_url"`
	SourceHash string `json:"source_hash"`
	Size       int    `json:"size"`
}
