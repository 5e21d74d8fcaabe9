// Package sink defines output backends for checklist outcomes.
package sink

import (
	"context"

	"github.com/hazyhaar/pageprobe/report"
)

// Sink receives every outcome of a run and a snapshot per failed check.
type Sink interface {
	Send(ctx context.Context, o report.Outcome) error
	SendSnapshot(ctx context.Context, snap report.Snapshot) error
	Close() error
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
