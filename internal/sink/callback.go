package sink

import (
	"context"

	"github.com/hazyhaar/pageprobe/report"
)

// OutcomeFunc is called for each outcome.
type OutcomeFunc func(ctx context.Context, o report.Outcome) error

// SnapshotFunc is called for each snapshot.
type SnapshotFunc func(ctx context.Context, snap report.Snapshot) error

// Callback delivers records via Go function calls.
type Callback struct {
	onOutcome  OutcomeFunc
	onSnapshot SnapshotFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onOutcome OutcomeFunc, onSnapshot SnapshotFunc) *Callback {
	return &Callback{onOutcome: onOutcome, onSnapshot: onSnapshot}
}

func (c *Callback) Send(ctx context.Context, o report.Outcome) error {
	if c.onOutcome != nil {
		return c.onOutcome(ctx, o)
	}
	return nil
}

func (c *Callback) SendSnapshot(ctx context.Context, snap report.Snapshot) error {
	if c.onSnapshot != nil {
		return c.onSnapshot(ctx, snap)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
