// Package report defines the records a checklist run emits: one Outcome per
// check, a Snapshot of the page behind each failure, and the Report that
// sums them up. Sinks and the store consume these types.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Status of one check.
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"  // the assertion did not hold
	StatusError Status = "error" // the check could not be evaluated
)

// Outcome is the result of a single check.
type Outcome struct {
	ID         string `json:"id"` // UUIDv7
	RunID      string `json:"run_id"`
	PageURL    string `json:"page_url"`
	Check      string `json:"check"`
	Type       string `json:"type"`
	Negated    bool   `json:"negated,omitempty"`
	Status     Status `json:"status"`
	Message    string `json:"message"`
	Expected   any    `json:"expected,omitempty"`
	Actual     any    `json:"actual,omitempty"`
	Error      string `json:"error,omitempty"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Timestamp  int64  `json:"timestamp"` // epoch milliseconds
}

// Failed reports whether the outcome counts against the run.
func (o Outcome) Failed() bool { return o.Status != StatusPass }

// Snapshot is the page source captured when a check fails.
type Snapshot struct {
	ID         string `json:"id"` // UUIDv7
	RunID      string `json:"run_id"`
	PageURL    string `json:"page_url"`
	Backend    string `json:"backend"`
	Source     []byte `json:"source"`
	SourceHash string `json:"source_hash"` // SHA-256 hex
	Timestamp  int64  `json:"timestamp"`
}

// HashSource returns the SHA-256 hex digest of a page source.
func HashSource(src []byte) string {
	h := sha256.Sum256(src)
	return hex.EncodeToString(h[:])
}

// Report summarises a run.
type Report struct {
	RunID      string    `json:"run_id"`
	Backend    string    `json:"backend"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Errored    int       `json:"errored"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Add appends o and updates the counters.
func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Total++
	switch o.Status {
	case StatusPass:
		r.Passed++
	case StatusFail:
		r.Failed++
	default:
		r.Errored++
	}
}

// OK reports whether every check passed.
func (r *Report) OK() bool { return r.Passed == r.Total }

// Duration of the run.
func (r *Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
