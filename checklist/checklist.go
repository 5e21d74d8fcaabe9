// Package checklist runs configured probe checks page by page and reports
// each outcome.
package checklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/pageprobe/assertion"
	"github.com/hazyhaar/pageprobe/idgen"
	"github.com/hazyhaar/pageprobe/internal/config"
	"github.com/hazyhaar/pageprobe/internal/sink"
	"github.com/hazyhaar/pageprobe/probe"
	"github.com/hazyhaar/pageprobe/report"
)

// Session is the slice of session.Session the runner needs.
type Session interface {
	Open(ctx context.Context, url string) error
	Kind() probe.Kind
	Asserter(rec assertion.Recorder) *probe.Asserter
}

// Runner evaluates checklists against one session, one check at a time.
type Runner struct {
	session Session
	sink    sink.Sink
	logger  *slog.Logger
	newID   idgen.Generator
	now     func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink sets where outcomes and snapshots go. Default: discard.
func WithSink(s sink.Sink) Option {
	return func(r *Runner) { r.sink = s }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithIDGenerator sets the run, outcome and snapshot ID generator.
func WithIDGenerator(g idgen.Generator) Option {
	return func(r *Runner) { r.newID = g }
}

// New creates a Runner over s.
func New(s Session, opts ...Option) *Runner {
	r := &Runner{
		session: s,
		sink:    sink.NewCallback(nil, nil),
		logger:  slog.Default(),
		newID:   idgen.New,
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run opens each page and evaluates its checks in order. A page that fails
// to open yields an error outcome for each of its checks. Failed and errored
// checks are followed by a snapshot of the page source. Run only returns an
// error when ctx ends; the partial report is returned with it.
func (r *Runner) Run(ctx context.Context, pages []config.PageConfig) (*report.Report, error) {
	rep := &report.Report{
		RunID:     r.newID(),
		Backend:   r.session.Kind().String(),
		StartedAt: r.now(),
	}
	r.logger.Info("checklist: run started", "run", rep.RunID, "pages", len(pages), "backend", rep.Backend)

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			rep.FinishedAt = r.now()
			return rep, err
		}
		r.runPage(ctx, rep, page)
	}

	rep.FinishedAt = r.now()
	r.logger.Info("checklist: run finished",
		"run", rep.RunID,
		"total", rep.Total,
		"passed", rep.Passed,
		"failed", rep.Failed,
		"errored", rep.Errored,
		"duration", rep.Duration())
	return rep, nil
}

func (r *Runner) runPage(ctx context.Context, rep *report.Report, page config.PageConfig) {
	if err := r.session.Open(ctx, page.URL); err != nil {
		r.logger.Warn("checklist: open failed", "url", page.URL, "error", err)
		for _, ch := range page.Checks {
			o := r.outcome(rep.RunID, page.URL, ch)
			o.Status = report.StatusError
			o.Error = fmt.Sprintf("open %s: %v", page.URL, err)
			o.Message = ch.Name
			r.emit(ctx, rep, o)
		}
		return
	}

	for _, ch := range page.Checks {
		o := r.evaluate(ctx, rep.RunID, page.URL, ch)
		if o.Failed() {
			o.SnapshotID = r.snapshot(ctx, rep.RunID, page.URL)
		}
		r.emit(ctx, rep, o)
	}
}

func (r *Runner) evaluate(ctx context.Context, runID, pageURL string, ch config.CheckConfig) report.Outcome {
	o := r.outcome(runID, pageURL, ch)
	start := r.now()

	var verdict *assertion.Verdict
	a := r.session.Asserter(func(v assertion.Verdict) { verdict = &v })

	err := ch.Validate()
	if err == nil {
		err = runCheck(ctx, a, ch)
	}
	o.DurationMs = r.now().Sub(start).Milliseconds()

	if verdict != nil {
		o.Message = verdict.Message
		o.Expected = verdict.Result.Expected
		o.Actual = verdict.Result.Actual
	}
	switch {
	case err == nil:
		o.Status = report.StatusPass
	case errors.Is(err, assertion.ErrMismatch):
		o.Status = report.StatusFail
		o.Error = err.Error()
	default:
		o.Status = report.StatusError
		o.Error = err.Error()
		if o.Message == "" {
			o.Message = ch.Name
		}
	}
	return o
}

func runCheck(ctx context.Context, a *probe.Asserter, ch config.CheckConfig) error {
	switch ch.Type {
	case config.CheckLinkInSelector:
		if ch.Negate {
			return a.DontSeeLinkInSelector(ctx, ch.Text, ch.Link, ch.Selector)
		}
		return a.SeeLinkInSelector(ctx, ch.Text, ch.Link, ch.Selector)
	case config.CheckElementStyle:
		if ch.Negate {
			return a.DontSeeElementHasStyle(ctx, ch.Selector, ch.Style, ch.Value, ch.Pseudo)
		}
		return a.SeeElementHasStyle(ctx, ch.Selector, ch.Style, ch.Value, ch.Pseudo)
	case config.CheckRegexInSource:
		if ch.Negate {
			return a.DontSeeRegexInSource(ctx, ch.Pattern)
		}
		return a.SeeRegexInSource(ctx, ch.Pattern)
	}
	return fmt.Errorf("checklist: unknown check type %q", ch.Type)
}

func (r *Runner) outcome(runID, pageURL string, ch config.CheckConfig) report.Outcome {
	return report.Outcome{
		ID:        r.newID(),
		RunID:     runID,
		PageURL:   pageURL,
		Check:     ch.Name,
		Type:      ch.Type,
		Negated:   ch.Negate,
		Timestamp: r.now().UnixMilli(),
	}
}

// snapshot captures the current page and returns its ID, or "" when the
// source cannot be read.
func (r *Runner) snapshot(ctx context.Context, runID, pageURL string) string {
	src, err := r.session.Asserter(nil).GrabPageSource(ctx)
	if err != nil {
		r.logger.Warn("checklist: snapshot failed", "url", pageURL, "error", err)
		return ""
	}
	snap := report.Snapshot{
		ID:         r.newID(),
		RunID:      runID,
		PageURL:    pageURL,
		Backend:    r.session.Kind().String(),
		Source:     []byte(src),
		SourceHash: report.HashSource([]byte(src)),
		Timestamp:  r.now().UnixMilli(),
	}
	if err := r.sink.SendSnapshot(ctx, snap); err != nil {
		r.logger.Warn("checklist: sink snapshot failed", "snapshot", snap.ID, "error", err)
	}
	return snap.ID
}

func (r *Runner) emit(ctx context.Context, rep *report.Report, o report.Outcome) {
	rep.Add(o)
	if o.Failed() {
		r.logger.Warn("checklist: check failed",
			"check", o.Check, "url", o.PageURL, "status", string(o.Status), "error", o.Error)
	} else {
		r.logger.Debug("checklist: check passed", "check", o.Check, "url", o.PageURL)
	}
	if err := r.sink.Send(ctx, o); err != nil {
		r.logger.Warn("checklist: sink send failed", "outcome", o.ID, "error", err)
	}
}
