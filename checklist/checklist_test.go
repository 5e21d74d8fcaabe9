package checklist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/pageprobe/idgen"
	"github.com/hazyhaar/pageprobe/internal/config"
	"github.com/hazyhaar/pageprobe/internal/sink"
	"github.com/hazyhaar/pageprobe/probe"
	"github.com/hazyhaar/pageprobe/report"
	"github.com/hazyhaar/pageprobe/session"
)

const home = `<html><body>
<div id="nav"><a href="/about-us">About</a></div>
<h1>Welcome home</h1>
</body></html>`

type collected struct {
	outcomes  []report.Outcome
	snapshots []report.Snapshot
}

func (c *collected) sink() sink.Sink {
	return sink.NewCallback(
		func(_ context.Context, o report.Outcome) error { c.outcomes = append(c.outcomes, o); return nil },
		func(_ context.Context, s report.Snapshot) error { c.snapshots = append(c.snapshots, s); return nil },
	)
}

func staticSession(t *testing.T) *session.Session {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(home))
	}))
	t.Cleanup(srv.Close)
	s, err := session.New(context.Background(), config.SessionConfig{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRun_StaticChecklist(t *testing.T) {
	var c collected
	r := New(staticSession(t), WithSink(c.sink()), WithIDGenerator(idgen.Sequence("id")))

	pages := []config.PageConfig{{
		URL: "/",
		Checks: []config.CheckConfig{
			{Name: "nav about", Type: config.CheckLinkInSelector, Text: "About", Link: "about", Selector: "#nav"},
			{Name: "no about", Type: config.CheckLinkInSelector, Negate: true, Text: "About", Link: "about", Selector: "#nav"},
			{Name: "welcome", Type: config.CheckRegexInSource, Pattern: "/welcome\\s+home/i"},
			{Name: "float", Type: config.CheckElementStyle, Selector: "h1", Style: "float", Value: "none"},
		},
	}}
	rep, err := r.Run(context.Background(), pages)
	if err != nil {
		t.Fatal(err)
	}

	if rep.RunID != "id-1" || rep.Backend != "PrimaryBrowser" {
		t.Errorf("run = %s / %s", rep.RunID, rep.Backend)
	}
	if rep.Total != 4 || rep.Passed != 2 || rep.Failed != 1 || rep.Errored != 1 {
		t.Fatalf("counters = %d/%d/%d/%d", rep.Total, rep.Passed, rep.Failed, rep.Errored)
	}
	if rep.OK() {
		t.Error("report should not be OK")
	}
	if len(c.outcomes) != 4 {
		t.Fatalf("sink outcomes = %d", len(c.outcomes))
	}

	fail := rep.Outcomes[1]
	if fail.Status != report.StatusFail || fail.Message != `link "About" in #nav a[href*='about']` || fail.Actual != true {
		t.Errorf("fail outcome = %+v", fail)
	}
	errored := rep.Outcomes[3]
	if errored.Status != report.StatusError || !strings.Contains(errored.Error, "unsupported operation") {
		t.Errorf("style outcome = %+v", errored)
	}

	if len(c.snapshots) != 2 {
		t.Fatalf("snapshots = %d", len(c.snapshots))
	}
	if fail.SnapshotID != c.snapshots[0].ID || errored.SnapshotID != c.snapshots[1].ID {
		t.Error("outcomes not linked to snapshots")
	}
	if string(c.snapshots[0].Source) != home || c.snapshots[0].SourceHash != report.HashSource([]byte(home)) {
		t.Error("snapshot source mismatch")
	}
	if rep.Outcomes[0].SnapshotID != "" {
		t.Error("passing check got a snapshot")
	}
}

func TestRun_UnsupportedSelectorIsError(t *testing.T) {
	// WHAT: A negated link check over a container the static engine cannot
	// evaluate is reported as an error, not a pass.
	// WHY: "no match" for an unparseable selector would hide a broken check.
	var c collected
	r := New(staticSession(t), WithSink(c.sink()), WithIDGenerator(idgen.Sequence("id")))

	rep, err := r.Run(context.Background(), []config.PageConfig{{
		URL: "/",
		Checks: []config.CheckConfig{
			{Name: "first item", Type: config.CheckLinkInSelector, Negate: true, Text: "About", Link: "about", Selector: "#nav a:first-child"},
			{Name: "broken", Type: config.CheckLinkInSelector, Negate: true, Text: "About", Link: "about", Selector: "#nav["},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Errored != 2 || rep.Passed != 0 {
		t.Fatalf("counters = %d passed, %d errored", rep.Passed, rep.Errored)
	}
	for _, o := range rep.Outcomes {
		if o.Status != report.StatusError || !strings.Contains(o.Error, "unsupported expression") {
			t.Errorf("%s: outcome = %+v", o.Check, o)
		}
	}
}

// pages is a scripted backend serving fixed sources.
type pages struct {
	kind    probe.Kind
	sources map[string]string
	current string
	style   any
}

func (p *pages) Kind() probe.Kind { return p.kind }
func (p *pages) PageSource(context.Context) (string, error) {
	return p.sources[p.current], nil
}
func (p *pages) Contains(_ context.Context, text, _ string) (bool, error) {
	return strings.Contains(p.sources[p.current], text), nil
}
func (p *pages) ExecuteScript(context.Context, string) (any, error) { return p.style, nil }
func (p *pages) Navigate(_ context.Context, url string) error {
	if _, ok := p.sources[url]; !ok {
		return errors.New("connection refused")
	}
	p.current = url
	return nil
}
func (p *pages) Close() error { return nil }

func TestRun_OpenFailure(t *testing.T) {
	// WHAT: A page that fails to open errors all its checks and the run
	// moves on to the next page.
	// WHY: One unreachable page must not hide results for the others.
	var c collected
	b := &pages{kind: probe.DriverBrowser, sources: map[string]string{"/ok": "<p>fine</p>"}, style: "right"}
	r := New(session.NewWithBackend(b, nil), WithSink(c.sink()))

	rep, err := r.Run(context.Background(), []config.PageConfig{
		{URL: "/down", Checks: []config.CheckConfig{
			{Name: "a", Type: config.CheckRegexInSource, Pattern: "/x/"},
			{Name: "b", Type: config.CheckRegexInSource, Pattern: "/y/"},
		}},
		{URL: "/ok", Checks: []config.CheckConfig{
			{Name: "float", Type: config.CheckElementStyle, Selector: ".icon", Style: "float", Value: "right"},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Total != 3 || rep.Errored != 2 || rep.Passed != 1 {
		t.Fatalf("counters = %d/%d/%d", rep.Total, rep.Errored, rep.Passed)
	}
	for _, o := range rep.Outcomes[:2] {
		if !strings.Contains(o.Error, "open /down: connection refused") {
			t.Errorf("open error = %q", o.Error)
		}
	}
	if len(c.snapshots) != 0 {
		t.Errorf("snapshots for unopened page: %d", len(c.snapshots))
	}
	style := rep.Outcomes[2]
	if style.Expected != "right" || style.Actual != "right" || style.Message != "style float of .icon" {
		t.Errorf("style outcome = %+v", style)
	}
}

func TestRun_InvalidCheck(t *testing.T) {
	b := &pages{kind: probe.PrimaryBrowser, sources: map[string]string{"/": "x"}}
	r := New(session.NewWithBackend(b, nil))

	rep, err := r.Run(context.Background(), []config.PageConfig{{URL: "/", Checks: []config.CheckConfig{
		{Name: "nothing", Type: config.CheckRegexInSource},
		{Name: "bad regex", Type: config.CheckRegexInSource, Pattern: "/(unclosed/"},
	}}})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Errored != 2 {
		t.Fatalf("errored = %d", rep.Errored)
	}
	if !strings.Contains(rep.Outcomes[0].Error, "pattern is required") {
		t.Errorf("validation error = %q", rep.Outcomes[0].Error)
	}
}

func TestRun_Cancelled(t *testing.T) {
	b := &pages{kind: probe.PrimaryBrowser, sources: map[string]string{"/": "x"}}
	r := New(session.NewWithBackend(b, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := r.Run(ctx, []config.PageConfig{{URL: "/"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if rep == nil || rep.Total != 0 {
		t.Errorf("report = %+v", rep)
	}
}
