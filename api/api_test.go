package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/pageprobe/internal/config"
	"github.com/hazyhaar/pageprobe/internal/store"
	"github.com/hazyhaar/pageprobe/report"
	"github.com/hazyhaar/pageprobe/session"
)

const site = `<html><body><div id="nav"><a href="/about-us">About</a></div><h1>Hi</h1></body></html>`

func newAPI(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(site))
	}))
	t.Cleanup(target.Close)

	factory := func(ctx context.Context) (*session.Session, error) {
		return session.New(ctx, config.SessionConfig{BaseURL: target.URL}, nil)
	}
	srv := httptest.NewServer(New(factory, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

const plan = `{"pages":[{"url":"/","checks":[
	{"name":"nav","type":"link_in_selector","text":"About","link":"about","selector":"#nav"},
	{"name":"stale","type":"regex_in_source","pattern":"/Goodbye/"}
]}]}`

func TestHealth(t *testing.T) {
	srv := newAPI(t)
	resp := get(t, srv.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" || resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("headers = %v", resp.Header)
	}
}

func TestRun_ReturnsReport(t *testing.T) {
	srv := newAPI(t)
	resp := post(t, srv.URL+"/v1/runs", plan)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var rep report.Report
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	if rep.Total != 2 || rep.Passed != 1 || rep.Failed != 1 {
		t.Errorf("report = %+v", rep)
	}
	if rep.Outcomes[1].Check != "stale" || rep.Outcomes[1].Status != report.StatusFail {
		t.Errorf("outcome = %+v", rep.Outcomes[1])
	}
}

func TestRun_BadRequest(t *testing.T) {
	srv := newAPI(t)
	cases := map[string]string{
		"not json":   `{`,
		"no pages":   `{"pages":[]}`,
		"bad check":  `{"pages":[{"url":"/","checks":[{"type":"element_style","selector":"h1"}]}]}`,
		"no url":     `{"pages":[{"checks":[]}]}`,
		"wrong type": `{"pages":[{"url":"/","checks":[{"type":"screenshot"}]}]}`,
	}
	for name, body := range cases {
		resp := post(t, srv.URL+"/v1/runs", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, resp.StatusCode)
		}
	}
}

func TestHistory(t *testing.T) {
	st := store.OpenMemory(t)
	srv := newAPI(t, WithStore(st))

	var rep report.Report
	resp := post(t, srv.URL+"/v1/runs", plan)
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}

	resp = get(t, srv.URL+"/v1/runs")
	var recent struct {
		Runs []report.Report `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&recent); err != nil {
		t.Fatal(err)
	}
	if len(recent.Runs) != 1 || recent.Runs[0].RunID != rep.RunID || recent.Runs[0].Failed != 1 {
		t.Fatalf("recent = %+v", recent.Runs)
	}

	resp = get(t, srv.URL+"/v1/runs/"+rep.RunID)
	var stored report.Report
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatal(err)
	}
	if len(stored.Outcomes) != 2 {
		t.Fatalf("stored outcomes = %d", len(stored.Outcomes))
	}

	snapID := stored.Outcomes[1].SnapshotID
	if snapID == "" {
		t.Fatal("failed outcome has no snapshot")
	}
	resp = get(t, srv.URL+"/v1/snapshots/"+snapID)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("snapshot: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	if resp := get(t, srv.URL+"/v1/runs/missing"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing run: %d", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/v1/runs?limit=zero"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit: %d", resp.StatusCode)
	}
}

func TestHistory_Disabled(t *testing.T) {
	srv := newAPI(t)
	if resp := get(t, srv.URL+"/v1/runs"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
