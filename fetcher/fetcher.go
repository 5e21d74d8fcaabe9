// Package fetcher is the static-fetch backend: plain HTTP GETs, no browser,
// no JavaScript. The last response body is the page; element queries run
// against its parse tree.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/pageprobe/probe"
	"github.com/hazyhaar/pageprobe/selector"
)

// ErrNoResponse is returned by page queries before the first Open.
var ErrNoResponse = errors.New("fetcher: no page opened")

// Response is the last page fetched.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	FetchedAt  time.Time
}

// Fetcher performs HTTP GETs and answers probe queries about the last one.
type Fetcher struct {
	client  *http.Client
	ua      string
	baseURL string
	maxBody int64
	logger  *slog.Logger
	text    *bluemonday.Policy

	mu   sync.Mutex
	last *Response
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithBaseURL sets the URL relative page paths are resolved against.
func WithBaseURL(u string) Option {
	return func(f *Fetcher) { f.baseURL = u }
}

// WithMaxBody caps the bytes read from a response. Default: 10MB.
func WithMaxBody(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher. The default client keeps cookies between requests,
// like a browser session would.
func New(opts ...Option) *Fetcher {
	jar, _ := cookiejar.New(nil)
	f := &Fetcher{
		client:  &http.Client{Timeout: 30 * time.Second, Jar: jar},
		ua:      "Mozilla/5.0 (compatible; pageprobe/1.0)",
		maxBody: 10 << 20,
		logger:  slog.Default(),
		text:    bluemonday.StrictPolicy(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Kind implements probe.Backend.
func (f *Fetcher) Kind() probe.Kind { return probe.PrimaryBrowser }

// Open GETs pageURL and makes the response the current page. Non-2xx
// statuses are not errors: the body is still the page under test.
func (f *Fetcher) Open(ctx context.Context, pageURL string) (*Response, error) {
	target, err := f.resolve(pageURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}

	res := &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		FetchedAt:  time.Now(),
	}

	f.mu.Lock()
	f.last = res
	f.mu.Unlock()

	f.logger.Debug("fetcher: fetched",
		"url", res.URL, "status", res.StatusCode, "size", len(body))
	if LooksScriptRendered(body) {
		f.logger.Warn("fetcher: page looks script-rendered, static checks may miss content",
			"url", res.URL)
	}
	return res, nil
}

func (f *Fetcher) resolve(pageURL string) (string, error) {
	if f.baseURL == "" {
		return pageURL, nil
	}
	base, err := url.Parse(f.baseURL)
	if err != nil {
		return "", fmt.Errorf("fetcher: base url: %w", err)
	}
	ref, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("fetcher: page url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Last returns the current page, or nil before the first Open.
func (f *Fetcher) Last() *Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// StatusCode of the current page, 0 before the first Open.
func (f *Fetcher) StatusCode() int {
	if r := f.Last(); r != nil {
		return r.StatusCode
	}
	return 0
}

// LastURL is the final URL of the current page after redirects.
func (f *Fetcher) LastURL() string {
	if r := f.Last(); r != nil {
		return r.URL
	}
	return ""
}

func (f *Fetcher) current() (*Response, error) {
	if r := f.Last(); r != nil {
		return r, nil
	}
	return nil, ErrNoResponse
}

// PageSource returns the last response body verbatim.
func (f *Fetcher) PageSource(_ context.Context) (string, error) {
	r, err := f.current()
	if err != nil {
		return "", err
	}
	return string(r.Body), nil
}

// Contains reports whether text appears in an element matched by sel. With
// an empty sel the visible text of the whole page is searched. A selector the
// static engine cannot evaluate fails with selector.ErrUnsupported.
func (f *Fetcher) Contains(_ context.Context, text, sel string) (bool, error) {
	r, err := f.current()
	if err != nil {
		return false, err
	}
	needle := strings.Join(strings.Fields(text), " ")

	if strings.TrimSpace(sel) == "" {
		return strings.Contains(f.visibleText(r.Body), needle), nil
	}

	doc, err := selector.Parse(r.Body)
	if err != nil {
		return false, err
	}
	nodes, err := doc.Find(sel)
	if err != nil {
		return false, fmt.Errorf("fetcher: contains: %w", err)
	}
	for _, n := range nodes {
		if needle == "" || strings.Contains(selector.Text(n), needle) {
			return true, nil
		}
	}
	return false, nil
}

// visibleText strips markup, script and style bodies, then decodes entities.
func (f *Fetcher) visibleText(body []byte) string {
	stripped := f.text.SanitizeBytes(body)
	return strings.Join(strings.Fields(html.UnescapeString(string(stripped))), " ")
}

// ExecuteScript always fails: there is no page runtime behind a static fetch.
func (f *Fetcher) ExecuteScript(_ context.Context, _ string) (any, error) {
	return nil, fmt.Errorf("%w: %s cannot execute script", probe.ErrUnsupportedOperation, probe.PrimaryBrowser)
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
