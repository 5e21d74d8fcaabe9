// Package session owns the active backend of a probing session and exposes
// it to probes as a probe.Resolver.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"

	"github.com/hazyhaar/pageprobe/assertion"
	"github.com/hazyhaar/pageprobe/browser"
	"github.com/hazyhaar/pageprobe/fetcher"
	"github.com/hazyhaar/pageprobe/internal/config"
	"github.com/hazyhaar/pageprobe/probe"
)

// Navigator is a backend that can load pages and release its resources.
type Navigator interface {
	probe.Backend
	Navigate(ctx context.Context, url string) error
	Close() error
}

// Session holds one Navigator. Every backend call made through the session,
// including those made by its probes, runs under a single lock.
type Session struct {
	mu      sync.Mutex
	nav     Navigator
	closers []func() error
	logger  *slog.Logger
	closed  bool
}

// New builds the backend named by cfg.Backend. For the live driver, Chrome
// is started before New returns.
func New(ctx context.Context, cfg config.SessionConfig, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()

	kind, err := probe.ParseKind(cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	switch kind {
	case probe.PrimaryBrowser:
		jar, _ := cookiejar.New(nil)
		f := fetcher.New(
			fetcher.WithClient(&http.Client{Timeout: cfg.HTTP.Timeout, Jar: jar}),
			fetcher.WithUserAgent(cfg.HTTP.UserAgent),
			fetcher.WithMaxBody(cfg.HTTP.MaxBody),
			fetcher.WithBaseURL(cfg.BaseURL),
			fetcher.WithLogger(logger),
		)
		return NewWithBackend(Static(f), logger), nil

	case probe.DriverBrowser:
		level, err := browser.ParseLevel(cfg.Browser.Stealth)
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		mgr := browser.NewManager(browser.Config{
			RemoteURL:        cfg.Browser.Remote,
			Bin:              cfg.Browser.Bin,
			Level:            level,
			ResourceBlocking: cfg.Browser.ResourceBlocking,
			XvfbDisplay:      cfg.Browser.XvfbDisplay,
			Logger:           logger,
		})
		if _, err := mgr.Start(ctx); err != nil {
			return nil, fmt.Errorf("session: start browser: %w", err)
		}
		d := browser.NewDriver(mgr, browser.DriverConfig{
			BaseURL:    cfg.BaseURL,
			NavTimeout: cfg.Browser.NavTimeout,
			Logger:     logger,
		})
		s := NewWithBackend(Live(d), logger)
		s.closers = append(s.closers, mgr.Close)
		return s, nil
	}
	return nil, fmt.Errorf("session: unsupported backend %s", kind)
}

// NewWithBackend wraps an existing Navigator.
func NewWithBackend(nav Navigator, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{nav: nav, logger: logger}
}

// Active implements probe.Resolver. It returns nil once the session is closed.
func (s *Session) Active() probe.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return locked{s}
}

// Kind of the active backend.
func (s *Session) Kind() probe.Kind { return s.nav.Kind() }

// Open loads url in the active backend.
func (s *Session) Open(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return probe.ErrNoBackend
	}
	if err := s.nav.Navigate(ctx, url); err != nil {
		return err
	}
	s.logger.Info("session: opened", "url", url, "backend", s.nav.Kind().String())
	return nil
}

// Probe returns a probe bound to this session.
func (s *Session) Probe(opts ...probe.Option) *probe.Probe {
	return probe.New(s, opts...)
}

// Asserter returns an asserter bound to this session. rec may be nil.
func (s *Session) Asserter(rec assertion.Recorder) *probe.Asserter {
	return probe.NewAsserter(s.Probe(), &assertion.Evaluator{Record: rec})
}

// Close releases the backend. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	errs := []error{s.nav.Close()}
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// locked forwards to the session backend under the session lock. A call made
// after Close fails with probe.ErrNoBackend.
type locked struct{ s *Session }

func (l locked) Kind() probe.Kind { return l.s.nav.Kind() }

func (l locked) PageSource(ctx context.Context) (string, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.s.closed {
		return "", probe.ErrNoBackend
	}
	return l.s.nav.PageSource(ctx)
}

func (l locked) Contains(ctx context.Context, text, sel string) (bool, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.s.closed {
		return false, probe.ErrNoBackend
	}
	return l.s.nav.Contains(ctx, text, sel)
}

func (l locked) ExecuteScript(ctx context.Context, script string) (any, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.s.closed {
		return nil, probe.ErrNoBackend
	}
	return l.s.nav.ExecuteScript(ctx, script)
}

// Static adapts a fetcher to Navigator.
func Static(f *fetcher.Fetcher) Navigator { return staticNav{f} }

type staticNav struct{ *fetcher.Fetcher }

func (n staticNav) Navigate(ctx context.Context, url string) error {
	_, err := n.Open(ctx, url)
	return err
}

// Live adapts a driver to Navigator.
func Live(d *browser.Driver) Navigator { return liveNav{d} }

type liveNav struct{ *browser.Driver }

func (n liveNav) Navigate(ctx context.Context, url string) error {
	return n.Open(ctx, url)
}
