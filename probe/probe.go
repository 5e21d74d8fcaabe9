// Package probe answers content questions about the current page of an
// acceptance-test session: is a link present inside a selector, what is an
// element's computed style, does the page source match a pattern.
//
// The probe holds no page state. Every call asks the session's Resolver for
// the active Backend and issues at most one synchronous backend call, so
// repeated calls always see the page as it is now.
package probe

import (
	"context"
	"fmt"

	"github.com/hazyhaar/pageprobe/assertion"
)

// Probe runs queries against whichever backend its resolver reports active.
type Probe struct {
	resolver Resolver
	isCSS    DialectFunc
}

// Option configures a Probe.
type Option func(*Probe)

// WithDialect replaces the structural-selector detection rule.
func WithDialect(fn DialectFunc) Option {
	return func(p *Probe) {
		if fn != nil {
			p.isCSS = fn
		}
	}
}

// New creates a Probe bound to resolver.
func New(resolver Resolver, opts ...Option) *Probe {
	p := &Probe{resolver: resolver, isCSS: DefaultDialect}
	for _, o := range opts {
		o(p)
	}
	return p
}

// LinkSelector is the package-level LinkSelector using the probe's dialect rule.
func (p *Probe) LinkSelector(link, container string) string {
	return linkSelector(p.isCSS, link, container)
}

func (p *Probe) backend() (Backend, error) {
	if p.resolver == nil {
		return nil, ErrNoBackend
	}
	b := p.resolver.Active()
	if b == nil {
		return nil, ErrNoBackend
	}
	return b, nil
}

// LinkInSelector checks whether text appears in a link inside container
// whose href contains link (any href when link is empty). The result is
// (True, found).
func (p *Probe) LinkInSelector(ctx context.Context, text, link, container string) (assertion.Result, error) {
	b, err := p.backend()
	if err != nil {
		return assertion.Result{}, err
	}
	found, err := b.Contains(ctx, text, p.LinkSelector(link, container))
	if err != nil {
		return assertion.Result{}, err
	}
	return assertion.Result{Predicate: assertion.True, Actual: found}, nil
}

// StyleScript builds the script reading the computed style property of the
// first element matching selector, optionally for a pseudo-element or state.
func StyleScript(selector, property, pseudo string) string {
	pseudoArg := ""
	if pseudo != "" {
		pseudoArg = fmt.Sprintf(", '%s'", pseudo)
	}
	return fmt.Sprintf("return window.getComputedStyle(document.querySelector('%s')%s)['%s']",
		selector, pseudoArg, property)
}

// ComputedStyle returns the raw computed value of property on the first
// element matching selector (CSS only). The active backend must be able to
// execute script; otherwise the error wraps ErrUnsupportedOperation and no
// backend call is made.
func (p *Probe) ComputedStyle(ctx context.Context, selector, property, pseudo string) (any, error) {
	b, err := p.backend()
	if err != nil {
		return nil, err
	}
	if !b.Kind().CanExecuteScript() {
		return nil, fmt.Errorf("%w: computed styles are only available with %s, active backend is %s",
			ErrUnsupportedOperation, DriverBrowser, b.Kind())
	}
	return b.ExecuteScript(ctx, StyleScript(selector, property, pseudo))
}

// StyleEquals returns (Equals, expected, computed value).
func (p *Probe) StyleEquals(ctx context.Context, selector, property string, expected any, pseudo string) (assertion.Result, error) {
	actual, err := p.ComputedStyle(ctx, selector, property, pseudo)
	if err != nil {
		return assertion.Result{}, err
	}
	return assertion.Result{Predicate: assertion.Equals, Expected: expected, Actual: actual}, nil
}

// PageSource returns the current page content from the active backend.
func (p *Probe) PageSource(ctx context.Context) (string, error) {
	b, err := p.backend()
	if err != nil {
		return "", err
	}
	return b.PageSource(ctx)
}

// RegexInSource fetches the page source and tests pattern against it once.
// The result is (True, matched). Pattern syntax is described at CompilePattern.
func (p *Probe) RegexInSource(ctx context.Context, pattern string) (assertion.Result, error) {
	re, err := CompilePattern(pattern)
	if err != nil {
		return assertion.Result{}, err
	}
	src, err := p.PageSource(ctx)
	if err != nil {
		return assertion.Result{}, err
	}
	matched, err := re.MatchString(src)
	if err != nil {
		return assertion.Result{}, fmt.Errorf("probe: match %q: %w", pattern, err)
	}
	return assertion.Result{Predicate: assertion.True, Actual: matched}, nil
}
