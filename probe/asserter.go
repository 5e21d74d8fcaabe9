package probe

import (
	"context"
	"fmt"

	"github.com/hazyhaar/pageprobe/assertion"
)

// Asserter is the test-writer surface: each method runs one probe query and
// applies its result through an assertion.Evaluator. A nil error means the
// assertion passed; a failed predicate yields *assertion.MismatchError; any
// other error comes from the probe or backend unchanged.
type Asserter struct {
	probe *Probe
	eval  *assertion.Evaluator
}

// NewAsserter wraps p. A nil evaluator is replaced by one without a recorder.
func NewAsserter(p *Probe, eval *assertion.Evaluator) *Asserter {
	if eval == nil {
		eval = &assertion.Evaluator{}
	}
	return &Asserter{probe: p, eval: eval}
}

// Probe returns the underlying probe.
func (a *Asserter) Probe() *Probe { return a.probe }

// SeeLinkInSelector asserts that a link with the given text, pointing to a
// URL containing link, exists inside container.
func (a *Asserter) SeeLinkInSelector(ctx context.Context, text, link, container string) error {
	r, err := a.probe.LinkInSelector(ctx, text, link, container)
	if err != nil {
		return err
	}
	return a.eval.Assert(r, a.linkMessage(text, link, container))
}

// DontSeeLinkInSelector asserts that no such link exists inside container.
func (a *Asserter) DontSeeLinkInSelector(ctx context.Context, text, link, container string) error {
	r, err := a.probe.LinkInSelector(ctx, text, link, container)
	if err != nil {
		return err
	}
	return a.eval.AssertNot(r, a.linkMessage(text, link, container))
}

func (a *Asserter) linkMessage(text, link, container string) string {
	return fmt.Sprintf("link %q in %s", text, a.probe.LinkSelector(link, container))
}

// SeeElementHasStyle asserts that the computed style of the first element
// matching selector equals value. pseudo may name a pseudo-element or state
// such as "::before" or ":hover".
func (a *Asserter) SeeElementHasStyle(ctx context.Context, selector, style, value, pseudo string) error {
	r, err := a.probe.StyleEquals(ctx, selector, style, value, pseudo)
	if err != nil {
		return err
	}
	return a.eval.Assert(r, styleMessage(selector, style, pseudo))
}

// DontSeeElementHasStyle asserts that the computed style differs from value.
func (a *Asserter) DontSeeElementHasStyle(ctx context.Context, selector, style, value, pseudo string) error {
	r, err := a.probe.StyleEquals(ctx, selector, style, value, pseudo)
	if err != nil {
		return err
	}
	return a.eval.AssertNot(r, styleMessage(selector, style, pseudo))
}

func styleMessage(selector, style, pseudo string) string {
	return fmt.Sprintf("style %s of %s%s", style, selector, pseudo)
}

// GrabElementStyle returns the computed style value without asserting.
func (a *Asserter) GrabElementStyle(ctx context.Context, selector, style, pseudo string) (any, error) {
	return a.probe.ComputedStyle(ctx, selector, style, pseudo)
}

// SeeRegexInSource asserts that pattern matches the current page source.
func (a *Asserter) SeeRegexInSource(ctx context.Context, pattern string) error {
	r, err := a.probe.RegexInSource(ctx, pattern)
	if err != nil {
		return err
	}
	return a.eval.Assert(r, "regex "+pattern+" in source")
}

// DontSeeRegexInSource asserts that pattern does not match the page source.
func (a *Asserter) DontSeeRegexInSource(ctx context.Context, pattern string) error {
	r, err := a.probe.RegexInSource(ctx, pattern)
	if err != nil {
		return err
	}
	return a.eval.AssertNot(r, "regex "+pattern+" in source")
}

// GrabPageSource returns the current page source.
func (a *Asserter) GrabPageSource(ctx context.Context) (string, error) {
	return a.probe.PageSource(ctx)
}
