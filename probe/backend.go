package probe

import (
	"context"
	"errors"
)

// ErrUnsupportedOperation is returned when an operation needs a capability
// the active backend lacks, such as script execution on the static fetcher.
// It is never retried.
var ErrUnsupportedOperation = errors.New("probe: unsupported operation")

// ErrNoBackend is returned when the resolver has no active backend.
var ErrNoBackend = errors.New("probe: no active backend")

// Backend is the capability set shared by both variants.
//
// ExecuteScript is capability-flagged: callers must check
// Kind().CanExecuteScript() before using it. Backends without the capability
// return an error wrapping ErrUnsupportedOperation.
type Backend interface {
	Kind() Kind

	// PageSource returns the current page content: the raw response body for
	// the static fetcher, the rendered DOM for the live driver.
	PageSource(ctx context.Context) (string, error)

	// Contains reports whether text appears inside an element matched by
	// selector (CSS or XPath). An empty selector searches the whole page; an
	// empty text only requires a match.
	Contains(ctx context.Context, text, selector string) (bool, error)

	// ExecuteScript runs a script body in the page and returns its result.
	// The body uses "return" like a WebDriver script.
	ExecuteScript(ctx context.Context, script string) (any, error)
}

// Resolver exposes which backend is active.
type Resolver interface {
	Active() Backend
}

// Fixed is a Resolver that always returns the same backend.
type Fixed struct {
	Backend Backend
}

func (f Fixed) Active() Backend { return f.Backend }
