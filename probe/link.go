package probe

import (
	"fmt"

	"github.com/hazyhaar/pageprobe/selector"
)

// DialectFunc reports whether an expression is a structural (CSS) selector.
// Anything else is treated as a path query (XPath).
type DialectFunc func(expr string) bool

// DefaultDialect is the detection rule used when none is configured: path
// queries start with "/", "./", ".." or "(".
func DefaultDialect(expr string) bool { return selector.IsCSS(expr) }

// LinkSelector builds the selector for links inside container, optionally
// restricted to hrefs containing link. Input is not validated; the backend
// rejects malformed expressions when it evaluates them.
func LinkSelector(link, container string) string {
	return linkSelector(DefaultDialect, link, container)
}

func linkSelector(isCSS DialectFunc, link, container string) string {
	if isCSS(container) {
		if link == "" {
			return container + " a"
		}
		return fmt.Sprintf("%s a[href*='%s']", container, link)
	}
	if link == "" {
		return container + "//a"
	}
	return fmt.Sprintf("%s//a[contains(@href,'%s')]", container, link)
}
