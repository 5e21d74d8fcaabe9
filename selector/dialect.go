// Package selector resolves CSS and XPath expressions against parsed HTML.
//
// It is the matching engine of the static-fetch backend: the page is never
// rendered, so "see text within selector" is answered by walking the parse
// tree produced by golang.org/x/net/html. Only the subset of each dialect that
// acceptance checks actually use is supported; anything else is rejected
// with ErrUnsupported.
package selector

import "strings"

// Dialect names the syntax family of a selector expression.
type Dialect int

const (
	CSS   Dialect = iota // structural selector: "#nav a.active"
	XPath                // path query: "//div[@id='nav']//a"
)

func (d Dialect) String() string {
	if d == XPath {
		return "xpath"
	}
	return "css"
}

// IsXPath reports whether expr is written as a path query. Path queries are
// recognised by their leading axis: "/", "./", ".." or a parenthesised
// expression.
func IsXPath(expr string) bool {
	e := strings.TrimSpace(expr)
	return strings.HasPrefix(e, "/") ||
		strings.HasPrefix(e, "./") ||
		strings.HasPrefix(e, "..") ||
		strings.HasPrefix(e, "(")
}

// IsCSS reports whether expr is a structural selector.
func IsCSS(expr string) bool {
	return !IsXPath(expr)
}

// Detect returns the dialect of expr.
func Detect(expr string) Dialect {
	if IsXPath(expr) {
		return XPath
	}
	return CSS
}
