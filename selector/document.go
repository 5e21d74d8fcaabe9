package selector

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrUnsupported is returned by Find for an expression that is malformed or
// falls outside the supported subset of its dialect.
var ErrUnsupported = errors.New("selector: unsupported expression")

// Document is a parsed HTML page ready for selector queries.
type Document struct {
	root *html.Node
}

// Parse parses raw HTML. The parser is lenient: malformed markup still yields
// a tree, so errors only come from the reader.
func Parse(src []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("selector: parse: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString is Parse for string input.
func ParseString(src string) (*Document, error) {
	return Parse([]byte(src))
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Find returns the element nodes matched by expr, dispatching on its dialect.
// An expression outside the supported subset is rejected with an error
// wrapping ErrUnsupported, never treated as matching nothing.
func (d *Document) Find(expr string) ([]*html.Node, error) {
	if IsXPath(expr) {
		return evaluateXPath(d.root, expr)
	}
	return querySelectorAll(d.root, expr)
}

// Text returns the whitespace-normalised text content of n, skipping script
// and style bodies.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
			sb.WriteByte(' ')
			return
		case html.ElementNode:
			if c.DataAtom == atom.Script || c.DataAtom == atom.Style {
				return
			}
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return normalizeSpace(sb.String())
}

// directText is the XPath text() value: only the node's own text children.
func directText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return normalizeSpace(sb.String())
}

// Attr returns the value of attribute key on n, or "".
func Attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parentElement(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}
