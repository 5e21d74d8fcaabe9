package selector

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Supported CSS subset:
//   - type and universal: "a", "*"
//   - "#id", ".class" (repeatable), compound "a.btn#go"
//   - attributes: [attr], [attr=v], [attr*=v], [attr^=v], [attr$=v], [attr~=v], [attr|=v]
//   - descendant (space) and child (>) combinators
//   - selector groups separated by commas
//
// Pseudo-classes and sibling combinators are rejected.

type attrCond struct {
	key string
	op  string
	val string
}

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrCond
	invalid bool
}

type cssStep struct {
	comb byte // 0 for the leftmost step, ' ' descendant, '>' child
	sel  compound
}

// querySelectorAll returns every element under root matched by selector, in
// document order.
func querySelectorAll(root *html.Node, selector string) ([]*html.Node, error) {
	var chains [][]cssStep
	for _, group := range splitTopLevel(selector, ',') {
		chain, ok := parseComplex(strings.TrimSpace(group))
		if !ok {
			return nil, fmt.Errorf("%w: css %q", ErrUnsupported, selector)
		}
		chains = append(chains, chain)
	}

	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, chain := range chains {
				if matchChain(n, chain, len(chain)-1) {
					results = append(results, n)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results, nil
}

// matchChain matches right to left: chain[i] against n, then the remaining
// steps against n's ancestors according to the combinator.
func matchChain(n *html.Node, chain []cssStep, i int) bool {
	if !matchCompound(n, chain[i].sel) {
		return false
	}
	if i == 0 {
		return true
	}
	if chain[i].comb == '>' {
		p := parentElement(n)
		return p != nil && matchChain(p, chain, i-1)
	}
	for p := parentElement(n); p != nil; p = parentElement(p) {
		if matchChain(p, chain, i-1) {
			return true
		}
	}
	return false
}

func parseComplex(s string) ([]cssStep, bool) {
	var chain []cssStep
	var comb byte
	i := 0
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			if comb == 0 && len(chain) > 0 {
				comb = ' '
			}
			i++
			continue
		case '>':
			if len(chain) == 0 {
				return nil, false
			}
			comb = '>'
			i++
			continue
		case '+', '~', ',':
			return nil, false
		}

		start := i
		for i < len(s) {
			if s[i] == '[' {
				end := closingBracket(s, i)
				if end < 0 {
					return nil, false
				}
				i = end + 1
				continue
			}
			if strings.IndexByte(" \t\n\r>+~", s[i]) >= 0 {
				break
			}
			i++
		}
		sel := parseCompound(s[start:i])
		if sel.invalid {
			return nil, false
		}
		if len(chain) == 0 {
			comb = 0
		}
		chain = append(chain, cssStep{comb: comb, sel: sel})
		comb = 0
	}
	if len(chain) == 0 || comb == '>' {
		return nil, false
	}
	return chain, true
}

func parseCompound(s string) compound {
	var c compound
	i := 0
	for i < len(s) {
		switch s[i] {
		case '*':
			i++
		case '#':
			name, n := readIdent(s[i+1:])
			if n == 0 {
				c.invalid = true
				return c
			}
			c.id = name
			i += 1 + n
		case '.':
			name, n := readIdent(s[i+1:])
			if n == 0 {
				c.invalid = true
				return c
			}
			c.classes = append(c.classes, name)
			i += 1 + n
		case '[':
			end := closingBracket(s, i)
			if end < 0 {
				c.invalid = true
				return c
			}
			cond, ok := parseAttrCond(s[i+1 : end])
			if !ok {
				c.invalid = true
				return c
			}
			c.attrs = append(c.attrs, cond)
			i = end + 1
		case ':':
			c.invalid = true
			return c
		default:
			if i != 0 {
				c.invalid = true
				return c
			}
			name, n := readIdent(s)
			if n == 0 {
				c.invalid = true
				return c
			}
			c.tag = strings.ToLower(name)
			i += n
		}
	}
	return c
}

// parseAttrCond parses the inside of "[...]": "href", "href='x'", "href*=x".
func parseAttrCond(inner string) (attrCond, bool) {
	inner = strings.TrimSpace(inner)
	eq := strings.IndexByte(inner, '=')
	if eq < 0 {
		if inner == "" {
			return attrCond{}, false
		}
		return attrCond{key: strings.ToLower(inner)}, true
	}

	key := inner[:eq]
	op := "="
	if eq > 0 && strings.IndexByte("*^$~|", inner[eq-1]) >= 0 {
		op = inner[eq-1 : eq+1]
		key = inner[:eq-1]
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return attrCond{}, false
	}
	return attrCond{key: key, op: op, val: unquote(strings.TrimSpace(inner[eq+1:]))}, true
}

func matchCompound(n *html.Node, c compound) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if c.tag != "" && n.Data != c.tag {
		return false
	}
	if c.id != "" && Attr(n, "id") != c.id {
		return false
	}
	if len(c.classes) > 0 {
		have := strings.Fields(Attr(n, "class"))
		for _, want := range c.classes {
			if !containsWord(have, want) {
				return false
			}
		}
	}
	for _, a := range c.attrs {
		if !matchAttr(n, a) {
			return false
		}
	}
	return true
}

func matchAttr(n *html.Node, a attrCond) bool {
	val, ok := lookupAttr(n, a.key)
	if !ok {
		return false
	}
	switch a.op {
	case "":
		return true
	case "=":
		return val == a.val
	case "*=":
		return a.val != "" && strings.Contains(val, a.val)
	case "^=":
		return a.val != "" && strings.HasPrefix(val, a.val)
	case "$=":
		return a.val != "" && strings.HasSuffix(val, a.val)
	case "~=":
		return containsWord(strings.Fields(val), a.val)
	case "|=":
		return val == a.val || strings.HasPrefix(val, a.val+"-")
	}
	return false
}

func containsWord(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

func readIdent(s string) (string, int) {
	n := 0
	for n < len(s) {
		ch := s[n]
		if ch == '-' || ch == '_' || ch >= 0x80 ||
			(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			n++
			continue
		}
		break
	}
	return s[:n], n
}

// closingBracket returns the index of the ']' closing the '[' at open,
// honouring quoted values, or -1.
func closingBracket(s string, open int) int {
	var quote byte
	for i := open + 1; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case ']':
			return i
		}
	}
	return -1
}

// splitTopLevel splits s on sep outside brackets, parentheses and quotes.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	var quote byte
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		default:
			if ch == sep && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
