package selector

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Supported XPath subset:
//   - absolute "/html/body/div" and descendant "//a" steps, "//" anywhere in the path
//   - name tests and "*"
//   - predicates: [2], [@attr], [@attr='v'], [text()='v'], [.='v'],
//     [contains(@attr,'v')], [contains(text(),'v')], [contains(.,'v')],
//     [starts-with(@attr,'v')]
//   - unions with "|"
//
// A bare expression ("div/p") is treated as a descendant search. Anything
// else, including a parenthesised expression, is rejected.

type xpathStep struct {
	descendant bool
	tag        string
	preds      []xpathPredicate
}

type xpathPredicate struct {
	kind     string // position | attr | eq | contains | starts-with
	position int    // 1-based
	arg      string // "@name", "text()" or "."
	value    string
	hasValue bool
}

// evaluateXPath returns the element nodes matched by expr under root.
func evaluateXPath(root *html.Node, expr string) ([]*html.Node, error) {
	var branches [][]xpathStep
	for _, branch := range splitTopLevel(expr, '|') {
		steps, ok := parseXPath(strings.TrimSpace(branch))
		if !ok {
			return nil, fmt.Errorf("%w: xpath %q", ErrUnsupported, expr)
		}
		branches = append(branches, steps)
	}

	var results []*html.Node
	seen := make(map[*html.Node]bool)
	for _, steps := range branches {
		for _, n := range followSteps(root, steps) {
			if !seen[n] {
				seen[n] = true
				results = append(results, n)
			}
		}
	}
	return results, nil
}

func parseXPath(expr string) ([]xpathStep, bool) {
	switch {
	case expr == "":
		return nil, false
	case strings.HasPrefix(expr, "("):
		return nil, false
	case strings.HasPrefix(expr, "./"):
		expr = expr[1:]
	case !strings.HasPrefix(expr, "/"):
		expr = "//" + expr
	}

	var steps []xpathStep
	i := 0
	for i < len(expr) {
		if expr[i] != '/' {
			return nil, false
		}
		i++
		desc := false
		if i < len(expr) && expr[i] == '/' {
			desc = true
			i++
		}

		start := i
		var quote byte
		depth := 0
	scan:
		for i < len(expr) {
			ch := expr[i]
			if quote != 0 {
				if ch == quote {
					quote = 0
				}
				i++
				continue
			}
			switch ch {
			case '\'', '"':
				quote = ch
			case '[', '(':
				depth++
			case ']', ')':
				depth--
			case '/':
				if depth == 0 {
					break scan
				}
			}
			i++
		}

		step, ok := parseXPathStep(expr[start:i])
		if !ok {
			return nil, false
		}
		step.descendant = desc
		steps = append(steps, step)
	}
	return steps, len(steps) > 0
}

// parseXPathStep parses "div", "a[contains(@href,'x')]", "li[2]".
func parseXPathStep(s string) (xpathStep, bool) {
	var step xpathStep
	idx := strings.IndexByte(s, '[')
	name := s
	if idx >= 0 {
		name = s[:idx]
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "::") || strings.Contains(name, "(") {
		return step, false
	}
	step.tag = strings.ToLower(name)

	for idx >= 0 && idx < len(s) {
		end := closingBracket(s, idx)
		if end < 0 {
			return step, false
		}
		pred, ok := parsePredicate(strings.TrimSpace(s[idx+1 : end]))
		if !ok {
			return step, false
		}
		step.preds = append(step.preds, pred)
		rest := strings.TrimSpace(s[end+1:])
		if rest == "" {
			break
		}
		if rest[0] != '[' {
			return step, false
		}
		idx = end + 1 + strings.IndexByte(s[end+1:], '[')
	}
	return step, true
}

func parsePredicate(p string) (xpathPredicate, bool) {
	if n, err := strconv.Atoi(p); err == nil {
		return xpathPredicate{kind: "position", position: n}, n > 0
	}

	for _, fn := range []string{"contains", "starts-with"} {
		if strings.HasPrefix(p, fn+"(") && strings.HasSuffix(p, ")") {
			args := splitTopLevel(p[len(fn)+1:len(p)-1], ',')
			if len(args) != 2 {
				return xpathPredicate{}, false
			}
			arg := strings.TrimSpace(args[0])
			if !validArg(arg) {
				return xpathPredicate{}, false
			}
			return xpathPredicate{
				kind:     fn,
				arg:      arg,
				value:    unquote(strings.TrimSpace(args[1])),
				hasValue: true,
			}, true
		}
	}

	if eq := strings.IndexByte(p, '='); eq > 0 {
		arg := strings.TrimSpace(p[:eq])
		if !validArg(arg) {
			return xpathPredicate{}, false
		}
		return xpathPredicate{
			kind:     "eq",
			arg:      arg,
			value:    unquote(strings.TrimSpace(p[eq+1:])),
			hasValue: true,
		}, true
	}

	if strings.HasPrefix(p, "@") && len(p) > 1 {
		return xpathPredicate{kind: "attr", arg: p}, true
	}
	return xpathPredicate{}, false
}

func validArg(arg string) bool {
	return arg == "." || arg == "text()" || (strings.HasPrefix(arg, "@") && len(arg) > 1)
}

func followSteps(root *html.Node, steps []xpathStep) []*html.Node {
	current := []*html.Node{root}
	for _, step := range steps {
		var next []*html.Node
		seen := make(map[*html.Node]bool)
		add := func(n *html.Node) {
			if !seen[n] && matchesXPathStep(n, step) {
				seen[n] = true
				next = append(next, n)
			}
		}
		for _, ctx := range current {
			if step.descendant {
				walkDescendants(ctx, add)
				continue
			}
			for c := ctx.FirstChild; c != nil; c = c.NextSibling {
				add(c)
			}
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}
	return current
}

func walkDescendants(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		fn(c)
		walkDescendants(c, fn)
	}
}

func matchesXPathStep(n *html.Node, step xpathStep) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if step.tag != "*" && n.Data != step.tag {
		return false
	}
	for _, p := range step.preds {
		if !matchPredicate(n, step.tag, p) {
			return false
		}
	}
	return true
}

func matchPredicate(n *html.Node, tag string, p xpathPredicate) bool {
	if p.kind == "position" {
		return siblingPosition(n, tag) == p.position
	}

	val, ok := predicateArg(n, p.arg)
	if !ok {
		return false
	}
	switch p.kind {
	case "attr":
		return true
	case "eq":
		return val == p.value
	case "contains":
		return strings.Contains(val, p.value)
	case "starts-with":
		return strings.HasPrefix(val, p.value)
	}
	return false
}

func predicateArg(n *html.Node, arg string) (string, bool) {
	switch arg {
	case ".":
		return Text(n), true
	case "text()":
		return directText(n), true
	}
	return lookupAttr(n, strings.ToLower(arg[1:]))
}

// siblingPosition is the 1-based index of n among its parent's element
// children with the same name ("*" counts every element).
func siblingPosition(n *html.Node, tag string) int {
	if n.Parent == nil {
		return 1
	}
	pos := 0
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if s.Type != html.ElementNode || (tag != "*" && s.Data != n.Data) {
			continue
		}
		pos++
		if s == n {
			return pos
		}
	}
	return 0
}
