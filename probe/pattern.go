package probe

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

var closingDelimiter = map[byte]byte{'(': ')', '[': ']', '{': '}', '<': '>'}

// CompilePattern compiles a Perl-compatible pattern. Delimited patterns
// ("/token\d+/i", "#a|b#", "{x}") have their delimiters stripped and the
// trailing modifiers i, m, s, x and u applied. A pattern that does not parse
// as delimited is compiled as written.
func CompilePattern(pattern string) (*regexp2.Regexp, error) {
	expr, opts, err := splitDelimited(pattern)
	if err != nil {
		return nil, err
	}
	re, err := regexp2.Compile(expr, opts)
	if err != nil {
		return nil, fmt.Errorf("probe: compile %q: %w", pattern, err)
	}
	return re, nil
}

func splitDelimited(pattern string) (string, regexp2.RegexOptions, error) {
	if len(pattern) < 2 {
		return pattern, regexp2.None, nil
	}
	open := pattern[0]
	if isAlnum(open) || open == '\\' || open == ' ' || open == '\t' || open == '\n' {
		return pattern, regexp2.None, nil
	}
	closer := open
	if c, ok := closingDelimiter[open]; ok {
		closer = c
	}
	end := strings.LastIndexByte(pattern, closer)
	if end <= 0 {
		return pattern, regexp2.None, nil
	}

	mods := pattern[end+1:]
	for i := 0; i < len(mods); i++ {
		if !isAlnum(mods[i]) {
			return pattern, regexp2.None, nil
		}
	}
	if strings.Trim(mods, "imsxuU") != "" {
		// Not a modifier list, so the pattern was never delimited.
		return pattern, regexp2.None, nil
	}

	opts := regexp2.None
	for i := 0; i < len(mods); i++ {
		switch mods[i] {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		case 'x':
			opts |= regexp2.IgnorePatternWhitespace
		case 'u':
		case 'U':
			return "", regexp2.None, fmt.Errorf("probe: modifier U is not supported in %q", pattern)
		}
	}
	return pattern[1:end], opts, nil
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
