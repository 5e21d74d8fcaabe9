package fetcher

import (
	"bytes"
	"strings"
)

var shellMarkers = [][]byte{
	[]byte(`<div id="root"></div>`),
	[]byte(`<div id="app"></div>`),
	[]byte(`<div id="__next"></div>`),
	[]byte(`<noscript>you need to enable javascript`),
	[]byte(`<noscript>enable javascript`),
}

// LooksScriptRendered reports whether body is probably an application shell
// whose content only appears after scripts run. Such pages give misleading
// results on the static backend.
func LooksScriptRendered(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, m := range shellMarkers {
		if bytes.Contains(lower, m) {
			return true
		}
	}
	if len(body) < 256 {
		return false
	}
	text, markup := countTextAndMarkup(string(body))
	if text+markup == 0 {
		return false
	}
	// Under 5% visible text with a script tag present: mostly bootstrap code.
	return float64(text)/float64(text+markup) < 0.05 && bytes.Contains(lower, []byte("<script"))
}

// countTextAndMarkup approximates visible text bytes against markup bytes.
// Script and style bodies count as markup.
func countTextAndMarkup(s string) (text, markup int) {
	inTag := false
	for i := 0; i < len(s); {
		if s[i] == '<' {
			rest := strings.ToLower(s[i:min(len(s), i+8)])
			for _, raw := range []string{"script", "style"} {
				if strings.HasPrefix(rest, "<"+raw) {
					end := strings.Index(strings.ToLower(s[i:]), "</"+raw)
					if end < 0 {
						return text, markup + len(s) - i
					}
					markup += end
					i += end
					break
				}
			}
			inTag = true
			markup++
			i++
			continue
		}
		switch {
		case s[i] == '>':
			inTag = false
			markup++
		case inTag:
			markup++
		case s[i] != ' ' && s[i] != '\t' && s[i] != '\n' && s[i] != '\r':
			text++
		}
		i++
	}
	return text, markup
}
