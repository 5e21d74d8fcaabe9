package fetcher

import (
	"strings"
	"testing"
)

func TestLooksScriptRendered_Shell(t *testing.T) {
	html := []byte(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>App</title></head>
<body>
<div id="root"></div>
<script src="/static/js/main.chunk.js"></script>
</body>
</html>`)
	if !LooksScriptRendered(html) {
		t.Error("expected application shell to be detected")
	}
}

func TestLooksScriptRendered_StaticPage(t *testing.T) {
	html := []byte(`<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
<main>
<article>
<h1>Article Title</h1>
<p>Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat.</p>
</article>
</main>
</body>
</html>`)
	if LooksScriptRendered(html) {
		t.Error("static article flagged as script-rendered")
	}
}

func TestLooksScriptRendered_ScriptHeavy(t *testing.T) {
	script := "<script>" + strings.Repeat("window.__state = {};", 200) + "</script>"
	html := []byte("<html><head>" + script + "</head><body><span>hi</span></body></html>")
	if !LooksScriptRendered(html) {
		t.Error("script-heavy page not flagged")
	}
}

func TestCountTextAndMarkup(t *testing.T) {
	text, markup := countTextAndMarkup(`<div>Hello World</div><style>p{}</style>`)
	if text != 10 {
		t.Errorf("text = %d, want 10", text)
	}
	if markup == 0 {
		t.Error("expected markup bytes")
	}
}
