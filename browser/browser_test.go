package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/hazyhaar/pageprobe/probe"
)

func TestWrapScript(t *testing.T) {
	got := WrapScript("return 1")
	if got != "() => {\nreturn 1\n}" {
		t.Errorf("WrapScript = %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"": LevelHeadless, "headless": LevelHeadless, "plain": LevelPlain, "HEADFUL": LevelHeadful}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("invisible"); err == nil {
		t.Error("expected error")
	}
}

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true, "xhr": true}
	cases := map[string]bool{"Image": true, "Font": true, "Stylesheet": false, "XHR": true, "Document": false}
	for typ, want := range cases {
		if got := shouldBlock(set, typ); got != want {
			t.Errorf("shouldBlock(%q) = %v, want %v", typ, got, want)
		}
	}
}

func TestResolveURL(t *testing.T) {
	got, err := resolveURL("http://localhost:8080/app/", "about")
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://localhost:8080/app/about" {
		t.Errorf("got %q", got)
	}
	got, _ = resolveURL("", "http://x/y")
	if got != "http://x/y" {
		t.Errorf("got %q", got)
	}
}

func TestDriver_BeforeOpen(t *testing.T) {
	d := NewDriver(NewManager(Config{}), DriverConfig{})
	if d.Kind() != probe.DriverBrowser {
		t.Errorf("kind = %v", d.Kind())
	}
	if _, err := d.PageSource(context.Background()); err == nil {
		t.Error("expected error before Open")
	}
	if err := d.Close(); err != nil {
		t.Errorf("close without tab: %v", err)
	}
}

const livePage = `<!DOCTYPE html>
<html>
<head>
<style>
.icon-r { float: right; }
a.btn::before { content: "go"; }
</style>
</head>
<body>
<div id="nav"><a href="/about-us">About</a></div>
<span class="icon-r">x</span>
<a class="btn" href="#">Go</a>
<script>
var p = document.createElement("p");
p.id = "rendered";
p.textContent = "added-by-script";
document.body.appendChild(p);
</script>
</body>
</html>`

func TestDriver_LiveChrome(t *testing.T) {
	// WHAT: The driver answers every probe query against a real Chrome.
	// WHY: Computed styles and script-rendered content only exist in a live page.
	if testing.Short() {
		t.Skip("skipping live browser test in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no Chrome binary found")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(livePage))
	}))
	defer srv.Close()

	mgr := NewManager(Config{Bin: bin, Level: LevelPlain})
	defer mgr.Close()
	d := NewDriver(mgr, DriverConfig{BaseURL: srv.URL, NavTimeout: 20 * time.Second})
	defer d.Close()

	ctx := context.Background()
	if err := d.Open(ctx, "/"); err != nil {
		t.Fatalf("open: %v", err)
	}

	p := probe.New(probe.Fixed{Backend: d})

	style, err := p.ComputedStyle(ctx, ".icon-r", "float", "")
	if err != nil {
		t.Fatal(err)
	}
	if style != "right" {
		t.Errorf("float = %v, want right", style)
	}

	before, err := p.ComputedStyle(ctx, "a.btn", "content", "::before")
	if err != nil {
		t.Fatal(err)
	}
	if before != `"go"` {
		t.Errorf("content = %v", before)
	}

	r, err := p.RegexInSource(ctx, "/added-by-script/")
	if err != nil {
		t.Fatal(err)
	}
	if r.Actual != true {
		t.Error("rendered source lacks script output")
	}

	for _, container := range []string{"#nav", "//div[@id='nav']"} {
		r, err := p.LinkInSelector(ctx, "About", "about", container)
		if err != nil {
			t.Fatal(err)
		}
		if r.Actual != true {
			t.Errorf("link not found in %s", container)
		}
	}

	if ok, _ := d.Contains(ctx, "added-by-script", ""); !ok {
		t.Error("body text lacks script output")
	}

	src, _ := d.PageSource(ctx)
	if !strings.Contains(src, `id="rendered"`) {
		t.Error("page source is not the rendered DOM")
	}

	if _, err := d.ExecuteScript(ctx, "return undefinedThing.x"); err == nil {
		t.Error("expected script error")
	} else if errors.Is(err, probe.ErrUnsupportedOperation) {
		t.Error("script error misreported as unsupported")
	}
}
