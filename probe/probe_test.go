package probe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/pageprobe/assertion"
)

type fakeBackend struct {
	kind        Kind
	source      string
	sourceCalls int
	scripts     []string
	scriptValue any
	selectors   []string
	found       bool
}

func (f *fakeBackend) Kind() Kind { return f.kind }

func (f *fakeBackend) PageSource(context.Context) (string, error) {
	f.sourceCalls++
	return f.source, nil
}

func (f *fakeBackend) Contains(_ context.Context, _, selector string) (bool, error) {
	f.selectors = append(f.selectors, selector)
	return f.found, nil
}

func (f *fakeBackend) ExecuteScript(_ context.Context, script string) (any, error) {
	if !f.kind.CanExecuteScript() {
		return nil, ErrUnsupportedOperation
	}
	f.scripts = append(f.scripts, script)
	return f.scriptValue, nil
}

func TestLinkSelector_Structural(t *testing.T) {
	for _, c := range []string{"#nav", "div.menu > ul", "footer", "[role=navigation]"} {
		if got, want := LinkSelector("about", c), c+" a[href*='about']"; got != want {
			t.Errorf("LinkSelector(about, %q) = %q, want %q", c, got, want)
		}
		if got, want := LinkSelector("", c), c+" a"; got != want {
			t.Errorf("LinkSelector(\"\", %q) = %q, want %q", c, got, want)
		}
	}
}

func TestLinkSelector_PathQuery(t *testing.T) {
	for _, c := range []string{"//div[@id='nav']", "/html/body/footer", ".//ul"} {
		if got, want := LinkSelector("about", c), c+"//a[contains(@href,'about')]"; got != want {
			t.Errorf("LinkSelector(about, %q) = %q, want %q", c, got, want)
		}
		if got, want := LinkSelector("", c), c+"//a"; got != want {
			t.Errorf("LinkSelector(\"\", %q) = %q, want %q", c, got, want)
		}
	}
}

func TestLinkSelector_Examples(t *testing.T) {
	if got := LinkSelector("about", "#nav"); got != "#nav a[href*='about']" {
		t.Errorf("got %q", got)
	}
	if got := LinkSelector("", "//div[@id='nav']"); got != "//div[@id='nav']//a" {
		t.Errorf("got %q", got)
	}
}

func TestProbe_WithDialect(t *testing.T) {
	// WHAT: A custom detection rule replaces the default one.
	// WHY: Dialect detection is pluggable; callers may know their selector syntax.
	p := New(nil, WithDialect(func(string) bool { return false }))
	if got := p.LinkSelector("x", "#nav"); got != "#nav//a[contains(@href,'x')]" {
		t.Errorf("got %q", got)
	}
	if got := LinkSelector("x", "#nav"); got != "#nav a[href*='x']" {
		t.Errorf("custom rule leaked into the package default: %q", got)
	}
	if !DefaultDialect("#nav") || DefaultDialect("//nav") {
		t.Error("DefaultDialect misclassifies")
	}
}

func TestComputedStyle_UnsupportedOnStaticBackend(t *testing.T) {
	// WHAT: Style inspection on the static fetcher fails before any backend call.
	// WHY: Script execution is a capability only the live driver has.
	b := &fakeBackend{kind: PrimaryBrowser}
	p := New(Fixed{b})

	for _, args := range [][3]string{{".icon-r", "float", ""}, {"a", "color", ":hover"}, {"", "", ""}} {
		_, err := p.ComputedStyle(context.Background(), args[0], args[1], args[2])
		if !errors.Is(err, ErrUnsupportedOperation) {
			t.Fatalf("ComputedStyle(%v): got %v, want ErrUnsupportedOperation", args, err)
		}
	}
	if len(b.scripts) != 0 {
		t.Errorf("backend received %d scripts, want 0", len(b.scripts))
	}

	if _, err := p.StyleEquals(context.Background(), "a", "color", "red", ""); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("StyleEquals: got %v", err)
	}
}

func TestComputedStyle_Script(t *testing.T) {
	b := &fakeBackend{kind: DriverBrowser, scriptValue: "right"}
	p := New(Fixed{b})

	v, err := p.ComputedStyle(context.Background(), ".icon-r", "float", "")
	if err != nil {
		t.Fatal(err)
	}
	if v != "right" {
		t.Errorf("value = %v", v)
	}
	want := "return window.getComputedStyle(document.querySelector('.icon-r'))['float']"
	if b.scripts[0] != want {
		t.Errorf("script = %q, want %q", b.scripts[0], want)
	}

	if _, err := p.ComputedStyle(context.Background(), "a.btn", "content", "::before"); err != nil {
		t.Fatal(err)
	}
	want = "return window.getComputedStyle(document.querySelector('a.btn'), '::before')['content']"
	if b.scripts[1] != want {
		t.Errorf("script = %q, want %q", b.scripts[1], want)
	}
}

func TestStyleEquals_Triple(t *testing.T) {
	b := &fakeBackend{kind: DriverBrowser, scriptValue: "700"}
	p := New(Fixed{b})

	r, err := p.StyleEquals(context.Background(), "h1", "font-weight", "bold", "")
	if err != nil {
		t.Fatal(err)
	}
	if r.Predicate != assertion.Equals || r.Expected != "bold" || r.Actual != "700" {
		t.Errorf("unexpected triple %+v", r)
	}
}

func TestRegexInSource(t *testing.T) {
	b := &fakeBackend{kind: PrimaryBrowser, source: "<html><!-- token123 --></html>"}
	p := New(Fixed{b})
	ctx := context.Background()

	r, err := p.RegexInSource(ctx, "/token123/")
	if err != nil {
		t.Fatal(err)
	}
	if r.Predicate != assertion.True || r.Actual != true {
		t.Errorf("got %+v, want (True, true)", r)
	}

	again, err := p.RegexInSource(ctx, "/token123/")
	if err != nil {
		t.Fatal(err)
	}
	if again != r {
		t.Errorf("second call = %+v, first = %+v", again, r)
	}

	r, err = p.RegexInSource(ctx, `/token\d{4}/`)
	if err != nil {
		t.Fatal(err)
	}
	if r.Actual != false {
		t.Errorf("got %+v, want (True, false)", r)
	}
}

func TestRegexInSource_Refetches(t *testing.T) {
	// WHAT: Each call reads the page again.
	// WHY: No caching; a changed page must be seen by the next call.
	b := &fakeBackend{kind: DriverBrowser, source: "before"}
	p := New(Fixed{b})
	ctx := context.Background()

	r, _ := p.RegexInSource(ctx, "/after/")
	if r.Actual != false {
		t.Fatalf("unexpected match on initial page")
	}
	b.source = "after"
	r, _ = p.RegexInSource(ctx, "/after/")
	if r.Actual != true {
		t.Errorf("changed page not seen")
	}
	if b.sourceCalls != 2 {
		t.Errorf("source fetched %d times, want 2", b.sourceCalls)
	}
}

func TestRegexInSource_InvalidPattern(t *testing.T) {
	b := &fakeBackend{kind: PrimaryBrowser}
	p := New(Fixed{b})
	if _, err := p.RegexInSource(context.Background(), "/(unclosed/"); err == nil {
		t.Fatal("expected compile error")
	}
	if b.sourceCalls != 0 {
		t.Errorf("source fetched for invalid pattern")
	}
}

func TestLinkInSelector(t *testing.T) {
	b := &fakeBackend{kind: PrimaryBrowser, found: true}
	p := New(Fixed{b})

	r, err := p.LinkInSelector(context.Background(), "About", "about", "#nav")
	if err != nil {
		t.Fatal(err)
	}
	if r.Actual != true {
		t.Errorf("got %+v", r)
	}
	if b.selectors[0] != "#nav a[href*='about']" {
		t.Errorf("selector = %q", b.selectors[0])
	}
}

func TestNoBackend(t *testing.T) {
	p := New(Fixed{})
	if _, err := p.PageSource(context.Background()); !errors.Is(err, ErrNoBackend) {
		t.Errorf("got %v, want ErrNoBackend", err)
	}
}

func TestAsserter(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{kind: DriverBrowser, source: "<p>token123</p>", scriptValue: "right", found: false}
	a := NewAsserter(New(Fixed{b}), nil)

	if err := a.SeeRegexInSource(ctx, "/token123/"); err != nil {
		t.Errorf("SeeRegexInSource: %v", err)
	}
	if err := a.DontSeeRegexInSource(ctx, "/token123/"); !errors.Is(err, assertion.ErrMismatch) {
		t.Errorf("DontSeeRegexInSource: got %v", err)
	}
	if err := a.SeeElementHasStyle(ctx, ".icon-r", "float", "right", ""); err != nil {
		t.Errorf("SeeElementHasStyle: %v", err)
	}
	if err := a.DontSeeElementHasStyle(ctx, ".icon-r", "float", "left", ""); err != nil {
		t.Errorf("DontSeeElementHasStyle: %v", err)
	}
	if err := a.DontSeeLinkInSelector(ctx, "About", "about", "#nav"); err != nil {
		t.Errorf("DontSeeLinkInSelector: %v", err)
	}
	err := a.SeeLinkInSelector(ctx, "About", "about", "#nav")
	if !errors.Is(err, assertion.ErrMismatch) {
		t.Fatalf("SeeLinkInSelector: got %v", err)
	}
	if !strings.Contains(err.Error(), "#nav a[href*='about']") {
		t.Errorf("message lacks selector: %s", err)
	}
}
