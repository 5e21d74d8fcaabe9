package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/pageprobe/probe"
	"github.com/hazyhaar/pageprobe/selector"
)

// DriverConfig configures a Driver.
type DriverConfig struct {
	// BaseURL resolves relative page paths passed to Open.
	BaseURL string
	// NavTimeout bounds navigation plus load. Default: 30s.
	NavTimeout time.Duration
	Logger     *slog.Logger
}

// Driver is the live-driver probe.Backend. It keeps a single tab and
// navigates it; queries always run against that tab's current DOM.
type Driver struct {
	mgr   *Manager
	level Level
	cfg   DriverConfig

	mu  sync.Mutex
	tab *Tab
}

// NewDriver creates a Driver on a started or startable manager.
func NewDriver(mgr *Manager, cfg DriverConfig) *Driver {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Driver{mgr: mgr, level: mgr.cfg.Level, cfg: cfg}
}

// Kind implements probe.Backend.
func (d *Driver) Kind() probe.Kind { return probe.DriverBrowser }

// Open navigates the session tab to pageURL, launching Chrome and opening
// the tab on first use.
func (d *Driver) Open(ctx context.Context, pageURL string) error {
	target, err := resolveURL(d.cfg.BaseURL, pageURL)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tab == nil {
		if _, err := d.mgr.Start(ctx); err != nil {
			return err
		}
		tab, err := OpenTab(d.mgr, d.level)
		if err != nil {
			return err
		}
		d.tab = tab
	}

	if err := d.tab.Navigate(ctx, target, d.cfg.NavTimeout); err != nil {
		return err
	}
	d.cfg.Logger.Debug("browser: opened", "url", target)
	return nil
}

func (d *Driver) page(ctx context.Context) (*rod.Page, *Tab, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tab == nil {
		return nil, nil, fmt.Errorf("browser: no page opened")
	}
	return d.tab.Page.Context(ctx), d.tab, nil
}

// PageSource returns the rendered DOM, which may differ from the HTTP body
// once scripts have run.
func (d *Driver) PageSource(ctx context.Context) (string, error) {
	_, tab, err := d.page(ctx)
	if err != nil {
		return "", err
	}
	return tab.OuterHTML(ctx)
}

// ExecuteScript runs a WebDriver-style script body (using "return") in the
// page and returns its JSON value. Numbers come back as float64.
func (d *Driver) ExecuteScript(ctx context.Context, script string) (any, error) {
	page, _, err := d.page(ctx)
	if err != nil {
		return nil, err
	}
	res, err := page.Eval(WrapScript(script))
	if err != nil {
		return nil, fmt.Errorf("browser: execute script: %w", err)
	}
	return res.Value.Val(), nil
}

// WrapScript turns a script body into the function expression Rod evaluates.
func WrapScript(body string) string {
	return "() => {\n" + body + "\n}"
}

// Contains reports whether text appears in the rendered text of an element
// matched by sel. An empty sel searches document.body.innerText.
func (d *Driver) Contains(ctx context.Context, text, sel string) (bool, error) {
	page, _, err := d.page(ctx)
	if err != nil {
		return false, err
	}
	needle := normalizeSpace(text)

	if strings.TrimSpace(sel) == "" {
		res, err := page.Eval(`() => document.body ? document.body.innerText : ""`)
		if err != nil {
			return false, fmt.Errorf("browser: body text: %w", err)
		}
		return strings.Contains(normalizeSpace(res.Value.Str()), needle), nil
	}

	var els rod.Elements
	if selector.IsXPath(sel) {
		els, err = page.ElementsX(sel)
	} else {
		els, err = page.Elements(sel)
	}
	if err != nil {
		return false, fmt.Errorf("browser: query %q: %w", sel, err)
	}
	for _, el := range els {
		if needle == "" {
			return true, nil
		}
		t, err := el.Text()
		if err != nil {
			return false, fmt.Errorf("browser: element text: %w", err)
		}
		if strings.Contains(normalizeSpace(t), needle) {
			return true, nil
		}
	}
	return false, nil
}

// Close closes the session tab. The manager is closed by its owner.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tab == nil {
		return nil
	}
	err := d.tab.Close()
	d.tab = nil
	return err
}

func resolveURL(base, pageURL string) (string, error) {
	if base == "" {
		return pageURL, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("browser: base url: %w", err)
	}
	ref, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("browser: page url: %w", err)
	}
	return b.ResolveReference(ref).String(), nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
