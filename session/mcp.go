package session

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pageprobe/assertion"
	"github.com/hazyhaar/pageprobe/kit"
	"github.com/hazyhaar/pageprobe/probe"
)

// RegisterMCP registers the session's probe operations as MCP tools.
// Assertion tools return the verdict; a failed assertion is not a tool error.
func (s *Session) RegisterMCP(srv *mcp.Server) {
	s.registerOpen(srv)
	s.registerPageSource(srv)
	s.registerLinkSelector(srv)
	s.registerSeeLink(srv)
	s.registerElementStyle(srv)
	s.registerRegexInSource(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func boolean(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

func (s *Session) wrap(name string, e kit.Endpoint) kit.Endpoint {
	return kit.Logging(s.logger, name)(e)
}

// assert runs fn against an evaluator and returns the verdict it reached.
// Errors other than a mismatch are returned as is.
func (s *Session) assert(fn func(*probe.Asserter) error) (*assertion.Verdict, error) {
	var v assertion.Verdict
	err := fn(s.Asserter(func(got assertion.Verdict) { v = got }))
	if err != nil && !errors.Is(err, assertion.ErrMismatch) {
		return nil, err
	}
	return &v, nil
}

// --- open ---

type openReq struct {
	URL string `json:"url"`
}

func (s *Session) registerOpen(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "probe_open",
		Description: "Load a page in the session's active backend. Relative URLs resolve against the configured base URL.",
		InputSchema: inputSchema(map[string]any{
			"url": str("Page URL or path"),
		}, []string{"url"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*openReq)
		if err := s.Open(ctx, r.URL); err != nil {
			return nil, err
		}
		return map[string]string{"url": r.URL, "backend": s.Kind().String()}, nil
	}
	kit.RegisterMCPTool(srv, tool, s.wrap(tool.Name, endpoint), kit.DecodeArgs[openReq]())
}

// --- page source ---

func (s *Session) registerPageSource(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "probe_page_source",
		Description: "Return the current page source: the response body for the static backend, the live DOM for the browser.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		src, err := s.Probe().PageSource(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"source": src}, nil
	}
	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	}
	kit.RegisterMCPTool(srv, tool, s.wrap(tool.Name, endpoint), decode)
}

// --- link selector ---

type linkSelectorReq struct {
	Link      string `json:"link"`
	Container string `json:"container"`
}

func (s *Session) registerLinkSelector(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "probe_link_selector",
		Description: "Build the selector for links whose href contains a substring, inside a CSS or XPath container.",
		InputSchema: inputSchema(map[string]any{
			"link":      str("Substring the href must contain"),
			"container": str("CSS selector or XPath expression of the container"),
		}, []string{"container"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*linkSelectorReq)
		return map[string]string{"selector": s.Probe().LinkSelector(r.Link, r.Container)}, nil
	}
	kit.RegisterMCPTool(srv, tool, s.wrap(tool.Name, endpoint), kit.DecodeArgs[linkSelectorReq]())
}

// --- see link ---

type seeLinkReq struct {
	Text      string `json:"text"`
	Link      string `json:"link"`
	Container string `json:"container"`
	Negate    bool   `json:"negate"`
}

func (s *Session) registerSeeLink(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "probe_see_link",
		Description: "Assert that a link with the given text and href substring exists inside a container (or not, with negate).",
		InputSchema: inputSchema(map[string]any{
			"text":      str("Link text"),
			"link":      str("Substring the href must contain"),
			"container": str("CSS selector or XPath expression of the container"),
			"negate":    boolean("Assert absence instead"),
		}, []string{"container"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*seeLinkReq)
		return s.assert(func(a *probe.Asserter) error {
			if r.Negate {
				return a.DontSeeLinkInSelector(ctx, r.Text, r.Link, r.Container)
			}
			return a.SeeLinkInSelector(ctx, r.Text, r.Link, r.Container)
		})
	}
	kit.RegisterMCPTool(srv, tool, s.wrap(tool.Name, endpoint), kit.DecodeArgs[seeLinkReq]())
}

// --- element style ---

type elementStyleReq struct {
	Selector string  `json:"selector"`
	Style    string  `json:"style"`
	Pseudo   string  `json:"pseudo"`
	Expected *string `json:"expected"`
	Negate   bool    `json:"negate"`
}

func (s *Session) registerElementStyle(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name: "probe_element_style",
		Description: "Read the computed style property of the first element matching a CSS selector. " +
			"With expected, assert the value instead. Requires the browser backend.",
		InputSchema: inputSchema(map[string]any{
			"selector": str("CSS selector"),
			"style":    str("CSS property name, e.g. float"),
			"pseudo":   str("Optional pseudo-element or state, e.g. ::before"),
			"expected": str("Expected value; omit to read the value"),
			"negate":   boolean("With expected, assert the value differs"),
		}, []string{"selector", "style"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*elementStyleReq)
		if r.Expected == nil {
			v, err := s.Probe().ComputedStyle(ctx, r.Selector, r.Style, r.Pseudo)
			if err != nil {
				return nil, err
			}
			return map[string]any{"value": v}, nil
		}
		return s.assert(func(a *probe.Asserter) error {
			if r.Negate {
				return a.DontSeeElementHasStyle(ctx, r.Selector, r.Style, *r.Expected, r.Pseudo)
			}
			return a.SeeElementHasStyle(ctx, r.Selector, r.Style, *r.Expected, r.Pseudo)
		})
	}
	kit.RegisterMCPTool(srv, tool, s.wrap(tool.Name, endpoint), kit.DecodeArgs[elementStyleReq]())
}

// --- regex in source ---

type regexReq struct {
	Pattern string `json:"pattern"`
	Negate  bool   `json:"negate"`
}

func (s *Session) registerRegexInSource(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "probe_regex_in_source",
		Description: "Assert that a regular expression (optionally /delimited/ with flags) matches the current page source.",
		InputSchema: inputSchema(map[string]any{
			"pattern": str("Regular expression, e.g. /<h1>\\s*Welcome/i"),
			"negate":  boolean("Assert no match instead"),
		}, []string{"pattern"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*regexReq)
		return s.assert(func(a *probe.Asserter) error {
			if r.Negate {
				return a.DontSeeRegexInSource(ctx, r.Pattern)
			}
			return a.SeeRegexInSource(ctx, r.Pattern)
		})
	}
	kit.RegisterMCPTool(srv, tool, s.wrap(tool.Name, endpoint), kit.DecodeArgs[regexReq]())
}
