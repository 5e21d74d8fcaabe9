package kit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	chained := Chain(mw("a"), mw("b"), mw("c"))(base)
	resp, err := chained(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "c_before", "endpoint", "c_after", "b_after", "a_after"}
	if len(order) != len(expected) {
		t.Fatalf("order length: got %d, want %d", len(order), len(expected))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Fatalf("order[%d]: got %q, want %q", i, order[i], v)
		}
	}
}

func TestChain_ErrorPropagation(t *testing.T) {
	errFail := errors.New("fail")
	base := func(_ context.Context, _ any) (any, error) {
		return nil, errFail
	}

	noop := func(next Endpoint) Endpoint { return next }
	chained := Chain(noop)(base)

	_, err := chained(context.Background(), nil)
	if !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}
}

func TestContext_TransportDefault(t *testing.T) {
	if got := GetTransport(context.Background()); got != "http" {
		t.Errorf("transport: got %q, want http", got)
	}
	ctx := WithRequestID(WithTransport(context.Background(), "mcp"), "r-1")
	if GetTransport(ctx) != "mcp" || GetRequestID(ctx) != "r-1" {
		t.Errorf("context values lost: %q %q", GetTransport(ctx), GetRequestID(ctx))
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	fail := func(_ context.Context, _ any) (any, error) { return nil, errors.New("boom") }

	ctx := WithRequestID(context.Background(), "req-9")
	if _, err := Logging(logger, "probe_open")(fail)(ctx, nil); err == nil {
		t.Fatal("expected error")
	}
	out := buf.String()
	for _, want := range []string{"kit: endpoint failed", "endpoint=probe_open", "request_id=req-9", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log lacks %q: %s", want, out)
		}
	}
}

type echoReq struct {
	Text string `json:"text"`
}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	impl := &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)

	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"text": map[string]any{"type": "string"}},
	}
	RegisterMCPTool(srv, &mcp.Tool{Name: "echo", InputSchema: schema},
		func(ctx context.Context, req any) (any, error) {
			r := req.(*echoReq)
			if r.Text == "" {
				return nil, errors.New("empty text")
			}
			return map[string]string{"text": r.Text, "transport": GetTransport(ctx)}, nil
		},
		DecodeArgs[echoReq]())

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(impl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestRegisterMCPTool(t *testing.T) {
	session := mcpSession(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"text": "hi"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("tool error: %v", err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T", result.Content[0])
	}
	if tc.Text != `{"text":"hi","transport":"mcp"}` {
		t.Errorf("text = %s", tc.Text)
	}
}

func TestRegisterMCPTool_EndpointError(t *testing.T) {
	// WHAT: An endpoint failure is a tool error, not a protocol error.
	// WHY: MCP clients show tool errors to the model; protocol errors abort the call.
	session := mcpSession(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := result.GetError(); err == nil || !strings.Contains(err.Error(), "empty text") {
		t.Errorf("tool error = %v", err)
	}
}
