package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/sessions"
)

type addArgs struct {
	A float64 `json:"a" jsonschema:"description=First operand"`
	B float64 `json:"b" jsonschema:"description=Second operand"`
}

func addTool() StaticTool {
	return NewTool[addArgs]("add", func(ctx context.Context, s sessions.Session, w ToolResponseWriter, r *ToolRequest[addArgs]) error {
		return w.AppendTextf("%g", r.Args().A+r.Args().B)
	}, WithToolDescription("Add two numbers"))
}

func echoTool(name string) StaticTool {
	return TypedTool[map[string]any](mcp.Tool{
		Name:        name,
		InputSchema: mcp.ToolInputSchema{Type: "object"},
	}, func(ctx context.Context, s sessions.Session, args map[string]any) (*mcp.CallToolResult, error) {
		b, _ := json.Marshal(args)
		return TextResult(string(b)), nil
	})
}

func mustRegistry(t *testing.T, defs ...StaticTool) *Registry {
	t.Helper()
	r, err := NewRegistry(defs...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("expected content, got %+v", res)
	}
	return res.Content[0].Text
}

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	r := mustRegistry(t, addTool())
	if err := r.Register(addTool()); !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
	if _, err := NewRegistry(echoTool("x"), echoTool("x")); !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool from constructor, got %v", err)
	}
	if err := r.Register(StaticTool{Descriptor: mcp.Tool{Name: "nohandler"}}); !errors.Is(err, ErrInvalidTool) {
		t.Fatalf("expected ErrInvalidTool, got %v", err)
	}
}

func TestRegistry_FreezeBlocksRegistration(t *testing.T) {
	r := mustRegistry(t)
	r.Freeze()
	if err := r.Register(addTool()); !errors.Is(err, ErrRegistryFrozen) {
		t.Fatalf("expected ErrRegistryFrozen, got %v", err)
	}
}

func TestRegistry_ListPreservesRegistrationOrder(t *testing.T) {
	r := mustRegistry(t, echoTool("zeta"), echoTool("alpha"), echoTool("mid"))
	var names []string
	for _, tool := range r.List() {
		names = append(names, tool.Name)
	}
	if strings.Join(names, ",") != "zeta,alpha,mid" {
		t.Fatalf("unexpected order %v", names)
	}
}

func TestRegistry_ListPage(t *testing.T) {
	r := mustRegistry(t, echoTool("a"), echoTool("b"), echoTool("c"))

	page, next, err := r.ListPage("", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || next != "2" {
		t.Fatalf("first page: %d items, next=%q", len(page), next)
	}
	page, next, err = r.ListPage(next, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].Name != "c" || next != "" {
		t.Fatalf("second page: %+v next=%q", page, next)
	}
	if _, _, err := r.ListPage("bogus", 2); !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("expected ErrInvalidCursor, got %v", err)
	}
	if _, _, err := r.ListPage("99", 2); !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("expected ErrInvalidCursor for out of range cursor, got %v", err)
	}
}

func TestRegistry_InvokeCoercesStringNumbers(t *testing.T) {
	r := mustRegistry(t, addTool())
	res, err := r.Invoke(t.Context(), nil, "add", json.RawMessage(`{"a":"10","b":"32"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res)
	}
	if got := resultText(t, res); got != "42" {
		t.Fatalf("expected 42, got %q", got)
	}
}

func TestRegistry_InvokeUnknownTool(t *testing.T) {
	r := mustRegistry(t, addTool())
	_, err := r.Invoke(t.Context(), nil, "nope", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestRegistry_InvokeInvalidArguments(t *testing.T) {
	called := false
	tool := NewTool[addArgs]("add", func(ctx context.Context, s sessions.Session, w ToolResponseWriter, r *ToolRequest[addArgs]) error {
		called = true
		return nil
	})
	r := mustRegistry(t, tool)

	cases := map[string]string{
		"missing required": `{"a":1}`,
		"not a number":     `{"a":"ten","b":1}`,
		"unknown field":    `{"a":1,"b":2,"c":3}`,
		"not an object":    `[1,2]`,
		"wrong kind":       `{"a":true,"b":1}`,
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.Invoke(t.Context(), nil, "add", json.RawMessage(args))
			var aerr *ArgumentsError
			if !errors.As(err, &aerr) || !errors.Is(err, ErrInvalidArguments) {
				t.Fatalf("expected *ArgumentsError, got %v", err)
			}
			if aerr.Tool != "add" || len(aerr.Problems) == 0 {
				t.Fatalf("unexpected error %+v", aerr)
			}
		})
	}
	if called {
		t.Fatalf("handler must not run for invalid arguments")
	}
}

func TestRegistry_ToolFailuresBecomeErrorResults(t *testing.T) {
	failing := TypedTool[struct{}](mcp.Tool{Name: "fail"}, func(ctx context.Context, s sessions.Session, _ struct{}) (*mcp.CallToolResult, error) {
		return nil, errors.New("Division by zero")
	})
	panicking := TypedTool[struct{}](mcp.Tool{Name: "boom"}, func(ctx context.Context, s sessions.Session, _ struct{}) (*mcp.CallToolResult, error) {
		panic("kaboom")
	})
	r := mustRegistry(t, failing, panicking)

	res, err := r.Invoke(t.Context(), nil, "fail", nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !res.IsError || resultText(t, res) != "Division by zero" {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = r.Invoke(t.Context(), nil, "boom", nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "kaboom") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRegistry_NilResultHasEmptyContent(t *testing.T) {
	quiet := TypedTool[struct{}](mcp.Tool{Name: "quiet"}, func(ctx context.Context, s sessions.Session, _ struct{}) (*mcp.CallToolResult, error) {
		return nil, nil
	})
	r := mustRegistry(t, quiet)
	res, err := r.Invoke(t.Context(), nil, "quiet", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := json.Marshal(res)
	if string(b) != `{"content":[]}` {
		t.Fatalf("unexpected encoding %s", b)
	}
}

func TestRegistry_PassesSession(t *testing.T) {
	var seen string
	who := TypedTool[struct{}](mcp.Tool{Name: "who"}, func(ctx context.Context, s sessions.Session, _ struct{}) (*mcp.CallToolResult, error) {
		seen = s.SessionID()
		return TextResult("ok"), nil
	})
	r := mustRegistry(t, who)
	sess := sessions.New(sessions.WithSessionID("sess-1"))
	if _, err := r.Invoke(t.Context(), sess, "who", nil); err != nil {
		t.Fatal(err)
	}
	if seen != "sess-1" {
		t.Fatalf("tool saw session %q", seen)
	}
}
