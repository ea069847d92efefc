package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/sessions"
)

var (
	// ErrDuplicateTool is returned when registering a name that is already taken.
	ErrDuplicateTool = errors.New("duplicate tool")
	// ErrUnknownTool is returned when a call names a tool that was never registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrRegistryFrozen is returned when registering after Freeze.
	ErrRegistryFrozen = errors.New("tool registry is frozen")
	// ErrInvalidTool is returned for definitions without a name or handler.
	ErrInvalidTool = errors.New("invalid tool definition")
	// ErrInvalidCursor is returned by ListPage for cursors it did not issue.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// DefaultPageSize is the number of tools returned per tools/list page.
const DefaultPageSize = 50

// Registry owns the set of tools a server exposes. Tools are listed in
// registration order. Once frozen, typically when a transport starts
// serving, the registry rejects further registrations and is read
// concurrently without contention.
type Registry struct {
	mu     sync.RWMutex
	tools  []StaticTool
	index  map[string]int
	frozen bool
}

// NewRegistry constructs a Registry holding defs. It fails on the first
// definition Register would reject.
func NewRegistry(defs ...StaticTool) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(defs))}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(def StaticTool) error {
	name := def.Descriptor.Name
	if name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidTool)
	}
	if def.Handler == nil {
		return fmt.Errorf("%w: tool %q has no handler", ErrInvalidTool, name)
	}
	if def.Descriptor.InputSchema.Type == "" {
		def.Descriptor.InputSchema.Type = mcp.SchemaTypeObject
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if _, exists := r.index[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.index[name] = len(r.tools)
	r.tools = append(r.tools, def)
	return nil
}

// Freeze makes the registry immutable. It is idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// List returns every tool descriptor in registration order.
func (r *Registry) List() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcp.Tool, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.Descriptor
	}
	return out
}

// ListPage returns up to size descriptors starting at cursor, along with
// the cursor of the following page ("" when exhausted). An empty cursor
// starts from the beginning.
func (r *Registry) ListPage(cursor string, size int) ([]mcp.Tool, string, error) {
	if size <= 0 {
		size = DefaultPageSize
	}
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, "", fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
		}
		start = n
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if start > len(r.tools) {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	end := min(start+size, len(r.tools))
	items := make([]mcp.Tool, 0, end-start)
	for _, t := range r.tools[start:end] {
		items = append(items, t.Descriptor)
	}
	next := ""
	if end < len(r.tools) {
		next = strconv.Itoa(end)
	}
	return items, next, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (StaticTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return StaticTool{}, false
	}
	return r.tools[i], true
}

// Call is a validated invocation whose arguments have been coerced to the
// tool's input schema. It is produced by Prepare and executed by Run.
type Call struct {
	Tool      StaticTool
	Arguments json.RawMessage
	Meta      *mcp.RequestMeta
}

// Name returns the tool name.
func (c *Call) Name() string { return c.Tool.Descriptor.Name }

// Prepare resolves the named tool and validates arguments against its input
// schema. It returns an error wrapping ErrUnknownTool or an *ArgumentsError.
func (r *Registry) Prepare(name string, arguments json.RawMessage) (*Call, error) {
	tool, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	coerced, problems := CoerceArguments(tool.Descriptor.InputSchema, arguments)
	if len(problems) > 0 {
		return nil, &ArgumentsError{Tool: name, Problems: problems}
	}
	b, err := json.Marshal(coerced)
	if err != nil {
		return nil, &ArgumentsError{Tool: name, Problems: []string{err.Error()}}
	}
	return &Call{Tool: tool, Arguments: b}, nil
}

// Run executes the call. Failures of the tool body, including panics, are
// reported as a result with IsError set; Run itself never fails.
func (c *Call) Run(ctx context.Context, session sessions.Session) (res *mcp.CallToolResult) {
	defer func() {
		if p := recover(); p != nil {
			res = Errorf("tool %q panicked: %v", c.Name(), p)
		}
	}()

	req := &mcp.CallToolRequestReceived{Name: c.Name(), Arguments: c.Arguments, Meta: c.Meta}
	out, err := c.Tool.Handler(ctx, session, req)
	if err != nil {
		return Errorf("%v", err)
	}
	if out == nil {
		out = &mcp.CallToolResult{}
	}
	if out.Content == nil {
		out.Content = []mcp.ContentBlock{}
	}
	return out
}

// Invoke prepares and runs a tool call in one step.
func (r *Registry) Invoke(ctx context.Context, session sessions.Session, name string, arguments json.RawMessage) (*mcp.CallToolResult, error) {
	call, err := r.Prepare(name, arguments)
	if err != nil {
		return nil, err
	}
	return call.Run(ctx, session), nil
}
