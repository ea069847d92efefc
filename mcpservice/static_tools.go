package mcpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/sessions"
	"github.com/invopop/jsonschema"
)

// ToolHandler is the function signature used to handle a tool invocation.
// The arguments in req have already been validated and coerced against the
// tool's input schema.
type ToolHandler func(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error)

// StaticTool pairs an MCP tool descriptor with its handler.
//
// Concurrent marks the handler as safe to run alongside other calls of the
// same session. Calls to tools without the flag are executed one at a time,
// in arrival order.
type StaticTool struct {
	Descriptor mcp.Tool
	Handler    ToolHandler
	Concurrent bool
}

// ToolRequest is the container for tool call input and request metadata.
// It is generic over the typed argument struct A.
type ToolRequest[A any] struct {
	name string
	raw  json.RawMessage
	args A
}

func (r *ToolRequest[A]) Name() string                  { return r.name }
func (r *ToolRequest[A]) RawArguments() json.RawMessage { return r.raw }
func (r *ToolRequest[A]) Args() A                       { return r.args }

// NewTool constructs a writer-based tool with typed input A and a ToolRequest container.
//
// The input schema is reflected from A using invopop/jsonschema. Unless
// WithToolAllowAdditionalProperties(true) is given the schema declares
// additionalProperties=false and undeclared arguments are rejected before
// the handler runs.
func NewTool[A any](name string, fn func(ctx context.Context, session sessions.Session, w ToolResponseWriter, r *ToolRequest[A]) error, opts ...ToolOption) StaticTool {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	desc := mcp.Tool{
		Name:        name,
		Title:       cfg.title,
		Description: cfg.description,
		InputSchema: reflectToMCPInputSchema[A](cfg.allowAdditionalProperties),
	}

	handler := func(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error) {
		a, err := decodeArgs[A](req.Arguments, !cfg.allowAdditionalProperties)
		if err != nil {
			return Errorf("invalid arguments: %v", err), nil
		}
		w := newToolResponseWriter(ctx)
		r := &ToolRequest[A]{name: req.Name, raw: req.Arguments, args: a}
		if err := fn(ctx, session, w, r); err != nil {
			return nil, err
		}
		return w.Result(), nil
	}

	return StaticTool{Descriptor: desc, Handler: handler, Concurrent: cfg.concurrent}
}

// TypedTool wraps a strongly typed args function into a StaticTool.
// It unmarshals req.Arguments into A and invokes fn.
func TypedTool[A any](desc mcp.Tool, fn func(ctx context.Context, session sessions.Session, args A) (*mcp.CallToolResult, error), opts ...ToolOption) StaticTool {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return StaticTool{
		Descriptor: desc,
		Concurrent: cfg.concurrent,
		Handler: func(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error) {
			a, err := decodeArgs[A](req.Arguments, false)
			if err != nil {
				return Errorf("invalid arguments: %v", err), nil
			}
			return fn(ctx, session, a)
		},
	}
}

func decodeArgs[A any](raw json.RawMessage, strict bool) (A, error) {
	var a A
	if len(raw) == 0 {
		return a, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if strict {
		dec.DisallowUnknownFields()
	}
	err := dec.Decode(&a)
	return a, err
}

// ToolOption configures NewTool and TypedTool behavior.
type ToolOption func(*toolConfig)

type toolConfig struct {
	title                     string
	description               string
	allowAdditionalProperties bool // default false (strict)
	concurrent                bool
}

// WithToolDescription sets the tool description used in listings.
func WithToolDescription(desc string) ToolOption {
	return func(c *toolConfig) { c.description = desc }
}

// WithToolTitle sets a human friendly display name.
func WithToolTitle(title string) ToolOption {
	return func(c *toolConfig) { c.title = title }
}

// WithToolAllowAdditionalProperties controls whether unknown fields are allowed.
// When false (default), the generated schema sets additionalProperties=false and
// undeclared arguments are rejected.
func WithToolAllowAdditionalProperties(allow bool) ToolOption {
	return func(c *toolConfig) { c.allowAdditionalProperties = allow }
}

// WithToolConcurrent marks the tool as safe to run concurrently with other
// calls in the same session.
func WithToolConcurrent() ToolOption {
	return func(c *toolConfig) { c.concurrent = true }
}

// reflectToMCPInputSchema reflects a Go type A into a jsonschema.Schema, and
// converts it to the simplified mcp.ToolInputSchema.
func reflectToMCPInputSchema[A any](allowAdditional bool) mcp.ToolInputSchema {
	var additional *bool
	if !allowAdditional {
		additional = new(bool)
	}

	t := reflect.TypeFor[A]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct && t.NumField() == 0 {
		return mcp.ToolInputSchema{
			Type:                 mcp.SchemaTypeObject,
			Properties:           map[string]mcp.SchemaProperty{},
			AdditionalProperties: additional,
		}
	}

	r := &jsonschema.Reflector{
		DoNotReference: true, // inline defs
		// Only named structs are registered as definitions; expanding an
		// anonymous type would look up an empty name.
		ExpandedStruct:            t.Kind() == reflect.Struct && t.Name() != "",
		AllowAdditionalProperties: allowAdditional,
	}
	s := r.ReflectFromType(t)

	// Only object schemas map cleanly to MCP ToolInputSchema. If not an object,
	// expose an empty object with the configured additionalProperties policy.
	if s == nil || s.Type != mcp.SchemaTypeObject {
		return mcp.ToolInputSchema{
			Type:                 mcp.SchemaTypeObject,
			Properties:           map[string]mcp.SchemaProperty{},
			AdditionalProperties: additional,
		}
	}

	props := make(map[string]mcp.SchemaProperty)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = toMCPProperty(el.Value)
		}
	}

	return mcp.ToolInputSchema{
		Type:                 mcp.SchemaTypeObject,
		Properties:           props,
		Required:             append([]string(nil), s.Required...),
		AdditionalProperties: additional,
	}
}

// toMCPProperty recursively maps a jsonschema.Schema to the simplified MCP SchemaProperty.
func toMCPProperty(s *jsonschema.Schema) mcp.SchemaProperty {
	if s == nil {
		return mcp.SchemaProperty{}
	}
	p := mcp.SchemaProperty{
		Type:        s.Type,
		Description: s.Description,
		Default:     s.Default,
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Type == mcp.SchemaTypeArray && s.Items != nil {
		item := toMCPProperty(s.Items)
		p.Items = &item
	}
	if s.Type == mcp.SchemaTypeObject && s.Properties != nil {
		m := make(map[string]mcp.SchemaProperty, s.Properties.Len())
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			m[el.Key] = toMCPProperty(el.Value)
		}
		p.Properties = m
		p.Required = append([]string(nil), s.Required...)
	}
	return p
}

// TextResult is a small helper to build a text CallToolResult.
func TextResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: s}}}
}

// Errorf returns an error CallToolResult with a single text block and IsError=true.
func Errorf(format string, a ...any) *mcp.CallToolResult {
	msg := fmt.Sprintf(format, a...)
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: msg}}, IsError: true}
}
