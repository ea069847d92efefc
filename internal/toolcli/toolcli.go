// Package toolcli runs a single registered tool from command-line arguments.
// Flags are derived from the tool's input schema; required parameters may
// also be given positionally in declaration order.
package toolcli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
	"github.com/ggoodman/mcp-stdio-go/sessions"
)

// Exit codes returned by Run.
const (
	ExitOK        = 0
	ExitToolError = 1
	ExitUsage     = 2
)

// ErrUsage marks errors caused by the command line itself.
var ErrUsage = errors.New("usage error")

// Runner executes tools from a registry.
type Runner struct {
	Registry *mcpservice.Registry
	Program  string
	Stdout   io.Writer
	Stderr   io.Writer
}

// Run executes args[0] as a tool with the remaining arguments and returns
// the process exit code. Text content is written to Stdout, one block per
// line; error results go to Stderr.
func (r *Runner) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		r.usage(r.Stderr)
		return ExitUsage
	}
	switch args[0] {
	case "help", "-h", "-help", "--help":
		r.usage(r.Stdout)
		return ExitOK
	}

	res, err := r.Invoke(ctx, args[0], args[1:])
	switch {
	case errors.Is(err, flag.ErrHelp):
		return ExitOK
	case err != nil:
		fmt.Fprintf(r.Stderr, "%s: %v\n", r.Program, err)
		return ExitUsage
	}

	out := r.Stdout
	if res.IsError {
		out = r.Stderr
	}
	for _, block := range res.Content {
		if block.Type == mcp.ContentTypeText {
			fmt.Fprintln(out, block.Text)
		}
	}
	if res.IsError {
		return ExitToolError
	}
	return ExitOK
}

// Invoke parses args against the named tool's schema and runs it. Errors are
// usage problems; tool failures are reported in the result.
func (r *Runner) Invoke(ctx context.Context, name string, args []string) (*mcp.CallToolResult, error) {
	tool, ok := r.Registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown tool %q", ErrUsage, name)
	}
	arguments, err := r.parse(tool.Descriptor, args)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(arguments)
	if err != nil {
		return nil, err
	}

	res, err := r.Registry.Invoke(ctx, sessions.New(), name, raw)
	if err != nil {
		var aerr *mcpservice.ArgumentsError
		if errors.As(err, &aerr) {
			return nil, fmt.Errorf("%w: %s", ErrUsage, strings.Join(aerr.Problems, "; "))
		}
		return nil, err
	}
	return res, nil
}

func (r *Runner) parse(desc mcp.Tool, args []string) (map[string]any, error) {
	fs := flag.NewFlagSet(r.Program+" "+desc.Name, flag.ContinueOnError)
	fs.SetOutput(r.Stderr)

	names := make([]string, 0, len(desc.InputSchema.Properties))
	for name := range desc.InputSchema.Properties {
		names = append(names, name)
	}
	slices.Sort(names)

	values := make(map[string]*schemaValue, len(names))
	for _, name := range names {
		prop := desc.InputSchema.Properties[name]
		v := &schemaValue{kind: prop.Type}
		values[name] = v
		usage := prop.Description
		if slices.Contains(desc.InputSchema.Required, name) {
			usage += " (required)"
		}
		fs.Var(v, name, strings.TrimSpace(usage))
	}
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s %s [flags] %s\n", r.Program, desc.Name, positionalHint(desc))
		if desc.Description != "" {
			fmt.Fprintf(fs.Output(), "\n%s\n\n", desc.Description)
		}
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	// Remaining arguments fill required parameters not given as flags.
	rest := fs.Args()
	for _, name := range desc.InputSchema.Required {
		if len(rest) == 0 {
			break
		}
		v, ok := values[name]
		if !ok || v.set {
			continue
		}
		if err := v.Set(rest[0]); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUsage, name, err)
		}
		rest = rest[1:]
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %q", ErrUsage, rest)
	}

	out := make(map[string]any, len(values))
	for name, v := range values {
		if v.set {
			out[name] = v.value()
		}
	}
	return out, nil
}

func positionalHint(desc mcp.Tool) string {
	parts := make([]string, 0, len(desc.InputSchema.Required))
	for _, name := range desc.InputSchema.Required {
		parts = append(parts, "["+name+"]")
	}
	return strings.Join(parts, " ")
}

func (r *Runner) usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <tool> [flags] [args]\n\nTools:\n", r.Program)
	for _, t := range r.Registry.List() {
		fmt.Fprintf(w, "  %-12s %s\n", t.Name, t.Description)
	}
}

// schemaValue collects the raw text of one flag. Conversion to the declared
// type is left to the registry's argument coercion.
type schemaValue struct {
	kind string
	set  bool
	raw  []string
}

func (v *schemaValue) String() string {
	if v == nil {
		return ""
	}
	return strings.Join(v.raw, ",")
}

func (v *schemaValue) Set(s string) error {
	if v.kind == mcp.SchemaTypeObject && !json.Valid([]byte(s)) {
		return errors.New("expected a JSON object")
	}
	v.set = true
	if v.kind == mcp.SchemaTypeArray {
		v.raw = append(v.raw, s)
		return nil
	}
	v.raw = []string{s}
	return nil
}

// IsBoolFlag lets boolean parameters be passed as a bare --name.
func (v *schemaValue) IsBoolFlag() bool { return v.kind == mcp.SchemaTypeBoolean }

func (v *schemaValue) value() any {
	switch v.kind {
	case mcp.SchemaTypeArray:
		items := make([]any, len(v.raw))
		for i, s := range v.raw {
			items[i] = s
		}
		return items
	case mcp.SchemaTypeObject:
		return json.RawMessage(v.raw[0])
	default:
		return v.raw[0]
	}
}
