// Package mcpservice describes what an MCP server offers: its identity,
// protocol preferences and a registry of tools. It holds no transport or
// session logic; the engine consults a Server when answering requests.
//
// Tools are registered once at startup and the registry is frozen when
// serving begins:
//
//	type AddArgs struct {
//	    A float64 `json:"a" jsonschema:"description=First number"`
//	    B float64 `json:"b" jsonschema:"description=Second number"`
//	}
//
//	add := mcpservice.NewTool("add",
//	    func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[AddArgs]) error {
//	        return w.AppendTextf("%g", r.Args().A+r.Args().B)
//	    },
//	    mcpservice.WithToolDescription("Add two numbers"),
//	    mcpservice.WithToolConcurrent(),
//	)
//
//	reg, err := mcpservice.NewRegistry(add)
//	srv := mcpservice.NewServer(
//	    mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "calc", Version: "1.0.0"}),
//	    mcpservice.WithTools(reg),
//	)
//
// Input schemas are reflected from the argument type. Before a handler runs,
// arguments are checked and coerced against that schema (see
// CoerceArguments), so a client sending {"a":"10"} reaches the handler as
// the number 10.
package mcpservice
