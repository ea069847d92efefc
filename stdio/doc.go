// Package stdio implements a single-connection MCP transport over
// stdin/stdout. It is intended for embedding servers as subprocesses and for
// local development, where spawning a child process and piping JSON is
// simpler than running a network server.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Identity         : OS user (lightweight implicit principal)
//	Sessions         : one ephemeral session per Serve call
//	Framing          : newline-delimited JSON-RPC 2.0, one value per line
//	Scheduling       : arrival order; tools marked concurrent run in parallel
//
// Options allow supplying alternate io.Reader / io.Writer, a custom logger,
// a maximum line size and a shutdown timeout.
//
// Example:
//
//	reg, _ := mcpservice.NewRegistry(myTools...)
//	srv := mcpservice.NewServer(
//	    mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "my-stdio-server", Version: "0.1.0"}),
//	    mcpservice.WithTools(reg),
//	)
//	h := stdio.NewHandler(srv)
//	if err := h.Serve(context.Background()); err != nil { log.Fatal(err) }
package stdio
