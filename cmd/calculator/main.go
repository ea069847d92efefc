// Command calculator is a small calculator that runs either as a one-shot
// CLI or as an MCP server on stdio:
//
//	calculator add --a 10 --b 32
//	calculator multiply 7 6
//	calculator --mcp [--config calculator.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ggoodman/mcp-stdio-go/examples/calculator"
	"github.com/ggoodman/mcp-stdio-go/internal/config"
	"github.com/ggoodman/mcp-stdio-go/internal/toolcli"
	"github.com/ggoodman/mcp-stdio-go/stdio"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("calculator", flag.ContinueOnError)
	fs.SetOutput(stderr)
	mcpMode := fs.Bool("mcp", false, "Run as MCP server on stdio instead of CLI")
	configPath := fs.String("config", "", "Path to a YAML configuration file (MCP mode)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: calculator [--mcp [--config file]] | <tool> [flags] [args]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return toolcli.ExitOK
		}
		return toolcli.ExitUsage
	}

	if *mcpMode {
		return serve(ctx, *configPath, stdin, stdout, stderr)
	}

	reg, err := calculator.NewRegistry()
	if err != nil {
		fmt.Fprintf(stderr, "calculator: %v\n", err)
		return toolcli.ExitToolError
	}
	r := &toolcli.Runner{Registry: reg, Program: "calculator", Stdout: stdout, Stderr: stderr}
	return r.Run(ctx, fs.Args())
}

func serve(ctx context.Context, configPath string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Load(config.Default(), configPath)
	if err != nil {
		fmt.Fprintf(stderr, "calculator: %v\n", err)
		return toolcli.ExitUsage
	}

	// Logs go to stderr; stdout carries the protocol.
	log, levelVar := cfg.Logger(stderr)
	slog.SetDefault(log)

	srv, err := calculator.NewServer(cfg.ServerOptions(levelVar)...)
	if err != nil {
		log.ErrorContext(ctx, "calculator.server.fail", slog.String("err", err.Error()))
		return 1
	}

	opts := append(cfg.HandlerOptions(log), stdio.WithIO(stdin, stdout))
	if err := stdio.NewHandler(srv, opts...).Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.ErrorContext(ctx, "calculator.serve.fail", slog.String("err", err.Error()))
		return 1
	}
	return 0
}
