// Package config loads the settings of an MCP stdio server binary. Values are
// layered: built-in defaults, then an optional YAML file, then MCP_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/ggoodman/mcp-stdio-go/internal/logctx"
	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
	"github.com/ggoodman/mcp-stdio-go/stdio"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the flat settings record. Fields left out of the YAML file and
// the environment keep their defaults.
type Config struct {
	// Name reported as serverInfo.name. ENV: MCP_SERVER_NAME
	Name string `yaml:"name" env:"MCP_SERVER_NAME"`
	// Version reported as serverInfo.version. ENV: MCP_SERVER_VERSION
	Version string `yaml:"version" env:"MCP_SERVER_VERSION"`
	// Instructions returned from initialize. ENV: MCP_INSTRUCTIONS
	Instructions string `yaml:"instructions" env:"MCP_INSTRUCTIONS"`
	// ProtocolVersion offered when the client asks for an unsupported one.
	// ENV: MCP_PROTOCOL_VERSION
	ProtocolVersion string `yaml:"protocolVersion" env:"MCP_PROTOCOL_VERSION"`

	// MaxLineBytes bounds one inbound line. ENV: MCP_MAX_LINE_BYTES
	MaxLineBytes int `yaml:"maxLineBytes" env:"MCP_MAX_LINE_BYTES,strict"`
	// ShutdownTimeout bounds the wait for outstanding tool calls.
	// ENV: MCP_SHUTDOWN_TIMEOUT
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"MCP_SHUTDOWN_TIMEOUT,strict"`
	// PageSize is the tools/list page size. ENV: MCP_PAGE_SIZE
	PageSize int `yaml:"pageSize" env:"MCP_PAGE_SIZE,strict"`

	// LogLevel is one of debug, info, warn, error. ENV: MCP_LOG_LEVEL
	LogLevel string `yaml:"logLevel" env:"MCP_LOG_LEVEL"`
	// LogFormat is text or json. ENV: MCP_LOG_FORMAT
	LogFormat string `yaml:"logFormat" env:"MCP_LOG_FORMAT"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ProtocolVersion: mcp.LatestProtocolVersion,
		MaxLineBytes:    stdio.DefaultMaxLineBytes,
		ShutdownTimeout: stdio.DefaultShutdownTimeout,
		PageSize:        mcpservice.DefaultPageSize,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load applies the YAML file at path (skipped when path is empty) and then
// the environment on top of base, and validates the result.
func Load(base Config, path string) (Config, error) {
	cfg := base
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.ProtocolVersion != "" && !mcp.IsSupportedProtocolVersion(c.ProtocolVersion) {
		return fmt.Errorf("%w: unsupported protocol version %q", ErrInvalid, c.ProtocolVersion)
	}
	if c.MaxLineBytes <= 0 {
		return fmt.Errorf("%w: maxLineBytes must be positive", ErrInvalid)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdownTimeout must be positive", ErrInvalid)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("%w: pageSize must be positive", ErrInvalid)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logFormat must be text or json, got %q", ErrInvalid, c.LogFormat)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: logLevel: %v", ErrInvalid, err)
	}
	return lvl, nil
}

// Logger builds the process logger writing to w. The returned level var
// starts at LogLevel and is what logging/setLevel adjusts.
func (c Config) Logger(w io.Writer) (*slog.Logger, *slog.LevelVar) {
	levelVar := &slog.LevelVar{}
	if lvl, err := c.Level(); err == nil {
		levelVar.Set(lvl)
	}
	opts := &slog.HandlerOptions{Level: levelVar}

	var h slog.Handler
	if strings.EqualFold(c.LogFormat, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(logctx.New(h)), levelVar
}

// ServerOptions maps the settings onto mcpservice options. Name and version
// only override the server's own defaults when set.
func (c Config) ServerOptions(levelVar *slog.LevelVar) []mcpservice.ServerOption {
	opts := []mcpservice.ServerOption{
		mcpservice.WithPreferredProtocolVersion(c.ProtocolVersion),
		mcpservice.WithPageSize(c.PageSize),
		mcpservice.WithLoggingLevelVar(levelVar),
	}
	if c.Name != "" {
		opts = append(opts, mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: c.Name, Version: c.Version}))
	}
	if c.Instructions != "" {
		opts = append(opts, mcpservice.WithInstructions(c.Instructions))
	}
	return opts
}

// HandlerOptions maps the settings onto stdio handler options.
func (c Config) HandlerOptions(log *slog.Logger) []stdio.Option {
	return []stdio.Option{
		stdio.WithLogger(log),
		stdio.WithMaxLineBytes(c.MaxLineBytes),
		stdio.WithShutdownTimeout(c.ShutdownTimeout),
	}
}
