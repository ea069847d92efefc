package mcpservice

import (
	"log/slog"

	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// Server holds everything the dispatcher needs to answer a session: identity,
// protocol preferences and the tool registry. A Server is shared by every
// session it serves and is read-only once serving starts.
type Server struct {
	info              mcp.ImplementationInfo
	preferredVersion  string
	supportedVersions []string
	instructions      string
	tools             *Registry
	levelVar          *slog.LevelVar
	pageSize          int
}

// NewServer builds a Server using functional options. Without WithTools the
// server exposes an empty registry.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		preferredVersion:  mcp.LatestProtocolVersion,
		supportedVersions: mcp.SupportedProtocolVersions,
		pageSize:          DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tools == nil {
		s.tools = &Registry{}
	}
	return s
}

// WithServerInfo sets the implementation info returned from initialize.
func WithServerInfo(info mcp.ImplementationInfo) ServerOption {
	return func(s *Server) { s.info = info }
}

// WithPreferredProtocolVersion sets the version offered when the client asks
// for one the server does not support. Empty values are ignored.
func WithPreferredProtocolVersion(version string) ServerOption {
	return func(s *Server) {
		if version != "" {
			s.preferredVersion = version
		}
	}
}

// WithInstructions sets static human-readable instructions returned during initialize.
func WithInstructions(instr string) ServerOption {
	return func(s *Server) { s.instructions = instr }
}

// WithTools wires the registry that backs tools/list and tools/call.
func WithTools(r *Registry) ServerOption {
	return func(s *Server) { s.tools = r }
}

// WithLoggingLevelVar advertises the logging capability and lets clients
// adjust lv through logging/setLevel.
func WithLoggingLevelVar(lv *slog.LevelVar) ServerOption {
	return func(s *Server) { s.levelVar = lv }
}

// WithPageSize sets the tools/list page size. A non-positive value is ignored.
func WithPageSize(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func (s *Server) ServerInfo() mcp.ImplementationInfo { return s.info }

func (s *Server) Instructions() string { return s.instructions }

func (s *Server) Tools() *Registry { return s.tools }

func (s *Server) PageSize() int { return s.pageSize }

// NegotiateProtocolVersion returns the client's requested version when the
// server supports it and the server's preferred version otherwise.
func (s *Server) NegotiateProtocolVersion(requested string) string {
	for _, v := range s.supportedVersions {
		if v == requested {
			return requested
		}
	}
	return s.preferredVersion
}

// Capabilities describes the features advertised in the initialize result.
func (s *Server) Capabilities() mcp.ServerCapabilities {
	var caps mcp.ServerCapabilities
	caps.Tools = &struct {
		ListChanged bool `json:"listChanged"`
	}{}
	if s.levelVar != nil {
		caps.Logging = &struct{}{}
	}
	return caps
}
