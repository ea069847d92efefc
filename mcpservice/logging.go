package mcpservice

import (
	"errors"
	"log/slog"

	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// ErrInvalidLoggingLevel indicates the provided level is not one of the
// protocol-defined LoggingLevel values.
var ErrInvalidLoggingLevel = errors.New("invalid logging level")

// ErrLoggingUnsupported is returned by SetLogLevel when the server was built
// without WithLoggingLevelVar.
var ErrLoggingUnsupported = errors.New("logging capability not configured")

// SlogLevel maps an MCP logging level onto the nearest slog level. Notice
// folds into info and everything above error folds into error.
func SlogLevel(level mcp.LoggingLevel) (slog.Level, error) {
	switch level {
	case mcp.LoggingLevelDebug:
		return slog.LevelDebug, nil
	case mcp.LoggingLevelInfo, mcp.LoggingLevelNotice:
		return slog.LevelInfo, nil
	case mcp.LoggingLevelWarning:
		return slog.LevelWarn, nil
	case mcp.LoggingLevelError, mcp.LoggingLevelCritical, mcp.LoggingLevelAlert, mcp.LoggingLevelEmergency:
		return slog.LevelError, nil
	default:
		return 0, ErrInvalidLoggingLevel
	}
}

// SetLogLevel applies a logging/setLevel request to the configured level var.
func (s *Server) SetLogLevel(level mcp.LoggingLevel) error {
	if s.levelVar == nil {
		return ErrLoggingUnsupported
	}
	lvl, err := SlogLevel(level)
	if err != nil {
		return err
	}
	s.levelVar.Set(lvl)
	return nil
}
