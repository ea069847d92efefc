package engine

import (
	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// messageKind is the closed set of message variants the engine understands.
type messageKind int

const (
	kindUnknown messageKind = iota
	kindInitialize
	kindInitialized
	kindPing
	kindToolsList
	kindToolsCall
	kindSetLevel
	kindCancelled
	kindProgress
	kindClientResponse
)

func (k messageKind) String() string {
	switch k {
	case kindInitialize:
		return "initialize"
	case kindInitialized:
		return "initialized"
	case kindPing:
		return "ping"
	case kindToolsList:
		return "tools_list"
	case kindToolsCall:
		return "tools_call"
	case kindSetLevel:
		return "set_level"
	case kindCancelled:
		return "cancelled"
	case kindProgress:
		return "progress"
	case kindClientResponse:
		return "client_response"
	default:
		return "unknown"
	}
}

// requiresReady reports whether the variant is rejected until the handshake
// has completed.
func (k messageKind) requiresReady() bool {
	switch k {
	case kindToolsList, kindToolsCall, kindSetLevel, kindUnknown:
		return true
	default:
		return false
	}
}

func classify(msg *jsonrpc.AnyMessage) messageKind {
	if msg.Method == "" {
		return kindClientResponse
	}
	switch mcp.Method(msg.Method) {
	case mcp.InitializeMethod:
		return kindInitialize
	case mcp.InitializedNotificationMethod, mcp.InitializedLegacyMethod:
		return kindInitialized
	case mcp.PingMethod:
		return kindPing
	case mcp.ToolsListMethod:
		return kindToolsList
	case mcp.ToolsCallMethod:
		return kindToolsCall
	case mcp.LoggingSetLevelMethod:
		return kindSetLevel
	case mcp.CancelledNotificationMethod:
		return kindCancelled
	case mcp.ProgressNotificationMethod:
		return kindProgress
	default:
		return kindUnknown
	}
}
