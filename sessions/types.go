package sessions

import (
	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// Session represents a negotiated MCP session as seen by tool code.
// Implementations MUST be safe for concurrent use.
type Session interface {
	SessionID() string
	UserID() string
	// ProtocolVersion is the negotiated MCP protocol version. It is empty
	// until the initialize request has been accepted.
	ProtocolVersion() string
	ClientInfo() ClientInfo
	ClientCapabilities() mcp.ClientCapabilities
}

// ClientInfo identifies the client connecting to the server.
type ClientInfo struct {
	Name    string
	Version string
}
