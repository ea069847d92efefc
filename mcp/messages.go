package mcp

import "encoding/json"

// Method is an MCP method identifier used in JSON-RPC messages.
type Method string

// MCP method names and notifications.
const (
	// Initialization
	InitializeMethod              Method = "initialize"
	InitializedNotificationMethod Method = "notifications/initialized"
	// InitializedLegacyMethod is the bare spelling some older clients use
	// for the initialized notification.
	InitializedLegacyMethod Method = "initialized"

	// Tools
	ToolsListMethod Method = "tools/list"
	ToolsCallMethod Method = "tools/call"

	// Logging
	LoggingSetLevelMethod Method = "logging/setLevel"

	// General
	PingMethod                  Method = "ping"
	CancelledNotificationMethod Method = "notifications/cancelled"
	ProgressNotificationMethod  Method = "notifications/progress"
)

// PaginatedRequest carries a cursor for paginated list requests.
type PaginatedRequest struct {
	Cursor string `json:"cursor,omitzero"`
}

// PaginatedResult carries a cursor for continuing pagination.
type PaginatedResult struct {
	NextCursor string `json:"nextCursor,omitzero"`
}

// BaseMetadata carries optional metadata for responses.
type BaseMetadata struct {
	Meta map[string]any `json:"_meta,omitempty"`
}

// ProgressToken is an identifier used to correlate progress updates.
// It may be a string or number.
type ProgressToken any // string | number

// RequestMeta is the _meta member a client may attach to a request.
type RequestMeta struct {
	ProgressToken ProgressToken `json:"progressToken,omitempty"`
}

// CancelledNotification informs the peer that a request was canceled.
// RequestID holds the raw id so numeric and string ids stay distinct.
type CancelledNotification struct {
	RequestID json.RawMessage `json:"requestId"`
	Reason    string          `json:"reason,omitzero"`
}

// ProgressNotificationParams conveys progress of a long-running operation.
type ProgressNotificationParams struct {
	ProgressToken ProgressToken `json:"progressToken"`
	Progress      float64       `json:"progress"`
	Total         float64       `json:"total,omitzero"`
	Message       string        `json:"message,omitzero"`
}

// InitializeRequest starts the MCP initialization handshake.
type InitializeRequest struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ImplementationInfo `json:"clientInfo"`
}

// InitializeResult returns negotiated capabilities and server info.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ImplementationInfo `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitzero"`
	BaseMetadata
}

// Tools
// ListToolsRequest requests the set of available tools.
type ListToolsRequest struct {
	PaginatedRequest
}

// ListToolsResult returns the available tools.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
	PaginatedResult
	BaseMetadata
}

// CallToolRequestReceived is the server-received representation for a tool call.
type CallToolRequestReceived struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Meta      *RequestMeta    `json:"_meta,omitempty"`
}

// CallToolResult represents a tool invocation result.
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitzero"`
	// StructuredContent optionally carries a typed object alongside the
	// human readable content.
	StructuredContent map[string]any `json:"structuredContent,omitempty"`
	BaseMetadata
}

// Logging
// SetLevelRequest sets the server logging level.
type SetLevelRequest struct {
	Level LoggingLevel `json:"level"`
}

// EmptyResult is returned for operations that do not return data.
type EmptyResult struct {
	BaseMetadata
}
