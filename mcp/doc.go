// Package mcp contains the Model Context Protocol data types and constants
// used by the stdio server: the initialize handshake, tool listing and
// invocation, logging levels and the cancellation and progress
// notifications. Types mirror the wire representation (exported structs with
// json tags, string constants for method names) and carry no transport logic.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod). InitializedLegacyMethod is the bare "initialized"
// some older clients send in place of notifications/initialized.
//
// # Tool Schemas
//
// ToolInputSchema is a deliberately small subset of JSON Schema: an object
// with typed properties, a required list and an optional
// additionalProperties switch. It is what the server validates and coerces
// tool arguments against.
//
// Example (tool result construction):
//
//	res := &mcp.CallToolResult{
//	    Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: "42"}},
//	}
//
// # Compatibility
//
// LatestProtocolVersion is the preferred protocol date; SupportedProtocolVersions
// lists every version the server accepts from a client.
package mcp
