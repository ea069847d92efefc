package jsonrpc

import "fmt"

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	// ErrorCodeParseError indicates invalid JSON was received by the server.
	ErrorCodeParseError ErrorCode = -32700
	// ErrorCodeInvalidRequest indicates the JSON sent is not a valid Request object.
	ErrorCodeInvalidRequest ErrorCode = -32600
	// ErrorCodeMethodNotFound indicates the method does not exist / is not available.
	ErrorCodeMethodNotFound ErrorCode = -32601
	// ErrorCodeInvalidParams indicates invalid method parameters.
	ErrorCodeInvalidParams ErrorCode = -32602
	// ErrorCodeInternalError indicates an internal JSON-RPC error.
	ErrorCodeInternalError ErrorCode = -32603
	// ErrorCodeRequestCancelled indicates the peer cancelled the request before it completed.
	ErrorCodeRequestCancelled ErrorCode = -32800
)

// DecodeError reports why a line could not be turned into a message. Code is
// the JSON-RPC error code a peer should see; ID is set when the request id
// could be recovered from the input.
type DecodeError struct {
	Code   ErrorCode
	Reason string
	ID     *RequestID
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Response renders the decode failure as an error response addressed to the
// recovered id. It returns nil when no id was recovered.
func (e *DecodeError) Response() *Response {
	if e.ID == nil {
		return nil
	}
	return NewErrorResponse(e.ID, e.Code, e.Reason, nil)
}

func parseError(reason string, id *RequestID, err error) *DecodeError {
	return &DecodeError{Code: ErrorCodeParseError, Reason: reason, ID: id, Err: err}
}

func invalidRequest(reason string, id *RequestID) *DecodeError {
	return &DecodeError{Code: ErrorCodeInvalidRequest, Reason: reason, ID: id}
}
