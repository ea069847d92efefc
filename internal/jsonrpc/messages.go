package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ProtocolVersion is the supported JSON-RPC protocol version.
const ProtocolVersion = "2.0"

// AnyMessage is a generic JSON-RPC message (request, notification, or response).
//
// ID distinguishes three cases: nil when the member is absent, a RequestID
// holding nil for an explicit null, and a RequestID holding a string or number.
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Request represents a JSON-RPC request (with an ID) or notification (without ID).
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Response represents a JSON-RPC response. A nil ID is written as null, which
// is how JSON-RPC addresses errors for requests whose id is unknown.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id"`
}

// NewResultResponse builds a successful JSON-RPC response object.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Result:         resultBytes,
		ID:             id,
	}, nil
}

// NewErrorResponse builds an error JSON-RPC response with the given code.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *Response {
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

// NewNotification builds a JSON-RPC notification carrying params.
func NewNotification(method string, params any) (*Request, error) {
	req := &Request{JSONRPCVersion: ProtocolVersion, Method: method}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = b
	}
	return req, nil
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Decode parses exactly one JSON-RPC message from a single line. Failures are
// reported as *DecodeError carrying the error code to answer with and, when it
// could be recovered, the request id.
func Decode(line []byte) (*AnyMessage, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, parseError("empty message", nil, nil)
	}

	dec := json.NewDecoder(bytes.NewReader(line))
	var value json.RawMessage
	if err := dec.Decode(&value); err != nil {
		return nil, parseError("parse error", SalvageID(line), err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, parseError("parse error", SalvageID(value), errors.New("more than one JSON value on line"))
	}

	var m AnyMessage
	if derr := m.decodeObject(value); derr != nil {
		return nil, derr
	}
	return &m, nil
}

// Encode renders v as a single line of JSON terminated by '\n'.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON implements custom JSON unmarshaling for AnyMessage
// It enforces JSON-RPC 2.0 semantics and validates message structure
func (m *AnyMessage) UnmarshalJSON(data []byte) error {
	if derr := m.decodeObject(data); derr != nil {
		return derr
	}
	return nil
}

func (m *AnyMessage) decodeObject(data []byte) *DecodeError {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return parseError("empty message", nil, nil)
	}
	switch data[0] {
	case '{':
	case '[':
		return invalidRequest("batch requests are not supported", nil)
	default:
		return invalidRequest("message must be a JSON object", nil)
	}

	// Every member is captured raw so that presence can be told apart from
	// an explicit null.
	type rawMessage struct {
		JSONRPCVersion json.RawMessage `json:"jsonrpc"`
		Method         json.RawMessage `json:"method"`
		Params         json.RawMessage `json:"params"`
		Result         json.RawMessage `json:"result"`
		Error          json.RawMessage `json:"error"`
		ID             json.RawMessage `json:"id"`
	}

	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return parseError("parse error", SalvageID(data), err)
	}

	var id *RequestID
	if len(raw.ID) > 0 {
		id = new(RequestID)
		if err := id.UnmarshalJSON(raw.ID); err != nil {
			return invalidRequest("id must be a string, number or null", nil)
		}
	}

	var version string
	if len(raw.JSONRPCVersion) == 0 || json.Unmarshal(raw.JSONRPCVersion, &version) != nil || version != ProtocolVersion {
		return invalidRequest(fmt.Sprintf("invalid JSON-RPC version: expected %q", ProtocolVersion), id)
	}

	var method string
	hasMethod := len(raw.Method) > 0
	if hasMethod {
		if err := json.Unmarshal(raw.Method, &method); err != nil || method == "" {
			return invalidRequest("method must be a non-empty string", id)
		}
	}

	hasResult := len(raw.Result) > 0
	var rpcErr *Error
	if len(raw.Error) > 0 {
		if err := json.Unmarshal(raw.Error, &rpcErr); err != nil {
			return invalidRequest("malformed error object", id)
		}
	}
	// A member that is present counts even when it is null.
	hasError := len(raw.Error) > 0

	if hasMethod {
		if hasResult || hasError {
			return invalidRequest("request message cannot have result or error fields", id)
		}
		if len(raw.Params) > 0 {
			switch raw.Params[0] {
			case '{', '[', 'n':
			default:
				return invalidRequest("params must be an object or array", id)
			}
		}
	} else {
		if hasResult && hasError {
			return invalidRequest("response message cannot have both result and error fields", id)
		}
		if !hasResult && !hasError {
			return invalidRequest("response message must have either result or error field", id)
		}
		if hasError && rpcErr == nil {
			return invalidRequest("error must be an object", id)
		}
		if id == nil {
			return invalidRequest("response message must have an id", nil)
		}
	}

	*m = AnyMessage{
		JSONRPCVersion: version,
		Method:         method,
		Params:         compact(raw.Params),
		Result:         compact(raw.Result),
		Error:          rpcErr,
		ID:             id,
	}
	return nil
}

func compact(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// Type returns "request" if the message is a request, "response" if it's a response, or "notification" if it's a notification
func (m *AnyMessage) Type() string {
	if m.Method != "" {
		if m.ID == nil {
			return "notification"
		}
		return "request"
	}
	return "response"
}

// AsRequest returns the message as a Request if it is a request message, otherwise nil
func (m *AnyMessage) AsRequest() *Request {
	if m.Method == "" {
		return nil
	}

	return &Request{
		JSONRPCVersion: m.JSONRPCVersion,
		Method:         m.Method,
		Params:         m.Params,
		ID:             m.ID,
	}
}

// AsResponse returns the message as a Response if it is a response message, otherwise nil
func (m *AnyMessage) AsResponse() *Response {
	if m.Method != "" {
		return nil
	}

	return &Response{
		JSONRPCVersion: m.JSONRPCVersion,
		Result:         m.Result,
		Error:          m.Error,
		ID:             m.ID,
	}
}
