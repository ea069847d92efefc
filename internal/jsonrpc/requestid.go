package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID represents a JSON-RPC ID that can be a string, a number or an
// explicit null. Numbers keep their original decimal text so that an id is
// echoed back exactly as the peer sent it.
//
// A nil *RequestID means the id member was absent (a notification). A non-nil
// RequestID whose value is nil is an explicit null.
//
// RequestID values are comparable and may be used as map keys: the string id
// "1" and the numeric id 1 are distinct.
type RequestID struct {
	value any // string, json.Number or nil
}

// NewRequestID creates a RequestID from a string or number. Any other value,
// including nil, yields an explicit null id.
func NewRequestID(value any) *RequestID {
	switch v := value.(type) {
	case string:
		return &RequestID{value: v}
	case json.Number:
		return &RequestID{value: v}
	case int:
		return &RequestID{value: json.Number(strconv.FormatInt(int64(v), 10))}
	case int8:
		return &RequestID{value: json.Number(strconv.FormatInt(int64(v), 10))}
	case int16:
		return &RequestID{value: json.Number(strconv.FormatInt(int64(v), 10))}
	case int32:
		return &RequestID{value: json.Number(strconv.FormatInt(int64(v), 10))}
	case int64:
		return &RequestID{value: json.Number(strconv.FormatInt(v, 10))}
	case uint:
		return &RequestID{value: json.Number(strconv.FormatUint(uint64(v), 10))}
	case uint8:
		return &RequestID{value: json.Number(strconv.FormatUint(uint64(v), 10))}
	case uint16:
		return &RequestID{value: json.Number(strconv.FormatUint(uint64(v), 10))}
	case uint32:
		return &RequestID{value: json.Number(strconv.FormatUint(uint64(v), 10))}
	case uint64:
		return &RequestID{value: json.Number(strconv.FormatUint(v, 10))}
	case float32:
		return &RequestID{value: json.Number(strconv.FormatFloat(float64(v), 'g', -1, 32))}
	case float64:
		return &RequestID{value: json.Number(strconv.FormatFloat(v, 'g', -1, 64))}
	default:
		return &RequestID{value: nil}
	}
}

// NullRequestID returns an explicit null id.
func NullRequestID() *RequestID { return &RequestID{} }

// String returns the string representation of the ID. Numeric ids render
// as their decimal text and explicit nulls as "null".
func (id *RequestID) String() string {
	if id == nil {
		return ""
	}
	switch v := id.value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return "null"
	}
}

// Value returns the underlying value: a string, a json.Number or nil.
func (id *RequestID) Value() any {
	if id == nil {
		return nil
	}
	return id.value
}

// IsNil returns true if the ID is absent or an explicit null.
func (id *RequestID) IsNil() bool {
	if id == nil {
		return true
	}
	return id.value == nil
}

// IsNumber reports whether the id was a JSON number.
func (id *RequestID) IsNumber() bool {
	if id == nil {
		return false
	}
	_, ok := id.value.(json.Number)
	return ok
}

// MarshalJSON implements json.Marshaler.
func (id *RequestID) MarshalJSON() ([]byte, error) {
	if id == nil {
		return []byte("null"), nil
	}
	switch v := id.value.(type) {
	case string:
		return json.Marshal(v)
	case json.Number:
		return []byte(v), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("JSON-RPC ID must be a string, number or null, got empty input")
	}
	switch data[0] {
	case 'n':
		if string(data) != "null" {
			break
		}
		id.value = nil
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid JSON-RPC ID: %w", err)
		}
		id.value = s
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid JSON-RPC ID: %w", err)
		}
		id.value = n
		return nil
	}
	return fmt.Errorf("JSON-RPC ID must be a string, number or null, got: %s", string(data))
}
