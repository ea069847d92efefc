package jsonrpc

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestDecode_Classification(t *testing.T) {
	cases := []struct {
		name     string
		line     string
		wantType string
		wantID   string
	}{
		{"request number id", `{"jsonrpc":"2.0","id":1,"method":"ping"}`, "request", "1"},
		{"request string id", `{"jsonrpc":"2.0","id":"abc","method":"ping"}`, "request", "abc"},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, "notification", ""},
		{"response result", `{"jsonrpc":"2.0","id":9,"result":{}}`, "response", "9"},
		{"response error", `{"jsonrpc":"2.0","id":9,"error":{"code":-32601,"message":"nope"}}`, "response", "9"},
		{"surrounding whitespace", "  {\"jsonrpc\":\"2.0\",\"method\":\"ping\",\"id\":2}\r\n", "request", "2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Decode([]byte(tc.line))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got := m.Type(); got != tc.wantType {
				t.Fatalf("type: got %q want %q", got, tc.wantType)
			}
			if got := m.ID.String(); got != tc.wantID {
				t.Fatalf("id: got %q want %q", got, tc.wantID)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	cases := []struct {
		name     string
		line     string
		wantCode ErrorCode
		wantID   string // empty means no id recovered
	}{
		{"not json", `hello`, ErrorCodeParseError, ""},
		{"truncated with id", `{"jsonrpc":"2.0","id":7,"method":"tools/ca`, ErrorCodeParseError, "7"},
		{"truncated before id", `{"jsonrpc":"2.0","method":"tools/ca`, ErrorCodeParseError, ""},
		{"two values", `{"jsonrpc":"2.0","id":1,"method":"ping"} {"jsonrpc":"2.0","id":2,"method":"ping"}`, ErrorCodeParseError, "1"},
		{"array", `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`, ErrorCodeInvalidRequest, ""},
		{"scalar", `42`, ErrorCodeInvalidRequest, ""},
		{"missing version", `{"id":3,"method":"ping"}`, ErrorCodeInvalidRequest, "3"},
		{"wrong version", `{"jsonrpc":"1.0","id":3,"method":"ping"}`, ErrorCodeInvalidRequest, "3"},
		{"result and error", `{"jsonrpc":"2.0","id":4,"result":{},"error":{"code":1,"message":"x"}}`, ErrorCodeInvalidRequest, "4"},
		{"result with null error", `{"jsonrpc":"2.0","id":11,"result":1,"error":null}`, ErrorCodeInvalidRequest, "11"},
		{"null error only", `{"jsonrpc":"2.0","id":12,"error":null}`, ErrorCodeInvalidRequest, "12"},
		{"request with null error", `{"jsonrpc":"2.0","id":13,"method":"ping","error":null}`, ErrorCodeInvalidRequest, "13"},
		{"request with result", `{"jsonrpc":"2.0","id":5,"method":"ping","result":{}}`, ErrorCodeInvalidRequest, "5"},
		{"response without payload", `{"jsonrpc":"2.0","id":6}`, ErrorCodeInvalidRequest, "6"},
		{"bad id type", `{"jsonrpc":"2.0","id":{"x":1},"method":"ping"}`, ErrorCodeInvalidRequest, ""},
		{"empty method", `{"jsonrpc":"2.0","id":8,"method":""}`, ErrorCodeInvalidRequest, "8"},
		{"scalar params", `{"jsonrpc":"2.0","id":10,"method":"ping","params":3}`, ErrorCodeInvalidRequest, "10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.line))
			var derr *DecodeError
			if !errors.As(err, &derr) {
				t.Fatalf("expected *DecodeError, got %v", err)
			}
			if derr.Code != tc.wantCode {
				t.Fatalf("code: got %d want %d (%v)", derr.Code, tc.wantCode, derr)
			}
			if tc.wantID == "" {
				if derr.ID != nil {
					t.Fatalf("expected no id, got %q", derr.ID.String())
				}
				if derr.Response() != nil {
					t.Fatalf("expected no response without id")
				}
				return
			}
			if derr.ID == nil || derr.ID.String() != tc.wantID {
				t.Fatalf("id: got %v want %q", derr.ID, tc.wantID)
			}
			resp := derr.Response()
			if resp == nil || resp.Error == nil || resp.Error.Code != tc.wantCode {
				t.Fatalf("unexpected response %+v", resp)
			}
		})
	}
}

func TestRoundTrip_PreservesIDShape(t *testing.T) {
	lines := []string{
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"ping","id":null}`,
		`{"jsonrpc":"2.0","method":"ping","id":"req-1"}`,
		`{"jsonrpc":"2.0","method":"ping","id":1.50}`,
		`{"jsonrpc":"2.0","method":"tools/call","params":{ "name": "add", "arguments": {"a": "10", "b": "32"} },"id":3}`,
		`{"jsonrpc":"2.0","result":null,"id":4}`,
		`{"jsonrpc":"2.0","error":{"code":-32602,"message":"bad","data":{"tool":"x"}},"id":"e"}`,
	}
	for _, line := range lines {
		m, err := Decode([]byte(line))
		if err != nil {
			t.Fatalf("decode %s: %v", line, err)
		}
		enc, err := Encode(m)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if !bytes.HasSuffix(enc, []byte("\n")) || bytes.Count(enc, []byte("\n")) != 1 {
			t.Fatalf("encoded message must be a single line: %q", enc)
		}
		again, err := Decode(enc)
		if err != nil {
			t.Fatalf("re-decode %s: %v", enc, err)
		}
		if !reflect.DeepEqual(m, again) {
			t.Fatalf("round trip mismatch:\n first: %+v\nsecond: %+v", m, again)
		}
	}
}

func TestRoundTrip_NullAndAbsentIDsDiffer(t *testing.T) {
	absent, err := Decode([]byte(`{"jsonrpc":"2.0","method":"ping"}`))
	if err != nil {
		t.Fatal(err)
	}
	null, err := Decode([]byte(`{"jsonrpc":"2.0","method":"ping","id":null}`))
	if err != nil {
		t.Fatal(err)
	}
	if absent.ID != nil {
		t.Fatalf("absent id decoded as %v", absent.ID)
	}
	if null.ID == nil || !null.ID.IsNil() {
		t.Fatalf("explicit null id lost: %v", null.ID)
	}
	a, _ := Encode(absent)
	n, _ := Encode(null)
	if bytes.Contains(a, []byte(`"id"`)) {
		t.Fatalf("absent id was encoded: %s", a)
	}
	if !bytes.Contains(n, []byte(`"id":null`)) {
		t.Fatalf("null id was not encoded: %s", n)
	}
}

func TestResponse_NilIDEncodesNull(t *testing.T) {
	b, err := Encode(NewErrorResponse(nil, ErrorCodeParseError, "parse error", nil))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"jsonrpc":"2.0","error":{"code":-32700,"message":"parse error"},"id":null}` + "\n"
	if string(b) != want {
		t.Fatalf("got %s want %s", b, want)
	}
}

func TestRequestID_KeysAreTyped(t *testing.T) {
	m := map[RequestID]int{}
	m[*NewRequestID(1)] = 1
	m[*NewRequestID("1")] = 2
	if len(m) != 2 {
		t.Fatalf("string and numeric ids collided")
	}
	var decoded RequestID
	if err := decoded.UnmarshalJSON([]byte("1")); err != nil {
		t.Fatal(err)
	}
	if m[decoded] != 1 {
		t.Fatalf("decoded numeric id did not match constructed id")
	}
}

func TestSalvageID(t *testing.T) {
	cases := []struct {
		line string
		want string
		ok   bool
	}{
		{`{"jsonrpc":"2.0","id":"x-1","method":`, "x-1", true},
		{`{"params":{"id":99},"id":5,"method":"a"`, "5", true},
		{`{"params":{"id":99},"meth`, "", false},
		{`{"id":null,"jsonrpc":`, "null", true},
		{`not even close`, "", false},
		{`["id",1]`, "", false},
	}
	for _, tc := range cases {
		got := SalvageID([]byte(tc.line))
		if !tc.ok {
			if got != nil {
				t.Fatalf("%s: expected nil, got %q", tc.line, got.String())
			}
			continue
		}
		if got == nil || got.String() != tc.want {
			t.Fatalf("%s: got %v want %q", tc.line, got, tc.want)
		}
	}
}
