package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/mcp"
)

func TestRun_CLI(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(t.Context(), []string{"add", "--a", "10", "--b", "32"}, strings.NewReader(""), &stdout, &stderr)
	if code != 0 || stdout.String() != "42\n" {
		t.Fatalf("code=%d stdout=%q stderr=%q", code, stdout.String(), stderr.String())
	}

	stdout.Reset()
	stderr.Reset()
	if code := run(t.Context(), []string{"divide", "1", "0"}, strings.NewReader(""), &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1 for tool error, got %d", code)
	}
	if code := run(t.Context(), []string{"--bogus"}, strings.NewReader(""), &stdout, &stderr); code != 2 {
		t.Fatalf("expected exit 2 for bad flag, got %d", code)
	}
}

func TestRun_MCP(t *testing.T) {
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"demo","version":"1.0"}},"id":1}`,
		`{"jsonrpc":"2.0","method":"initialized"}`,
		`{"jsonrpc":"2.0","method":"tools/list","id":2}`,
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"add","arguments":{"a":"10","b":"32"}},"id":3}`,
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"multiply","arguments":{"value1":"7","value2":"6"}},"id":4}`,
	}, "\n") + "\n"

	var stdout, stderr bytes.Buffer
	if code := run(t.Context(), []string{"--mcp"}, strings.NewReader(in), &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}

	byID := map[string]*jsonrpc.Response{}
	for _, line := range strings.Split(strings.TrimSpace(stdout.String()), "\n") {
		msg, err := jsonrpc.Decode([]byte(line))
		if err != nil {
			t.Fatalf("decode %s: %v", line, err)
		}
		byID[msg.ID.String()] = msg.AsResponse()
	}
	if len(byID) != 4 {
		t.Fatalf("expected 4 responses, got %d: %s", len(byID), stdout.String())
	}

	var initRes mcp.InitializeResult
	if err := json.Unmarshal(byID["1"].Result, &initRes); err != nil {
		t.Fatal(err)
	}
	if initRes.ServerInfo.Name != "calculator" || initRes.Capabilities.Logging == nil {
		t.Fatalf("unexpected initialize result %+v", initRes)
	}

	for _, id := range []string{"3", "4"} {
		var res mcp.CallToolResult
		if err := json.Unmarshal(byID[id].Result, &res); err != nil {
			t.Fatal(err)
		}
		if len(res.Content) != 1 || res.Content[0].Text != "42" {
			t.Fatalf("response %s: unexpected result %+v", id, res)
		}
	}
	if strings.Contains(stdout.String(), "level=") {
		t.Fatalf("logs leaked onto stdout")
	}
}

func TestRun_MCPBadConfig(t *testing.T) {
	t.Setenv("MCP_LOG_FORMAT", "xml")
	var stdout, stderr bytes.Buffer
	if code := run(t.Context(), []string{"--mcp"}, strings.NewReader(""), &stdout, &stderr); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "logFormat") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}
