package mcpservice

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ggoodman/mcp-stdio-go/mcp"
)

func boolPtr(b bool) *bool { return &b }

func TestCoerceArguments(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]mcp.SchemaProperty{
			"n":    {Type: "number"},
			"i":    {Type: "integer"},
			"b":    {Type: "boolean"},
			"s":    {Type: "string"},
			"xs":   {Type: "array", Items: &mcp.SchemaProperty{Type: "integer"}},
			"mode": {Type: "string", Enum: []any{"fast", "slow"}},
			"any":  {},
			"obj": {Type: "object", Properties: map[string]mcp.SchemaProperty{
				"depth": {Type: "integer"},
			}, Required: []string{"depth"}},
		},
		AdditionalProperties: boolPtr(false),
	}

	cases := []struct {
		name    string
		args    string
		want    string // canonical JSON of coerced args; empty when invalid
		problem string // substring expected in problems
	}{
		{"numbers from strings", `{"n":"1.5","i":"7"}`, `{"i":7,"n":1.5}`, ""},
		{"native numbers kept", `{"n":2,"i":3}`, `{"i":3,"n":2}`, ""},
		{"integral float as integer", `{"i":4.0}`, `{"i":4}`, ""},
		{"booleans from strings", `{"b":"true"}`, `{"b":true}`, ""},
		{"array items", `{"xs":["1",2]}`, `{"xs":[1,2]}`, ""},
		{"nested object", `{"obj":{"depth":"3"}}`, `{"obj":{"depth":3}}`, ""},
		{"untyped passthrough", `{"any":{"k":[1]}}`, `{"any":{"k":[1]}}`, ""},
		{"enum ok", `{"mode":"fast"}`, `{"mode":"fast"}`, ""},
		{"null arguments", `null`, `{}`, ""},
		{"empty arguments", ``, `{}`, ""},
		{"enum violation", `{"mode":"medium"}`, "", "must be one of"},
		{"fractional integer", `{"i":"1.5"}`, "", `"i" must be an integer`},
		{"string not coerced from number", `{"s":5}`, "", `"s" must be a string`},
		{"yes is not a boolean", `{"b":"yes"}`, "", `"b" must be a boolean`},
		{"infinity rejected", `{"n":"Inf"}`, "", `"n" must be a number`},
		{"unknown argument", `{"zzz":1}`, "", `unknown argument "zzz"`},
		{"nested required", `{"obj":{}}`, "", `missing required argument "obj.depth"`},
		{"bad array item", `{"xs":[1,"x"]}`, "", `"xs[1]" must be an integer`},
		{"not an object", `"str"`, "", "must be an object"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, problems := CoerceArguments(schema, json.RawMessage(tc.args))
			if tc.want == "" {
				if len(problems) == 0 {
					t.Fatalf("expected problems, got %v", got)
				}
				if !strings.Contains(strings.Join(problems, "; "), tc.problem) {
					t.Fatalf("problems %q do not mention %q", problems, tc.problem)
				}
				return
			}
			if len(problems) != 0 {
				t.Fatalf("unexpected problems %v", problems)
			}
			b, err := json.Marshal(got)
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tc.want {
				t.Fatalf("got %s want %s", b, tc.want)
			}
		})
	}
}

func TestCoerceArguments_AdditionalPropertiesDefaultAllowed(t *testing.T) {
	schema := mcp.ToolInputSchema{Type: "object", Properties: map[string]mcp.SchemaProperty{"a": {Type: "number"}}}
	got, problems := CoerceArguments(schema, json.RawMessage(`{"a":"1","extra":"x"}`))
	if len(problems) != 0 {
		t.Fatalf("unexpected problems %v", problems)
	}
	if got["extra"] != "x" {
		t.Fatalf("extra argument dropped: %v", got)
	}
}

func TestCoerceArguments_ReportsEveryProblem(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]mcp.SchemaProperty{
			"a": {Type: "number"},
			"b": {Type: "number"},
		},
		Required: []string{"a", "b"},
	}
	_, problems := CoerceArguments(schema, json.RawMessage(`{"a":"x"}`))
	if len(problems) != 2 {
		t.Fatalf("expected two problems, got %v", problems)
	}
}
