package mcpservice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// ErrInvalidArguments is matched by every *ArgumentsError.
var ErrInvalidArguments = errors.New("invalid arguments")

// ArgumentsError lists every way a tool call's arguments failed to satisfy
// the tool's input schema.
type ArgumentsError struct {
	Tool     string
	Problems []string
}

func (e *ArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %s", e.Tool, strings.Join(e.Problems, "; "))
}

func (e *ArgumentsError) Is(target error) bool { return target == ErrInvalidArguments }

// CoerceArguments validates raw tool arguments against schema and converts
// values to their declared types where a lossless conversion exists:
//
//   - number and integer accept JSON numbers and strings that parse as such
//   - boolean accepts JSON booleans and the strings "true" and "false"
//   - string accepts only strings
//   - array items and object properties are coerced recursively
//
// Properties without a declared type pass through untouched. Missing or
// null arguments are treated as an empty object. The returned problems are
// sorted by argument name and empty when the arguments are acceptable.
func CoerceArguments(schema mcp.ToolInputSchema, raw json.RawMessage) (map[string]any, []string) {
	args := map[string]any{}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, []string{fmt.Sprintf("arguments are not valid JSON: %v", err)}
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, []string{fmt.Sprintf("arguments must be an object, got %s", jsonKind(v))}
		}
		args = m
	}

	var problems []string
	strict := schema.AdditionalProperties != nil && !*schema.AdditionalProperties
	coerceObject("", schema.Properties, schema.Required, strict, args, &problems)
	if len(problems) > 0 {
		return nil, problems
	}
	return args, nil
}

func coerceObject(prefix string, props map[string]mcp.SchemaProperty, required []string, strict bool, obj map[string]any, problems *[]string) {
	for _, name := range required {
		if _, ok := obj[name]; !ok {
			*problems = append(*problems, fmt.Sprintf("missing required argument %q", prefix+name))
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		prop, ok := props[k]
		if !ok {
			if strict {
				*problems = append(*problems, fmt.Sprintf("unknown argument %q", prefix+k))
			}
			continue
		}
		v, problem := coerceValue(prefix+k, prop, obj[k], problems)
		if problem != "" {
			*problems = append(*problems, problem)
			continue
		}
		obj[k] = v
	}
}

func coerceValue(path string, prop mcp.SchemaProperty, v any, problems *[]string) (any, string) {
	mismatch := func() (any, string) {
		return nil, fmt.Sprintf("argument %q must be %s, got %s", path, article(prop.Type), jsonKind(v))
	}

	var out any
	switch prop.Type {
	case "":
		out = v
	case mcp.SchemaTypeString:
		s, ok := v.(string)
		if !ok {
			return mismatch()
		}
		out = s
	case mcp.SchemaTypeNumber:
		n, ok := toNumber(v)
		if !ok {
			return mismatch()
		}
		out = n
	case mcp.SchemaTypeInteger:
		n, ok := toInteger(v)
		if !ok {
			return mismatch()
		}
		out = n
	case mcp.SchemaTypeBoolean:
		switch b := v.(type) {
		case bool:
			out = b
		case string:
			switch b {
			case "true":
				out = true
			case "false":
				out = false
			default:
				return mismatch()
			}
		default:
			return mismatch()
		}
	case mcp.SchemaTypeArray:
		items, ok := v.([]any)
		if !ok {
			return mismatch()
		}
		if prop.Items != nil {
			for i, item := range items {
				c, problem := coerceValue(fmt.Sprintf("%s[%d]", path, i), *prop.Items, item, problems)
				if problem != "" {
					*problems = append(*problems, problem)
					continue
				}
				items[i] = c
			}
		}
		out = items
	case mcp.SchemaTypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return mismatch()
		}
		if len(prop.Properties) > 0 || len(prop.Required) > 0 {
			coerceObject(path+".", prop.Properties, prop.Required, false, obj, problems)
		}
		out = obj
	case mcp.SchemaTypeNull:
		if v != nil {
			return mismatch()
		}
	default:
		out = v
	}

	if len(prop.Enum) > 0 && !enumContains(prop.Enum, out) {
		return nil, fmt.Sprintf("argument %q must be one of %s", path, enumList(prop.Enum))
	}
	return out, ""
}

func toNumber(v any) (json.Number, bool) {
	var text string
	switch n := v.(type) {
	case json.Number:
		return n, true
	case float64:
		text = strconv.FormatFloat(n, 'g', -1, 64)
	case string:
		text = n
	default:
		return "", false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", false
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64)), true
}

func toInteger(v any) (json.Number, bool) {
	var text string
	switch n := v.(type) {
	case json.Number:
		text = n.String()
	case float64:
		text = strconv.FormatFloat(n, 'g', -1, 64)
	case string:
		text = n
	default:
		return "", false
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return json.Number(strconv.FormatInt(i, 10)), true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return "", false
	}
	return json.Number(strconv.FormatInt(int64(f), 10)), true
}

func enumContains(enum []any, v any) bool {
	want, err := json.Marshal(v)
	if err != nil {
		return false
	}
	for _, e := range enum {
		got, err := json.Marshal(e)
		if err == nil && bytes.Equal(got, want) {
			return true
		}
	}
	return false
}

func enumList(enum []any) string {
	parts := make([]string, 0, len(enum))
	for _, e := range enum {
		b, _ := json.Marshal(e)
		parts = append(parts, string(b))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func article(typ string) string {
	switch typ {
	case mcp.SchemaTypeArray, mcp.SchemaTypeInteger, mcp.SchemaTypeObject:
		return "an " + typ
	default:
		return "a " + typ
	}
}
