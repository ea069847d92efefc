package jsonrpc

import (
	"bytes"
	"encoding/json"
)

// SalvageID makes a best-effort attempt to read the top-level "id" member
// from input that may be truncated or otherwise malformed. It streams tokens
// until the id is found and returns nil when it cannot be recovered.
func SalvageID(line []byte) *RequestID {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil
		}
		if key != "id" {
			if err := skipValue(dec); err != nil {
				return nil
			}
			continue
		}

		tok, err = dec.Token()
		if err != nil {
			return nil
		}
		switch v := tok.(type) {
		case string:
			return &RequestID{value: v}
		case json.Number:
			return &RequestID{value: v}
		case nil:
			return NullRequestID()
		default:
			return nil
		}
	}
}

func skipValue(dec *json.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
		if depth == 0 {
			return nil
		}
	}
}
