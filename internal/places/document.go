package places

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// field is one top-level key of a Places response, kept as raw JSON so
// Document never needs to understand the provider's nested shapes beyond
// the one field it truncates.
type field struct {
	key string
	raw json.RawMessage
}

// Document is an order-preserving view of a top-level JSON object. Go's
// map[string]any loses key order on marshal (encoding/json sorts map keys
// alphabetically), so Document walks the object with json.Decoder's token
// stream instead of unmarshaling into a map.
type Document []field

// Decode parses a top-level JSON object, preserving key order.
func Decode(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected top-level JSON object, got %v", tok)
	}

	var doc Document
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		doc = append(doc, field{key: key, raw: raw})
	}

	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	return doc, nil
}

// TruncateResults returns a copy of doc with its "results" array (if
// present) cut down to at most limit entries. Every other field, and the
// relative order of all fields, is left untouched.
func (d Document) TruncateResults(limit int) Document {
	out := make(Document, len(d))
	copy(out, d)

	for i, f := range out {
		if f.key != "results" {
			continue
		}
		var results []json.RawMessage
		if err := json.Unmarshal(f.raw, &results); err != nil {
			continue
		}
		if len(results) > limit {
			results = results[:limit]
		}
		raw, err := json.Marshal(results)
		if err != nil {
			continue
		}
		out[i] = field{key: f.key, raw: raw}
	}
	return out
}

// MarshalIndent renders the document as pretty-printed JSON with 4-space
// indentation, preserving field order.
func (d Document) MarshalIndent() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteString("{")
	for i, f := range d {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n    ")

		keyJSON, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteString(": ")

		var indented bytes.Buffer
		if err := json.Indent(&indented, f.raw, "    ", "    "); err != nil {
			return nil, err
		}
		buf.Write(indented.Bytes())
	}
	if len(d) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}
