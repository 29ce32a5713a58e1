package places

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodePreservesFieldOrder(t *testing.T) {
	raw := `{"status":"OK","results":[{"name":"a"},{"name":"b"}],"next_page_token":"xyz"}`
	doc, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	wantOrder := []string{"status", "results", "next_page_token"}
	if len(doc) != len(wantOrder) {
		t.Fatalf("got %d fields, want %d", len(doc), len(wantOrder))
	}
	for i, f := range doc {
		if f.key != wantOrder[i] {
			t.Fatalf("field %d = %q, want %q", i, f.key, wantOrder[i])
		}
	}
}

func TestTruncateResultsLeavesOtherFieldsAlone(t *testing.T) {
	raw := `{"status":"OK","results":[{"n":1},{"n":2},{"n":3}],"html_attributions":[]}`
	doc, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	truncated := doc.TruncateResults(2)

	var results []json.RawMessage
	for _, f := range truncated {
		if f.key == "results" {
			if err := json.Unmarshal(f.raw, &results); err != nil {
				t.Fatalf("unmarshal results: %v", err)
			}
		}
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results after truncation, got %d", len(results))
	}

	if len(truncated) != len(doc) {
		t.Fatalf("truncation must not drop other top-level fields: got %d, want %d", len(truncated), len(doc))
	}
}

func TestTruncateResultsUnderLimitIsUnchanged(t *testing.T) {
	raw := `{"results":[{"n":1}]}`
	doc, _ := Decode([]byte(raw))
	truncated := doc.TruncateResults(5)

	var results []json.RawMessage
	json.Unmarshal(truncated[0].raw, &results)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestMarshalIndentIsFourSpaces(t *testing.T) {
	raw := `{"status":"OK","results":[]}`
	doc, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	out, err := doc.MarshalIndent()
	if err != nil {
		t.Fatalf("MarshalIndent: %v", err)
	}

	if !strings.Contains(string(out), "\n    \"status\"") {
		t.Fatalf("expected 4-space indented status field, got:\n%s", out)
	}

	var roundTrip map[string]any
	if err := json.Unmarshal(out, &roundTrip); err != nil {
		t.Fatalf("MarshalIndent output is not valid JSON: %v", err)
	}
}

func TestMarshalIndentEmptyDocument(t *testing.T) {
	var doc Document
	out, err := doc.MarshalIndent()
	if err != nil {
		t.Fatalf("MarshalIndent: %v", err)
	}
	if string(out) != "null" {
		t.Fatalf("expected literal null for empty document, got %q", out)
	}
}
