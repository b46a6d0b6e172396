package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("Expected JSONFormatter for json format")
	}
	if _, ok := NewFormatter(FormatCSV).(*CSVFormatter); !ok {
		t.Error("Expected CSVFormatter for csv format")
	}
	if _, ok := NewFormatter(FormatText).(*TextFormatter); !ok {
		t.Error("Expected TextFormatter for text format")
	}
	if _, ok := NewFormatter(OutputFormat("bogus")).(*TextFormatter); !ok {
		t.Error("Expected TextFormatter fallback for unknown format")
	}
}

func TestJSONFormatter(t *testing.T) {
	f := &JSONFormatter{Indent: true}

	out, err := f.Format(map[string]int{"generations": 3})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	var decoded map[string]int
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if decoded["generations"] != 3 {
		t.Errorf("Expected generations 3, got %d", decoded["generations"])
	}
	if !strings.Contains(string(out), "\n") {
		t.Error("Expected indented output")
	}
}

func TestCSVFormatter(t *testing.T) {
	f := &CSVFormatter{Headers: []string{"provider", "cost"}}

	out, err := f.Format([][]string{
		{"openai", "1.25"},
		{"anthropic", "0.80"},
	})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "provider,cost" {
		t.Errorf("Expected header row, got %q", lines[0])
	}
	if lines[1] != "openai,1.25" {
		t.Errorf("Expected first data row, got %q", lines[1])
	}
}

func TestCSVFormatter_NoHeaders(t *testing.T) {
	f := &CSVFormatter{}

	out, err := f.Format([][]string{{"a", "b"}})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "a,b" {
		t.Errorf("Expected single data row, got %q", out)
	}
}

func TestCSVFormatter_RejectsNonTabularData(t *testing.T) {
	f := &CSVFormatter{}

	if _, err := f.Format("not rows"); err == nil {
		t.Error("Expected error for non-tabular data")
	}
}

func TestCSVFormatter_QuotesFieldsWithCommas(t *testing.T) {
	f := &CSVFormatter{}

	out, err := f.Format([][]string{{"a,b", "c"}})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != `"a,b",c` {
		t.Errorf("Expected quoted field, got %q", out)
	}
}

func TestTextFormatter_FormatTo(t *testing.T) {
	var buf bytes.Buffer
	f := &TextFormatter{}

	if err := f.FormatTo(&buf, "hello"); err != nil {
		t.Fatalf("FormatTo failed: %v", err)
	}
	if buf.String() != "hello\n" {
		t.Errorf("Expected %q, got %q", "hello\n", buf.String())
	}
}
