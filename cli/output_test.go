package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"json", "toon"} {
		if err := validFormat(f); err != nil {
			t.Errorf("validFormat(%q) = %v", f, err)
		}
	}
	for _, f := range []string{"", "yaml", "JSON"} {
		if err := validFormat(f); err == nil {
			t.Errorf("validFormat(%q) should fail", f)
		}
	}
}

func TestWriteRecord(t *testing.T) {
	type row struct {
		Topic string `json:"topic"`
		Count int    `json:"count"`
	}

	t.Run("json is one line", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeRecord(&buf, "json", row{Topic: "team-changed", Count: 2}); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if strings.Count(out, "\n") != 1 {
			t.Errorf("expected a single line, got %q", out)
		}
		var got row
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if got.Topic != "team-changed" || got.Count != 2 {
			t.Errorf("decoded %+v", got)
		}
	})

	t.Run("toon", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeRecord(&buf, "toon", row{Topic: "team-changed", Count: 2}); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.Contains(out, "team-changed") {
			t.Errorf("toon output missing value: %q", out)
		}
		if !strings.HasSuffix(out, "\n\n") {
			t.Errorf("toon block should end with a blank line: %q", out)
		}
	})
}
