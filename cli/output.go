package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/alpkeskin/gotoon"
)

func validFormat(format string) error {
	switch format {
	case "json", "toon":
		return nil
	default:
		return fmt.Errorf("unknown format %q (want json or toon)", format)
	}
}

// writeRecord prints v as one JSON line, or as a TOON block followed by a
// blank line.
func writeRecord(w io.Writer, format string, v any) error {
	if format == "toon" {
		out, err := gotoon.Encode(v)
		if err != nil {
			return fmt.Errorf("failed to encode toon: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n\n", out)
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
