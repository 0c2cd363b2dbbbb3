package output

import (
	"encoding/json"
	"fmt"
	"io"
)

var formats = []string{"ndjson", "json", "text"}

func ValidateFormat(v string) error {
	for _, f := range formats {
		if v == f {
			return nil
		}
	}
	return fmt.Errorf("unsupported output format: %s (ndjson/json/text)", v)
}

func Write(w io.Writer, format string, events []map[string]any) error {
	switch format {
	case "ndjson":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	case "json":
		obj := map[string]any{"events": events}
		b, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "text":
		return writeText(w, events)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
