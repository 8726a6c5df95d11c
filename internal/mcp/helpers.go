package mcpserver

import (
	"encoding/json"
	"strings"

	"tablereader/internal/errors"
	"tablereader/internal/read"
)

func boolPtr(v bool) *bool { return &v }

func getFloat(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

// parseItems accepts a JSON string array, an array argument or one item per
// line.
func parseItems(v any) ([]string, error) {
	switch items := v.(type) {
	case []any:
		out := make([]string, 0, len(items))
		for _, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, errors.Configurationf("items must be strings, got %T", it)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		trimmed := strings.TrimSpace(items)
		if strings.HasPrefix(trimmed, "[") {
			var out []string
			if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
				return nil, errors.AsConfiguration(errors.Wrap(err, "parse items"))
			}
			return out, nil
		}
		var out []string
		for _, line := range strings.Split(trimmed, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, errors.Configurationf("items must be a list of strings")
}

// readConfig overlays the optional readerConfigJSON argument on defaults.
func readConfig(defaults read.Config, args map[string]any) (read.Config, error) {
	cfg := defaults
	raw, _ := args["readerConfigJSON"].(string)
	if strings.TrimSpace(raw) == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return read.Config{}, errors.AsConfiguration(errors.Wrap(err, "parse readerConfigJSON"))
	}
	return cfg, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
