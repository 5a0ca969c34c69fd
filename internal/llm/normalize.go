package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// StripCodeFences removes leading/trailing markdown code-fence markers that
// models wrap JSON in despite instructions.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimSpace(s[len("```json"):])
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(s[3:])
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(s[:len(s)-3])
	}
	return s
}

// RepairEscapes doubles every backslash that is not followed by a recognized
// JSON escape character. Models occasionally emit Windows paths or escaped
// underscores that break strict parsing.
func RepairEscapes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(s) {
			switch s[i+1] {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				b.WriteByte(c)
				continue
			}
		}
		b.WriteString(`\\`)
	}
	return b.String()
}

// CleanKeys strips backslashes from mapping keys, recursing through nested
// maps and slices. Some models escape underscores in keys ("Invoice\_No").
func CleanKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[strings.ReplaceAll(k, `\`, "")] = CleanKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = CleanKeys(item)
		}
		return out
	default:
		return v
	}
}

// ParseModelJSON normalizes a model response into a generic JSON value:
// fences stripped, strict parse, one escape-repair retry. The cleaned text
// that finally parsed is returned alongside, so callers can keep it for
// diagnostics or re-decoding into a typed struct.
func ParseModelJSON(raw string, logger *slog.Logger) (any, string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cleaned := StripCodeFences(raw)

	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		logger.Warn("llm.parse.retry_with_escape_repair", "error", err)
		repaired := RepairEscapes(cleaned)
		if err2 := json.Unmarshal([]byte(repaired), &v); err2 != nil {
			return nil, cleaned, fmt.Errorf("parse model json: %w", err2)
		}
		cleaned = repaired
	}
	return CleanKeys(v), cleaned, nil
}

// DecodeFields re-encodes a cleaned generic value into InvoiceFields.
func DecodeFields(v any) (*InvoiceFields, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode cleaned json: %w", err)
	}
	var f InvoiceFields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode invoice fields: %w", err)
	}
	return &f, nil
}
