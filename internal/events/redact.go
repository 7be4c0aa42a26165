package events

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Redacted replaces sensitive values in persisted event payloads.
const Redacted = "[redacted]"

// sensitiveKeys are payload keys whose values are always redacted, whatever
// they look like.
var sensitiveKeys = map[string]bool{
	"email":         true,
	"address_line1": true,
	"address_line2": true,
	"postcode":      true,
	"phone":         true,
	"note":          true,
}

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	// UK-style outward+inward codes and bare digit groups of postal length.
	postcodePattern = regexp.MustCompile(`\b[A-Z]{1,2}\d[A-Z\d]?\s?\d[A-Z]{2}\b|\b\d{4}\s?[A-Z]{2}\b|\b\d{5}(?:-\d{4})?\b`)
	phonePattern    = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
)

// RedactString replaces email-, postcode-, and phone-shaped substrings.
func RedactString(s string) string {
	s = emailPattern.ReplaceAllString(s, Redacted)
	s = postcodePattern.ReplaceAllString(s, Redacted)
	s = phonePattern.ReplaceAllString(s, Redacted)
	return s
}

// Redact deep-copies a payload map, replacing sensitive keys wholesale and
// scrubbing every remaining string value. The result is safe to persist.
func Redact(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if sensitiveKeys[strings.ToLower(k)] {
			out[k] = Redacted
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case string:
		return RedactString(t)
	case map[string]any:
		return Redact(t)
	case []any:
		scrubbed := make([]any, len(t))
		for i, item := range t {
			scrubbed[i] = redactValue(item)
		}
		return scrubbed
	default:
		return v
	}
}

// MarshalRedacted redacts a payload and encodes it as JSON.
func MarshalRedacted(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	return json.Marshal(Redact(payload))
}
