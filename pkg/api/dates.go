package api

import (
	"regexp"
	"time"
)

var isoTimestamp = regexp.MustCompile(`^\d{4}-[01]\d-[0-3]\dT[0-2]\d:[0-5]\d:[0-5]\d\.\d+([+-][0-2]\d:[0-5]\d|Z)$`)

// ParseDateFields walks a decoded JSON value and replaces ISO-8601
// timestamps with fractional seconds by time.Time values. Other strings are
// left alone.
func ParseDateFields(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = ParseDateFields(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = ParseDateFields(item)
		}
		return out
	case string:
		if !isoTimestamp.MatchString(v) {
			return v
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return v
		}
		return t
	default:
		return value
	}
}
