package form

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNotReady is returned while the form has no initial values.
	ErrNotReady = errors.New("form: initial values not loaded")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("form: closed")
)

// ErrorMapping is a server error payload split by owner: Fields is keyed by
// form field path, Form holds the messages no field claimed.
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

// MergeFormErrors appends extras to existing, trimmed and without repeats.
func MergeFormErrors(existing []string, extras ...string) []string {
	return uniqueMessages(append(append([]string(nil), existing...), extras...))
}

// MapErrorPayload attributes payload messages to fieldPaths. Payload keys may
// be dotted paths, JSON pointers ("/data/owner/email") or bracket paths
// ("contacts[0].phone"); a key resolves to the deepest known path it starts
// with. Unresolved keys end up in Form.
func MapErrorPayload(fieldPaths []string, payload map[string][]string) ErrorMapping {
	var mapping ErrorMapping
	if len(payload) == 0 {
		return mapping
	}
	idx := newPathIndex(fieldPaths)
	for key, messages := range payload {
		messages = uniqueMessages(messages)
		if len(messages) == 0 {
			continue
		}
		path, ok := idx.resolve(key)
		if !ok {
			mapping.Form = append(mapping.Form, messages...)
			continue
		}
		if mapping.Fields == nil {
			mapping.Fields = map[string][]string{}
		}
		mapping.Fields[path] = append(mapping.Fields[path], messages...)
	}
	mapping.Form = uniqueMessages(mapping.Form)
	return mapping
}

func uniqueMessages(messages []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, msg := range messages {
		msg = strings.TrimSpace(msg)
		if msg == "" || seen[msg] {
			continue
		}
		seen[msg] = true
		out = append(out, msg)
	}
	return out
}

// pathIndex holds every field path and each of its parents.
type pathIndex map[string]struct{}

func newPathIndex(paths []string) pathIndex {
	idx := pathIndex{}
	for _, p := range paths {
		segments := strings.Split(strings.TrimSpace(p), ".")
		for n := 1; n <= len(segments) && segments[n-1] != ""; n++ {
			idx[strings.Join(segments[:n], ".")] = struct{}{}
		}
	}
	return idx
}

// envelopes are leading payload segments that wrap the record itself.
var envelopes = []string{"body", "request", "payload", "data", "attributes"}

// formKeys address the whole form.
var formKeys = []string{".", "/", "#", "$", "form", "base", "__all__", "non_field_errors", "non-field-errors"}

func (idx pathIndex) resolve(key string) (string, bool) {
	key = strings.TrimSpace(key)
	if key == "" || contains(formKeys, strings.ToLower(key)) {
		return "", false
	}
	segments := splitKey(key)
	bare := unwrap(segments)

	best := ""
	for _, candidate := range [][]string{segments, bare, withoutIndexes(segments), withoutIndexes(bare)} {
		if path := idx.deepest(candidate); len(path) > 0 && (best == "" || depth(path) > depth(best)) {
			best = path
		}
	}
	return best, best != ""
}

// deepest returns the longest prefix of segments that is a known path.
func (idx pathIndex) deepest(segments []string) string {
	for n := len(segments); n > 0; n-- {
		candidate := strings.Join(segments[:n], ".")
		if _, ok := idx[candidate]; ok {
			return candidate
		}
	}
	return ""
}

func splitKey(key string) []string {
	key = strings.TrimLeft(key, "#/.$")
	key = strings.NewReplacer("[", ".", "]", "").Replace(key)
	var out []string
	for _, part := range strings.FieldsFunc(key, func(r rune) bool { return r == '.' || r == '/' }) {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		// JSON pointer escapes
		out = append(out, strings.NewReplacer("~1", "/", "~0", "~").Replace(part))
	}
	return out
}

func unwrap(segments []string) []string {
	for len(segments) > 0 && contains(envelopes, strings.ToLower(segments[0])) {
		segments = segments[1:]
	}
	return segments
}

func withoutIndexes(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		if _, err := strconv.Atoi(s); err != nil {
			out = append(out, s)
		}
	}
	return out
}

func depth(path string) int { return strings.Count(path, ".") }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
