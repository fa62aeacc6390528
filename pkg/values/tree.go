// Package values holds helpers for form value trees: nested maps, slices and
// scalars addressed by dotted paths such as "owner.email" or "tags.0".
package values

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Tree is the root of a form value tree.
type Tree = map[string]any

// Clone returns a deep copy of value. Maps and slices are copied; scalars are
// returned as is. Typed maps with string keys and typed slices are converted
// into map[string]any and []any.
func Clone(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = Clone(v)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = Clone(v)
		}
		return clone
	case string, bool, float64, int, int64:
		return typed
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return value
		}
		clone := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			clone[iter.Key().String()] = Clone(iter.Value().Interface())
		}
		return clone
	case reflect.Slice:
		if rv.IsNil() {
			return []any(nil)
		}
		fallthrough
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			// Byte payloads are opaque scalars.
			return value
		}
		clone := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			clone[i] = Clone(rv.Index(i).Interface())
		}
		return clone
	default:
		return value
	}
}

// CloneTree deep copies a tree. A nil tree stays nil.
func CloneTree(tree Tree) Tree {
	if tree == nil {
		return nil
	}
	return Clone(tree).(map[string]any)
}

// Get resolves a dotted path into the tree.
func Get(root Tree, path string) (any, bool) {
	if root == nil || path == "" {
		return nil, false
	}
	current := any(root)
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Set writes value at a dotted path, creating intermediate maps and slices as
// needed. Numeric segments address slice elements.
func Set(root Tree, path string, value any) error {
	if root == nil {
		return fmt.Errorf("values: root map is nil")
	}
	if path == "" {
		return fmt.Errorf("values: path is required")
	}
	segments := strings.Split(path, ".")
	updated, err := setIn(root, segments, value, path)
	if err != nil {
		return err
	}
	if _, ok := updated.(map[string]any); !ok {
		return fmt.Errorf("values: unexpected root for path %q", path)
	}
	return nil
}

// setIn writes value below node and returns the (possibly reallocated) node
// so slice growth propagates to the parent container.
func setIn(node any, segments []string, value any, path string) (any, error) {
	segment := segments[0]
	last := len(segments) == 1

	switch typed := node.(type) {
	case map[string]any:
		if last {
			typed[segment] = value
			return typed, nil
		}
		child := typed[segment]
		if child == nil {
			child = emptyContainer(segments[1])
		}
		updated, err := setIn(child, segments[1:], value, path)
		if err != nil {
			return nil, err
		}
		typed[segment] = updated
		return typed, nil

	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil {
			return nil, fmt.Errorf("values: expected numeric segment, got %q", segment)
		}
		if idx < 0 {
			return nil, fmt.Errorf("values: negative index in path %q", path)
		}
		if len(typed) <= idx {
			typed = append(typed, make([]any, idx+1-len(typed))...)
		}
		if last {
			typed[idx] = value
			return typed, nil
		}
		child := typed[idx]
		if child == nil {
			child = emptyContainer(segments[1])
		}
		updated, err := setIn(child, segments[1:], value, path)
		if err != nil {
			return nil, err
		}
		typed[idx] = updated
		return typed, nil

	default:
		return nil, fmt.Errorf("values: unexpected container for segment %q", segment)
	}
}

func emptyContainer(nextSegment string) any {
	if _, err := strconv.Atoi(nextSegment); err == nil {
		return []any{}
	}
	return make(map[string]any)
}

// Delete removes the value at a dotted path. Missing paths are ignored.
func Delete(root Tree, path string) {
	if root == nil || path == "" {
		return
	}
	segments := strings.Split(path, ".")
	parentPath := strings.Join(segments[:len(segments)-1], ".")
	key := segments[len(segments)-1]

	parent := any(root)
	if parentPath != "" {
		var ok bool
		parent, ok = Get(root, parentPath)
		if !ok {
			return
		}
	}
	if m, ok := parent.(map[string]any); ok {
		delete(m, key)
	}
}

// Paths lists the leaf paths of a tree in depth-first order. Maps are walked
// in sorted key order; sequences count as leaves.
func Paths(root Tree) []string {
	var out []string
	collectPaths(root, "", &out)
	return out
}

func collectPaths(node map[string]any, prefix string, out *[]string) {
	for _, key := range SortedKeys(node) {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if child, ok := node[key].(map[string]any); ok && len(child) > 0 {
			collectPaths(child, path, out)
			continue
		}
		*out = append(*out, path)
	}
}
