// Package diff computes minimal patches between two form value trees.
//
// A patch only carries what changed: mapping patches contain the keys of the
// new value whose content differs, scalar patches are the new scalar, and
// sequences are compared as a whole. A sequence that differs in any element
// or in length is replaced entirely; per-index patches are never produced.
//
// Equality is deep value equality. All numeric kinds compare numerically, so
// int 30 equals float64 30, and time.Time values compare with Equal.
package diff

import (
	"reflect"

	"github.com/goliatone/go-inlineform/pkg/values"
)

// Patch is the result of Diff. Changed is false when the inputs are equal, in
// which case Value is nil. A changed patch may carry a nil Value, meaning the
// field was cleared.
type Patch struct {
	Value   any
	Changed bool
}

// None reports a patch without differences.
var None = Patch{}

// Map returns the patch value as a mapping when the patch is a changed
// mapping patch.
func (p Patch) Map() (map[string]any, bool) {
	if !p.Changed {
		return nil, false
	}
	m, ok := p.Value.(map[string]any)
	return m, ok
}

// Diff returns the patch turning oldValue into newValue. Patch values share
// structure with newValue; clone them before mutating.
//
// Rules, evaluated in order:
//   - equal values produce no difference
//   - a nil or empty oldValue produces the whole newValue
//   - a nil newValue produces an explicit nil (clear)
//   - scalars of the same kind produce newValue
//   - sequences produce newValue when any element or the length differs
//   - mappings produce the changed keys present in newValue
//
// Operands of different kinds fail with *IncompatibleTypesError.
func Diff(oldValue, newValue any) (Patch, error) {
	return diffAt("", oldValue, newValue)
}

func diffAt(path string, oldValue, newValue any) (Patch, error) {
	if Equal(oldValue, newValue) {
		return None, nil
	}
	if oldValue == nil {
		return Patch{Value: newValue, Changed: true}, nil
	}
	if newValue == nil {
		return Patch{Value: nil, Changed: true}, nil
	}
	if isEmpty(oldValue) && !isEmpty(newValue) {
		return Patch{Value: newValue, Changed: true}, nil
	}

	oldKind, newKind := KindOf(oldValue), KindOf(newValue)
	if oldKind != newKind {
		return None, &IncompatibleTypesError{Path: path, Old: oldKind, New: newKind}
	}

	switch oldKind {
	case KindMapping:
		return diffMapping(path, asMapping(oldValue), asMapping(newValue))
	case KindOther:
		if reflect.TypeOf(oldValue) != reflect.TypeOf(newValue) {
			return None, &IncompatibleTypesError{Path: path, Old: oldKind, New: newKind}
		}
		return Patch{Value: newValue, Changed: true}, nil
	default:
		// Scalars and sequences are replaced as a whole. Equal already
		// compared sequences element by element.
		return Patch{Value: newValue, Changed: true}, nil
	}
}

func diffMapping(path string, oldMap, newMap map[string]any) (Patch, error) {
	result := make(map[string]any)
	for _, key := range values.SortedKeys(newMap) {
		child, err := diffAt(joinPath(path, key), oldMap[key], newMap[key])
		if err != nil {
			return None, err
		}
		if child.Changed {
			result[key] = child.Value
		}
	}
	if len(result) == 0 {
		return None, nil
	}
	return Patch{Value: result, Changed: true}, nil
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func isEmpty(value any) bool {
	switch KindOf(value) {
	case KindNil:
		return true
	case KindString:
		return reflect.ValueOf(value).String() == ""
	case KindSequence, KindMapping:
		return reflect.ValueOf(value).Len() == 0
	default:
		return false
	}
}

func asMapping(value any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		return m
	}
	rv := reflect.ValueOf(value)
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out
}
