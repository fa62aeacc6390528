package diff

import (
	"errors"
	"fmt"
)

// ErrIncompatibleTypes matches every *IncompatibleTypesError.
var ErrIncompatibleTypes = errors.New("diff: incompatible types")

// IncompatibleTypesError reports operands of different kinds at Path. An empty
// Path refers to the root.
type IncompatibleTypesError struct {
	Path string
	Old  Kind
	New  Kind
}

func (e *IncompatibleTypesError) Error() string {
	if e == nil {
		return ErrIncompatibleTypes.Error()
	}
	where := e.Path
	if where == "" {
		where = "<root>"
	}
	return fmt.Sprintf("diff: incompatible types at %s: %s vs %s", where, e.Old, e.New)
}

func (e *IncompatibleTypesError) Is(target error) bool {
	return target == ErrIncompatibleTypes
}
