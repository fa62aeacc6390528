package diff

import (
	"encoding/json"
	"math"
	"reflect"
	"time"
)

// Kind classifies a tree node for diffing.
type Kind int

const (
	KindNil Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
	KindSequence
	KindMapping
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "other"
	}
}

var timeType = reflect.TypeOf(time.Time{})

// KindOf reports the kind of value. Byte slices are treated as opaque values,
// maps without string keys as KindOther.
func KindOf(value any) Kind {
	if value == nil {
		return KindNil
	}
	if _, ok := value.(json.Number); ok {
		return KindNumber
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return KindNumber
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return KindOther
		}
		return KindSequence
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return KindOther
		}
		return KindMapping
	case reflect.Struct:
		if rv.Type() == timeType {
			return KindTime
		}
		return KindOther
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return KindNil
		}
		return KindOther
	default:
		return KindOther
	}
}

// Equal reports deep value equality of two tree nodes.
func Equal(a, b any) bool {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case KindNil:
		return true
	case KindString:
		return reflect.ValueOf(a).String() == reflect.ValueOf(b).String()
	case KindBool:
		return reflect.ValueOf(a).Bool() == reflect.ValueOf(b).Bool()
	case KindNumber:
		return numbersEqual(a, b)
	case KindTime:
		return a.(time.Time).Equal(b.(time.Time))
	case KindSequence:
		ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
		if ra.Len() != rb.Len() {
			return false
		}
		for i := 0; i < ra.Len(); i++ {
			if !Equal(ra.Index(i).Interface(), rb.Index(i).Interface()) {
				return false
			}
		}
		return true
	case KindMapping:
		ma, mb := asMapping(a), asMapping(b)
		if len(ma) != len(mb) {
			return false
		}
		for key, va := range ma {
			vb, ok := mb[key]
			if !ok || !Equal(va, vb) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

func numbersEqual(a, b any) bool {
	ia, aInt := asInt(a)
	ib, bInt := asInt(b)
	if aInt && bInt {
		return ia == ib
	}
	fa, fb := asFloat(a), asFloat(b)
	if math.IsNaN(fa) && math.IsNaN(fb) {
		return true
	}
	return fa == fb
}

func asInt(value any) (int64, bool) {
	if n, ok := value.(json.Number); ok {
		i, err := n.Int64()
		return i, err == nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	default:
		return 0, false
	}
}

func asFloat(value any) float64 {
	if n, ok := value.(json.Number); ok {
		f, err := n.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	default:
		return math.NaN()
	}
}
