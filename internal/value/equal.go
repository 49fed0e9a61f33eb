package value

import (
	"math"
	"reflect"
)

// Equal reports deep structural equality of a and b.
//
// Objects are equal when they have the same key set and pairwise-equal
// members; arrays when they have the same length and pairwise-equal
// elements. Int and Float compare by numeric value. A nil Value only
// equals nil, and Null only equals Null.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		switch bv := b.(type) {
		case Int:
			return av == bv
		case Float:
			return float64(av) == float64(bv)
		}
		return false
	case Float:
		switch bv := b.(type) {
		case Float:
			return av == bv
		case Int:
			return float64(av) == float64(bv)
		}
		return false
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, am := range av {
			bm, present := bv[k]
			if !present || !Equal(am, bm) {
				return false
			}
		}
		return true
	}
	return false
}

// Truthy reports JavaScript-style truthiness.
// nil, Null, false, 0, NaN and "" are falsy. Every Array and Object is
// truthy, including empty ones.
func Truthy(v Value) bool {
	switch val := v.(type) {
	case nil, Null:
		return false
	case Bool:
		return bool(val)
	case Int:
		return val != 0
	case Float:
		f := float64(val)
		return f != 0 && !math.IsNaN(f)
	case String:
		return val != ""
	default:
		return true
	}
}

// Identical reports whether a and b are the same value by identity:
// Objects and Arrays must share backing storage, scalars compare by value.
// Copy-on-write guarantees untouched subtrees stay Identical across updates.
func Identical(a, b Value) bool {
	switch av := a.(type) {
	case Object:
		bv, ok := b.(Object)
		return ok && reflect.ValueOf(av).UnsafePointer() == reflect.ValueOf(bv).UnsafePointer()
	case Array:
		bv, ok := b.(Array)
		return ok && len(av) == len(bv) &&
			reflect.ValueOf(av).UnsafePointer() == reflect.ValueOf(bv).UnsafePointer()
	case Float:
		bv, ok := b.(Float)
		return ok && (av == bv || math.IsNaN(float64(av)) && math.IsNaN(float64(bv)))
	case nil:
		return b == nil
	default:
		if _, isObj := b.(Object); isObj {
			return false
		}
		if _, isArr := b.(Array); isArr {
			return false
		}
		return a == b
	}
}
