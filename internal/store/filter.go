package store

import (
	"strings"

	"github.com/IniZio/reim/internal/value"
)

// Filter selects the derived view of the state a caller is interested in.
// A nil Filter selects the whole state.
type Filter interface {
	filter() // Sealed
}

// All selects the whole state.
func All() Filter { return allFilter{} }

type allFilter struct{}

// Key selects state[key] when that member is truthy. When the member is
// falsy or missing the whole state is selected instead.
type Key string

// Selector derives a view from the whole state.
type Selector func(state value.Value) value.Value

// SelectorMap derives an Object view: each key maps to its selector's
// result.
type SelectorMap map[string]Selector

// Path selects a nested member by dot-separated keys, or nil when any
// segment is missing.
func Path(path string) Filter {
	if path == "" {
		return allFilter{}
	}
	return pathFilter(strings.Split(path, "."))
}

type pathFilter []string

func (allFilter) filter()   {}
func (Key) filter()         {}
func (Selector) filter()    {}
func (SelectorMap) filter() {}
func (pathFilter) filter()  {}

// Resolve computes the view f selects from state.
func Resolve(state value.Value, f Filter) value.Value {
	switch sel := f.(type) {
	case nil, allFilter:
		return state
	case Key:
		if obj, ok := state.(value.Object); ok {
			if member := obj[string(sel)]; value.Truthy(member) {
				return member
			}
		}
		return state
	case Selector:
		if sel == nil {
			return state
		}
		return sel(state)
	case SelectorMap:
		out := make(value.Object, len(sel))
		for key, fn := range sel {
			if fn == nil {
				out[key] = nil
				continue
			}
			out[key] = fn(state)
		}
		return out
	case pathFilter:
		cur := state
		for _, seg := range sel {
			obj, ok := cur.(value.Object)
			if !ok {
				return nil
			}
			cur = obj[seg]
		}
		return cur
	default:
		return state
	}
}
