package store

import (
	"github.com/IniZio/reim/internal/value"
)

// Mutation describes how to transform a store's state.
//
// Variants:
//   - Patch: shallow-merged onto Object state
//   - Replace: a plain value, merged like a Patch when it is an Object
//     and the state is an Object, otherwise the new state
//   - DraftMutator: edits the draft in place and optionally returns a
//     follow-up Mutation
//   - ActionThunk: an action definition; called with the update's
//     arguments to produce the Mutation
//
// A nil Mutation returned from a callable means "the draft is the result".
type Mutation interface {
	mutation() // Sealed - only this package's variants implement it
}

// Patch is an Object to shallow-merge onto the state.
type Patch value.Object

// Replace is a non-callable value.
type Replace struct {
	Value value.Value
}

// DraftMutator receives a mutable draft of the state.
type DraftMutator func(d *value.Draft) Mutation

// ActionThunk computes a Mutation from call-time arguments.
type ActionThunk func(args ...any) Mutation

func (Patch) mutation()        {}
func (Replace) mutation()      {}
func (DraftMutator) mutation() {}
func (ActionThunk) mutation()  {}

// Update adapts an in-place edit into a DraftMutator that returns nil.
func Update(fn func(d *value.Draft)) DraftMutator {
	return func(d *value.Draft) Mutation {
		fn(d)
		return nil
	}
}

// Thunk wraps a Mutation in an ActionThunk that ignores its arguments.
func Thunk(m Mutation) ActionThunk {
	return func(...any) Mutation { return m }
}

// resolveArgs applies call-time arguments: an ActionThunk invoked with a
// non-empty argument list is replaced by its result. Every other
// Mutation is used as is.
func resolveArgs(m Mutation, args []any) Mutation {
	if len(args) == 0 {
		return m
	}
	if thunk, ok := m.(ActionThunk); ok {
		return thunk(args...)
	}
	return m
}

func isCallable(m Mutation) bool {
	switch m.(type) {
	case DraftMutator, ActionThunk:
		return true
	}
	return false
}

// invoke calls a callable Mutation with the draft. ActionThunks reached
// here are called without arguments.
func invoke(m Mutation, d *value.Draft) Mutation {
	switch fn := m.(type) {
	case DraftMutator:
		return fn(d)
	case ActionThunk:
		return fn()
	}
	return m
}

// plain returns the value carried by a non-callable Mutation.
func plain(m Mutation) value.Value {
	switch p := m.(type) {
	case Patch:
		return value.Object(p)
	case Replace:
		return p.Value
	}
	return nil
}

// apply runs the two-stage resolution of m against state and returns the
// new state. state is never modified.
func (s *Store) apply(state value.Value, m Mutation) value.Value {
	d := value.NewDraft(state)

	if !isCallable(m) {
		if value.IsStructured(state) {
			s.merge(d, m)
			return d.Value()
		}
		return plain(m)
	}

	first := invoke(m, d)

	if isCallable(first) {
		second := invoke(first, d)
		if isCallable(second) {
			s.logger.Debug("third-stage mutation ignored", "store", s.label())
			return d.Value()
		}
		if second == nil {
			return d.Value()
		}
		return plain(second)
	}

	if value.IsStructured(state) {
		s.merge(d, first)
		return d.Value()
	}
	if first == nil {
		return d.Value()
	}
	return plain(first)
}

// merge shallow-assigns an Object-valued Mutation onto the draft. Any
// other value is ignored.
func (s *Store) merge(d *value.Draft, m Mutation) {
	if m == nil {
		return
	}
	obj, ok := plain(m).(value.Object)
	if !ok {
		s.logger.Debug("non-object merge ignored", "store", s.label(), "kind", value.Kind(plain(m)))
		return
	}
	d.Merge(obj)
}
