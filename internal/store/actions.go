package store

import (
	"fmt"
	"maps"
	"slices"
)

// ActionMap maps action names to their definitions. A definition is
// usually an ActionThunk; any Mutation is accepted.
type ActionMap map[string]Mutation

// Bind adds actions to the store. A name that is already bound is
// silently rebound to the new definition.
func (s *Store) Bind(actions ActionMap) {
	for name, def := range actions {
		if _, exists := s.actions[name]; exists {
			s.logger.Debug("action rebound", "store", s.label(), "action", name)
		}
		s.actions[name] = def
	}
}

// Action returns a callable for a bound action. Calling it runs
// Set(definition, args...) labelled with the action name.
func (s *Store) Action(name string) (func(args ...any), bool) {
	def, ok := s.actions[name]
	if !ok {
		return nil, false
	}
	return func(args ...any) {
		s.update(name, def, args)
	}, true
}

// Dispatch runs the bound action name with args.
func (s *Store) Dispatch(name string, args ...any) error {
	def, ok := s.actions[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	s.update(name, def, args)
	return nil
}

// Actions returns the bound action names in sorted order.
func (s *Store) Actions() []string {
	return slices.Sorted(maps.Keys(s.actions))
}
