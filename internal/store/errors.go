package store

import (
	"errors"
	"fmt"

	"github.com/IniZio/reim/internal/registry"
)

// ErrDuplicateName is wrapped by the error New returns when the store
// name is already held by another instance in the same registry.
var ErrDuplicateName = registry.ErrDuplicateName

// ErrUnknownAction is returned by Dispatch for names that are not bound.
var ErrUnknownAction = errors.New("store: unknown action")

// ConfigError reports a store that could not be constructed.
type ConfigError struct {
	// Name is the requested store name, possibly empty.
	Name string

	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("store %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("store: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsDuplicateName returns true if err reports a duplicate store name.
// Uses errors.As to handle wrapped errors.
func IsDuplicateName(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return errors.Is(ce.Err, ErrDuplicateName)
	}
	return false
}

// IsUnknownAction returns true if err reports an unbound action name.
func IsUnknownAction(err error) bool {
	return errors.Is(err, ErrUnknownAction)
}
