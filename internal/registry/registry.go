// Package registry tracks the last committed state of every store
// instance, keyed by a sequential instance index.
//
// The registry backs snapshot, stringify and preload, and provides
// hot-reload continuity: a store constructed at an index that already has
// a committed state adopts that state instead of its own initial value.
//
// A process-wide registry is available through Default; tests and hosts
// that need isolation construct their own with New.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/IniZio/reim/internal/value"
)

// ErrDuplicateName is returned by Claim when the name is already held by
// another instance.
var ErrDuplicateName = errors.New("registry: duplicate instance name")

// Slot describes the identity and starting state handed to a new instance.
type Slot struct {
	Index int
	Name  string

	// State is the state the instance starts from: the previously
	// committed state when Adopted is true, otherwise the caller's initial.
	State   value.Value
	Adopted bool
}

// Registry maps instance indexes to their most recently committed state.
//
// Safe for concurrent use. Stores themselves are single-threaded, but
// several stores on different goroutines may share one registry.
type Registry struct {
	mu     sync.Mutex
	next   int
	states map[int]value.Value
	names  map[string]int
}

// New creates an empty registry whose first index is 0.
func New() *Registry {
	return &Registry{
		states: make(map[int]value.Value),
		names:  make(map[string]int),
	}
}

var defaultRegistry = New()

// Default returns the process-wide registry used by stores that are not
// given one explicitly.
func Default() *Registry {
	return defaultRegistry
}

// Claim assigns the next index to a new instance.
//
// A non-empty name must be unique; the name is checked before an index is
// consumed, so a rejected claim leaves the counter untouched. If a state
// was already committed at the assigned index it is adopted, otherwise
// initial is recorded.
func (r *Registry) Claim(name string, initial value.Value) (Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name != "" {
		if idx, taken := r.names[name]; taken {
			return Slot{}, fmt.Errorf("%w: %q is held by instance %d", ErrDuplicateName, name, idx)
		}
	}

	slot := Slot{Index: r.next, Name: name}
	r.next++

	if prev, ok := r.states[slot.Index]; ok {
		slot.State = prev
		slot.Adopted = true
		slog.Debug("registry slot adopted", "index", slot.Index, "name", name)
	} else {
		slot.State = initial
		r.states[slot.Index] = initial
	}

	if name != "" {
		r.names[name] = slot.Index
	}
	return slot, nil
}

// Commit records v as the latest state for index.
func (r *Registry) Commit(index int, v value.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[index] = v
}

// Lookup returns the committed state for index.
func (r *Registry) Lookup(index int) (value.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.states[index]
	return v, ok
}

// Len returns the number of indexes holding a state.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Snapshot returns a copy of the index to state mapping.
// The states themselves are immutable and shared.
func (r *Registry) Snapshot() map[int]value.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.states)
}

// Stringify serializes the snapshot as a JSON object keyed by decimal
// index, in ascending index order. Every '<' is written as \u003c so the
// output can be embedded inside a markup script element.
func (r *Registry) Stringify() (string, error) {
	snap := r.Snapshot()

	indexes := slices.Sorted(maps.Keys(snap))

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, idx := range indexes {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.Itoa(idx))
		buf.WriteString(`":`)

		data, err := value.MarshalCanonical(snap[idx])
		if err != nil {
			return "", fmt.Errorf("stringify instance %d: %w", idx, err)
		}
		buf.Write(data)
	}
	buf.WriteByte('}')

	return string(bytes.ReplaceAll(buf.Bytes(), []byte("<"), []byte(`\u003c`))), nil
}

// Preload replaces the whole mapping and resets the index counter to
// zero. It is meant to run before any store is constructed, so that new
// stores adopt the preloaded states by index. Claimed names are kept.
func (r *Registry) Preload(states map[int]value.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next = 0
	r.states = make(map[int]value.Value, len(states))
	maps.Copy(r.states, states)
}

// PreloadJSON parses output of Stringify and preloads it.
func (r *Registry) PreloadJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("preload: %w", err)
	}

	states := make(map[int]value.Value, len(raw))
	for key, msg := range raw {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			return fmt.Errorf("preload: invalid instance index %q", key)
		}
		v, err := value.Unmarshal(msg)
		if err != nil {
			return fmt.Errorf("preload instance %d: %w", idx, err)
		}
		states[idx] = v
	}

	r.Preload(states)
	return nil
}

// Rewind prepares the registry for a hot reload: the index counter goes
// back to zero and names are released, while committed states are kept
// for the reconstructed stores to adopt.
func (r *Registry) Rewind() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next = 0
	clear(r.names)
	slog.Debug("registry rewound", "states", len(r.states))
}

// Close clears all states, names and the index counter.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next = 0
	clear(r.states)
	clear(r.names)
}
