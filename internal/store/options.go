package store

import (
	"fmt"
	"log/slog"

	"github.com/IniZio/reim/internal/devtools"
	"github.com/IniZio/reim/internal/registry"
	"github.com/IniZio/reim/internal/value"
)

// Reentrancy decides what happens to an update issued by a subscriber
// while the store is notifying.
type Reentrancy int

const (
	// ReentrancyQueue defers the update until the current notify pass has
	// visited every subscriber, then applies deferred updates in FIFO order.
	ReentrancyQueue Reentrancy = iota

	// ReentrancyRecurse applies the update immediately in a nested pass.
	// The outer pass then continues against the nested result.
	ReentrancyRecurse
)

// String returns the config spelling of r.
func (r Reentrancy) String() string {
	switch r {
	case ReentrancyQueue:
		return "queue"
	case ReentrancyRecurse:
		return "recurse"
	}
	return fmt.Sprintf("Reentrancy(%d)", int(r))
}

// ParseReentrancy parses "queue" or "recurse".
func ParseReentrancy(s string) (Reentrancy, error) {
	switch s {
	case "queue", "":
		return ReentrancyQueue, nil
	case "recurse":
		return ReentrancyRecurse, nil
	}
	return 0, fmt.Errorf("invalid reentrancy policy %q (want queue or recurse)", s)
}

// Transition describes one committed update.
type Transition struct {
	Index   int
	Name    string
	Seq     int64
	Action  string
	Payload []any
	State   value.Value
}

// CommitHook observes every commit after the registry write and before
// subscribers are notified.
type CommitHook func(Transition)

// HistoryFunc returns the state a store committed at seq. Used to resolve
// JUMP_TO_ACTION commands that carry no state.
type HistoryFunc func(index int, seq int64) (value.Value, error)

// Option configures a Store.
type Option func(*Store)

// WithName names the store. Names must be unique within a registry.
func WithName(name string) Option {
	return func(s *Store) {
		s.name = name
	}
}

// WithActions binds action definitions at construction.
func WithActions(actions ActionMap) Option {
	return func(s *Store) {
		for name, def := range actions {
			s.actions[name] = def
		}
	}
}

// WithRegistry uses r instead of the process-wide registry.
func WithRegistry(r *registry.Registry) Option {
	return func(s *Store) {
		s.registry = r
	}
}

// WithDevtools connects the store to a debugger.
func WithDevtools(c devtools.Connector) Option {
	return func(s *Store) {
		s.connector = c
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithRecorder sets the instrumentation sink.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// WithCommitHook adds a hook run on every commit. Hooks run in the order
// they were added.
func WithCommitHook(h CommitHook) Option {
	return func(s *Store) {
		s.hooks = append(s.hooks, h)
	}
}

// WithReentrancy sets the reentrancy policy. Default: ReentrancyQueue.
func WithReentrancy(r Reentrancy) Option {
	return func(s *Store) {
		s.reentrancy = r
	}
}

// WithHandlerIsolation recovers subscriber panics, logs them with a stack
// trace and continues notifying the remaining subscribers. Without it a
// panicking subscriber aborts the rest of the notify pass.
func WithHandlerIsolation(isolate bool) Option {
	return func(s *Store) {
		s.isolate = isolate
	}
}

// WithIDGenerator sets the generator for devtools instance IDs of
// unnamed stores. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithClock sets the commit sequencer. Default: a private Clock.
func WithClock(c Sequencer) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithHistory sets the lookup used for JUMP_TO_ACTION commands.
func WithHistory(h HistoryFunc) Option {
	return func(s *Store) {
		s.history = h
	}
}
