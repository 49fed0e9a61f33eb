package store

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"time"

	"github.com/IniZio/reim/internal/devtools"
	"github.com/IniZio/reim/internal/registry"
	"github.com/IniZio/reim/internal/value"
)

// Action labels for updates that do not come from a bound action.
const (
	SetAction   = "set"
	ResetAction = "reset"
)

// Store holds one state value and notifies subscribers of changes.
//
// INVARIANTS:
//   - state is replaced on every commit, never modified in place
//   - the registry holds the latest committed state under index
//   - subs is in registration order
type Store struct {
	index      int
	name       string
	instanceID string

	initial value.Value
	state   value.Value

	subs      []*subscriber
	nextSubID int

	actions ActionMap

	registry   *registry.Registry
	connector  devtools.Connector
	conn       devtools.Conn
	logger     *slog.Logger
	recorder   Recorder
	hooks      []CommitHook
	history    HistoryFunc
	ids        IDGenerator
	clock      Sequencer
	reentrancy Reentrancy
	isolate    bool

	queue     *updateQueue
	notifying bool
}

// New creates a store holding initial.
//
// The store claims the next index of its registry. When a state was
// already committed at that index (preload or hot reload), the store
// starts from that state; initial is still remembered for Reset.
//
// A duplicate name is rejected with a *ConfigError wrapping
// ErrDuplicateName; no index is consumed in that case.
func New(initial value.Value, opts ...Option) (*Store, error) {
	s := &Store{
		actions:   make(ActionMap),
		registry:  registry.Default(),
		connector: devtools.Nop{},
		logger:    slog.Default(),
		recorder:  nopRecorder{},
		ids:       UUIDv7Generator{},
		queue:     newUpdateQueue(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.clock == nil {
		s.clock = NewClock()
	}

	slot, err := s.registry.Claim(s.name, initial)
	if err != nil {
		return nil, &ConfigError{Name: s.name, Err: err}
	}

	s.index = slot.Index
	s.state = slot.State
	s.initial = initial

	s.connect()

	s.logger.Debug("store created",
		"store", s.label(),
		"index", s.index,
		"adopted", slot.Adopted,
		"actions", len(s.actions))

	return s, nil
}

// Index returns the registry index of the store.
func (s *Store) Index() int {
	return s.index
}

// Name returns the store name, empty for unnamed stores.
func (s *Store) Name() string {
	return s.name
}

// InstanceID returns the ID the store registered with the debugger, or
// "" when no debugger is connected.
func (s *Store) InstanceID() string {
	return s.instanceID
}

// State returns the current state. The returned value must be treated as
// immutable.
func (s *Store) State() value.Value {
	return s.state
}

// Filter returns the view f selects from the current state.
func (s *Store) Filter(f Filter) value.Value {
	return Resolve(s.state, f)
}

// Set applies m. When args are given and m is an ActionThunk, m is first
// called with args to obtain the Mutation.
func (s *Store) Set(m Mutation, args ...any) {
	s.update(SetAction, m, args)
}

// Reset applies the remembered initial state through the normal update
// pipeline, so subscribers only fire if their view changes. A non-nil
// newInitial replaces the remembered initial first.
//
// For Object state the initial is merged onto the current state. Returns
// the state after the update; under ReentrancyQueue a Reset issued from a
// subscriber returns before the reset is applied.
func (s *Store) Reset(newInitial value.Value) value.Value {
	if newInitial != nil {
		s.initial = newInitial
	}
	initial := s.initial

	s.update(ResetAction, ActionThunk(func(...any) Mutation {
		return Replace{Value: initial}
	}), nil)

	return s.state
}

// Plugin calls fn with the store and returns its result, or the store
// itself when fn returns nil.
func (s *Store) Plugin(fn func(*Store) any) any {
	if out := fn(s); out != nil {
		return out
	}
	return s
}

// Observable returns the store as an Observable.
func (s *Store) Observable() Observable {
	return s
}

// Subscribe registers obs. The initial view is computed now and cached;
// obs only receives a view that differs from the last one it received.
func (s *Store) Subscribe(obs Observer, opts ...SubscribeOption) *Subscription {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s.nextSubID++
	sub := &subscriber{
		id:       s.nextSubID,
		observer: obs,
		filter:   cfg.filter,
		cached:   Resolve(s.state, cfg.filter),
	}
	s.subs = append(s.subs, sub)
	s.recorder.Subscribers(s.label(), len(s.subs))

	if cfg.immediate {
		s.deliver(sub, sub.cached, Meta{})
	}

	return &Subscription{store: s, id: sub.id}
}

// Unsubscribe removes the first subscription registered with obs.
// Unknown or non-comparable observers are ignored.
func (s *Store) Unsubscribe(obs Observer) {
	if !isComparable(obs) {
		s.logger.Debug("unsubscribe ignored: observer not comparable",
			"store", s.label(), "type", fmt.Sprintf("%T", obs))
		return
	}
	s.removeSubscriber(func(sub *subscriber) bool { return sub.observer == obs })
}

// SubscriberCount returns the number of active subscriptions.
func (s *Store) SubscriberCount() int {
	return len(s.subs)
}

func (s *Store) removeSubscriber(match func(*subscriber) bool) bool {
	i := slices.IndexFunc(s.subs, match)
	if i < 0 {
		return false
	}
	s.subs[i].removed = true
	s.subs = slices.Delete(s.subs, i, i+1)
	s.recorder.Subscribers(s.label(), len(s.subs))
	return true
}

func (s *Store) label() string {
	if s.name != "" {
		return s.name
	}
	return fmt.Sprintf("#%d", s.index)
}

// update runs or defers one update according to the reentrancy policy.
// The outermost update drains updates deferred during its notify pass.
func (s *Store) update(action string, m Mutation, args []any) {
	if s.notifying {
		if s.reentrancy == ReentrancyRecurse {
			s.commit(action, m, args)
			return
		}
		s.queue.push(pendingUpdate{action: action, mutation: m, args: args})
		s.recorder.Deferred(s.label())
		s.logger.Debug("update deferred",
			"store", s.label(),
			"action", action,
			"pending", s.queue.len())
		return
	}

	completed := false
	defer func() {
		if completed {
			return
		}
		if n := s.queue.clear(); n > 0 {
			s.logger.Warn("deferred updates dropped after panic", "store", s.label(), "dropped", n)
		}
	}()

	s.commit(action, m, args)
	for {
		next, ok := s.queue.pop()
		if !ok {
			break
		}
		s.commit(next.action, next.mutation, next.args)
	}
	completed = true
}

// commit applies one update and runs the registry, hook, debugger and
// notify steps in that order.
func (s *Store) commit(action string, m Mutation, args []any) {
	start := time.Now()

	next := s.apply(s.state, resolveArgs(m, args))
	s.state = next
	seq := s.clock.Next()

	s.registry.Commit(s.index, next)

	if len(s.hooks) > 0 {
		tr := Transition{
			Index:   s.index,
			Name:    s.name,
			Seq:     seq,
			Action:  action,
			Payload: args,
			State:   next,
		}
		for _, hook := range s.hooks {
			hook(tr)
		}
	}

	if s.conn != nil {
		if err := s.conn.Send(action, next); err != nil {
			s.logger.Warn("devtools send failed", "store", s.label(), "seq", seq, "error", err)
		}
	}

	s.recorder.Commit(s.label(), action, time.Since(start))
	s.logger.Debug("state committed", "store", s.label(), "action", action, "seq", seq)

	s.notify(Meta{Action: action, Name: s.name, Payload: args, Seq: seq})
}

// notify delivers the new view to every subscriber whose view changed.
// Subscribers added during the pass are not visited; subscribers removed
// during the pass are skipped.
func (s *Store) notify(meta Meta) {
	prev := s.notifying
	s.notifying = true
	defer func() { s.notifying = prev }()

	delivered, skipped := 0, 0
	for _, sub := range slices.Clone(s.subs) {
		if sub.removed {
			continue
		}
		view := Resolve(s.state, sub.filter)
		if value.Equal(view, sub.cached) {
			skipped++
			continue
		}
		sub.cached = view
		s.deliver(sub, view, meta)
		delivered++
	}

	s.recorder.Notified(s.label(), delivered, skipped)
}

// deliver invokes the observer. With handler isolation enabled a panic is
// recovered and logged with its stack, and delivery to the remaining
// subscribers continues.
func (s *Store) deliver(sub *subscriber, view value.Value, meta Meta) {
	if !s.isolate {
		sub.observer.Next(view, meta)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.recorder.HandlerPanic(s.label())
			s.logger.Error("subscriber panicked",
				"store", s.label(),
				"subscriber", sub.id,
				"seq", meta.Seq,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	sub.observer.Next(view, meta)
}

// connect registers with the debugger unless it is the no-op default.
func (s *Store) connect() {
	if s.connector == nil {
		return
	}
	if _, nop := s.connector.(devtools.Nop); nop {
		return
	}

	id := s.name
	if id == "" {
		id = s.ids.Generate()
	}

	conn, err := s.connector.Connect(devtools.ConnectOptions{InstanceID: id})
	if err != nil {
		s.logger.Warn("devtools unavailable", "store", s.label(), "error", err)
		return
	}

	s.instanceID = id
	s.conn = conn
	conn.Subscribe(s.handleCommand)

	if err := conn.Init(s.Filter(nil)); err != nil {
		s.logger.Warn("devtools init failed", "store", s.label(), "error", err)
	}
}

// handleCommand applies a debugger jump addressed to this store.
func (s *Store) handleCommand(msg devtools.Message) {
	if msg.ID != s.instanceID {
		return
	}

	state, ok, err := msg.Jump()
	if !ok {
		return
	}
	if err != nil {
		s.logger.Warn("devtools jump rejected", "store", s.label(), "error", err)
		return
	}

	if state == nil {
		if s.history == nil || msg.Payload.ActionID == 0 {
			s.logger.Debug("devtools jump without state ignored", "store", s.label())
			return
		}
		state, err = s.history(s.index, msg.Payload.ActionID)
		if err != nil || state == nil {
			s.logger.Warn("devtools jump target not found",
				"store", s.label(),
				"seq", msg.Payload.ActionID,
				"error", err)
			return
		}
	}

	s.logger.Debug("devtools jump", "store", s.label(), "kind", msg.Payload.Type)
	s.Reset(state)
}
