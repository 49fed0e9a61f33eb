package store

import (
	"reflect"

	"github.com/IniZio/reim/internal/value"
)

// Meta describes the update that produced a notification.
// Immediate deliveries on Subscribe carry a zero Meta.
type Meta struct {
	// Action is the bound action name, SetAction for anonymous updates
	// or ResetAction for Reset.
	Action string

	// Name is the store name, empty for unnamed stores.
	Name string

	// Payload holds the arguments the update was called with.
	Payload []any

	// Seq is the commit sequence number.
	Seq int64
}

// Observer receives filtered views of a store's state.
type Observer interface {
	Next(v value.Value, meta Meta)
}

// Func adapts a callback into an Observer. Each call returns a distinct
// Observer that can later be passed to Store.Unsubscribe.
func Func(fn func(v value.Value, meta Meta)) Observer {
	return &funcObserver{fn: fn}
}

type funcObserver struct {
	fn func(value.Value, Meta)
}

func (o *funcObserver) Next(v value.Value, meta Meta) {
	o.fn(v, meta)
}

// Observable is the subscribe capability shared by stores and any
// stream consumer that works with Observers.
type Observable interface {
	Subscribe(obs Observer, opts ...SubscribeOption) *Subscription
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	immediate bool
	filter    Filter
}

// Immediate delivers the current view synchronously on subscribe.
func Immediate() SubscribeOption {
	return func(c *subscribeConfig) { c.immediate = true }
}

// WithFilter restricts the subscription to the view f selects.
func WithFilter(f Filter) SubscribeOption {
	return func(c *subscribeConfig) { c.filter = f }
}

type subscriber struct {
	id       int
	observer Observer
	filter   Filter
	cached   value.Value
	removed  bool
}

// Subscription is the disposer returned by Subscribe.
type Subscription struct {
	store *Store
	id    int
}

// Unsubscribe removes this subscription. Calling it more than once is a
// no-op.
func (sub *Subscription) Unsubscribe() {
	sub.store.removeSubscriber(func(s *subscriber) bool { return s.id == sub.id })
}

// isComparable reports whether obs can be matched with ==.
func isComparable(obs Observer) bool {
	return obs != nil && reflect.TypeOf(obs).Comparable()
}
