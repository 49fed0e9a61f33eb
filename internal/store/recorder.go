package store

import "time"

// Recorder receives instrumentation from the update pipeline.
// Labels use the store name, or "#<index>" for unnamed stores.
type Recorder interface {
	// Commit is called once per applied update.
	Commit(store, action string, elapsed time.Duration)

	// Notified reports one notify pass: how many subscribers received the
	// new view and how many were skipped because their view was unchanged.
	Notified(store string, delivered, skipped int)

	// Deferred is called when an update is queued by the reentrancy policy.
	Deferred(store string)

	// HandlerPanic is called when an isolated subscriber panics.
	HandlerPanic(store string)

	// Subscribers reports the current subscriber count.
	Subscribers(store string, n int)
}

type nopRecorder struct{}

func (nopRecorder) Commit(string, string, time.Duration) {}
func (nopRecorder) Notified(string, int, int)            {}
func (nopRecorder) Deferred(string)                      {}
func (nopRecorder) HandlerPanic(string)                  {}
func (nopRecorder) Subscribers(string, int)              {}
