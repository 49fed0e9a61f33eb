package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IniZio/reim/internal/registry"
	"github.com/IniZio/reim/internal/value"
)

// newTestStore builds a store on a private registry.
func newTestStore(t *testing.T, initial value.Value, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithRegistry(registry.New())}, opts...)
	s, err := New(initial, opts...)
	require.NoError(t, err)
	return s
}

// notification is one delivery seen by a recorder observer.
type notification struct {
	View value.Value
	Meta Meta
}

// recorder collects deliveries.
type recorder struct {
	got []notification
}

func (r *recorder) Next(v value.Value, meta Meta) {
	r.got = append(r.got, notification{View: v, Meta: meta})
}

func (r *recorder) views() []value.Value {
	out := make([]value.Value, len(r.got))
	for i, n := range r.got {
		out[i] = n.View
	}
	return out
}

// incr returns an action that adds by to the integer member key.
func incr(key string, by int64) ActionThunk {
	return Thunk(Update(func(d *value.Draft) {
		d.Set(key, value.Int(d.Int(key)+by))
	}))
}

// fakeRecorder counts instrumentation calls.
type fakeRecorder struct {
	mu          sync.Mutex
	commits     []string
	delivered   int
	skipped     int
	deferred    int
	panics      int
	subscribers int
}

func (f *fakeRecorder) Commit(_ string, action string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, action)
}

func (f *fakeRecorder) Notified(_ string, delivered, skipped int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered += delivered
	f.skipped += skipped
}

func (f *fakeRecorder) Deferred(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deferred++
}

func (f *fakeRecorder) HandlerPanic(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics++
}

func (f *fakeRecorder) Subscribers(_ string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers = n
}
