package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IniZio/reim/internal/value"
)

// chainStore builds a store whose first subscriber bumps n from 1 to 2
// and whose second subscriber records every view it receives.
func chainStore(t *testing.T, opts ...Option) (*Store, *recorder) {
	t.Helper()
	s := newTestStore(t, value.Object{"n": value.Int(0)}, opts...)

	s.Subscribe(Func(func(v value.Value, _ Meta) {
		if v.(value.Object)["n"] == value.Int(1) {
			s.Set(Patch{"n": value.Int(2)})
		}
	}))
	rec := &recorder{}
	s.Subscribe(rec)
	return s, rec
}

func TestReentrancy_QueueDefersUntilPassCompletes(t *testing.T) {
	fr := &fakeRecorder{}
	s, rec := chainStore(t, WithRecorder(fr))

	s.Set(Patch{"n": value.Int(1)})

	assert.Equal(t, []value.Value{
		value.Object{"n": value.Int(1)},
		value.Object{"n": value.Int(2)},
	}, rec.views())
	assert.Equal(t, int64(1), rec.got[0].Meta.Seq)
	assert.Equal(t, int64(2), rec.got[1].Meta.Seq)
	assert.Equal(t, 1, fr.deferred)
	assert.Equal(t, value.Object{"n": value.Int(2)}, s.State())
}

func TestReentrancy_RecurseRunsNestedPass(t *testing.T) {
	s, rec := chainStore(t, WithReentrancy(ReentrancyRecurse))

	s.Set(Patch{"n": value.Int(1)})

	// The nested pass delivers n=2 first; the outer pass then finds the
	// second subscriber's view unchanged and skips it.
	assert.Equal(t, []value.Value{value.Object{"n": value.Int(2)}}, rec.views())
	assert.Equal(t, int64(2), rec.got[0].Meta.Seq)
	assert.Equal(t, value.Object{"n": value.Int(2)}, s.State())
}

func TestReentrancy_QueuedUpdatesRunInOrder(t *testing.T) {
	s := newTestStore(t, value.Object{"log": value.Array{}},
		WithActions(ActionMap{
			"push": ActionThunk(func(args ...any) Mutation {
				return Update(func(d *value.Draft) {
					cur, _ := d.Get("log")
					next := append(value.Array{}, cur.(value.Array)...)
					d.Set("log", append(next, value.String(args[0].(string))))
				})
			}),
		}))

	fired := false
	s.Subscribe(Func(func(value.Value, Meta) {
		if fired {
			return
		}
		fired = true
		require.NoError(t, s.Dispatch("push", "b"))
		require.NoError(t, s.Dispatch("push", "c"))
	}))

	require.NoError(t, s.Dispatch("push", "a"))

	assert.Equal(t, value.Object{"log": value.Array{
		value.String("a"), value.String("b"), value.String("c"),
	}}, s.State())
}

func TestHandlerPanic_PropagatesByDefault(t *testing.T) {
	s := newTestStore(t, value.Object{"n": value.Int(0)})

	boom := true
	s.Subscribe(Func(func(value.Value, Meta) {
		if boom {
			s.Set(Patch{"deferred": value.Bool(true)})
			panic("boom")
		}
	}))
	after := &recorder{}
	s.Subscribe(after)

	assert.PanicsWithValue(t, "boom", func() { s.Set(Patch{"n": value.Int(1)}) })
	assert.Empty(t, after.got, "remaining subscribers are not notified")
	assert.Equal(t, value.Object{"n": value.Int(1)}, s.State(), "the commit itself stands")

	boom = false
	s.Set(Patch{"n": value.Int(2)})
	assert.Equal(t, value.Object{"n": value.Int(2)}, s.State(), "deferred update dropped after panic")
	assert.Len(t, after.got, 1, "store keeps working after a panic")
}

func TestHandlerPanic_IsolatedWhenEnabled(t *testing.T) {
	fr := &fakeRecorder{}
	s := newTestStore(t, value.Object{"n": value.Int(0)},
		WithHandlerIsolation(true),
		WithRecorder(fr))

	s.Subscribe(Func(func(value.Value, Meta) { panic("boom") }))
	after := &recorder{}
	s.Subscribe(after)

	assert.NotPanics(t, func() { s.Set(Patch{"n": value.Int(1)}) })
	assert.Len(t, after.got, 1)
	assert.Equal(t, 1, fr.panics)
}

func TestParseReentrancy(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Reentrancy
	}{
		{"", ReentrancyQueue},
		{"queue", ReentrancyQueue},
		{"recurse", ReentrancyRecurse},
	} {
		got, err := ParseReentrancy(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		if tt.in != "" {
			assert.Equal(t, tt.in, got.String())
		}
	}

	_, err := ParseReentrancy("parallel")
	assert.ErrorContains(t, err, "invalid reentrancy policy")
}
