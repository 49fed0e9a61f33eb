package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IniZio/reim/internal/registry"
	"github.com/IniZio/reim/internal/value"
)

func TestStore_AddAndWithBB(t *testing.T) {
	s := newTestStore(t, value.Object{"foo": value.Int(17), "bb": value.Int(2)},
		WithActions(ActionMap{
			"add":    incr("foo", 11),
			"withbb": Thunk(Patch{"bb": value.Int(100)}),
		}))

	add, ok := s.Action("add")
	require.True(t, ok)
	withbb, ok := s.Action("withbb")
	require.True(t, ok)

	add()
	assert.Equal(t, value.Int(28), s.Filter(Key("foo")))

	withbb()
	assert.Equal(t, value.Int(28), s.Filter(Key("foo")))
	assert.Equal(t, value.Int(100), s.Filter(Key("bb")))
}

func TestStore_MergeKeepsUntouchedKeysIdentical(t *testing.T) {
	profile := value.Object{"name": value.String("ann")}
	tags := value.Array{value.String("a")}
	s := newTestStore(t, value.Object{"profile": profile, "tags": tags, "count": value.Int(1)})

	before := s.State()
	s.Set(Patch{"count": value.Int(2)})
	after := s.State().(value.Object)

	assert.Equal(t, value.Int(2), after["count"])
	assert.True(t, value.Identical(profile, after["profile"]))
	assert.True(t, value.Identical(tags, after["tags"]))
	assert.Equal(t, value.Int(1), before.(value.Object)["count"], "previous state must not change")
	assert.False(t, value.Identical(before, after))
}

func TestStore_MagMinusNotifiesOnce(t *testing.T) {
	s := newTestStore(t, value.Object{"mag": value.Int(75)},
		WithActions(ActionMap{"minus": incr("mag", -10)}))

	calls := 0
	s.Subscribe(Func(func(value.Value, Meta) { calls++ }))
	assert.Equal(t, 0, calls, "subscribe without immediate must not fire")

	require.NoError(t, s.Dispatch("minus"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, value.Object{"mag": value.Int(65)}, s.State())
}

func TestStore_PoiUnsubscribeStopsNotifications(t *testing.T) {
	s := newTestStore(t, value.Object{"poi": value.Int(500)},
		WithActions(ActionMap{
			"add":    incr("poi", 30),
			"little": incr("poi", 10),
		}))

	calls := 0
	sub := s.Subscribe(Func(func(value.Value, Meta) { calls++ }))

	require.NoError(t, s.Dispatch("add"))
	assert.Equal(t, 1, calls)

	sub.Unsubscribe()
	require.NoError(t, s.Dispatch("little"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, value.Int(540), s.Filter(Key("poi")))
}

func TestStore_ResetWithNewInitial(t *testing.T) {
	s := newTestStore(t, value.Object{"count": value.Int(123)})

	got := s.Reset(value.Object{"count": value.Int(999)})

	assert.Equal(t, value.Object{"count": value.Int(999)}, got)
	assert.Equal(t, value.Object{"count": value.Int(999)}, s.Filter(nil))
}

func TestStore_ResetRestoresRememberedInitial(t *testing.T) {
	s := newTestStore(t, value.Object{"count": value.Int(1)},
		WithActions(ActionMap{"inc": incr("count", 1)}))

	rec := &recorder{}
	s.Subscribe(rec)

	require.NoError(t, s.Dispatch("inc"))
	require.NoError(t, s.Dispatch("inc"))
	s.Reset(nil)

	assert.Equal(t, value.Object{"count": value.Int(1)}, s.State())
	require.Len(t, rec.got, 3)
	assert.Equal(t, ResetAction, rec.got[2].Meta.Action)
}

func TestStore_ResetIsDiffGated(t *testing.T) {
	s := newTestStore(t, value.Object{"count": value.Int(1)})

	calls := 0
	s.Subscribe(Func(func(value.Value, Meta) { calls++ }))

	s.Reset(nil)
	assert.Equal(t, 0, calls, "reset to an equal state must not notify")
}

func TestStore_ResetMergesOntoObjectState(t *testing.T) {
	s := newTestStore(t, value.Object{"count": value.Int(1)})
	s.Set(Patch{"extra": value.Bool(true), "count": value.Int(5)})

	s.Reset(nil)

	assert.Equal(t, value.Object{"count": value.Int(1), "extra": value.Bool(true)}, s.State())
}

func TestStore_ResetScalar(t *testing.T) {
	s := newTestStore(t, value.Int(10))
	s.Set(Replace{Value: value.Int(3)})

	assert.Equal(t, value.Int(10), s.Reset(nil))
	assert.Equal(t, value.String("x"), s.Reset(value.String("x")))
}

func TestStore_DuplicateNameRejected(t *testing.T) {
	reg := registry.New()

	_, err := New(value.Object{}, WithRegistry(reg), WithName("cart"))
	require.NoError(t, err)

	_, err = New(value.Object{}, WithRegistry(reg), WithName("cart"))
	require.Error(t, err)
	assert.True(t, IsDuplicateName(err))
	assert.True(t, errors.Is(err, ErrDuplicateName))

	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "cart", ce.Name)
	assert.Contains(t, err.Error(), `store "cart"`)

	next, err := New(value.Object{}, WithRegistry(reg))
	require.NoError(t, err)
	assert.Equal(t, 1, next.Index())
}

func TestStore_IndexesAreSequential(t *testing.T) {
	reg := registry.New()
	a, err := New(value.Int(1), WithRegistry(reg))
	require.NoError(t, err)
	b, err := New(value.Int(2), WithRegistry(reg), WithName("b"))
	require.NoError(t, err)

	assert.Equal(t, 0, a.Index())
	assert.Equal(t, 1, b.Index())
	assert.Equal(t, "b", b.Name())
	assert.Equal(t, "", a.Name())
}

func TestStore_CommitRecordedInRegistry(t *testing.T) {
	reg := registry.New()
	s, err := New(value.Object{"n": value.Int(0)}, WithRegistry(reg))
	require.NoError(t, err)

	s.Set(Patch{"n": value.Int(4)})

	got, ok := reg.Lookup(s.Index())
	require.True(t, ok)
	assert.Equal(t, value.Object{"n": value.Int(4)}, got)
}

func TestStore_AdoptsPreloadedState(t *testing.T) {
	reg := registry.New()
	reg.Preload(map[int]value.Value{0: value.Object{"count": value.Int(42)}})

	s, err := New(value.Object{"count": value.Int(0)}, WithRegistry(reg))
	require.NoError(t, err)

	assert.Equal(t, value.Object{"count": value.Int(42)}, s.State())

	s.Reset(nil)
	assert.Equal(t, value.Object{"count": value.Int(0)}, s.State(), "initial is the caller-supplied value")
}

func TestStore_HotReloadContinuity(t *testing.T) {
	reg := registry.New()
	first, err := New(value.Object{"n": value.Int(0)}, WithRegistry(reg), WithName("counter"))
	require.NoError(t, err)
	first.Set(Patch{"n": value.Int(9)})

	reg.Rewind()

	second, err := New(value.Object{"n": value.Int(0)}, WithRegistry(reg), WithName("counter"))
	require.NoError(t, err)
	assert.Equal(t, first.Index(), second.Index())
	assert.Equal(t, value.Object{"n": value.Int(9)}, second.State())
}

func TestStore_DispatchUnknownAction(t *testing.T) {
	s := newTestStore(t, value.Object{})

	err := s.Dispatch("nope")
	require.Error(t, err)
	assert.True(t, IsUnknownAction(err))
	assert.Contains(t, err.Error(), `"nope"`)

	_, ok := s.Action("nope")
	assert.False(t, ok)
}

func TestStore_ActionArgumentsAndMeta(t *testing.T) {
	addN := ActionThunk(func(args ...any) Mutation {
		n := args[0].(int)
		return Update(func(d *value.Draft) {
			d.Set("count", value.Int(d.Int("count")+int64(n)))
		})
	})
	s := newTestStore(t, value.Object{"count": value.Int(0)},
		WithName("counter"),
		WithActions(ActionMap{"addN": addN}))

	rec := &recorder{}
	s.Subscribe(rec)

	require.NoError(t, s.Dispatch("addN", 5))
	fn, ok := s.Action("addN")
	require.True(t, ok)
	fn(2)

	assert.Equal(t, value.Object{"count": value.Int(7)}, s.State())
	require.Len(t, rec.got, 2)
	assert.Equal(t, Meta{Action: "addN", Name: "counter", Payload: []any{5}, Seq: 1}, rec.got[0].Meta)
	assert.Equal(t, Meta{Action: "addN", Name: "counter", Payload: []any{2}, Seq: 2}, rec.got[1].Meta)
}

func TestStore_SetAnonymousMeta(t *testing.T) {
	s := newTestStore(t, value.Object{"a": value.Int(0)})
	rec := &recorder{}
	s.Subscribe(rec)

	s.Set(Patch{"a": value.Int(1)})

	require.Len(t, rec.got, 1)
	assert.Equal(t, SetAction, rec.got[0].Meta.Action)
	assert.Empty(t, rec.got[0].Meta.Payload)
}

func TestStore_BindOverwritesSilently(t *testing.T) {
	s := newTestStore(t, value.Object{"n": value.Int(0)},
		WithActions(ActionMap{"bump": incr("n", 1)}))

	s.Bind(ActionMap{"bump": incr("n", 100), "other": incr("n", 2)})
	require.NoError(t, s.Dispatch("bump"))

	assert.Equal(t, value.Int(100), s.Filter(Key("n")))
	assert.Equal(t, []string{"bump", "other"}, s.Actions())
}

func TestStore_Plugin(t *testing.T) {
	s := newTestStore(t, value.Object{"n": value.Int(1)})

	got := s.Plugin(func(st *Store) any { return st.Filter(Key("n")) })
	assert.Equal(t, value.Int(1), got)

	same := s.Plugin(func(*Store) any { return nil })
	assert.Same(t, s, same)
}

func TestStore_Observable(t *testing.T) {
	s := newTestStore(t, value.Object{"n": value.Int(1)})

	var obs Observable = s.Observable()
	rec := &recorder{}
	obs.Subscribe(rec, Immediate())

	assert.Equal(t, []value.Value{value.Object{"n": value.Int(1)}}, rec.views())
}

func TestStore_CommitHookOrdering(t *testing.T) {
	reg := registry.New()
	notified := false
	var seen []Transition

	s, err := New(value.Object{"n": value.Int(0)},
		WithRegistry(reg),
		WithName("hooked"),
		WithCommitHook(func(tr Transition) {
			committed, ok := reg.Lookup(tr.Index)
			require.True(t, ok)
			assert.Equal(t, tr.State, committed, "registry is written before hooks")
			assert.False(t, notified, "hooks run before notify")
			seen = append(seen, tr)
		}))
	require.NoError(t, err)
	s.Subscribe(Func(func(value.Value, Meta) { notified = true }))

	s.Set(Patch{"n": value.Int(1)}, "arg")

	require.Len(t, seen, 1)
	assert.Equal(t, Transition{
		Index:   0,
		Name:    "hooked",
		Seq:     1,
		Action:  SetAction,
		Payload: []any{"arg"},
		State:   value.Object{"n": value.Int(1)},
	}, seen[0])
	assert.True(t, notified)
}

func TestStore_SharedClockOrdersAcrossStores(t *testing.T) {
	reg := registry.New()
	clock := NewClock()
	a, err := New(value.Int(0), WithRegistry(reg), WithClock(clock))
	require.NoError(t, err)
	b, err := New(value.Int(0), WithRegistry(reg), WithClock(clock))
	require.NoError(t, err)

	var seqs []int64
	obs := Func(func(_ value.Value, m Meta) { seqs = append(seqs, m.Seq) })
	a.Subscribe(obs)
	b.Subscribe(obs)

	a.Set(Replace{Value: value.Int(1)})
	b.Set(Replace{Value: value.Int(1)})
	a.Set(Replace{Value: value.Int(2)})

	assert.Equal(t, []int64{1, 2, 3}, seqs)
	assert.Equal(t, int64(3), clock.Current())
}

func TestStore_RecorderInstrumentation(t *testing.T) {
	fr := &fakeRecorder{}
	s := newTestStore(t, value.Object{"a": value.Int(0), "b": value.Int(0)}, WithRecorder(fr))

	s.Subscribe(Func(func(value.Value, Meta) {}), WithFilter(Path("a")))
	s.Subscribe(Func(func(value.Value, Meta) {}), WithFilter(Path("b")))
	assert.Equal(t, 2, fr.subscribers)

	s.Set(Patch{"a": value.Int(1)})

	assert.Equal(t, []string{SetAction}, fr.commits)
	assert.Equal(t, 1, fr.delivered)
	assert.Equal(t, 1, fr.skipped)
}
