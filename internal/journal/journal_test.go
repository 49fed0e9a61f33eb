package journal

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IniZio/reim/internal/devtools"
	"github.com/IniZio/reim/internal/registry"
	"github.com/IniZio/reim/internal/store"
	"github.com/IniZio/reim/internal/value"
)

// openTestJournal opens a journal closed at test end.
func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func transition(index int, seq int64, action string, state value.Value, args ...any) store.Transition {
	return store.Transition{Index: index, Seq: seq, Action: action, Payload: args, State: state}
}

func TestOpen_AppliesSchema(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	version, err := j.schemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	n, err := j.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_JournalsAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := openTestJournal(t)
	b := openTestJournal(t)

	require.NoError(t, a.Record(ctx, transition(0, 1, "set", value.Int(1))))

	n, err := b.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordAndAt(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	state := value.Object{"count": value.Int(2), "tags": value.Array{value.String("x")}}
	require.NoError(t, j.Record(ctx, transition(3, 7, "inc", state)))

	got, err := j.At(ctx, 3, 7)
	require.NoError(t, err)
	assert.Equal(t, state, got)
}

func TestAt_NotFound(t *testing.T) {
	j := openTestJournal(t)

	_, err := j.At(context.Background(), 0, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "index 0 seq 42")
}

func TestRecord_DuplicateKeepsFirst(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	require.NoError(t, j.Record(ctx, transition(0, 1, "set", value.Int(1))))
	require.NoError(t, j.Record(ctx, transition(0, 1, "set", value.Int(99))))

	got, err := j.At(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), got)

	n, err := j.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHistory_OrderedBySeq(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	require.NoError(t, j.Record(ctx, transition(0, 5, "b", value.Int(2), "x", 1)))
	require.NoError(t, j.Record(ctx, transition(0, 2, "a", value.Int(1))))
	require.NoError(t, j.Record(ctx, transition(1, 3, "other", value.Int(9))))

	entries, err := j.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, int64(2), entries[0].Seq)
	assert.Equal(t, "a", entries[0].Action)
	assert.Equal(t, value.Null{}, entries[0].Payload)

	assert.Equal(t, int64(5), entries[1].Seq)
	assert.Equal(t, value.Array{value.String("x"), value.Int(1)}, entries[1].Payload)
	assert.Equal(t, value.MustHash(value.Int(2)), entries[1].Hash)
}

func TestHistory_EmptyIsNotNil(t *testing.T) {
	entries, err := openTestJournal(t).History(context.Background(), 9)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestRecord_UnencodablePayloadArgs(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	require.NoError(t, j.Record(ctx, transition(0, 1, "cb", value.Int(0), func() {}, "ok")))

	entries, err := j.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, value.Array{value.String("<func()>"), value.String("ok")}, entries[0].Payload)
}

func TestRecord_UndefinedStateStoredAsNull(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	require.NoError(t, j.Record(ctx, transition(0, 1, "set", nil)))

	got, err := j.At(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, value.Null{}, got)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	for seq := int64(1); seq <= 4; seq++ {
		require.NoError(t, j.Record(ctx, transition(0, seq, "set", value.Int(seq))))
	}
	require.NoError(t, j.Record(ctx, transition(1, 1, "set", value.Int(0))))

	n, err := j.Prune(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	total, err := j.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestHook_RecordsStoreCommits(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	s, err := store.New(value.Object{"n": value.Int(0)},
		store.WithRegistry(registry.New()),
		store.WithName("counter"),
		store.WithCommitHook(j.Hook(ctx, nil)),
		store.WithActions(store.ActionMap{
			"add": store.ActionThunk(func(args ...any) store.Mutation {
				return store.Update(func(d *value.Draft) {
					d.Set("n", value.Int(d.Int("n")+int64(args[0].(int))))
				})
			}),
		}))
	require.NoError(t, err)

	require.NoError(t, s.Dispatch("add", 2))
	require.NoError(t, s.Dispatch("add", 3))

	entries, err := j.History(ctx, s.Index())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "counter", entries[0].Name)
	assert.Equal(t, "add", entries[0].Action)
	assert.Equal(t, value.Array{value.Int(2)}, entries[0].Payload)
	assert.Equal(t, value.Object{"n": value.Int(5)}, entries[1].State)
}

func TestHook_LogsWriteFailures(t *testing.T) {
	ctx := context.Background()
	j, err := Open(ctx)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	var buf bytes.Buffer
	hook := j.Hook(ctx, slog.New(slog.NewTextHandler(&buf, nil)))
	hook(transition(0, 1, "set", value.Int(1)))

	assert.Contains(t, buf.String(), "journal write failed")
}

func TestResolver_DrivesDevtoolsJumpToAction(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	pipe := devtools.NewPipe()

	s, err := store.New(value.Object{"n": value.Int(0)},
		store.WithRegistry(registry.New()),
		store.WithName("counter"),
		store.WithDevtools(pipe),
		store.WithCommitHook(j.Hook(ctx, nil)),
		store.WithHistory(j.Resolver(ctx)))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		s.Set(store.Patch{"n": value.Int(int64(i))})
	}

	pipe.Inject(devtools.Message{
		Type:    devtools.TypeDispatch,
		ID:      "counter",
		Payload: &devtools.Payload{Type: devtools.JumpToAction, ActionID: 2},
	})

	assert.Equal(t, value.Object{"n": value.Int(2)}, s.State())
}
