package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IniZio/reim/internal/devtools"
	"github.com/IniZio/reim/internal/testutil"
	"github.com/IniZio/reim/internal/value"
)

func TestDevtools_InitAndActionFrames(t *testing.T) {
	pipe := devtools.NewPipe()
	s := newTestStore(t, value.Object{"count": value.Int(1)},
		WithName("cart"),
		WithDevtools(pipe),
		WithActions(ActionMap{"inc": incr("count", 1)}))

	require.NoError(t, s.Dispatch("inc"))

	frames := pipe.Frames()
	require.Len(t, frames, 2)

	assert.Equal(t, devtools.TypeInit, frames[0].Type)
	assert.Equal(t, "cart", frames[0].ID)
	assert.JSONEq(t, `{"count":1}`, string(frames[0].State))

	assert.Equal(t, devtools.TypeAction, frames[1].Type)
	assert.Equal(t, "inc", frames[1].Action)
	assert.JSONEq(t, `{"count":2}`, string(frames[1].State))
	assert.Equal(t, "cart", s.InstanceID())
}

func TestDevtools_UnnamedStoreUsesGeneratedID(t *testing.T) {
	pipe := devtools.NewPipe()
	s := newTestStore(t, value.Int(0),
		WithDevtools(pipe),
		WithIDGenerator(testutil.NewIDs("anon", "store-a")))

	assert.Equal(t, "store-a", s.InstanceID())
	assert.Equal(t, "store-a", pipe.Frames()[0].ID)
}

func TestDevtools_NopDefaultLeavesNoInstanceID(t *testing.T) {
	s := newTestStore(t, value.Int(0))
	assert.Equal(t, "", s.InstanceID())
}

func TestDevtools_JumpToStateResets(t *testing.T) {
	pipe := devtools.NewPipe()
	s := newTestStore(t, value.Object{"count": value.Int(1)},
		WithName("cart"),
		WithDevtools(pipe))

	rec := &recorder{}
	s.Subscribe(rec)

	require.NoError(t, pipe.Jump("cart", devtools.JumpToState, value.Object{"count": value.Int(7)}))

	assert.Equal(t, value.Object{"count": value.Int(7)}, s.State())
	require.Len(t, rec.got, 1)
	assert.Equal(t, ResetAction, rec.got[0].Meta.Action)
}

func TestDevtools_JumpWithSerializedState(t *testing.T) {
	pipe := devtools.NewPipe()
	s := newTestStore(t, value.Object{"count": value.Int(1)},
		WithName("cart"),
		WithDevtools(pipe))

	inner, err := json.Marshal(`{"count":5}`)
	require.NoError(t, err)
	pipe.Inject(devtools.Message{
		Type:    devtools.TypeDispatch,
		ID:      "cart",
		Payload: &devtools.Payload{Type: devtools.JumpToAction},
		State:   inner,
	})

	assert.Equal(t, value.Object{"count": value.Int(5)}, s.State())
}

func TestDevtools_IgnoresOtherInstancesAndCommands(t *testing.T) {
	pipe := devtools.NewPipe()
	s := newTestStore(t, value.Object{"count": value.Int(1)},
		WithName("cart"),
		WithDevtools(pipe))

	require.NoError(t, pipe.Jump("other", devtools.JumpToState, value.Object{"count": value.Int(9)}))
	pipe.Inject(devtools.Message{Type: devtools.TypeDispatch, ID: "cart", Payload: &devtools.Payload{Type: "COMMIT"}})
	pipe.Inject(devtools.Message{Type: devtools.TypeDispatch, ID: "cart", Payload: &devtools.Payload{Type: devtools.JumpToState}, State: json.RawMessage(`{bad`)})
	pipe.Inject(devtools.Message{Type: devtools.TypeDispatch, ID: "cart", Payload: &devtools.Payload{Type: devtools.JumpToState}})

	assert.Equal(t, value.Object{"count": value.Int(1)}, s.State())
}

func TestDevtools_JumpToActionResolvedFromHistory(t *testing.T) {
	pipe := devtools.NewPipe()
	history := map[int64]value.Value{}

	s := newTestStore(t, value.Object{"count": value.Int(0)},
		WithName("cart"),
		WithDevtools(pipe),
		WithCommitHook(func(tr Transition) { history[tr.Seq] = tr.State }),
		WithHistory(func(_ int, seq int64) (value.Value, error) {
			v, ok := history[seq]
			if !ok {
				return nil, fmt.Errorf("seq %d: %w", seq, errors.New("not recorded"))
			}
			return v, nil
		}),
		WithActions(ActionMap{"inc": incr("count", 1)}))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Dispatch("inc"))
	}

	pipe.Inject(devtools.Message{
		Type:    devtools.TypeDispatch,
		ID:      "cart",
		Payload: &devtools.Payload{Type: devtools.JumpToAction, ActionID: 1},
	})
	assert.Equal(t, value.Object{"count": value.Int(1)}, s.State())

	pipe.Inject(devtools.Message{
		Type:    devtools.TypeDispatch,
		ID:      "cart",
		Payload: &devtools.Payload{Type: devtools.JumpToAction, ActionID: 99},
	})
	assert.Equal(t, value.Object{"count": value.Int(1)}, s.State(), "unknown seq is ignored")
}

type failingConnector struct{}

func (failingConnector) Connect(devtools.ConnectOptions) (devtools.Conn, error) {
	return nil, errors.New("no debugger")
}

func TestDevtools_ConnectFailureIsNotFatal(t *testing.T) {
	s := newTestStore(t, value.Object{"n": value.Int(0)},
		WithName("offline"),
		WithDevtools(failingConnector{}))

	s.Set(Patch{"n": value.Int(1)})

	assert.Equal(t, "", s.InstanceID())
	assert.Equal(t, value.Object{"n": value.Int(1)}, s.State())
}
