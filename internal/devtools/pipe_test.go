package devtools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IniZio/reim/internal/value"
)

func TestPipe_RecordsFramesInOrder(t *testing.T) {
	p := NewPipe()
	conn, err := p.Connect(ConnectOptions{InstanceID: "a"})
	require.NoError(t, err)

	require.NoError(t, conn.Init(value.Int(0)))
	require.NoError(t, conn.Send("inc", value.Int(1)))

	frames := p.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, TypeInit, frames[0].Type)
	assert.Equal(t, "a", frames[0].ID)
	assert.Equal(t, TypeAction, frames[1].Type)
	assert.Equal(t, "inc", frames[1].Action)
	assert.Equal(t, "1", string(frames[1].State))

	frames[0].ID = "mutated"
	assert.Equal(t, "a", p.Frames()[0].ID, "Frames returns a copy")
}

func TestPipe_InjectBroadcasts(t *testing.T) {
	p := NewPipe()
	a, _ := p.Connect(ConnectOptions{InstanceID: "a"})
	b, _ := p.Connect(ConnectOptions{InstanceID: "b"})

	var seenA, seenB []string
	a.Subscribe(func(m Message) { seenA = append(seenA, m.ID) })
	b.Subscribe(func(m Message) { seenB = append(seenB, m.ID) })

	require.NoError(t, p.Jump("b", JumpToState, value.Null{}))

	assert.Equal(t, []string{"b"}, seenA)
	assert.Equal(t, []string{"b"}, seenB)
}

func TestPipe_ClosedConnStopsReceiving(t *testing.T) {
	p := NewPipe()
	a, _ := p.Connect(ConnectOptions{InstanceID: "a"})

	calls := 0
	a.Subscribe(func(Message) { calls++ })
	require.NoError(t, a.Close())

	p.Inject(Message{Type: TypeDispatch, ID: "a"})
	assert.Zero(t, calls)
}

func TestNop_DiscardsEverything(t *testing.T) {
	conn, err := Nop{}.Connect(ConnectOptions{InstanceID: "x"})
	require.NoError(t, err)

	assert.NoError(t, conn.Init(value.Int(1)))
	assert.NoError(t, conn.Send("a", value.Int(2)))
	conn.Subscribe(func(Message) { t.Fatal("nop conn must not deliver") })
	assert.NoError(t, conn.Close())
}
