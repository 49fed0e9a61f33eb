package devtools

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IniZio/reim/internal/value"
)

type failingConnector struct{ err error }

func (f failingConnector) Connect(ConnectOptions) (Conn, error) {
	return nil, f.err
}

func TestTee_FramesReachEveryConnection(t *testing.T) {
	a, b := NewPipe(), NewPipe()

	conn, err := Tee(a, b).Connect(ConnectOptions{InstanceID: "cart"})
	require.NoError(t, err)

	require.NoError(t, conn.Init(value.Int(0)))
	require.NoError(t, conn.Send("inc", value.Int(1)))

	for _, p := range []*Pipe{a, b} {
		frames := p.Frames()
		require.Len(t, frames, 2)
		assert.Equal(t, TypeInit, frames[0].Type)
		assert.Equal(t, "inc", frames[1].Action)
		assert.Equal(t, "cart", frames[1].ID)
	}
}

func TestTee_CommandsFromAnyConnection(t *testing.T) {
	a, b := NewPipe(), NewPipe()

	conn, err := Tee(a, b).Connect(ConnectOptions{InstanceID: "cart"})
	require.NoError(t, err)

	var got []string
	conn.Subscribe(func(msg Message) { got = append(got, msg.Payload.Type) })

	require.NoError(t, a.Jump("cart", JumpToState, value.Int(1)))
	require.NoError(t, b.Jump("cart", JumpToAction, nil))

	assert.Equal(t, []string{JumpToState, JumpToAction}, got)

	require.NoError(t, conn.Close())
	require.NoError(t, a.Jump("cart", JumpToState, value.Int(2)))
	assert.Len(t, got, 2)
}

func TestTee_SkipsFailingConnectors(t *testing.T) {
	p := NewPipe()
	boom := errors.New("boom")

	conn, err := Tee(failingConnector{boom}, p).Connect(ConnectOptions{InstanceID: "x"})
	require.NoError(t, err)
	require.NoError(t, conn.Init(value.Null{}))
	assert.Len(t, p.Frames(), 1)

	_, err = Tee(failingConnector{boom}).Connect(ConnectOptions{InstanceID: "x"})
	assert.ErrorIs(t, err, boom)
}
