// Package devtools connects stores to an external time-travel debugger.
//
// A store registers with a Connector at construction, sends an INIT frame
// with its current view, forwards every committed state as an ACTION
// frame, and accepts DISPATCH commands that jump it back to an earlier
// state. The bridge is optional: Nop is the default and the store never
// depends on a debugger being present.
//
// Transports:
//   - Pipe: in-memory, for tests and embedding
//   - Dial: WebSocket client
//   - Hub: WebSocket server that collects frames from many stores
package devtools

import (
	"github.com/IniZio/reim/internal/value"
)

// ConnectOptions identifies the registering store.
type ConnectOptions struct {
	// InstanceID tags every frame; inbound commands for other IDs are
	// ignored by the store.
	InstanceID string
}

// Connector opens a debugger channel for one store instance.
type Connector interface {
	Connect(opts ConnectOptions) (Conn, error)
}

// Conn is one store's channel to the debugger.
type Conn interface {
	// Init announces the store with its initial view.
	Init(state value.Value) error

	// Send forwards a committed state labelled with the action that
	// produced it.
	Send(action string, state value.Value) error

	// Subscribe registers the handler for inbound commands. Handlers are
	// always invoked on the goroutine that owns the store.
	Subscribe(fn func(Message))

	Close() error
}

// Nop is a Connector whose connections discard everything.
type Nop struct{}

// Connect implements Connector.
func (Nop) Connect(ConnectOptions) (Conn, error) {
	return nopConn{}, nil
}

type nopConn struct{}

func (nopConn) Init(value.Value) error         { return nil }
func (nopConn) Send(string, value.Value) error { return nil }
func (nopConn) Subscribe(func(Message))        {}
func (nopConn) Close() error                   { return nil }
