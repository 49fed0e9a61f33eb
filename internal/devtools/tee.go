package devtools

import (
	"errors"

	"github.com/IniZio/reim/internal/value"
)

// Tee returns a Connector that registers the store with every connector.
// Frames go to all connections and commands from any of them reach the
// store. Connectors that fail are skipped; Connect fails only when none
// succeeds.
func Tee(connectors ...Connector) Connector {
	return tee(connectors)
}

type tee []Connector

func (t tee) Connect(opts ConnectOptions) (Conn, error) {
	var (
		conns teeConn
		errs  []error
	)
	for _, c := range t {
		conn, err := c.Connect(opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		conns = append(conns, conn)
	}
	if len(conns) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return conns, nil
}

type teeConn []Conn

func (t teeConn) Init(state value.Value) error {
	var errs []error
	for _, c := range t {
		errs = append(errs, c.Init(state))
	}
	return errors.Join(errs...)
}

func (t teeConn) Send(action string, state value.Value) error {
	var errs []error
	for _, c := range t {
		errs = append(errs, c.Send(action, state))
	}
	return errors.Join(errs...)
}

func (t teeConn) Subscribe(fn func(Message)) {
	for _, c := range t {
		c.Subscribe(fn)
	}
}

func (t teeConn) Close() error {
	var errs []error
	for _, c := range t {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
