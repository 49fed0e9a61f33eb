package devtools

import (
	"slices"
	"sync"

	"github.com/IniZio/reim/internal/value"
)

// Pipe is an in-memory Connector. It records every outbound frame and
// broadcasts injected commands to all connected stores, which pick out
// the ones addressed to them.
//
// Inject runs handlers on the calling goroutine, so it must be called from
// the goroutine that owns the stores.
type Pipe struct {
	mu     sync.Mutex
	frames []Message
	conns  []*pipeConn
}

// NewPipe creates an empty pipe.
func NewPipe() *Pipe {
	return &Pipe{}
}

// Connect implements Connector.
func (p *Pipe) Connect(opts ConnectOptions) (Conn, error) {
	c := &pipeConn{pipe: p, id: opts.InstanceID}

	p.mu.Lock()
	p.conns = append(p.conns, c)
	p.mu.Unlock()

	return c, nil
}

// Frames returns a copy of the outbound frames in send order.
func (p *Pipe) Frames() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.frames)
}

// Inject delivers msg to every subscribed connection.
func (p *Pipe) Inject(msg Message) {
	p.mu.Lock()
	var handlers []func(Message)
	for _, c := range p.conns {
		handlers = append(handlers, c.handlers...)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

// Jump injects a jump command of the given kind for instance id.
func (p *Pipe) Jump(id, kind string, state value.Value) error {
	msg, err := JumpCommand(id, kind, state)
	if err != nil {
		return err
	}
	p.Inject(msg)
	return nil
}

func (p *Pipe) record(msg Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, msg)
}

type pipeConn struct {
	pipe     *Pipe
	id       string
	handlers []func(Message)
}

func (c *pipeConn) Init(state value.Value) error {
	msg, err := NewFrame(TypeInit, c.id, "", state)
	if err != nil {
		return err
	}
	c.pipe.record(msg)
	return nil
}

func (c *pipeConn) Send(action string, state value.Value) error {
	msg, err := NewFrame(TypeAction, c.id, action, state)
	if err != nil {
		return err
	}
	c.pipe.record(msg)
	return nil
}

func (c *pipeConn) Subscribe(fn func(Message)) {
	c.pipe.mu.Lock()
	defer c.pipe.mu.Unlock()
	c.handlers = append(c.handlers, fn)
}

func (c *pipeConn) Close() error {
	c.pipe.mu.Lock()
	defer c.pipe.mu.Unlock()
	c.pipe.conns = slices.DeleteFunc(c.pipe.conns, func(other *pipeConn) bool { return other == c })
	c.handlers = nil
	return nil
}
