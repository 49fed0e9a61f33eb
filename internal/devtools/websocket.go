package devtools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/IniZio/reim/internal/value"
)

const (
	writeTimeout = 5 * time.Second
	inboxSize    = 256
)

// ErrClosed is returned when the debugger connection has been closed.
var ErrClosed = errors.New("devtools: connection closed")

// Client is a WebSocket Connector. All stores connected through one
// Client share a single socket.
//
// Inbound commands are read on a background goroutine and buffered; they
// reach store handlers only through Poll or Wait, which must be called on
// the goroutine that owns the stores.
type Client struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers []func(Message)

	inbox     chan Message
	done      chan struct{}
	closeOnce sync.Once
	readErr   error
}

// Dial connects to a debugger hub at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial devtools %s: %w", url, err)
	}

	c := &Client{
		ws:     ws,
		logger: slog.Default(),
		inbox:  make(chan Message, inboxSize),
		done:   make(chan struct{}),
	}
	go c.readLoop()

	slog.Info("devtools connected", "url", url)
	return c, nil
}

// Connect implements Connector.
func (c *Client) Connect(opts ConnectOptions) (Conn, error) {
	select {
	case <-c.done:
		return nil, ErrClosed
	default:
	}
	return &clientConn{client: c, id: opts.InstanceID}, nil
}

// Poll delivers every buffered command and returns how many were
// delivered. It never blocks.
func (c *Client) Poll() int {
	n := 0
	for {
		select {
		case msg := <-c.inbox:
			c.dispatch(msg)
			n++
		default:
			return n
		}
	}
}

// Wait blocks until at least one command arrives, then delivers it and
// everything else buffered. Returns ErrClosed once the connection is gone
// and the buffer is drained.
func (c *Client) Wait(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case msg := <-c.inbox:
		c.dispatch(msg)
		return 1 + c.Poll(), nil
	case <-c.done:
		if n := c.Poll(); n > 0 {
			return n, nil
		}
		if c.readErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrClosed, c.readErr)
		}
		return 0, ErrClosed
	}
}

// Close closes the socket.
func (c *Client) Close() error {
	err := c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if closeErr := c.ws.Close(); err == nil {
		err = closeErr
	}
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer c.closeOnce.Do(func() { close(c.done) })

	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.readErr = err
				c.logger.Debug("devtools read ended", "error", err)
			}
			return
		}

		select {
		case c.inbox <- msg:
		default:
			c.logger.Warn("devtools command dropped: inbox full", "type", msg.Type, "id", msg.ID)
		}
	}
}

func (c *Client) dispatch(msg Message) {
	c.mu.Lock()
	handlers := append([]func(Message){}, c.handlers...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

func (c *Client) sendFrame(msg Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(msg)
}

func (c *Client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(messageType, data, time.Now().Add(writeTimeout))
}

type clientConn struct {
	client *Client
	id     string
}

func (cc *clientConn) Init(state value.Value) error {
	msg, err := NewFrame(TypeInit, cc.id, "", state)
	if err != nil {
		return err
	}
	return cc.client.sendFrame(msg)
}

func (cc *clientConn) Send(action string, state value.Value) error {
	msg, err := NewFrame(TypeAction, cc.id, action, state)
	if err != nil {
		return err
	}
	return cc.client.sendFrame(msg)
}

func (cc *clientConn) Subscribe(fn func(Message)) {
	cc.client.mu.Lock()
	defer cc.client.mu.Unlock()
	cc.client.handlers = append(cc.client.handlers, fn)
}

// Close is a no-op: the socket belongs to the Client.
func (cc *clientConn) Close() error {
	return nil
}
