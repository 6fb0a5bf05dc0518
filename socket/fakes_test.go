package socket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/minaorangina/rummy/protocol"
)

var errFakeClosed = errors.New("fake conn closed")

type fakeConn struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once

	mu      sync.Mutex
	written []protocol.Envelope
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbound:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errFakeClosed
	}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	select {
	case <-c.closed:
		return errFakeClosed
	default:
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, env)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(event protocol.Event, payload interface{}) {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		panic(err)
	}
	data, _ := json.Marshal(env)
	c.inbound <- data
}

func (c *fakeConn) events() []protocol.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []protocol.Event{}
	for _, env := range c.written {
		out = append(out, env.Event)
	}
	return out
}

type dialResult struct {
	conn Conn
	err  error
}

// fakeDialer hands out whatever the test feeds into results, one per Dial
type fakeDialer struct {
	results chan dialResult

	mu     sync.Mutex
	tokens []string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{results: make(chan dialResult)}
}

func (d *fakeDialer) Dial(ctx context.Context, token string) (Conn, error) {
	d.mu.Lock()
	d.tokens = append(d.tokens, token)
	d.mu.Unlock()

	select {
	case r := <-d.results:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tokens)
}

func (d *fakeDialer) seen() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.tokens...)
}
