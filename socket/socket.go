// Package socket owns the single duplex connection to the game server.
// It reconnects on its own, queues emits made while disconnected and
// dispatches inbound events to handlers in the order they arrive.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/minaorangina/rummy/protocol"
	"go.uber.org/zap"
)

const (
	DefaultReconnectDelay    = 500 * time.Millisecond
	DefaultReconnectDelayMax = 3 * time.Second
	DefaultConnectTimeout    = 20 * time.Second
	DefaultQueueLimit        = 256
)

// ErrClosed is returned to waiters when Disconnect is called
var ErrClosed = errors.New("socket closed")

// State is the lifecycle of the connection
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

var stateNames = []string{"disconnected", "connecting", "connected"}

func (s State) String() string {
	if s < Disconnected || s > Connected {
		return ""
	}
	return stateNames[s]
}

// Conn is one established transport session
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a transport session authenticated with token
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// Handler receives the raw data of an inbound event
type Handler func(data json.RawMessage)

// Subscription identifies a registered handler
type Subscription uint64

type subscriber struct {
	id Subscription
	fn Handler
}

// Options tunes reconnection and queueing. Zero values use the defaults.
type Options struct {
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration
	ConnectTimeout    time.Duration
	// QueueLimit bounds the pending-emit queue, dropping the oldest
	// entry when full. Negative means unbounded.
	QueueLimit int
	Logger     *zap.Logger
}

// signal resolves waiters of one connection attempt
type signal struct {
	done chan struct{}
	err  error
}

func newSignal() *signal {
	return &signal{done: make(chan struct{})}
}

func (s *signal) resolve(err error) {
	s.err = err
	close(s.done)
}

// Manager is the connection manager
type Manager struct {
	dialer Dialer
	opts   Options
	log    *zap.Logger

	mu       sync.Mutex
	state    State
	conn     Conn
	cancel   context.CancelFunc
	gen      uint64
	queue    []protocol.Envelope
	signal   *signal
	handlers map[protocol.Event][]subscriber
	nextSub  Subscription
}

// NewManager constructs a disconnected Manager
func NewManager(dialer Dialer, opts Options) *Manager {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.ReconnectDelayMax < opts.ReconnectDelay {
		opts.ReconnectDelayMax = DefaultReconnectDelayMax
		if opts.ReconnectDelayMax < opts.ReconnectDelay {
			opts.ReconnectDelayMax = opts.ReconnectDelay
		}
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.QueueLimit == 0 {
		opts.QueueLimit = DefaultQueueLimit
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		dialer:   dialer,
		opts:     opts,
		log:      log.Named("socket"),
		handlers: map[protocol.Event][]subscriber{},
	}
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether emits are currently sent straight away
func (m *Manager) Connected() bool {
	return m.State() == Connected
}

// Pending returns the number of queued emits
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Connect starts connecting with token and keeps reconnecting until
// Disconnect. It does nothing if a connection exists or is in flight.
func (m *Manager) Connect(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Disconnected {
		return
	}
	m.state = Connecting
	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	if m.signal == nil {
		m.signal = newSignal()
	}
	go m.run(ctx, m.gen, token)
}

// Disconnect tears down the connection and discards queued emits.
// Waiters blocked in WaitUntilConnected receive ErrClosed.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Disconnected {
		return
	}
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	if dropped := len(m.queue); dropped > 0 {
		m.log.Info("discarding queued emits", zap.Int("count", dropped))
	}
	m.queue = nil
	if m.signal != nil {
		m.signal.resolve(ErrClosed)
		m.signal = nil
	}
	m.state = Disconnected
}

// WaitUntilConnected blocks until the current or next connection attempt
// succeeds. A failed attempt returns its error; later calls wait for the
// attempt after it.
func (m *Manager) WaitUntilConnected(ctx context.Context) error {
	m.mu.Lock()
	if m.state == Connected {
		m.mu.Unlock()
		return nil
	}
	if m.signal == nil {
		m.signal = newSignal()
	}
	s := m.signal
	m.mu.Unlock()

	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Emit sends event now if connected, otherwise queues it for the next
// connection. It only fails if payload cannot be encoded.
func (m *Manager) Emit(event protocol.Event, payload interface{}) error {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", event, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Connected && m.conn != nil {
		err := m.conn.WriteJSON(env)
		if err == nil {
			return nil
		}
		m.log.Warn("write failed, queueing emit", zap.Stringer("event", event), zap.Error(err))
	} else {
		m.log.Warn("socket not connected, queueing emit", zap.Stringer("event", event))
	}
	m.enqueue(env)
	return nil
}

func (m *Manager) enqueue(env protocol.Envelope) {
	m.queue = append(m.queue, env)
	if m.opts.QueueLimit > 0 && len(m.queue) > m.opts.QueueLimit {
		dropped := m.queue[0]
		m.queue = m.queue[1:]
		m.log.Warn("pending queue full, dropping oldest emit", zap.Stringer("event", dropped.Event))
	}
}

// On registers h for event. Handlers persist across reconnections.
func (m *Manager) On(event protocol.Event, h Handler) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	m.handlers[event] = append(m.handlers[event], subscriber{id: m.nextSub, fn: h})
	return m.nextSub
}

// Off removes the given subscriptions for event, or all of its handlers
// when none are given.
func (m *Manager) Off(event protocol.Event, subs ...Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(subs) == 0 {
		delete(m.handlers, event)
		return
	}
	remove := map[Subscription]bool{}
	for _, s := range subs {
		remove[s] = true
	}
	kept := []subscriber{}
	for _, s := range m.handlers[event] {
		if !remove[s.id] {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(m.handlers, event)
		return
	}
	m.handlers[event] = kept
}

// run is the connection loop for one Connect call. Every handler is
// invoked from this goroutine, so events are seen in delivery order.
func (m *Manager) run(ctx context.Context, gen uint64, token string) {
	delay := m.opts.ReconnectDelay

	for {
		dialCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
		conn, err := m.dialer.Dial(dialCtx, token)
		cancel()

		if ctx.Err() != nil {
			if conn != nil {
				conn.Close()
			}
			return
		}

		if err != nil {
			m.log.Warn("socket connection error", zap.Error(err), zap.Duration("retry_in", delay))
			if !m.attemptFailed(gen, err) {
				return
			}
			m.dispatch(protocol.ConnectError, reason(err))
			if !sleep(ctx, delay) {
				return
			}
			delay = backoff(delay, m.opts.ReconnectDelayMax)
			continue
		}

		delay = m.opts.ReconnectDelay
		if !m.attemptSucceeded(gen, conn) {
			conn.Close()
			return
		}
		m.log.Info("socket connected")
		m.dispatch(protocol.Connect, nil)

		err = m.readLoop(conn)

		if !m.dropped(gen, conn) {
			return
		}
		m.log.Warn("socket disconnected", zap.Error(err))
		m.dispatch(protocol.Disconnect, reason(err))
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (m *Manager) attemptFailed(gen uint64, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return false
	}
	if m.signal != nil {
		m.signal.resolve(err)
	}
	m.signal = newSignal()
	return true
}

// attemptSucceeded flushes the queue in order before marking the
// connection usable, so later emits cannot overtake queued ones.
func (m *Manager) attemptSucceeded(gen uint64, conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return false
	}

	for i, env := range m.queue {
		if err := conn.WriteJSON(env); err != nil {
			m.log.Warn("flush interrupted", zap.Stringer("event", env.Event), zap.Error(err))
			m.queue = m.queue[i:]
			break
		}
		if i == len(m.queue)-1 {
			m.queue = nil
		}
	}

	m.conn = conn
	m.state = Connected
	if m.signal != nil {
		m.signal.resolve(nil)
		m.signal = nil
	}
	return true
}

func (m *Manager) dropped(gen uint64, conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return false
	}
	conn.Close()
	m.conn = nil
	m.state = Connecting
	if m.signal == nil {
		m.signal = newSignal()
	}
	return true
}

func (m *Manager) readLoop(conn Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			m.log.Warn("ignoring malformed frame", zap.ByteString("frame", data), zap.Error(err))
			continue
		}
		m.dispatch(env.Event, env.Data)
	}
}

func (m *Manager) dispatch(event protocol.Event, data json.RawMessage) {
	m.mu.Lock()
	subs := append([]subscriber{}, m.handlers[event]...)
	m.mu.Unlock()

	for _, s := range subs {
		m.call(event, s.fn, data)
	}
}

func (m *Manager) call(event protocol.Event, fn Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("handler panicked", zap.Stringer("event", event), zap.Any("panic", r))
		}
	}()
	fn(data)
}

func reason(err error) json.RawMessage {
	if err == nil {
		return nil
	}
	data, _ := json.Marshal(err.Error())
	return data
}

func backoff(delay, max time.Duration) time.Duration {
	delay *= 2
	if delay > max {
		return max
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
