package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/minaorangina/rummy/protocol"
	uuid "github.com/satori/go.uuid"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	sendBuffer = 64
)

// client is one websocket connection of an authenticated account
type client struct {
	id   string
	acct Account
	conn *websocket.Conn
	send chan []byte
	log  *zap.Logger

	mu     sync.Mutex
	table  *Table
	closed bool
}

func newClient(acct Account, ws *websocket.Conn, log *zap.Logger) *client {
	id := uuid.NewV4().String()
	return &client{
		id:   id,
		acct: acct,
		conn: ws,
		send: make(chan []byte, sendBuffer),
		log:  log.With(zap.String("conn", id), zap.String("player", acct.ID.String())),
	}
}

// emit queues a frame without blocking. A client that cannot keep up
// is disconnected.
func (c *client) emit(event protocol.Event, payload interface{}) {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		c.log.Error("encoding frame", zap.Stringer("event", event), zap.Error(err))
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		c.log.Error("encoding frame", zap.Stringer("event", event), zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("send buffer full, dropping connection")
		c.closed = true
		close(c.send)
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *client) joined() *Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table
}

func (c *client) setTable(t *Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = t
}

// readPump hands every frame to handle until the connection fails
func (c *client) readPump(handle func(*client, protocol.Envelope)) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Info("connection closed", zap.Error(err))
			}
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.emit(protocol.Error, "Malformed message")
			continue
		}
		handle(c, env)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the table closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
