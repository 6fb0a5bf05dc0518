// Package rummy is the client core of a multiplayer rummy game. A Client
// owns the one connection to the game server, the player's organised
// hand, the cached table and the notification list, and exposes the
// actions a UI can take.
package rummy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/minaorangina/rummy/api"
	"github.com/minaorangina/rummy/config"
	"github.com/minaorangina/rummy/deck"
	"github.com/minaorangina/rummy/game"
	"github.com/minaorangina/rummy/hand"
	"github.com/minaorangina/rummy/notify"
	"github.com/minaorangina/rummy/protocol"
	"github.com/minaorangina/rummy/socket"
	"github.com/minaorangina/rummy/store"
	"go.uber.org/zap"
)

const msgJoinFailed = "Failed to join lobby. Please try again."

var ErrNoTable = errors.New("no table joined")

// Option configures a Client
type Option func(*clientOpts)

type clientOpts struct {
	dialer    socket.Dialer
	navigator game.Navigator
	logger    *zap.Logger
	handOpts  []hand.Option
}

// WithDialer replaces the websocket transport
func WithDialer(d socket.Dialer) Option {
	return func(o *clientOpts) { o.dialer = d }
}

// WithNavigator receives the result view when a game ends
func WithNavigator(n game.Navigator) Option {
	return func(o *clientOpts) { o.navigator = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *clientOpts) { o.logger = l }
}

// WithHandOptions passes options through to the hand engine
func WithHandOptions(opts ...hand.Option) Option {
	return func(o *clientOpts) { o.handOpts = append(o.handOpts, opts...) }
}

type Client struct {
	log      *zap.Logger
	sessions store.SessionStore
	socket   *socket.Manager
	api      *api.Client
	hand     *hand.Engine
	sync     *game.Synchronizer
	actions  *game.Actions
	notes    *notify.Queue

	mu      sync.Mutex
	tableID protocol.ID
	unbind  func()
}

// New builds a disconnected Client
func New(cfg config.Config, sessions store.SessionStore, opts ...Option) (*Client, error) {
	o := clientOpts{}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = zap.NewNop()
	}

	dialer := o.dialer
	if dialer == nil {
		ws, err := socket.NewWSDialer(cfg.ServerURL, cfg.SocketPath, cfg.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		dialer = ws
	}

	restClient, err := api.NewClient(cfg.ServerURL, sessions, log)
	if err != nil {
		return nil, err
	}

	c := &Client{
		log:      log,
		sessions: sessions,
		api:      restClient,
		hand:     hand.NewEngine(o.handOpts...),
		notes:    notify.NewQueue(cfg.NotificationTTL),
	}
	c.socket = socket.NewManager(dialer, socket.Options{
		ReconnectDelay:    cfg.ReconnectDelay,
		ReconnectDelayMax: cfg.ReconnectDelayMax,
		ConnectTimeout:    cfg.ConnectTimeout,
		QueueLimit:        cfg.QueueLimit,
		Logger:            log,
	})
	c.sync = game.NewSynchronizer(game.SyncOpts{
		Sessions:      sessions,
		Hand:          c.hand,
		Notifications: c.notes,
		Navigator:     o.navigator,
		Logger:        log,
	})
	c.actions = game.NewActions(c.socket, c.sync, log)

	unbindSync := c.sync.Bind(c.socket)
	joinSub := c.socket.On(protocol.Connect, func(json.RawMessage) { c.rejoin() })
	c.unbind = func() {
		unbindSync()
		c.socket.Off(protocol.Connect, joinSub)
	}
	return c, nil
}

// JoinTable connects if needed, joins tableID once the handshake is
// done and seeds the table from the REST API. After a reconnect the
// join is sent again automatically.
func (c *Client) JoinTable(ctx context.Context, tableID protocol.ID) error {
	if tableID == "" {
		return ErrNoTable
	}
	token, err := store.Token(c.sessions)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.tableID = tableID
	c.mu.Unlock()

	// the connect handler joins on a fresh connection
	if c.socket.Connected() {
		c.actions.JoinTable(tableID)
	} else {
		c.socket.Connect(token)
	}

	if err := c.socket.WaitUntilConnected(ctx); err != nil {
		c.notes.Push(notify.Error, msgJoinFailed)
		return fmt.Errorf("joining table %s: %w", tableID, err)
	}

	state, err := c.api.GameState(ctx, tableID)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			c.notes.Push(notify.Error, apiErr.Message)
		} else {
			c.notes.Push(notify.Error, api.DefaultErrorMessage)
		}
		return err
	}
	if state.TableID == "" {
		state.TableID = tableID
	}
	c.sync.Seed(state)
	return nil
}

func (c *Client) rejoin() {
	c.mu.Lock()
	tableID := c.tableID
	c.mu.Unlock()
	if tableID != "" {
		c.actions.JoinTable(tableID)
	}
}

// Leave disconnects and forgets the table, hand and notifications
func (c *Client) Leave() {
	c.mu.Lock()
	c.tableID = ""
	c.mu.Unlock()

	c.socket.Disconnect()
	c.hand.Reset()
	c.sync.Reset()
	c.notes.Clear()
}

// Close leaves the table and releases the client's timers and handlers
func (c *Client) Close() {
	c.Leave()
	c.unbind()
	c.notes.Close()
}

// Draw takes a card from source ("drawPile" or "discard")
func (c *Client) Draw(source protocol.DrawSource) bool {
	return c.actions.DrawCard(c.sync.GameID(), source)
}

// Discard sends the card at loc to the discard pile and then removes it
// from the hand. When nothing is sent the card stays in the hand.
func (c *Client) Discard(loc hand.Location) bool {
	card, ok := c.hand.Card(loc)
	if !ok {
		return false
	}
	if !c.actions.DiscardCard(c.sync.GameID(), &card) {
		return false
	}
	c.hand.RemoveCardIf(loc, card)
	return true
}

// GroupSelected groups the ungrouped cards at indices. An empty label
// is replaced by the cards' meld classification.
func (c *Client) GroupSelected(indices []int, label string) (string, error) {
	if label == "" && len(indices) > 0 {
		selected := make([]deck.Card, 0, len(indices))
		for _, i := range indices {
			card, ok := c.hand.Card(hand.Location{Zone: hand.Ungrouped, Index: i})
			if !ok {
				break
			}
			selected = append(selected, card)
		}
		if len(selected) == len(indices) {
			label = hand.Classify(selected).String()
		}
	}
	return c.hand.GroupSelected(indices, label)
}

func (c *Client) Ungroup(groupID string) bool {
	if !c.hand.Ungroup(groupID) {
		return false
	}
	c.sendOrder()
	return true
}

// Reorder moves a card within zone. The local change is immediate; the
// server is told the new order as a hint.
func (c *Client) Reorder(zone string, from, to int) bool {
	if !c.hand.Reorder(zone, from, to) {
		return false
	}
	c.sendOrder()
	return true
}

// MoveCard moves a card between groups and the ungrouped cards
func (c *Client) MoveCard(from hand.Location, toZone string) bool {
	if !c.hand.MoveCard(from, toZone) {
		return false
	}
	c.sendOrder()
	return true
}

func (c *Client) sendOrder() {
	c.actions.ReorderCards(c.sync.GameID(), c.sync.LocalPlayerID(), c.hand.Cards())
}

// Drop leaves the current game. It is allowed out of turn.
func (c *Client) Drop() bool {
	return c.actions.DropGame(c.sync.GameID())
}

// Declare submits the organised hand for win validation
func (c *Client) Declare() bool {
	return c.actions.DeclareWin(c.sync.GameID(), c.sync.LocalPlayerID(), c.hand.Snapshot())
}

// Dismiss removes a notification early
func (c *Client) Dismiss(id int64) {
	c.notes.Dismiss(id)
}

func (c *Client) IsMyTurn() bool {
	return c.sync.IsMyTurn()
}

func (c *Client) Table() game.Table {
	return c.sync.Table()
}

func (c *Client) Hand() hand.Partition {
	return c.hand.Snapshot()
}

func (c *Client) Notifications() []notify.Notification {
	return c.notes.List()
}

// ConnectionState is the socket lifecycle state
func (c *Client) ConnectionState() socket.State {
	return c.socket.State()
}

func (c *Client) OnTable(fn func(game.Table)) {
	c.sync.Subscribe(fn)
}

func (c *Client) OnHand(fn func(hand.Partition)) {
	c.hand.Subscribe(fn)
}

func (c *Client) OnNotifications(fn func([]notify.Notification)) {
	c.notes.Subscribe(fn)
}
