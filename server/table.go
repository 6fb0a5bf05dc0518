package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/minaorangina/rummy/deck"
	"github.com/minaorangina/rummy/hand"
	"github.com/minaorangina/rummy/protocol"
	"go.uber.org/zap"
)

const (
	DefaultMinPlayers = 2
	DefaultMaxPlayers = 6
	DefaultHandSize   = 13
	DefaultPreview    = 10

	maxPoints  = 80
	dropPoints = 20
	statusDrop = "dropped"
)

var (
	ErrGameNotStarted   = errors.New("game has not started")
	ErrGameAlreadyStart = errors.New("game has already started")
	ErrTableFull        = errors.New("table is full")
	ErrUnknownGame      = errors.New("unknown game")
	ErrNotSeated        = errors.New("not seated at this table")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAlreadyDrawn     = errors.New("already drawn this turn")
	ErrMustDraw         = errors.New("draw a card first")
	ErrEmptyPile        = errors.New("pile is empty")
	ErrUnknownSource    = errors.New("unknown draw source")
	ErrCardNotInHand    = errors.New("card is not in your hand")
	ErrOrderMismatch    = errors.New("new order does not match your hand")
	ErrInvalidDeclare   = errors.New("invalid declaration")
	ErrPlayerDropped    = errors.New("you have dropped")
)

// TableOpts configures every table a server creates
type TableOpts struct {
	MinPlayers int
	MaxPlayers int
	HandSize   int
	Preview    int
	// TurnTimeout skips a player who takes too long. Zero disables it.
	TurnTimeout time.Duration
	// NewDeck builds the shoe for a game; the last cards are dealt first
	NewDeck func() deck.Deck
	Logger  *zap.Logger
}

func (o *TableOpts) defaults() {
	if o.MinPlayers < 2 {
		o.MinPlayers = DefaultMinPlayers
	}
	if o.MaxPlayers < o.MinPlayers {
		o.MaxPlayers = DefaultMaxPlayers
		if o.MaxPlayers < o.MinPlayers {
			o.MaxPlayers = o.MinPlayers
		}
	}
	if o.HandSize <= 0 {
		o.HandSize = DefaultHandSize
	}
	if o.Preview < 0 {
		o.Preview = 0
	} else if o.Preview == 0 {
		o.Preview = DefaultPreview
	}
	if o.NewDeck == nil {
		o.NewDeck = func() deck.Deck {
			d := deck.NewRummy(2, 2)
			d.Shuffle()
			return d
		}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

type seat struct {
	acct    Account
	client  *client
	hand    []deck.Card
	dropped bool
	drawn   bool
}

// Table is one rummy table and the game played at it
type Table struct {
	mu      sync.Mutex
	id      protocol.ID
	gameID  protocol.ID
	opts    TableOpts
	log     *zap.Logger
	seats   []*seat
	stock   deck.Deck
	discard []deck.Card
	turn    int
	turnGen int
	timer   *time.Timer
	status  protocol.Status
}

func NewTable(id protocol.ID, opts TableOpts) *Table {
	opts.defaults()
	return &Table{
		id:     id,
		opts:   opts,
		log:    opts.Logger.With(zap.String("table", id.String())),
		status: protocol.Waiting,
	}
}

// GameID is "GM-" followed by the table id
func (t *Table) GameID() protocol.ID {
	return "GM-" + t.id
}

// State is the masked table state every player may see
func (t *Table) State() protocol.GameState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state()
}

func (t *Table) state() protocol.GameState {
	players := make([]protocol.Player, 0, len(t.seats))
	for _, s := range t.seats {
		status := string(t.status)
		if s.dropped {
			status = statusDrop
		}
		players = append(players, protocol.Player{
			PlayerID:  s.acct.ID,
			Username:  s.acct.Username,
			Status:    status,
			Connected: s.client != nil,
			HandCount: len(s.hand),
		})
	}
	state := protocol.GameState{
		GameID:      t.gameID,
		TableID:     t.id,
		Players:     players,
		DrawPileTop: t.preview(),
		Status:      t.status,
	}
	if t.status == protocol.Playing {
		state.CurrentTurn = t.seats[t.turn].acct.ID
	}
	if n := len(t.discard); n > 0 {
		top := t.discard[n-1]
		state.DiscardTop = &top
	}
	return state
}

func (t *Table) statePush() protocol.StatePush {
	state := t.state()
	push := protocol.StatePush{
		Players:     protocol.Some(state.Players),
		CurrentTurn: protocol.Some(state.CurrentTurn),
		DiscardTop:  protocol.Null[deck.Card](),
		DrawPileTop: protocol.Some(state.DrawPileTop),
		Status:      protocol.Some(state.Status),
	}
	if state.DiscardTop != nil {
		push.DiscardTop = protocol.Some(*state.DiscardTop)
	}
	return push
}

func (t *Table) preview() []deck.Card {
	return t.stock.Top(t.opts.Preview)
}

func (t *Table) seatOf(id protocol.ID) *seat {
	for _, s := range t.seats {
		if s.acct.ID == id {
			return s
		}
	}
	return nil
}

func (t *Table) broadcast(event protocol.Event, payload interface{}, except *seat) {
	for _, s := range t.seats {
		if s == except || s.client == nil {
			continue
		}
		s.client.emit(event, payload)
	}
}

// Join seats c's account, or reattaches it if already seated, and
// starts the game once enough players are present.
func (t *Table) Join(c *client) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.seatOf(c.acct.ID)
	if s == nil {
		if t.status != protocol.Waiting {
			c.emit(protocol.Error, ErrGameAlreadyStart.Error())
			return
		}
		if len(t.seats) >= t.opts.MaxPlayers {
			c.emit(protocol.Error, ErrTableFull.Error())
			return
		}
		s = &seat{acct: c.acct, hand: []deck.Card{}}
		t.seats = append(t.seats, s)
	}
	s.client = c
	c.setTable(t)
	t.log.Info("player joined", zap.String("player", c.acct.ID.String()))

	t.broadcast(protocol.PlayerConnected, protocol.PresencePush{PlayerID: s.acct.ID, Username: s.acct.Username}, s)

	if t.status == protocol.Waiting && len(t.seats) >= t.opts.MinPlayers {
		t.start()
		return
	}
	t.broadcast(protocol.State, t.statePush(), nil)
	if t.status == protocol.Playing {
		c.emit(protocol.YourHand, protocol.HandPush{Hand: s.hand})
	}
}

// Leave detaches c. Before the game starts the seat is given up.
func (t *Table) Leave(c *client) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.seatOf(c.acct.ID)
	if s == nil || s.client != c {
		return
	}
	s.client = nil
	t.broadcast(protocol.PlayerDisconnected, protocol.PresencePush{PlayerID: s.acct.ID, Username: s.acct.Username}, nil)

	if t.status == protocol.Waiting {
		for i, other := range t.seats {
			if other == s {
				t.seats = append(t.seats[:i], t.seats[i+1:]...)
				break
			}
		}
		t.broadcast(protocol.State, t.statePush(), nil)
	}
}

// Handle applies one frame from c
func (t *Table) Handle(c *client, env protocol.Envelope) {
	var err error
	switch env.Event {
	case protocol.DrawCard:
		var msg protocol.DrawCardMsg
		if err = json.Unmarshal(env.Data, &msg); err == nil {
			err = t.draw(c, msg)
		}
	case protocol.DiscardCard:
		var msg protocol.DiscardCardMsg
		if err = json.Unmarshal(env.Data, &msg); err == nil {
			err = t.discardCard(c, msg)
		}
	case protocol.UpdateOrder:
		var msg protocol.UpdateOrderMsg
		if err = json.Unmarshal(env.Data, &msg); err == nil {
			err = t.updateOrder(c, msg)
		}
	case protocol.Drop:
		var msg protocol.DropMsg
		if err = json.Unmarshal(env.Data, &msg); err == nil {
			err = t.drop(c, msg)
		}
	case protocol.DeclareWin:
		var msg protocol.DeclareWinMsg
		if err = json.Unmarshal(env.Data, &msg); err == nil {
			err = t.declare(c, msg.Payload)
		}
	default:
		t.log.Debug("ignoring event", zap.Stringer("event", env.Event))
		return
	}
	if err != nil {
		t.log.Debug("rejected", zap.Stringer("event", env.Event), zap.Error(err))
		c.emit(protocol.Error, err.Error())
	}
}

// actor finds c's seat and checks the game and, if turn is set, the turn
func (t *Table) actor(c *client, gameID protocol.ID, turn bool) (*seat, error) {
	if t.status != protocol.Playing {
		return nil, ErrGameNotStarted
	}
	if gameID != t.gameID {
		return nil, ErrUnknownGame
	}
	s := t.seatOf(c.acct.ID)
	if s == nil {
		return nil, ErrNotSeated
	}
	if s.dropped {
		return nil, ErrPlayerDropped
	}
	if turn && t.seats[t.turn] != s {
		return nil, ErrNotYourTurn
	}
	return s, nil
}

func (t *Table) start() {
	t.stock = t.opts.NewDeck()
	for _, s := range t.seats {
		s.hand = t.stock.Deal(t.opts.HandSize)
		s.drawn = false
		s.dropped = false
	}
	t.discard = t.stock.Deal(1)
	t.gameID = t.GameID()
	t.status = protocol.Playing
	t.turn = 0
	t.log.Info("game started", zap.Int("players", len(t.seats)))

	t.broadcast(protocol.GameStarted, t.state(), nil)
	for _, s := range t.seats {
		if s.client != nil {
			s.client.emit(protocol.YourHand, protocol.HandPush{Hand: s.hand})
		}
	}
	t.armTimer()
}

func (t *Table) draw(c *client, msg protocol.DrawCardMsg) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.actor(c, msg.GameID, true)
	if err != nil {
		return err
	}
	if s.drawn {
		return ErrAlreadyDrawn
	}

	var card deck.Card
	switch msg.Source {
	case protocol.FromDrawPile:
		if len(t.stock) == 0 {
			t.restock()
		}
		if len(t.stock) == 0 {
			return ErrEmptyPile
		}
		card = t.stock.Deal(1)[0]
	case protocol.FromDiscard:
		n := len(t.discard)
		if n == 0 {
			return ErrEmptyPile
		}
		card = t.discard[n-1]
		t.discard = t.discard[:n-1]
	default:
		return ErrUnknownSource
	}

	s.hand = append(s.hand, card)
	s.drawn = true
	c.emit(protocol.YourHand, protocol.HandPush{Hand: s.hand})
	t.broadcast(protocol.CardDrawn, protocol.CardDrawnPush{DrawPileTop: t.preview()}, nil)
	if msg.Source == protocol.FromDiscard {
		push := protocol.CardDiscardedPush{DiscardTop: protocol.Null[deck.Card]()}
		if n := len(t.discard); n > 0 {
			push.DiscardTop = protocol.Some(t.discard[n-1])
		}
		t.broadcast(protocol.CardDiscarded, push, nil)
	}
	return nil
}

// restock turns all but the top discard back into the draw pile
func (t *Table) restock() {
	n := len(t.discard)
	if n < 2 {
		return
	}
	t.stock = append(deck.Deck{}, t.discard[:n-1]...)
	t.stock.Shuffle()
	t.discard = t.discard[n-1:]
}

func (t *Table) discardCard(c *client, msg protocol.DiscardCardMsg) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.actor(c, msg.GameID, true)
	if err != nil {
		return err
	}
	if !s.drawn {
		return ErrMustDraw
	}
	i := indexOf(s.hand, msg.Card)
	if i < 0 {
		return ErrCardNotInHand
	}

	s.hand = append(s.hand[:i], s.hand[i+1:]...)
	t.discard = append(t.discard, msg.Card)
	s.drawn = false
	c.emit(protocol.YourHand, protocol.HandPush{Hand: s.hand})
	t.broadcast(protocol.CardDiscarded, protocol.CardDiscardedPush{Card: protocol.Some(msg.Card)}, nil)
	t.advance()
	return nil
}

func (t *Table) updateOrder(c *client, msg protocol.UpdateOrderMsg) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.actor(c, msg.GameID, false)
	if err != nil {
		return err
	}
	if !deck.SameCards(msg.NewOrder, s.hand) {
		return ErrOrderMismatch
	}
	s.hand = append([]deck.Card{}, msg.NewOrder...)
	return nil
}

func (t *Table) drop(c *client, msg protocol.DropMsg) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.actor(c, msg.GameID, false)
	if err != nil {
		return err
	}
	s.dropped = true
	t.broadcast(protocol.PlayerDropped, protocol.PresencePush{PlayerID: s.acct.ID, Username: s.acct.Username}, nil)

	active := t.active()
	if len(active) == 1 {
		t.finish(protocol.AutoWin, active[0])
		return nil
	}
	if t.seats[t.turn] == s {
		s.drawn = false
		t.advance()
	}
	t.broadcast(protocol.State, t.statePush(), nil)
	return nil
}

func (t *Table) declare(c *client, d protocol.Declaration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.actor(c, d.GameID, true)
	if err != nil {
		return err
	}
	if !ValidDeclaration(d, s.hand) {
		return ErrInvalidDeclare
	}
	t.finish(protocol.WinDeclared, s)
	return nil
}

// ValidDeclaration checks a declaration against the declarer's hand:
// every card accounted for, at most one left ungrouped, every group a
// meld, at least two sequences and at least one of them pure.
func ValidDeclaration(d protocol.Declaration, held []deck.Card) bool {
	declared := append([]deck.Card{}, d.Ungrouped...)
	for _, g := range d.Groups {
		declared = append(declared, g.Items...)
	}
	if !deck.SameCards(declared, held) || len(d.Ungrouped) > 1 {
		return false
	}

	pure, sequences := 0, 0
	for _, g := range d.Groups {
		switch hand.Classify(g.Items) {
		case hand.PureSequence:
			pure++
			sequences++
		case hand.ImpureSequence:
			sequences++
		case hand.Triplet:
		default:
			return false
		}
	}
	return pure >= 1 && sequences >= 2
}

func (t *Table) active() []*seat {
	out := []*seat{}
	for _, s := range t.seats {
		if !s.dropped {
			out = append(out, s)
		}
	}
	return out
}

// advance passes the turn to the next player still in the game
func (t *Table) advance() {
	for i := 1; i <= len(t.seats); i++ {
		next := (t.turn + i) % len(t.seats)
		if !t.seats[next].dropped {
			t.turn = next
			break
		}
	}
	t.seats[t.turn].drawn = false
	t.broadcast(protocol.NextTurn, protocol.NextTurnPush{NextPlayerID: t.seats[t.turn].acct.ID}, nil)
	t.armTimer()
}

func (t *Table) finish(event protocol.Event, winner *seat) {
	t.status = protocol.Ended
	t.turnGen++
	if t.timer != nil {
		t.timer.Stop()
	}

	losers := []protocol.Loser{}
	for _, s := range t.seats {
		if s == winner {
			continue
		}
		losers = append(losers, protocol.Loser{
			PlayerID: s.acct.ID,
			Username: s.acct.Username,
			Points:   protocol.Some(points(s)),
		})
	}
	t.log.Info("game over", zap.Stringer("event", event), zap.String("winner", winner.acct.ID.String()))
	t.broadcast(event, protocol.WinPush{GameID: t.gameID, Winner: winner.acct.ID, Losers: losers}, nil)
}

func points(s *seat) int {
	if s.dropped {
		return dropPoints
	}
	total := 0
	for _, c := range s.hand {
		switch {
		case c.IsJoker():
		case c.Rank == deck.Ace || c.Rank >= deck.Jack:
			total += 10
		default:
			total += c.Rank.Value()
		}
	}
	if total > maxPoints {
		return maxPoints
	}
	return total
}

func (t *Table) armTimer() {
	t.turnGen++
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.opts.TurnTimeout <= 0 {
		return
	}
	gen := t.turnGen
	t.timer = time.AfterFunc(t.opts.TurnTimeout, func() {
		t.timeout(gen)
	})
}

// timeout skips the current player, discarding their drawn card if any
func (t *Table) timeout(gen int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.turnGen || t.status != protocol.Playing {
		return
	}
	s := t.seats[t.turn]
	if s.drawn && len(s.hand) > 0 {
		card := s.hand[len(s.hand)-1]
		s.hand = s.hand[:len(s.hand)-1]
		t.discard = append(t.discard, card)
		if s.client != nil {
			s.client.emit(protocol.YourHand, protocol.HandPush{Hand: s.hand})
		}
		t.broadcast(protocol.CardDiscarded, protocol.CardDiscardedPush{Card: protocol.Some(card)}, nil)
	}
	t.broadcast(protocol.PlayerTimedOut, protocol.PresencePush{PlayerID: s.acct.ID, Username: s.acct.Username}, nil)
	t.advance()
}

func indexOf(cards []deck.Card, card deck.Card) int {
	for i, c := range cards {
		if c == card {
			return i
		}
	}
	return -1
}
