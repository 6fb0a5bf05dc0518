// Package game keeps the client's view of the table in step with the
// server and sends the player's actions back to it.
package game

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/minaorangina/rummy/deck"
	"github.com/minaorangina/rummy/hand"
	"github.com/minaorangina/rummy/notify"
	"github.com/minaorangina/rummy/protocol"
	"github.com/minaorangina/rummy/socket"
	"github.com/minaorangina/rummy/store"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	msgGameStarted        = "Game started! Good luck!"
	msgYouWon             = "Congratulations! You won!"
	msgGameEnded          = "Game ended"
	msgUnknownServerError = "Something went wrong"
)

// EventSource is where inbound events come from
type EventSource interface {
	On(event protocol.Event, h socket.Handler) socket.Subscription
	Off(event protocol.Event, subs ...socket.Subscription)
}

// SyncOpts wires a Synchronizer. Only Sessions is required.
type SyncOpts struct {
	Sessions      store.SessionStore
	Hand          *hand.Engine
	Notifications *notify.Queue
	Navigator     Navigator
	Logger        *zap.Logger
}

// Synchronizer applies server pushes to the cached table, feeds hand
// pushes to the hand engine and turns lifecycle events into
// notifications and navigation.
type Synchronizer struct {
	sessions store.SessionStore
	hand     *hand.Engine
	notes    *notify.Queue
	nav      Navigator
	log      *zap.Logger

	mu        sync.Mutex
	table     Table
	observers []func(Table)
	deliver   sync.Mutex
}

func NewSynchronizer(opts SyncOpts) *Synchronizer {
	if opts.Sessions == nil {
		panic("game: nil session store")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{
		sessions: opts.Sessions,
		hand:     opts.Hand,
		notes:    opts.Notifications,
		nav:      opts.Navigator,
		log:      log.Named("sync"),
		table:    emptyTable(),
	}
}

func emptyTable() Table {
	return Table{
		Players:     []protocol.Player{},
		DiscardPile: []deck.Card{},
		DrawPileTop: []deck.Card{},
		Status:      protocol.Waiting,
	}
}

// Subscribe registers fn to receive the table after every change
func (s *Synchronizer) Subscribe(fn func(Table)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Table returns a copy of the cached table
func (s *Synchronizer) Table() Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.clone()
}

// GameID is the id of the current game, "" before one is known
func (s *Synchronizer) GameID() protocol.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.GameID
}

// LocalPlayerID is the signed-in player, read from the session each time
func (s *Synchronizer) LocalPlayerID() protocol.ID {
	return store.PlayerID(s.sessions)
}

// IsMyTurn compares the current turn holder with the signed-in player
func (s *Synchronizer) IsMyTurn() bool {
	me := s.LocalPlayerID()
	if me == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.CurrentTurn == me
}

// Seed replaces the table with state fetched over REST
func (s *Synchronizer) Seed(state protocol.GameState) {
	s.mutate(func(t *Table) {
		applyGameState(t, state)
	})
}

// Reset forgets everything about the table
func (s *Synchronizer) Reset() {
	s.mutate(func(t *Table) {
		*t = emptyTable()
	})
}

func applyGameState(t *Table, state protocol.GameState) {
	if state.GameID != "" {
		t.GameID = state.GameID
	}
	if state.TableID != "" {
		t.TableID = state.TableID
	}
	t.Players = append([]protocol.Player{}, state.Players...)
	t.CurrentTurn = state.CurrentTurn
	t.DiscardPile = []deck.Card{}
	if state.DiscardTop != nil {
		t.DiscardPile = append(t.DiscardPile, *state.DiscardTop)
	}
	t.DrawPileTop = append([]deck.Card{}, state.DrawPileTop...)
	if state.Status != "" {
		t.Status = state.Status
	}
}

// Bind registers every inbound handler on src. The returned func
// unregisters them.
func (s *Synchronizer) Bind(src EventSource) func() {
	handlers := map[protocol.Event]socket.Handler{
		protocol.State:              s.HandleState,
		protocol.GameStarted:        s.HandleGameStarted,
		protocol.YourHand:           s.HandleYourHand,
		protocol.CardDrawn:          s.HandleCardDrawn,
		protocol.CardDiscarded:      s.HandleCardDiscarded,
		protocol.NextTurn:           s.HandleNextTurn,
		protocol.PlayerConnected:    s.presence(notify.Info, "connected"),
		protocol.PlayerDisconnected: s.presence(notify.Warning, "disconnected"),
		protocol.PlayerDropped:      s.presence(notify.Warning, "dropped"),
		protocol.PlayerTimedOut:     s.presence(notify.Warning, "timed out"),
		protocol.WinDeclared:        s.HandleWin,
		protocol.AutoWin:            s.HandleWin,
		protocol.Error:              s.HandleError,
	}

	subs := make(map[protocol.Event]socket.Subscription, len(handlers))
	for event, h := range handlers {
		subs[event] = src.On(event, h)
	}
	return func() {
		for event, sub := range subs {
			src.Off(event, sub)
		}
	}
}

// HandleState applies a full or partial rummy/state push. Absent fields
// are left alone; null fields are cleared.
func (s *Synchronizer) HandleState(data json.RawMessage) {
	var push protocol.StatePush
	if !s.decode(protocol.State, data, &push) {
		return
	}
	s.mutate(func(t *Table) {
		if push.Players.Set {
			t.Players = append([]protocol.Player{}, push.Players.Value...)
		}
		if push.CurrentTurn.Set {
			t.CurrentTurn = push.CurrentTurn.Value
		}
		if push.DiscardTop.Set {
			t.DiscardPile = []deck.Card{}
			if top, ok := push.DiscardTop.Get(); ok {
				t.DiscardPile = append(t.DiscardPile, top)
			}
		}
		if push.DrawPileTop.Set {
			t.DrawPileTop = append([]deck.Card{}, push.DrawPileTop.Value...)
		}
		if status, ok := push.Status.Get(); ok && status != "" {
			t.Status = status
		}
	})
}

// HandleGameStarted snapshots the full game payload and marks the game
// as playing. The payload's shape varies between servers, so it is kept
// raw and decoded leniently.
func (s *Synchronizer) HandleGameStarted(data json.RawMessage) {
	raw := map[string]interface{}{}
	if len(data) > 0 && !s.decode(protocol.GameStarted, data, &raw) {
		return
	}

	var state protocol.GameState
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(cardHook, mapstructure.TextUnmarshallerHookFunc()),
		WeaklyTypedInput: true,
		Result:           &state,
	})
	if err == nil {
		err = dec.Decode(raw)
	}
	if err != nil {
		s.log.Warn("partially decoded game_started payload", zap.Error(err))
	}

	s.mutate(func(t *Table) {
		if _, ok := raw["players"]; ok {
			t.Players = append([]protocol.Player{}, state.Players...)
		}
		if _, ok := raw["currentTurn"]; ok {
			t.CurrentTurn = state.CurrentTurn
		}
		if _, ok := raw["discardTop"]; ok {
			t.DiscardPile = []deck.Card{}
			if state.DiscardTop != nil {
				t.DiscardPile = append(t.DiscardPile, *state.DiscardTop)
			}
		}
		if _, ok := raw["drawPileTop"]; ok {
			t.DrawPileTop = append([]deck.Card{}, state.DrawPileTop...)
		}
		if state.GameID != "" {
			t.GameID = state.GameID
		}
		if state.TableID != "" {
			t.TableID = state.TableID
		}
		t.Status = protocol.Playing
		t.Started = raw
	})
	s.notify(notify.Success, msgGameStarted)
}

// HandleYourHand reconciles the local hand with the pushed one
func (s *Synchronizer) HandleYourHand(data json.RawMessage) {
	var push protocol.HandPush
	if !s.decode(protocol.YourHand, data, &push) {
		return
	}
	if s.hand == nil {
		return
	}
	s.hand.Reconcile(push.Hand)
}

func (s *Synchronizer) HandleCardDrawn(data json.RawMessage) {
	var push protocol.CardDrawnPush
	if !s.decode(protocol.CardDrawn, data, &push) {
		return
	}
	s.mutate(func(t *Table) {
		t.DrawPileTop = append([]deck.Card{}, push.DrawPileTop...)
	})
}

// HandleCardDiscarded replaces the pile when a full top is pushed and
// appends when only the added card is.
func (s *Synchronizer) HandleCardDiscarded(data json.RawMessage) {
	var push protocol.CardDiscardedPush
	if !s.decode(protocol.CardDiscarded, data, &push) {
		return
	}
	s.mutate(func(t *Table) {
		switch {
		case push.DiscardTop.Set:
			t.DiscardPile = []deck.Card{}
			if top, ok := push.DiscardTop.Get(); ok {
				t.DiscardPile = append(t.DiscardPile, top)
			}
		case push.Card.Set:
			if card, ok := push.Card.Get(); ok {
				t.DiscardPile = append(t.DiscardPile, card)
			}
		}
	})
}

func (s *Synchronizer) HandleNextTurn(data json.RawMessage) {
	var push protocol.NextTurnPush
	if !s.decode(protocol.NextTurn, data, &push) {
		return
	}
	s.mutate(func(t *Table) {
		t.CurrentTurn = push.NextPlayerID
	})
}

// presence handlers only notify
func (s *Synchronizer) presence(typ notify.Type, what string) socket.Handler {
	return func(data json.RawMessage) {
		var push protocol.PresencePush
		if len(data) > 0 {
			if err := json.Unmarshal(data, &push); err != nil {
				s.log.Debug("presence payload ignored", zap.Error(err))
			}
		}
		who := push.Username
		if who == "" {
			if p, ok := s.Table().Player(push.PlayerID); ok && p.Username != "" {
				who = p.Username
			}
		}
		if who == "" {
			who = "Player"
		}
		s.notify(typ, fmt.Sprintf("%s %s", who, what))
	}
}

// HandleWin ends the game and navigates to the result view
func (s *Synchronizer) HandleWin(data json.RawMessage) {
	var push protocol.WinPush
	if !s.decode(protocol.WinDeclared, data, &push) {
		return
	}

	var gameID protocol.ID
	s.mutate(func(t *Table) {
		t.Status = protocol.Ended
		if push.GameID != "" {
			t.GameID = push.GameID
		}
		gameID = t.GameID
	})

	me := s.LocalPlayerID()
	result := Result{
		GameID: gameID,
		Winner: push.Winner,
		IsYou:  me != "" && push.Winner == me,
		Losers: append([]protocol.Loser{}, push.Losers...),
	}
	if result.IsYou {
		s.notify(notify.Success, msgYouWon)
	} else {
		s.notify(notify.Info, msgGameEnded)
	}
	if s.nav != nil {
		s.nav.ShowResult(result)
	}
}

// HandleError surfaces a server-pushed error. The message is usually a
// bare string but objects carrying message or error are accepted.
func (s *Synchronizer) HandleError(data json.RawMessage) {
	s.notify(notify.Error, errorMessage(data))
}

func errorMessage(data json.RawMessage) string {
	var msg string
	if err := json.Unmarshal(data, &msg); err == nil && msg != "" {
		return msg
	}
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Error != "" {
			return obj.Error
		}
	}
	return msgUnknownServerError
}

var cardType = reflect.TypeOf(deck.Card{})

// cardHook decodes card maps with the card's own JSON rules, so the
// joker forms accepted on other events are accepted here too.
func cardHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != cardType || from.Kind() != reflect.Map {
		return data, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var card deck.Card
	if err := json.Unmarshal(raw, &card); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *Synchronizer) decode(event protocol.Event, data json.RawMessage, v interface{}) bool {
	if err := json.Unmarshal(data, v); err != nil {
		s.log.Warn("malformed payload", zap.Stringer("event", event), zap.ByteString("data", data), zap.Error(err))
		s.notify(notify.Error, fmt.Sprintf("Received a malformed %s update", event))
		return false
	}
	return true
}

func (s *Synchronizer) notify(typ notify.Type, msg string) {
	if s.notes == nil {
		s.log.Info("notification", zap.String("type", string(typ)), zap.String("message", msg))
		return
	}
	s.notes.Push(typ, msg)
}

// mutate applies fn and notifies observers, only if the table changed.
// Deliveries happen outside mu but in mutation order.
func (s *Synchronizer) mutate(fn func(*Table)) {
	s.mu.Lock()
	before := s.table.clone()
	fn(&s.table)
	if reflect.DeepEqual(before, s.table) {
		s.mu.Unlock()
		return
	}
	snapshot := s.table.clone()
	observers := append([]func(Table){}, s.observers...)
	s.deliver.Lock()
	s.mu.Unlock()
	defer s.deliver.Unlock()

	for _, o := range observers {
		o(snapshot.clone())
	}
}
