package game

import (
	"github.com/minaorangina/rummy/deck"
	"github.com/minaorangina/rummy/hand"
	"github.com/minaorangina/rummy/protocol"
	"go.uber.org/zap"
)

// Emitter sends an outbound event
type Emitter interface {
	Emit(event protocol.Event, payload interface{}) error
}

// TurnChecker reports whether the local player holds the turn
type TurnChecker interface {
	IsMyTurn() bool
}

// Actions sends player actions once their client-side preconditions
// hold. Every method reports whether a message was emitted; a failed
// precondition is not an error, the action is simply not sent.
type Actions struct {
	emitter Emitter
	turn    TurnChecker
	log     *zap.Logger
}

func NewActions(emitter Emitter, turn TurnChecker, log *zap.Logger) *Actions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Actions{emitter: emitter, turn: turn, log: log.Named("actions")}
}

func (a *Actions) DrawCard(gameID protocol.ID, source protocol.DrawSource) bool {
	if !a.myTurn(protocol.DrawCard) || !a.hasGame(protocol.DrawCard, gameID) {
		return false
	}
	if source != protocol.FromDrawPile && source != protocol.FromDiscard {
		a.suppressed(protocol.DrawCard, "unknown source")
		return false
	}
	return a.emit(protocol.DrawCard, protocol.DrawCardMsg{GameID: gameID, Source: source})
}

func (a *Actions) DiscardCard(gameID protocol.ID, card *deck.Card) bool {
	if !a.myTurn(protocol.DiscardCard) || !a.hasGame(protocol.DiscardCard, gameID) {
		return false
	}
	if card == nil {
		a.suppressed(protocol.DiscardCard, "no card")
		return false
	}
	return a.emit(protocol.DiscardCard, protocol.DiscardCardMsg{GameID: gameID, Card: *card})
}

// DropGame is allowed out of turn
func (a *Actions) DropGame(gameID protocol.ID) bool {
	if !a.hasGame(protocol.Drop, gameID) {
		return false
	}
	return a.emit(protocol.Drop, protocol.DropMsg{GameID: gameID})
}

// DeclareWin submits the organised hand for validation. Whether the
// groups are legal melds is for the server to decide.
func (a *Actions) DeclareWin(gameID, playerID protocol.ID, part hand.Partition) bool {
	if !a.myTurn(protocol.DeclareWin) || !a.hasGame(protocol.DeclareWin, gameID) {
		return false
	}
	if playerID == "" {
		a.suppressed(protocol.DeclareWin, "no player id")
		return false
	}
	return a.emit(protocol.DeclareWin, protocol.DeclareWinMsg{Payload: Declaration(gameID, playerID, part)})
}

// ReorderCards sends an ordering hint. The caller has already applied
// the order locally. Like DropGame it is allowed out of turn.
func (a *Actions) ReorderCards(gameID, playerID protocol.ID, newOrder []deck.Card) bool {
	if !a.hasGame(protocol.UpdateOrder, gameID) {
		return false
	}
	if playerID == "" {
		a.suppressed(protocol.UpdateOrder, "no player id")
		return false
	}
	return a.emit(protocol.UpdateOrder, protocol.UpdateOrderMsg{
		GameID:   gameID,
		PlayerID: playerID,
		NewOrder: append([]deck.Card{}, newOrder...),
	})
}

// JoinTable is not gated: it is how a game id is learned
func (a *Actions) JoinTable(tableID protocol.ID) bool {
	if tableID == "" {
		a.suppressed(protocol.JoinTable, "no table id")
		return false
	}
	return a.emit(protocol.JoinTable, protocol.JoinTableMsg{TableID: tableID})
}

// Declaration converts a hand partition to its wire form
func Declaration(gameID, playerID protocol.ID, part hand.Partition) protocol.Declaration {
	groups := make([]protocol.Group, 0, len(part.Groups))
	for _, g := range part.Groups {
		groups = append(groups, protocol.Group{
			ID:    g.ID,
			Name:  g.Label,
			Items: append([]deck.Card{}, g.Items...),
		})
	}
	return protocol.Declaration{
		GameID:    gameID,
		PlayerID:  playerID,
		Groups:    groups,
		Ungrouped: append([]deck.Card{}, part.Ungrouped...),
	}
}

func (a *Actions) myTurn(event protocol.Event) bool {
	if a.turn == nil || !a.turn.IsMyTurn() {
		a.suppressed(event, "not your turn")
		return false
	}
	return true
}

func (a *Actions) hasGame(event protocol.Event, gameID protocol.ID) bool {
	if gameID == "" {
		a.suppressed(event, "no game id")
		return false
	}
	return true
}

func (a *Actions) suppressed(event protocol.Event, reason string) {
	a.log.Debug("action not sent", zap.Stringer("event", event), zap.String("reason", reason))
}

func (a *Actions) emit(event protocol.Event, payload interface{}) bool {
	if err := a.emitter.Emit(event, payload); err != nil {
		a.log.Error("emit failed", zap.Stringer("event", event), zap.Error(err))
		return false
	}
	return true
}
