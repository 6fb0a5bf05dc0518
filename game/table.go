package game

import (
	"github.com/minaorangina/rummy/deck"
	"github.com/minaorangina/rummy/protocol"
)

// Table is the client's read-only copy of the server's table state
type Table struct {
	GameID      protocol.ID
	TableID     protocol.ID
	Players     []protocol.Player
	CurrentTurn protocol.ID
	// DiscardPile holds the discard cards the client has been told about,
	// oldest first. A full top push collapses it to one card.
	DiscardPile []deck.Card
	DrawPileTop []deck.Card
	Status      protocol.Status
	// Started is the raw rummy/game_started payload
	Started map[string]interface{}
}

// DiscardTop is the visible discard card, if any
func (t Table) DiscardTop() (deck.Card, bool) {
	if len(t.DiscardPile) == 0 {
		return deck.Card{}, false
	}
	return t.DiscardPile[len(t.DiscardPile)-1], true
}

// Player finds a seat by id
func (t Table) Player(id protocol.ID) (protocol.Player, bool) {
	for _, p := range t.Players {
		if p.PlayerID == id {
			return p, true
		}
	}
	return protocol.Player{}, false
}

func (t Table) clone() Table {
	out := t
	out.Players = append([]protocol.Player{}, t.Players...)
	out.DiscardPile = append([]deck.Card{}, t.DiscardPile...)
	out.DrawPileTop = append([]deck.Card{}, t.DrawPileTop...)
	if t.Started != nil {
		out.Started = make(map[string]interface{}, len(t.Started))
		for k, v := range t.Started {
			out.Started[k] = v
		}
	}
	return out
}

// Result is what the result view is shown after a game ends
type Result struct {
	GameID protocol.ID
	Winner protocol.ID
	IsYou  bool
	Losers []protocol.Loser
}

// Navigator moves the UI to the result view
type Navigator interface {
	ShowResult(Result)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(Result)

func (f NavigatorFunc) ShowResult(r Result) {
	f(r)
}
