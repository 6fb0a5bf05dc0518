package protocol

import (
	"github.com/minaorangina/rummy/deck"
)

// Status is the server-driven lifecycle of a game
type Status string

const (
	Waiting Status = "waiting"
	Playing Status = "playing"
	Ended   Status = "ended"
)

// Player is a seat at the table as the server reports it
type Player struct {
	PlayerID  ID     `json:"playerId" mapstructure:"playerId"`
	Username  string `json:"username" mapstructure:"username"`
	Status    string `json:"status" mapstructure:"status"`
	Connected bool   `json:"connected" mapstructure:"connected"`
	HandCount int    `json:"handCount" mapstructure:"handCount"`
}

// GameState is the masked table state returned by the REST endpoint and
// carried by rummy/game_started
type GameState struct {
	GameID      ID          `json:"gameId" mapstructure:"gameId"`
	TableID     ID          `json:"tableId,omitempty" mapstructure:"tableId"`
	Players     []Player    `json:"players" mapstructure:"players"`
	CurrentTurn ID          `json:"currentTurn" mapstructure:"currentTurn"`
	DiscardTop  *deck.Card  `json:"discardTop" mapstructure:"discardTop"`
	DrawPileTop []deck.Card `json:"drawPileTop" mapstructure:"drawPileTop"`
	Status      Status      `json:"status" mapstructure:"status"`
}

// StatePush is a full or partial rummy/state update
type StatePush struct {
	Players     Opt[[]Player]    `json:"players,omitzero"`
	CurrentTurn Opt[ID]          `json:"currentTurn,omitzero"`
	DiscardTop  Opt[deck.Card]   `json:"discardTop,omitzero"`
	DrawPileTop Opt[[]deck.Card] `json:"drawPileTop,omitzero"`
	Status      Opt[Status]      `json:"status,omitzero"`
}

// HandPush is the authoritative hand for the receiving player
type HandPush struct {
	Hand []deck.Card `json:"hand"`
}

type CardDrawnPush struct {
	DrawPileTop []deck.Card `json:"drawPileTop"`
}

// CardDiscardedPush carries either the new full top or the single card added
type CardDiscardedPush struct {
	DiscardTop Opt[deck.Card] `json:"discardTop,omitzero"`
	Card       Opt[deck.Card] `json:"card,omitzero"`
}

type NextTurnPush struct {
	NextPlayerID ID `json:"nextPlayerId"`
}

// PresencePush accompanies player_connected, _disconnected, _dropped and _timedout
type PresencePush struct {
	PlayerID ID     `json:"playerId,omitempty"`
	Username string `json:"username,omitempty"`
}

// Loser summarises a player who did not win
type Loser struct {
	PlayerID ID       `json:"playerId"`
	Username string   `json:"username,omitempty"`
	Points   Opt[int] `json:"points,omitzero"`
}

// WinPush accompanies win_declared and auto_win
type WinPush struct {
	GameID ID      `json:"gameId,omitempty"`
	Winner ID      `json:"winner"`
	Losers []Loser `json:"losers,omitempty"`
}

// DrawSource is where a card is drawn from
type DrawSource string

const (
	FromDrawPile DrawSource = "drawPile"
	FromDiscard  DrawSource = "discard"
)

// ParseDrawSource maps UI names onto the wire values. The second result
// is false for anything unrecognised.
func ParseDrawSource(s string) (DrawSource, bool) {
	switch s {
	case "drawPile", "pile", "closed", "deck", "":
		return FromDrawPile, true
	case "discard", "discardPile", "open":
		return FromDiscard, true
	}
	return "", false
}

type JoinTableMsg struct {
	TableID ID `json:"tableId"`
}

type DrawCardMsg struct {
	GameID ID         `json:"gameId"`
	Source DrawSource `json:"source"`
}

type DiscardCardMsg struct {
	GameID ID        `json:"gameId"`
	Card   deck.Card `json:"card"`
}

type UpdateOrderMsg struct {
	GameID   ID          `json:"gameId"`
	PlayerID ID          `json:"playerId"`
	NewOrder []deck.Card `json:"newOrder"`
}

type DropMsg struct {
	GameID ID `json:"gameId"`
}

// Group is a labelled meld candidate as submitted in a declaration
type Group struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Items []deck.Card `json:"items"`
}

// Declaration is the organised hand sent for server-side validation
type Declaration struct {
	GameID    ID          `json:"gameId"`
	PlayerID  ID          `json:"playerId"`
	Groups    []Group     `json:"groups"`
	Ungrouped []deck.Card `json:"ungrouped"`
}

type DeclareWinMsg struct {
	Payload Declaration `json:"payload"`
}

// ErrorBody is the JSON error shape of the REST API
type ErrorBody struct {
	Error string `json:"error"`
}
