package game

import (
	"testing"

	"github.com/minaorangina/rummy/deck"
	"github.com/minaorangina/rummy/hand"
	"github.com/minaorangina/rummy/protocol"
	"github.com/minaorangina/rummy/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnGating(t *testing.T) {
	card := cards("7H")[0]
	part := hand.Partition{Groups: []hand.Group{}, Ungrouped: cards("7H")}

	t.Run("out of turn nothing is emitted", func(t *testing.T) {
		spy := &spyEmitter{}
		a := NewActions(spy, fixedTurn(false), nil)

		assert.False(t, a.DrawCard("GM-1", protocol.FromDrawPile))
		assert.False(t, a.DiscardCard("GM-1", &card))
		assert.False(t, a.DeclareWin("GM-1", "1", part))
		assert.Empty(t, spy.events())
	})

	t.Run("in turn everything is emitted", func(t *testing.T) {
		spy := &spyEmitter{}
		a := NewActions(spy, fixedTurn(true), nil)

		assert.True(t, a.DrawCard("GM-1", protocol.FromDiscard))
		assert.True(t, a.DiscardCard("GM-1", &card))
		assert.True(t, a.DeclareWin("GM-1", "1", part))
		assert.True(t, a.ReorderCards("GM-1", "1", cards("7H")))
		assert.Equal(t, []protocol.Event{
			protocol.DrawCard, protocol.DiscardCard, protocol.DeclareWin, protocol.UpdateOrder,
		}, spy.events())

		assert.Equal(t, protocol.DrawCardMsg{GameID: "GM-1", Source: protocol.FromDiscard}, spy.sent[0].Payload)
		assert.Equal(t, protocol.DiscardCardMsg{GameID: "GM-1", Card: card}, spy.sent[1].Payload)
	})

	t.Run("turn follows the synchronizer", func(t *testing.T) {
		spy := &spyEmitter{}
		sync := NewSynchronizer(SyncOpts{Sessions: store.NewInMemorySessionStore(store.Session{User: store.User{ID: "1"}})})
		a := NewActions(spy, sync, nil)

		sync.Seed(protocol.GameState{GameID: "GM-1", CurrentTurn: "2"})
		assert.False(t, a.DrawCard(sync.GameID(), protocol.FromDrawPile))
		assert.Empty(t, spy.events())

		sync.HandleNextTurn([]byte(`{"nextPlayerId":"1"}`))
		assert.True(t, a.DrawCard(sync.GameID(), protocol.FromDrawPile))
		assert.Len(t, spy.events(), 1)
	})
}

func TestActionPreconditions(t *testing.T) {
	spy := &spyEmitter{}
	a := NewActions(spy, fixedTurn(true), nil)

	assert.False(t, a.DrawCard("", protocol.FromDrawPile), "no game id")
	assert.False(t, a.DrawCard("GM-1", "closedPile"), "unknown source")
	assert.False(t, a.DiscardCard("GM-1", nil), "no card")
	assert.False(t, a.DeclareWin("GM-1", "", hand.Partition{}), "no player id")
	assert.False(t, a.ReorderCards("", "1", nil), "no game id")
	assert.False(t, a.DropGame(""), "no game id")
	assert.False(t, a.JoinTable(""), "no table id")
	assert.Empty(t, spy.events())
}

func TestUngatedActions(t *testing.T) {
	spy := &spyEmitter{}
	a := NewActions(spy, fixedTurn(false), nil)

	assert.True(t, a.DropGame("GM-1"))
	assert.True(t, a.JoinTable("1"))
	assert.True(t, a.ReorderCards("GM-1", "1", cards("8H", "7H")))
	assert.Equal(t, []protocol.Event{protocol.Drop, protocol.JoinTable, protocol.UpdateOrder}, spy.events())
	assert.Equal(t, protocol.UpdateOrderMsg{GameID: "GM-1", PlayerID: "1", NewOrder: cards("8H", "7H")}, spy.sent[2].Payload)
	assert.Equal(t, protocol.DropMsg{GameID: "GM-1"}, spy.sent[0].Payload)
}

func TestDeclaration(t *testing.T) {
	part := hand.Partition{
		Groups: []hand.Group{
			{ID: "g1", Label: "Pure", Items: cards("AS", "2S", "3S")},
			{ID: "g2", Label: "Set", Items: []deck.Card{cards("9H")[0], cards("9C")[0], deck.NewJoker()}},
		},
		Ungrouped: cards("KD"),
	}

	d := Declaration("GM-1", "1", part)
	require.Len(t, d.Groups, 2)
	assert.Equal(t, protocol.Group{ID: "g1", Name: "Pure", Items: cards("AS", "2S", "3S")}, d.Groups[0])
	assert.Equal(t, "Set", d.Groups[1].Name)
	assert.Equal(t, cards("KD"), d.Ungrouped)

	// the declaration does not alias the partition
	d.Ungrouped[0] = deck.NewJoker()
	assert.Equal(t, cards("KD"), part.Ungrouped)
}
