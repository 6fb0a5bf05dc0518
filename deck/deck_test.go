package deck

import (
	"testing"

	"github.com/minaorangina/rummy/internal"
	"github.com/stretchr/testify/assert"
)

var fullDeckCount = 52

func TestDeck(t *testing.T) {
	t.Run("single deck", func(t *testing.T) {
		deckOfCards := New()
		assert.Len(t, deckOfCards, fullDeckCount)
		assert.Len(t, Count(deckOfCards), fullDeckCount)
	})

	t.Run("rummy shoe has duplicates and jokers", func(t *testing.T) {
		shoe := NewRummy(2, 2)
		assert.Len(t, shoe, 2*fullDeckCount+2)
		counts := Count(shoe)
		assert.Equal(t, 2, counts[NewCard(King, Hearts)])
		assert.Equal(t, 2, counts[NewJoker()])
	})

	t.Run("shuffle keeps the same cards", func(t *testing.T) {
		shoe := NewRummy(2, 2)
		before := append(Deck{}, shoe...)
		shoe.Shuffle()
		assert.True(t, SameCards(before, shoe))
	})

	t.Run("deal removes from the top", func(t *testing.T) {
		d := New()
		top := d.Top(3)
		dealt := d.Deal(3)
		assert.Equal(t, top, dealt)
		assert.Len(t, d, fullDeckCount-3)
		assert.Empty(t, d.Deal(100))
		assert.Empty(t, d.Deal(-1))
	})
}

func TestRankValue(t *testing.T) {
	tests := map[Rank]int{
		Ace:   1,
		Two:   2,
		Ten:   10,
		Jack:  11,
		Queen: 12,
		King:  13,
	}
	for rank, want := range tests {
		internal.TableAssertEqual(t, rank.String(), rank.Value(), want)
	}
}
