package deck

import (
	"math/rand"
	"time"
)

// Deck represents a shoe of cards
type Deck []Card

// New creates a single deck of 52 cards
func New() Deck {
	cards := []Card{}
	for suit := Hearts; suit <= Spades; suit++ {
		for rank := Ace; rank <= King; rank++ {
			cards = append(cards, NewCard(rank, suit))
		}
	}
	return cards
}

// NewRummy creates a shoe of n decks plus the given number of jokers
func NewRummy(decks, jokers int) Deck {
	cards := Deck{}
	for i := 0; i < decks; i++ {
		cards = append(cards, New()...)
	}
	for i := 0; i < jokers; i++ {
		cards = append(cards, NewJoker())
	}
	return cards
}

// Shuffle shuffles the deck of cards
func (d *Deck) Shuffle() {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	actualDeck := (*d)
	for i := len(actualDeck) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		actualDeck[i], actualDeck[j] = actualDeck[j], actualDeck[i]
	}
}

// Deal deals n number of cards from the deck, until it is empty
func (d *Deck) Deal(n int) []Card {
	numCardsInDeck := len(*d)
	if n < 0 || n > numCardsInDeck {
		return []Card{}
	}
	startingIndex := numCardsInDeck - n
	subSlice := make([]Card, n)
	copy(subSlice, (*d)[startingIndex:numCardsInDeck])
	*d = (*d)[:startingIndex]
	return subSlice
}

// Top returns up to n cards from the top of the deck without dealing them
func (d Deck) Top(n int) []Card {
	if n > len(d) {
		n = len(d)
	}
	if n <= 0 {
		return []Card{}
	}
	top := make([]Card, n)
	copy(top, d[len(d)-n:])
	return top
}
