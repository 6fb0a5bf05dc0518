package deck

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownRank = errors.New("unknown rank")
	ErrUnknownSuit = errors.New("unknown suit")
)

// Rank represents a rank in a deck of cards
type Rank int

const (
	Ace Rank = iota
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Joker
)

// rank text as sent over the wire
var rankNames = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "Joker"}

var rankLongNames = []string{"Ace", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine", "Ten", "Jack", "Queen", "King", "Joker"}

func (r Rank) String() string {
	if r < Ace || r > Joker {
		return ""
	}
	return rankNames[r]
}

// Value is the face value used for sequences, with Ace low.
func (r Rank) Value() int {
	return int(r) + 1
}

func (r Rank) MarshalText() ([]byte, error) {
	if r < Ace || r > Joker {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRank, int(r))
	}
	return []byte(rankNames[r]), nil
}

func (r *Rank) UnmarshalText(text []byte) error {
	parsed, err := ParseRank(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRank accepts short ("Q"), long ("Queen") and upper-case joker forms.
func ParseRank(s string) (Rank, error) {
	s = strings.TrimSpace(s)
	for i := range rankNames {
		if strings.EqualFold(s, rankNames[i]) || strings.EqualFold(s, rankLongNames[i]) {
			return Rank(i), nil
		}
	}
	if s == "1" {
		return Ace, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRank, s)
}

// Suit represents a suit in a deck of cards
type Suit int

const (
	NoSuit Suit = iota
	Hearts
	Diamonds
	Clubs
	Spades
)

var suitNames = []string{"", "Hearts", "Diamonds", "Clubs", "Spades"}

var suitGlyphs = []string{"", "♥", "♦", "♣", "♠"}

func (s Suit) String() string {
	if s < NoSuit || s > Spades {
		return ""
	}
	return suitNames[s]
}

// Glyph returns the suit symbol, e.g. ♠
func (s Suit) Glyph() string {
	if s < NoSuit || s > Spades {
		return ""
	}
	return suitGlyphs[s]
}

// Red reports whether the suit is hearts or diamonds
func (s Suit) Red() bool {
	return s == Hearts || s == Diamonds
}

func (s Suit) MarshalText() ([]byte, error) {
	if s < NoSuit || s > Spades {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSuit, int(s))
	}
	return []byte(suitNames[s]), nil
}

func (s *Suit) UnmarshalText(text []byte) error {
	parsed, err := ParseSuit(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSuit accepts suit names in any case, single letters and glyphs.
func ParseSuit(s string) (Suit, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoSuit, nil
	}
	for i := Hearts; i <= Spades; i++ {
		name := suitNames[i]
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:1]) || s == suitGlyphs[i] {
			return i, nil
		}
	}
	return NoSuit, fmt.Errorf("%w: %q", ErrUnknownSuit, s)
}

// Card is an immutable playing card. Two cards with the same rank and
// suit are interchangeable; there is no identity beyond the value.
type Card struct {
	Rank Rank `mapstructure:"rank"`
	Suit Suit `mapstructure:"suit"`
}

// NewCard constructs a suited card
func NewCard(rank Rank, suit Suit) Card {
	if rank < Ace || rank > King || suit < Hearts || suit > Spades {
		panic("arguments out of range")
	}
	return Card{Rank: rank, Suit: suit}
}

// NewJoker constructs a joker, which has no suit
func NewJoker() Card {
	return Card{Rank: Joker, Suit: NoSuit}
}

// IsJoker reports whether the card is a joker
func (c Card) IsJoker() bool {
	return c.Rank == Joker
}

func (c Card) String() string {
	if c.IsJoker() {
		return "Joker"
	}
	return c.Rank.String() + c.Suit.Glyph()
}

type wireCard struct {
	Rank Rank  `json:"rank"`
	Suit *Suit `json:"suit,omitempty"`
}

func (c Card) MarshalJSON() ([]byte, error) {
	w := wireCard{Rank: c.Rank}
	if !c.IsJoker() {
		suit := c.Suit
		w.Suit = &suit
	}
	return json.Marshal(w)
}

// UnmarshalJSON treats "joker" in either field, in any case, as a
// joker before the suit is parsed.
func (c *Card) UnmarshalJSON(data []byte) error {
	var w struct {
		Rank *string `json:"rank"`
		Suit *string `json:"suit"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Rank == nil {
		return fmt.Errorf("%w: card has no rank", ErrUnknownRank)
	}
	if isJokerText(*w.Rank) || (w.Suit != nil && isJokerText(*w.Suit)) {
		*c = NewJoker()
		return nil
	}

	rank, err := ParseRank(*w.Rank)
	if err != nil {
		return err
	}
	if w.Suit == nil || *w.Suit == "" {
		return fmt.Errorf("%w: card %s has no suit", ErrUnknownSuit, rank)
	}
	suit, err := ParseSuit(*w.Suit)
	if err != nil {
		return err
	}
	if suit == NoSuit {
		return fmt.Errorf("%w: card %s has no suit", ErrUnknownSuit, rank)
	}
	*c = Card{Rank: rank, Suit: suit}
	return nil
}

func isJokerText(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "joker")
}

// ParseCard parses short forms such as "7H", "10♠", "QS" or "Joker".
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "joker") {
		return NewJoker(), nil
	}
	runes := []rune(s)
	if len(runes) < 2 {
		return Card{}, fmt.Errorf("%w: %q", ErrUnknownRank, s)
	}
	rank, err := ParseRank(string(runes[:len(runes)-1]))
	if err != nil {
		return Card{}, err
	}
	suit, err := ParseSuit(string(runes[len(runes)-1:]))
	if err != nil {
		return Card{}, err
	}
	if rank == Joker || suit == NoSuit {
		return Card{}, fmt.Errorf("%w: %q", ErrUnknownSuit, s)
	}
	return Card{Rank: rank, Suit: suit}, nil
}

// MustParse is ParseCard for literals; it panics on bad input.
func MustParse(cards ...string) []Card {
	out := make([]Card, 0, len(cards))
	for _, s := range cards {
		c, err := ParseCard(s)
		if err != nil {
			panic(err)
		}
		out = append(out, c)
	}
	return out
}

// Count returns the multiset of cards
func Count(cards []Card) map[Card]int {
	counts := make(map[Card]int, len(cards))
	for _, c := range cards {
		counts[c]++
	}
	return counts
}

// SameCards reports whether a and b hold the same cards, ignoring order
func SameCards(a, b []Card) bool {
	if len(a) != len(b) {
		return false
	}
	counts := Count(a)
	for _, c := range b {
		if counts[c] == 0 {
			return false
		}
		counts[c]--
	}
	return true
}

// Equal reports whether a and b hold the same cards in the same order
func Equal(a, b []Card) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
