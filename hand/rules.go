package hand

import (
	"sort"

	"github.com/minaorangina/rummy/deck"
)

// Meld is an advisory classification of a group. The server alone
// decides whether a declaration is valid.
type Meld int

const (
	Others Meld = iota
	Triplet
	ImpureSequence
	PureSequence
)

var meldNames = []string{"Others", "Triplet", "Impure Sequence", "Pure Sequence"}

func (m Meld) String() string {
	if m < Others || m > PureSequence {
		return ""
	}
	return meldNames[m]
}

// Classify returns the strongest meld the cards form
func Classify(cards []deck.Card) Meld {
	switch {
	case IsPureSequence(cards):
		return PureSequence
	case IsSequence(cards):
		return ImpureSequence
	case IsTriplet(cards):
		return Triplet
	}
	return Others
}

// IsPureSequence reports three or more consecutive cards of one suit, no jokers
func IsPureSequence(cards []deck.Card) bool {
	if len(cards) < 3 {
		return false
	}
	suit := cards[0].Suit
	values := make([]int, 0, len(cards))
	for _, c := range cards {
		if c.IsJoker() || c.Suit != suit {
			return false
		}
		values = append(values, c.Rank.Value())
	}
	return consecutive(values, 0) || consecutive(aceHigh(values), 0)
}

// IsSequence reports three or more cards of one suit whose gaps can be
// filled by the jokers present
func IsSequence(cards []deck.Card) bool {
	if len(cards) < 3 {
		return false
	}
	jokers := 0
	suit := deck.NoSuit
	values := []int{}
	for _, c := range cards {
		if c.IsJoker() {
			jokers++
			continue
		}
		if suit == deck.NoSuit {
			suit = c.Suit
		} else if c.Suit != suit {
			return false
		}
		values = append(values, c.Rank.Value())
	}
	if len(values) == 0 {
		return true
	}
	return consecutive(values, jokers) || consecutive(aceHigh(values), jokers)
}

// IsTriplet reports three cards of the same rank, jokers standing in for any
func IsTriplet(cards []deck.Card) bool {
	if len(cards) != 3 {
		return false
	}
	rank := deck.Joker
	for _, c := range cards {
		if c.IsJoker() {
			continue
		}
		if rank == deck.Joker {
			rank = c.Rank
		} else if c.Rank != rank {
			return false
		}
	}
	return true
}

// consecutive reports whether the sorted values have no duplicates and
// at most `fill` missing values between them
func consecutive(values []int, fill int) bool {
	sorted := append([]int{}, values...)
	sort.Ints(sorted)
	gaps := 0
	for i := 1; i < len(sorted); i++ {
		d := sorted[i] - sorted[i-1]
		if d == 0 {
			return false
		}
		gaps += d - 1
	}
	return gaps <= fill
}

func aceHigh(values []int) []int {
	out := make([]int, len(values))
	for i, v := range values {
		if v == deck.Ace.Value() {
			v = deck.King.Value() + 1
		}
		out[i] = v
	}
	return out
}
