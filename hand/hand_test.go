package hand

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/minaorangina/rummy/deck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cards = deck.MustParse

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("g%d", n)
	})
}

// engineWith builds an engine holding the given partition
func engineWith(t *testing.T, groups []Group, ungrouped []deck.Card) *Engine {
	t.Helper()
	e := NewEngine(sequentialIDs())
	e.part = Partition{Groups: groups, Ungrouped: ungrouped}
	e.last = e.part.Clone()
	return e
}

func assertSameMultiset(t *testing.T, e *Engine, want []deck.Card) {
	t.Helper()
	got := e.Cards()
	assert.True(t, deck.SameCards(got, want), "hand %v does not hold %v", got, want)
}

func TestReconcile(t *testing.T) {
	t.Run("preserves grouping and appends new cards", func(t *testing.T) {
		e := engineWith(t, []Group{{ID: "g1", Items: cards("7H", "8H")}}, cards("KS"))

		e.Reconcile(cards("7H", "8H", "KS", "2C"))

		assert.Equal(t, Partition{
			Groups:    []Group{{ID: "g1", Items: cards("7H", "8H")}},
			Ungrouped: cards("KS", "2C"),
		}, e.Snapshot())
	})

	t.Run("drops cards missing from the new hand", func(t *testing.T) {
		e := engineWith(t, []Group{{ID: "g1", Items: cards("7H", "8H")}}, cards("KS"))

		e.Reconcile(cards("7H", "KS"))

		assert.Equal(t, Partition{
			Groups:    []Group{{ID: "g1", Items: cards("7H")}},
			Ungrouped: cards("KS"),
		}, e.Snapshot())
	})

	t.Run("deletes groups left empty", func(t *testing.T) {
		e := engineWith(t, []Group{{ID: "g1", Items: cards("7H")}}, cards("KS"))

		e.Reconcile(cards("KS"))

		snap := e.Snapshot()
		assert.Empty(t, snap.Groups)
		assert.Equal(t, cards("KS"), snap.Ungrouped)
	})

	t.Run("is idempotent", func(t *testing.T) {
		e := engineWith(t, []Group{{ID: "g1", Label: "Pure", Items: cards("AS", "2S", "3S")}}, cards("KD", "KD"))
		h := cards("KD", "3S", "2S", "9C", "AS")

		e.Reconcile(h)
		first := e.Snapshot()
		e.Reconcile(h)

		assert.Equal(t, first, e.Snapshot())
	})

	t.Run("matches duplicates by count, groups first", func(t *testing.T) {
		e := engineWith(t, []Group{{ID: "g1", Items: cards("KH", "QH")}}, cards("KH", "KH"))

		e.Reconcile(cards("KH", "QH", "KH"))

		assert.Equal(t, Partition{
			Groups:    []Group{{ID: "g1", Items: cards("KH", "QH")}},
			Ungrouped: cards("KH"),
		}, e.Snapshot())
	})

	t.Run("never invents cards", func(t *testing.T) {
		e := engineWith(t, []Group{{ID: "g1", Items: cards("2D", "3D", "4D")}}, cards("9S", "9S"))
		h := cards("4D", "9S", "JC", "JC", "Joker")

		e.Reconcile(h)

		assertSameMultiset(t, e, h)
	})
}

func TestGroupSelected(t *testing.T) {
	t.Run("moves selected cards into a new group", func(t *testing.T) {
		e := engineWith(t, []Group{}, cards("AS", "KD", "2S", "3S"))

		id, err := e.GroupSelected([]int{0, 2, 3}, "Pure")
		require.NoError(t, err)

		assert.Equal(t, "g1", id)
		assert.Equal(t, Partition{
			Groups:    []Group{{ID: "g1", Label: "Pure", Items: cards("AS", "2S", "3S")}},
			Ungrouped: cards("KD"),
		}, e.Snapshot())
	})

	t.Run("keeps selection order", func(t *testing.T) {
		e := engineWith(t, []Group{}, cards("3S", "KD", "AS", "2S"))

		_, err := e.GroupSelected([]int{2, 3, 0}, "run")
		require.NoError(t, err)

		snap := e.Snapshot()
		assert.Equal(t, cards("AS", "2S", "3S"), snap.Groups[0].Items)
		assert.Equal(t, cards("KD"), snap.Ungrouped)
	})

	t.Run("empty selection is a no-op", func(t *testing.T) {
		e := engineWith(t, []Group{}, cards("AS"))
		id, err := e.GroupSelected(nil, "x")
		assert.NoError(t, err)
		assert.Empty(t, id)
		assert.Empty(t, e.Snapshot().Groups)
	})

	t.Run("rejects out of range and repeated indices", func(t *testing.T) {
		e := engineWith(t, []Group{}, cards("AS", "2S"))

		_, err := e.GroupSelected([]int{0, 5}, "x")
		assert.ErrorIs(t, err, ErrInvalidIndex)

		_, err = e.GroupSelected([]int{1, 1}, "x")
		assert.ErrorIs(t, err, ErrDuplicateCard)

		assert.Equal(t, cards("AS", "2S"), e.Snapshot().Ungrouped)
	})
}

func TestUngroup(t *testing.T) {
	e := engineWith(t, []Group{
		{ID: "g1", Items: cards("7H", "8H")},
		{ID: "g2", Items: cards("QC")},
	}, cards("KS"))

	assert.False(t, e.Ungroup("nope"))
	assert.True(t, e.Ungroup("g1"))

	assert.Equal(t, Partition{
		Groups:    []Group{{ID: "g2", Items: cards("QC")}},
		Ungrouped: cards("KS", "7H", "8H"),
	}, e.Snapshot())
}

func TestReorder(t *testing.T) {
	t.Run("within ungrouped", func(t *testing.T) {
		e := engineWith(t, []Group{}, cards("AS", "2S", "3S", "4S"))
		assert.True(t, e.Reorder(Ungrouped, 0, 2))
		assert.Equal(t, cards("2S", "3S", "AS", "4S"), e.Snapshot().Ungrouped)

		assert.True(t, e.Reorder("", 3, 0))
		assert.Equal(t, cards("4S", "2S", "3S", "AS"), e.Snapshot().Ungrouped)
	})

	t.Run("within a group", func(t *testing.T) {
		e := engineWith(t, []Group{{ID: "g1", Items: cards("9D", "7D", "8D")}}, nil)
		assert.True(t, e.Reorder("g1", 0, 2))
		assert.Equal(t, cards("7D", "8D", "9D"), e.Snapshot().Groups[0].Items)
	})

	t.Run("no-op for equal or bad indices and unknown zones", func(t *testing.T) {
		e := engineWith(t, []Group{}, cards("AS", "2S"))
		assert.False(t, e.Reorder(Ungrouped, 1, 1))
		assert.False(t, e.Reorder(Ungrouped, -1, 1))
		assert.False(t, e.Reorder(Ungrouped, 0, 2))
		assert.False(t, e.Reorder("g9", 0, 1))
		assert.Equal(t, cards("AS", "2S"), e.Snapshot().Ungrouped)
	})
}

func TestRemoveCard(t *testing.T) {
	t.Run("from ungrouped", func(t *testing.T) {
		e := engineWith(t, []Group{}, cards("KD", "5C"))
		card, ok := e.RemoveCard(Location{Zone: Ungrouped, Index: 0})
		assert.True(t, ok)
		assert.Equal(t, deck.NewCard(deck.King, deck.Diamonds), card)
		assert.Equal(t, cards("5C"), e.Snapshot().Ungrouped)
	})

	t.Run("singleton group is kept until empty", func(t *testing.T) {
		e := engineWith(t, []Group{{ID: "g1", Items: cards("7H", "8H")}}, nil)

		_, ok := e.RemoveCard(Location{Zone: "g1", Index: 1})
		require.True(t, ok)
		assert.Equal(t, []Group{{ID: "g1", Items: cards("7H")}}, e.Snapshot().Groups)

		_, ok = e.RemoveCard(Location{Zone: "g1", Index: 0})
		require.True(t, ok)
		assert.Empty(t, e.Snapshot().Groups)
	})

	t.Run("bad location", func(t *testing.T) {
		e := engineWith(t, []Group{}, cards("KD"))
		_, ok := e.RemoveCard(Location{Zone: Ungrouped, Index: 3})
		assert.False(t, ok)
		_, ok = e.RemoveCard(Location{Zone: "g1", Index: 0})
		assert.False(t, ok)
	})

	t.Run("only if the card is still there", func(t *testing.T) {
		e := engineWith(t, []Group{{ID: "g1", Items: cards("7H", "8H")}}, cards("KD", "5C"))

		assert.False(t, e.RemoveCardIf(Location{Zone: Ungrouped, Index: 0}, cards("5C")[0]))
		assert.False(t, e.RemoveCardIf(Location{Zone: Ungrouped, Index: 2}, cards("5C")[0]))
		assert.Equal(t, cards("KD", "5C"), e.Snapshot().Ungrouped)

		assert.True(t, e.RemoveCardIf(Location{Zone: Ungrouped, Index: 1}, cards("5C")[0]))
		assert.True(t, e.RemoveCardIf(Location{Zone: "g1", Index: 0}, cards("7H")[0]))
		assert.Equal(t, Partition{
			Groups:    []Group{{ID: "g1", Items: cards("8H")}},
			Ungrouped: cards("KD"),
		}, e.Snapshot())
	})
}

func TestMoveCard(t *testing.T) {
	e := engineWith(t, []Group{
		{ID: "g1", Items: cards("7H")},
		{ID: "g2", Items: cards("QC", "QD")},
	}, cards("KS"))

	assert.True(t, e.MoveCard(Location{Zone: Ungrouped, Index: 0}, "g2"))
	assert.True(t, e.MoveCard(Location{Zone: "g1", Index: 0}, Ungrouped))
	assert.False(t, e.MoveCard(Location{Zone: "g2", Index: 0}, "g2"))
	assert.False(t, e.MoveCard(Location{Zone: "g2", Index: 0}, "missing"))

	assert.Equal(t, Partition{
		Groups:    []Group{{ID: "g2", Items: cards("QC", "QD", "KS")}},
		Ungrouped: cards("7H"),
	}, e.Snapshot())
}

func TestObservers(t *testing.T) {
	e := NewEngine(sequentialIDs())
	snapshots := []Partition{}
	e.Subscribe(func(p Partition) { snapshots = append(snapshots, p) })

	h := cards("AS", "2S", "3S", "KD")
	e.Reconcile(h)
	e.Reconcile(h)
	require.Len(t, snapshots, 1, "an unchanged hand must not notify")

	e.Reorder(Ungrouped, 1, 1)
	require.Len(t, snapshots, 1)

	_, err := e.GroupSelected([]int{0, 1, 2}, "Pure")
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, cards("KD"), snapshots[1].Ungrouped)

	// observers get copies
	snapshots[1].Ungrouped[0] = deck.NewJoker()
	assert.Equal(t, cards("KD"), e.Snapshot().Ungrouped)
}

func TestObserversSeeMutationsInOrder(t *testing.T) {
	e := NewEngine(sequentialIDs())
	var snapshots []Partition
	e.Subscribe(func(p Partition) { snapshots = append(snapshots, p) })

	hands := [][]deck.Card{
		cards("AS", "2S", "3S"),
		cards("KD", "QD"),
		cards("7H"),
		cards("9C", "9D", "9H", "9S"),
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				e.Reconcile(hands[(w+i)%len(hands)])
			}
		}(w)
	}
	wg.Wait()

	require.NotEmpty(t, snapshots)
	assert.Equal(t, e.Snapshot(), snapshots[len(snapshots)-1])
	for i := 1; i < len(snapshots); i++ {
		assert.False(t, snapshots[i].Equal(snapshots[i-1]), "snapshot %d repeats its predecessor", i)
	}
}

func TestPartitionInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	shoe := deck.NewRummy(2, 2)
	shoe.Shuffle()
	authoritative := shoe.Deal(13)

	e := NewEngine(sequentialIDs())
	e.Reconcile(authoritative)

	for step := 0; step < 500; step++ {
		snap := e.Snapshot()
		switch r.Intn(5) {
		case 0:
			if n := len(snap.Ungrouped); n > 0 {
				k := r.Intn(n) + 1
				_, err := e.GroupSelected(r.Perm(n)[:k], "g")
				require.NoError(t, err)
			}
		case 1:
			if len(snap.Groups) > 0 {
				e.Ungroup(snap.Groups[r.Intn(len(snap.Groups))].ID)
			}
		case 2:
			e.Reorder(Ungrouped, r.Intn(14), r.Intn(14))
		case 3:
			if len(snap.Groups) > 0 {
				g := snap.Groups[r.Intn(len(snap.Groups))]
				e.Reorder(g.ID, r.Intn(len(g.Items)), r.Intn(len(g.Items)))
			}
		case 4:
			if len(snap.Groups) > 0 {
				g := snap.Groups[r.Intn(len(snap.Groups))]
				e.MoveCard(Location{Zone: g.ID, Index: r.Intn(len(g.Items))}, Ungrouped)
			}
		}
		assertSameMultiset(t, e, authoritative)
	}

	// a fresh authoritative hand always wins on membership
	next := append(authoritative[2:], shoe.Deal(3)...)
	e.Reconcile(next)
	assertSameMultiset(t, e, next)
}

func TestEndToEndOrganisation(t *testing.T) {
	e := NewEngine(sequentialIDs())
	e.Reconcile(cards("AS", "2S", "3S", "KD"))

	id, err := e.GroupSelected([]int{0, 1, 2}, "Pure")
	require.NoError(t, err)
	snap := e.Snapshot()
	require.Len(t, snap.Groups, 1)
	assert.Equal(t, cards("AS", "2S", "3S"), snap.Groups[0].Items)
	assert.Equal(t, cards("KD"), snap.Ungrouped)

	e.Reconcile(cards("AS", "2S", "3S", "KD", "5C"))
	snap = e.Snapshot()
	assert.Equal(t, []Group{{ID: id, Label: "Pure", Items: cards("AS", "2S", "3S")}}, snap.Groups)
	assert.Equal(t, cards("KD", "5C"), snap.Ungrouped)

	_, ok := e.RemoveCard(Location{Zone: Ungrouped, Index: 0})
	require.True(t, ok)
	assert.Equal(t, cards("5C"), e.Snapshot().Ungrouped)
}
