// Package hand keeps a player's hand split into labelled groups and an
// ungrouped remainder, and reconciles that local organisation with the
// authoritative hand pushed by the server.
package hand

import (
	"errors"
	"sync"

	"github.com/minaorangina/rummy/deck"
	uuid "github.com/satori/go.uuid"
)

// Ungrouped names the zone holding cards that are not in any group
const Ungrouped = "ungrouped"

var (
	ErrInvalidIndex  = errors.New("invalid card index")
	ErrUnknownGroup  = errors.New("unknown group")
	ErrDuplicateCard = errors.New("card selected more than once")
)

// Group is a labelled, ordered run of cards
type Group struct {
	ID    string
	Label string
	Items []deck.Card
}

// Partition is a hand split into groups and ungrouped cards
type Partition struct {
	Groups    []Group
	Ungrouped []deck.Card
}

// Location addresses one card: an index into a group, or into the
// ungrouped cards when Zone is Ungrouped or empty.
type Location struct {
	Zone  string
	Index int
}

// Len is the total number of cards in the partition
func (p Partition) Len() int {
	n := len(p.Ungrouped)
	for _, g := range p.Groups {
		n += len(g.Items)
	}
	return n
}

// Cards flattens the partition in display order: groups, then ungrouped
func (p Partition) Cards() []deck.Card {
	out := make([]deck.Card, 0, p.Len())
	for _, g := range p.Groups {
		out = append(out, g.Items...)
	}
	return append(out, p.Ungrouped...)
}

// Equal is structural equality, including group ids and labels
func (p Partition) Equal(other Partition) bool {
	if len(p.Groups) != len(other.Groups) || !deck.Equal(p.Ungrouped, other.Ungrouped) {
		return false
	}
	for i := range p.Groups {
		a, b := p.Groups[i], other.Groups[i]
		if a.ID != b.ID || a.Label != b.Label || !deck.Equal(a.Items, b.Items) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy
func (p Partition) Clone() Partition {
	out := Partition{
		Groups:    make([]Group, len(p.Groups)),
		Ungrouped: append([]deck.Card{}, p.Ungrouped...),
	}
	for i, g := range p.Groups {
		out.Groups[i] = Group{ID: g.ID, Label: g.Label, Items: append([]deck.Card{}, g.Items...)}
	}
	return out
}

func (p Partition) groupIndex(id string) int {
	for i, g := range p.Groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// Observer receives a snapshot whenever the partition changes
type Observer func(Partition)

// Engine owns the local partition of a single player's hand
type Engine struct {
	mu        sync.Mutex
	part      Partition
	last      Partition
	observers []Observer
	newID     func() string

	// deliver is taken before mu is released so observers see snapshots
	// in the order the mutations happened.
	deliver sync.Mutex
}

// Option configures an Engine
type Option func(*Engine)

// WithIDGenerator replaces the uuid-based group id generator
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// NewEngine constructs an empty Engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		part:  Partition{Groups: []Group{}, Ungrouped: []deck.Card{}},
		newID: func() string { return uuid.NewV4().String() },
	}
	e.last = e.part.Clone()
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers fn to receive snapshots after each change
func (e *Engine) Subscribe(fn Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// Snapshot returns a copy of the current partition
func (e *Engine) Snapshot() Partition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.part.Clone()
}

// Cards returns the hand flattened in display order
func (e *Engine) Cards() []deck.Card {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.part.Cards()
}

// Card returns the card at loc
func (e *Engine) Card(loc Location) (deck.Card, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	items := e.zone(loc.Zone)
	if items == nil || loc.Index < 0 || loc.Index >= len(*items) {
		return deck.Card{}, false
	}
	return (*items)[loc.Index], true
}

// Reconcile replaces the hand with newHand, which is authoritative.
// Cards that were already held keep their group and position; new cards
// are appended to the ungrouped cards in the order given; cards no longer
// held are dropped, and groups left empty are deleted. Equal-valued cards
// are matched by count, groups first, so grouping survives where possible.
func (e *Engine) Reconcile(newHand []deck.Card) {
	e.mutate(func(p *Partition) {
		*p = reconcile(*p, newHand)
	})
}

type slot struct {
	group int // -1 for ungrouped
	index int
}

func reconcile(prev Partition, newHand []deck.Card) Partition {
	// Candidate positions per card value, groups scanned before ungrouped.
	candidates := map[deck.Card][]slot{}
	for gi, g := range prev.Groups {
		for ii, c := range g.Items {
			candidates[c] = append(candidates[c], slot{gi, ii})
		}
	}
	for ii, c := range prev.Ungrouped {
		candidates[c] = append(candidates[c], slot{-1, ii})
	}

	kept := map[slot]bool{}
	fresh := []deck.Card{}
	for _, c := range newHand {
		queue := candidates[c]
		if len(queue) == 0 {
			fresh = append(fresh, c)
			continue
		}
		kept[queue[0]] = true
		candidates[c] = queue[1:]
	}

	next := Partition{Groups: []Group{}, Ungrouped: []deck.Card{}}
	for gi, g := range prev.Groups {
		items := []deck.Card{}
		for ii, c := range g.Items {
			if kept[slot{gi, ii}] {
				items = append(items, c)
			}
		}
		if len(items) == 0 {
			continue
		}
		next.Groups = append(next.Groups, Group{ID: g.ID, Label: g.Label, Items: items})
	}
	for ii, c := range prev.Ungrouped {
		if kept[slot{-1, ii}] {
			next.Ungrouped = append(next.Ungrouped, c)
		}
	}
	next.Ungrouped = append(next.Ungrouped, fresh...)
	return next
}

// GroupSelected moves the ungrouped cards at indices into a new group,
// in the order the indices are given. An empty selection is a no-op and
// returns an empty id.
func (e *Engine) GroupSelected(indices []int, label string) (string, error) {
	if len(indices) == 0 {
		return "", nil
	}

	var id string
	var err error
	e.mutate(func(p *Partition) {
		seen := map[int]bool{}
		for _, i := range indices {
			if i < 0 || i >= len(p.Ungrouped) {
				err = ErrInvalidIndex
				return
			}
			if seen[i] {
				err = ErrDuplicateCard
				return
			}
			seen[i] = true
		}

		chosen := make([]deck.Card, 0, len(indices))
		for _, i := range indices {
			chosen = append(chosen, p.Ungrouped[i])
		}

		// highest index first so the remaining indices stay valid
		remaining := make([]deck.Card, 0, len(p.Ungrouped)-len(indices))
		for i := len(p.Ungrouped) - 1; i >= 0; i-- {
			if !seen[i] {
				remaining = append(remaining, p.Ungrouped[i])
			}
		}
		reverse(remaining)
		p.Ungrouped = remaining

		id = e.newID()
		p.Groups = append(p.Groups, Group{ID: id, Label: label, Items: chosen})
	})
	return id, err
}

// Ungroup returns a group's cards to the end of the ungrouped cards
func (e *Engine) Ungroup(groupID string) bool {
	var ok bool
	e.mutate(func(p *Partition) {
		gi := p.groupIndex(groupID)
		if gi < 0 {
			return
		}
		p.Ungrouped = append(p.Ungrouped, p.Groups[gi].Items...)
		p.Groups = append(p.Groups[:gi], p.Groups[gi+1:]...)
		ok = true
	})
	return ok
}

// Reorder moves one card within a zone from one index to another
func (e *Engine) Reorder(zone string, from, to int) bool {
	var ok bool
	e.mutate(func(p *Partition) {
		items := zoneOf(p, zone)
		if items == nil || from == to {
			return
		}
		n := len(*items)
		if from < 0 || from >= n || to < 0 || to >= n {
			return
		}
		*items = move(*items, from, to)
		ok = true
	})
	return ok
}

// RemoveCard removes the card at loc, deleting its group if that leaves
// the group empty. Used when a card is discarded.
func (e *Engine) RemoveCard(loc Location) (deck.Card, bool) {
	var card deck.Card
	var ok bool
	e.mutate(func(p *Partition) {
		card, ok = take(p, loc)
	})
	return card, ok
}

// RemoveCardIf removes the card at loc only if it is still want. A hand
// reconciled in the meantime is left alone.
func (e *Engine) RemoveCardIf(loc Location, want deck.Card) bool {
	var ok bool
	e.mutate(func(p *Partition) {
		items := zoneOf(p, loc.Zone)
		if items == nil || loc.Index < 0 || loc.Index >= len(*items) || (*items)[loc.Index] != want {
			return
		}
		_, ok = take(p, loc)
	})
	return ok
}

// MoveCard moves the card at from to the end of zone toZone
func (e *Engine) MoveCard(from Location, toZone string) bool {
	var ok bool
	e.mutate(func(p *Partition) {
		if zoneOf(p, toZone) == nil || sameZone(from.Zone, toZone) {
			return
		}
		card, found := take(p, from)
		if !found {
			return
		}
		// taking may have deleted the source group; the target index is stable
		target := zoneOf(p, toZone)
		*target = append(*target, card)
		ok = true
	})
	return ok
}

// Reset clears the hand
func (e *Engine) Reset() {
	e.mutate(func(p *Partition) {
		*p = Partition{Groups: []Group{}, Ungrouped: []deck.Card{}}
	})
}

// mutate applies fn under the lock and notifies observers, only if the
// partition actually changed. Observers run without mu held but one
// mutation at a time, so they must not mutate the engine themselves.
func (e *Engine) mutate(fn func(*Partition)) {
	e.mu.Lock()
	fn(&e.part)
	if e.part.Equal(e.last) {
		e.mu.Unlock()
		return
	}
	e.last = e.part.Clone()
	snapshot := e.part.Clone()
	observers := append([]Observer{}, e.observers...)
	e.deliver.Lock()
	e.mu.Unlock()
	defer e.deliver.Unlock()

	for _, o := range observers {
		o(snapshot.Clone())
	}
}

func (e *Engine) zone(zone string) *[]deck.Card {
	return zoneOf(&e.part, zone)
}

func zoneOf(p *Partition, zone string) *[]deck.Card {
	if zone == "" || zone == Ungrouped {
		return &p.Ungrouped
	}
	gi := p.groupIndex(zone)
	if gi < 0 {
		return nil
	}
	return &p.Groups[gi].Items
}

func sameZone(a, b string) bool {
	if a == "" {
		a = Ungrouped
	}
	if b == "" {
		b = Ungrouped
	}
	return a == b
}

func take(p *Partition, loc Location) (deck.Card, bool) {
	items := zoneOf(p, loc.Zone)
	if items == nil || loc.Index < 0 || loc.Index >= len(*items) {
		return deck.Card{}, false
	}
	card := (*items)[loc.Index]
	*items = append((*items)[:loc.Index], (*items)[loc.Index+1:]...)

	if !sameZone(loc.Zone, Ungrouped) && len(*items) == 0 {
		gi := p.groupIndex(loc.Zone)
		p.Groups = append(p.Groups[:gi], p.Groups[gi+1:]...)
	}
	return card, true
}

func move(items []deck.Card, from, to int) []deck.Card {
	card := items[from]
	out := make([]deck.Card, 0, len(items))
	out = append(out, items[:from]...)
	out = append(out, items[from+1:]...)
	out = append(out[:to], append([]deck.Card{card}, out[to:]...)...)
	return out
}

func reverse(cards []deck.Card) {
	for i, j := 0, len(cards)-1; i < j; i, j = i+1, j-1 {
		cards[i], cards[j] = cards[j], cards[i]
	}
}
