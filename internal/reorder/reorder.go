// Package reorder resolves a drag-end event against the current cards of a
// board into a new arrangement: a reorder within one list or a move across
// lists, each affected list resequenced from zero.
package reorder

import (
	"sort"

	"github.com/chepyr/go-kanban/internal/drag"
	"github.com/chepyr/go-kanban/internal/position"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
)

// Options switch the namespaced drop targets on or off. A disabled target
// kind resolves as a no-op.
type Options struct {
	ListDropZones   bool
	EndPlaceholders bool
}

var DefaultOptions = Options{ListDropZones: true, EndPlaceholders: true}

type Kind int

const (
	KindReorder Kind = iota + 1
	KindCrossList
)

func (k Kind) String() string {
	switch k {
	case KindReorder:
		return "reorder"
	case KindCrossList:
		return "cross-list"
	}
	return "unknown"
}

// Move is a resolved card arrangement. For a reorder Source and Dest are the
// same list. Changed holds only the cards whose position, list or board
// differ, sorted in the order their updates must be issued; Before holds the
// same cards as they were.
type Move struct {
	Kind    Kind
	CardID  uuid.UUID
	From    uuid.UUID
	To      uuid.UUID
	Source  []models.Card
	Dest    []models.Card
	Changed []models.Card
	Before  []models.Card
}

type Resolver struct {
	opts Options
}

func New(opts Options) *Resolver {
	return &Resolver{opts: opts}
}

// Resolve computes the arrangement produced by ev. ok is false for every
// no-op: no target, a drop on the dragged card itself, a drop on the zone of
// the card's own list, a disabled target kind, or ids missing from cards and
// lists (stale view).
func (r *Resolver) Resolve(cards []models.Card, lists []models.List, ev drag.End) (Move, bool) {
	target := ev.Target()
	if target.Kind == drag.KindNone {
		return Move{}, false
	}
	idx := position.IndexOf(cards, ev.ActiveID)
	if idx < 0 {
		return Move{}, false
	}
	active := cards[idx]

	switch target.Kind {
	case drag.KindCard:
		if target.ID == active.ID {
			return Move{}, false
		}
		oi := position.IndexOf(cards, target.ID)
		if oi < 0 {
			return Move{}, false
		}
		over := cards[oi]
		dest := position.Siblings(cards, over.ListID)
		at := position.IndexOf(dest, over.ID)
		if over.ListID == active.ListID {
			return reorderWithin(cards, active, dest, at)
		}
		board := over.BoardID
		if li := position.IndexOf(lists, over.ListID); li >= 0 {
			board = lists[li].BoardID
		}
		return moveAcross(cards, active, over.ListID, board, at)

	case drag.KindListZone:
		if !r.opts.ListDropZones || target.ID == active.ListID {
			return Move{}, false
		}
		li := position.IndexOf(lists, target.ID)
		if li < 0 {
			return Move{}, false
		}
		return moveAcross(cards, active, target.ID, lists[li].BoardID, -1)

	case drag.KindEndOfList:
		if !r.opts.EndPlaceholders {
			return Move{}, false
		}
		li := position.IndexOf(lists, target.ID)
		if li < 0 {
			return Move{}, false
		}
		if target.ID == active.ListID {
			order := position.Siblings(cards, active.ListID)
			return reorderWithin(cards, active, order, len(order)-1)
		}
		return moveAcross(cards, active, target.ID, lists[li].BoardID, -1)
	}
	return Move{}, false
}

func reorderWithin(cards []models.Card, active models.Card, order []models.Card, to int) (Move, bool) {
	from := position.IndexOf(order, active.ID)
	if from < 0 || to < 0 || from == to {
		return Move{}, false
	}
	next := position.Resequence(position.Move(order, from, to))
	m := Move{
		Kind:   KindReorder,
		CardID: active.ID,
		From:   active.ListID,
		To:     active.ListID,
		Source: next,
		Dest:   next,
	}
	m.Changed = position.Changed(cards, next)
	if len(m.Changed) == 0 {
		return Move{}, false
	}
	m.finish(cards)
	return m, true
}

// moveAcross inserts active into list to at index at; a negative index
// appends.
func moveAcross(cards []models.Card, active models.Card, to, board uuid.UUID, at int) (Move, bool) {
	src := position.Resequence(position.Without(position.Siblings(cards, active.ListID), active.ID))
	dst := position.Siblings(cards, to)
	if at < 0 {
		at = len(dst)
	}
	moved := active
	moved.ListID = to
	moved.BoardID = board
	dst = position.Resequence(position.Insert(dst, moved, at))

	m := Move{
		Kind:   KindCrossList,
		CardID: active.ID,
		From:   active.ListID,
		To:     to,
		Source: src,
		Dest:   dst,
	}
	after := append(append([]models.Card{}, src...), dst...)
	m.Changed = changedCards(cards, after)
	m.finish(cards)
	return m, true
}

// changedCards extends position.Changed with board reassignment.
func changedCards(before, after []models.Card) []models.Card {
	boards := make(map[uuid.UUID]uuid.UUID, len(before))
	for _, c := range before {
		boards[c.ID] = c.BoardID
	}
	out := position.Changed(before, after)
	seen := make(map[uuid.UUID]bool, len(out))
	for _, c := range out {
		seen[c.ID] = true
	}
	for _, c := range after {
		if !seen[c.ID] && boards[c.ID] != c.BoardID {
			out = append(out, c)
		}
	}
	return out
}

// finish orders Changed by ascending destination position, source list
// before destination list on ties, and captures Before.
func (m *Move) finish(cards []models.Card) {
	sort.SliceStable(m.Changed, func(i, j int) bool {
		a, b := m.Changed[i], m.Changed[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if a.ListID != b.ListID {
			return a.ListID == m.From
		}
		return a.ID.String() < b.ID.String()
	})
	m.Before = make([]models.Card, 0, len(m.Changed))
	for _, c := range m.Changed {
		if i := position.IndexOf(cards, c.ID); i >= 0 {
			m.Before = append(m.Before, cards[i])
		}
	}
}

// Apply returns cards with every changed card replaced by its new version.
func (m Move) Apply(cards []models.Card) []models.Card {
	return replace(cards, m.Changed)
}

// Revert returns cards with every changed card restored to its prior version.
func (m Move) Revert(cards []models.Card) []models.Card {
	return replace(cards, m.Before)
}

func replace(cards, with []models.Card) []models.Card {
	byID := make(map[uuid.UUID]models.Card, len(with))
	for _, c := range with {
		byID[c.ID] = c
	}
	out := make([]models.Card, len(cards))
	for i, c := range cards {
		if r, ok := byID[c.ID]; ok {
			out[i] = r
			continue
		}
		out[i] = c
	}
	return out
}
