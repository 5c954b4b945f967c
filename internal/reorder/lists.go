package reorder

import (
	"github.com/chepyr/go-kanban/internal/drag"
	"github.com/chepyr/go-kanban/internal/position"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
)

// ListMove is a resolved reorder of the lists of one board.
type ListMove struct {
	ListID  uuid.UUID
	BoardID uuid.UUID
	Order   []models.List
	Changed []models.List
	Before  []models.List
}

// ResolveLists moves the active list to the index of the list identified by
// overID, either a bare list id or a list drop zone id. Lists of other boards
// and unknown ids resolve as no-ops.
func (r *Resolver) ResolveLists(lists []models.List, activeID uuid.UUID, overID *string) (ListMove, bool) {
	if overID == nil {
		return ListMove{}, false
	}
	target := drag.ParseTarget(*overID)
	if target.Kind != drag.KindCard && target.Kind != drag.KindListZone {
		return ListMove{}, false
	}
	if target.ID == activeID {
		return ListMove{}, false
	}
	ai := position.IndexOf(lists, activeID)
	oi := position.IndexOf(lists, target.ID)
	if ai < 0 || oi < 0 || lists[ai].BoardID != lists[oi].BoardID {
		return ListMove{}, false
	}
	board := lists[ai].BoardID
	order := position.Siblings(lists, board)
	from := position.IndexOf(order, activeID)
	to := position.IndexOf(order, target.ID)
	next := position.Resequence(position.Move(order, from, to))

	m := ListMove{ListID: activeID, BoardID: board, Order: next}
	m.Changed = position.Changed(lists, next)
	if len(m.Changed) == 0 {
		return ListMove{}, false
	}
	for _, l := range m.Changed {
		m.Before = append(m.Before, lists[position.IndexOf(lists, l.ID)])
	}
	return m, true
}

func (m ListMove) Apply(lists []models.List) []models.List {
	return replaceLists(lists, m.Changed)
}

func (m ListMove) Revert(lists []models.List) []models.List {
	return replaceLists(lists, m.Before)
}

func replaceLists(lists, with []models.List) []models.List {
	byID := make(map[uuid.UUID]models.List, len(with))
	for _, l := range with {
		byID[l.ID] = l
	}
	out := make([]models.List, len(lists))
	for i, l := range lists {
		if r, ok := byID[l.ID]; ok {
			out[i] = r
			continue
		}
		out[i] = l
	}
	return out
}
