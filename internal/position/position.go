// Package position computes contiguous zero-based positions for ordered
// sibling collections such as the cards of a list or the lists of a board.
//
// All functions are pure: they never modify their input slices.
package position

import (
	"sort"

	"github.com/google/uuid"
)

// Item is satisfied by pointers to positioned entities (*models.Card,
// *models.List). Parent is the container the position is relative to.
type Item[T any] interface {
	*T
	GetID() uuid.UUID
	GetParent() uuid.UUID
	GetPosition() int
	SetPosition(int)
}

// Resequence returns a copy of items with every position set to its index.
func Resequence[T any, P Item[T]](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := range out {
		P(&out[i]).SetPosition(i)
	}
	return out
}

// IsContiguous reports whether the positions of items are exactly
// {0, 1, ..., n-1}, in any order.
func IsContiguous[T any, P Item[T]](items []T) bool {
	seen := make([]bool, len(items))
	for i := range items {
		p := P(&items[i]).GetPosition()
		if p < 0 || p >= len(items) || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}

// Sorted returns a copy of items ordered by position, ties broken by id.
func Sorted[T any, P Item[T]](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := P(&out[i]), P(&out[j])
		if a.GetPosition() != b.GetPosition() {
			return a.GetPosition() < b.GetPosition()
		}
		return a.GetID().String() < b.GetID().String()
	})
	return out
}

// Siblings returns the items whose parent is parent, ordered by position.
func Siblings[T any, P Item[T]](items []T, parent uuid.UUID) []T {
	var out []T
	for i := range items {
		if P(&items[i]).GetParent() == parent {
			out = append(out, items[i])
		}
	}
	return Sorted[T, P](out)
}

// IndexOf returns the index of the item with the given id, or -1.
func IndexOf[T any, P Item[T]](items []T, id uuid.UUID) int {
	for i := range items {
		if P(&items[i]).GetID() == id {
			return i
		}
	}
	return -1
}

// Without returns a copy of items minus the item with the given id.
func Without[T any, P Item[T]](items []T, id uuid.UUID) []T {
	out := make([]T, 0, len(items))
	for i := range items {
		if P(&items[i]).GetID() != id {
			out = append(out, items[i])
		}
	}
	return out
}

// Insert returns a copy of items with item placed at index at. The index is
// clamped to [0, len(items)].
func Insert[T any](items []T, item T, at int) []T {
	if at < 0 {
		at = 0
	}
	if at > len(items) {
		at = len(items)
	}
	out := make([]T, 0, len(items)+1)
	out = append(out, items[:at]...)
	out = append(out, item)
	return append(out, items[at:]...)
}

// Move returns a copy of items with the element at from moved to index to.
// Out of range indexes yield an unchanged copy.
func Move[T any](items []T, from, to int) []T {
	out := make([]T, len(items))
	copy(out, items)
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) || from == to {
		return out
	}
	item := out[from]
	out = append(out[:from], out[from+1:]...)
	return Insert(out, item, to)
}

// Changed returns the items of after that are new or whose position or parent
// differ from the same item in before. Order follows after.
func Changed[T any, P Item[T]](before, after []T) []T {
	type state struct {
		parent uuid.UUID
		pos    int
	}
	prev := make(map[uuid.UUID]state, len(before))
	for i := range before {
		p := P(&before[i])
		prev[p.GetID()] = state{parent: p.GetParent(), pos: p.GetPosition()}
	}
	var out []T
	for i := range after {
		p := P(&after[i])
		s, ok := prev[p.GetID()]
		if !ok || s.parent != p.GetParent() || s.pos != p.GetPosition() {
			out = append(out, after[i])
		}
	}
	return out
}
