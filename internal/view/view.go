// Package view holds the read model of the selected board: its lists and
// cards as last fetched, the optimistic working copy the resolver operates
// on, and the committed snapshot a failed mutation reverts to.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chepyr/go-kanban/internal/position"
	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
)

var (
	ErrNoBoard = errors.New("no board selected")
	// ErrSuperseded is returned by a fetch whose result was discarded because
	// a newer fetch started after it.
	ErrSuperseded = errors.New("fetch superseded by a newer one")
)

type State int

const (
	Unselected State = iota
	Loading
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Reader is the part of the persistence port the read model needs.
type Reader interface {
	SelectLists(ctx context.Context, f store.Filter) ([]models.List, error)
	SelectCards(ctx context.Context, f store.Filter) ([]models.Card, error)
}

type Model struct {
	mu    sync.RWMutex
	src   Reader
	state State
	board uuid.UUID
	err   error
	seq   uint64

	lists []models.List
	cards []models.Card

	committedLists []models.List
	committedCards []models.Card
}

func New(src Reader) *Model {
	return &Model{src: src}
}

// Select switches to board and fetches its lists and cards. Previous contents
// are cleared immediately.
func (m *Model) Select(ctx context.Context, board uuid.UUID) error {
	m.mu.Lock()
	m.board = board
	m.lists, m.cards = nil, nil
	m.committedLists, m.committedCards = nil, nil
	seq := m.beginLocked()
	m.mu.Unlock()
	return m.load(ctx, board, seq)
}

// Refresh refetches the selected board. The working copy stays visible while
// loading.
func (m *Model) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.state == Unselected {
		m.mu.Unlock()
		return ErrNoBoard
	}
	board := m.board
	seq := m.beginLocked()
	m.mu.Unlock()
	return m.load(ctx, board, seq)
}

// Clear drops the selection and returns to Unselected. Fetches still in
// flight are discarded when they complete.
func (m *Model) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.state = Unselected
	m.board = uuid.Nil
	m.err = nil
	m.lists, m.cards = nil, nil
	m.committedLists, m.committedCards = nil, nil
}

func (m *Model) beginLocked() uint64 {
	m.seq++
	m.state = Loading
	m.err = nil
	return m.seq
}

func (m *Model) load(ctx context.Context, board uuid.UUID, seq uint64) error {
	lists, err := m.src.SelectLists(ctx, store.Board(board))
	var cards []models.Card
	if err == nil {
		cards, err = m.src.SelectCards(ctx, store.Board(board))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.seq {
		return ErrSuperseded
	}
	if err != nil {
		m.state = Error
		m.err = fmt.Errorf("load board %s: %w", board, err)
		return m.err
	}
	m.state = Ready
	m.lists = position.Sorted(lists)
	m.cards = cards
	m.commitLocked()
	return nil
}

func (m *Model) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Err is the failure that put the model into the Error state.
func (m *Model) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

func (m *Model) Board() (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.board, m.state != Unselected
}

// Lists returns a copy of the working lists ordered by position.
func (m *Model) Lists() []models.List {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return position.Sorted(m.lists)
}

// Cards returns a copy of all working cards of the board.
func (m *Model) Cards() []models.Card {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Card, len(m.cards))
	copy(out, m.cards)
	return out
}

// CardsOf returns the working cards of one list ordered by position.
func (m *Model) CardsOf(list uuid.UUID) []models.Card {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return position.Siblings(m.cards, list)
}

func (m *Model) Card(id uuid.UUID) (models.Card, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := position.IndexOf(m.cards, id); i >= 0 {
		return m.cards[i], true
	}
	return models.Card{}, false
}

func (m *Model) List(id uuid.UUID) (models.List, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := position.IndexOf(m.lists, id); i >= 0 {
		return m.lists[i], true
	}
	return models.List{}, false
}

// PutCards replaces working cards by id. Cards not yet in the model are
// appended.
func (m *Model) PutCards(cards ...models.Card) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards = upsert(m.cards, cards)
}

func (m *Model) PutLists(lists ...models.List) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = upsert(m.lists, lists)
}

// RemoveCards drops the working cards for which drop reports true.
func (m *Model) RemoveCards(drop func(models.Card) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.cards[:0:0]
	for _, c := range m.cards {
		if !drop(c) {
			out = append(out, c)
		}
	}
	m.cards = out
}

func (m *Model) RemoveList(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = position.Without(m.lists, id)
}

// Commit records the working copy as the last persisted state.
func (m *Model) Commit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitLocked()
}

func (m *Model) commitLocked() {
	m.committedLists = append([]models.List(nil), m.lists...)
	m.committedCards = append([]models.Card(nil), m.cards...)
}

// RevertCards restores the given cards to their committed versions. Cards
// absent from the committed snapshot are removed.
func (m *Model) RevertCards(ids ...uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards = revert(m.cards, m.committedCards, ids)
}

func (m *Model) RevertLists(ids ...uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = revert(m.lists, m.committedLists, ids)
}

// committed returns copies of the committed snapshot.
func (m *Model) committed() ([]models.List, []models.Card) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.List(nil), m.committedLists...), append([]models.Card(nil), m.committedCards...)
}

func upsert[T any, P position.Item[T]](items, with []T) []T {
	out := make([]T, len(items), len(items)+len(with))
	copy(out, items)
	for _, w := range with {
		if i := position.IndexOf[T, P](out, P(&w).GetID()); i >= 0 {
			out[i] = w
			continue
		}
		out = append(out, w)
	}
	return out
}

func revert[T any, P position.Item[T]](items, committed []T, ids []uuid.UUID) []T {
	out := make([]T, 0, len(items))
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for i := range items {
		id := P(&items[i]).GetID()
		if !want[id] {
			out = append(out, items[i])
			continue
		}
		if ci := position.IndexOf[T, P](committed, id); ci >= 0 {
			out = append(out, committed[ci])
		}
		delete(want, id)
	}
	// Removed optimistically but still committed: bring them back.
	for i := range committed {
		if want[P(&committed[i]).GetID()] {
			out = append(out, committed[i])
		}
	}
	return out
}
