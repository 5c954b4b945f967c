// Package storetest provides an in-memory store.Store with call recording and
// fault injection for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
)

// Call records one invocation against the memory store.
type Call struct {
	Collection store.Collection
	Op         store.Op
	Filter     store.Filter
	CardPatch  store.CardPatch
	ListPatch  store.ListPatch
}

// FailFunc decides whether a call fails. Returning nil lets it through.
type FailFunc func(c store.Collection, op store.Op, f store.Filter) error

type Memory struct {
	mu     sync.Mutex
	boards map[uuid.UUID]models.Board
	lists  map[uuid.UUID]models.List
	cards  map[uuid.UUID]models.Card
	calls  []Call
	fail   FailFunc
}

var _ store.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		boards: make(map[uuid.UUID]models.Board),
		lists:  make(map[uuid.UUID]models.List),
		cards:  make(map[uuid.UUID]models.Card),
	}
}

func (m *Memory) SetFail(fn FailFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fn
}

// FailWhen fails calls matching collection, op and filter with err.
func FailWhen(c store.Collection, op store.Op, f store.Filter, err error) FailFunc {
	return func(gc store.Collection, gop store.Op, gf store.Filter) error {
		if gc == c && gop == op && gf == f {
			return err
		}
		return nil
	}
}

func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *Memory) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Put stores rows as given, without assigning positions.
func (m *Memory) Put(rows ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		switch v := r.(type) {
		case models.Board:
			m.boards[v.ID] = v
		case models.List:
			m.lists[v.ID] = v
		case models.Card:
			m.cards[v.ID] = v
		default:
			panic("storetest: unsupported row type")
		}
	}
}

func (m *Memory) Card(id uuid.UUID) (models.Card, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[id]
	return c, ok
}

func (m *Memory) List(id uuid.UUID) (models.List, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lists[id]
	return l, ok
}

func (m *Memory) Board(id uuid.UUID) (models.Board, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[id]
	return b, ok
}

// record must be called with mu held.
func (m *Memory) record(call Call) error {
	m.calls = append(m.calls, call)
	if m.fail != nil {
		if err := m.fail(call.Collection, call.Op, call.Filter); err != nil {
			return store.Wrap(call.Collection, call.Op, call.Filter, err)
		}
	}
	return nil
}

func matchBoard(f store.Filter, b models.Board) (bool, error) {
	switch f.Key {
	case store.ByID:
		return b.ID == f.Value, nil
	case store.ByUser:
		return b.UserID == f.Value, nil
	}
	return false, store.ErrUnsupportedFilter
}

func matchList(f store.Filter, l models.List) (bool, error) {
	switch f.Key {
	case store.ByID:
		return l.ID == f.Value, nil
	case store.ByBoard:
		return l.BoardID == f.Value, nil
	}
	return false, store.ErrUnsupportedFilter
}

func matchCard(f store.Filter, c models.Card) (bool, error) {
	switch f.Key {
	case store.ByID:
		return c.ID == f.Value, nil
	case store.ByBoard:
		return c.BoardID == f.Value, nil
	case store.ByList:
		return c.ListID == f.Value, nil
	}
	return false, store.ErrUnsupportedFilter
}

func (m *Memory) SelectBoards(ctx context.Context, f store.Filter) ([]models.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Collection: store.Boards, Op: store.OpSelect, Filter: f}); err != nil {
		return nil, err
	}
	out := []models.Board{}
	for _, b := range m.boards {
		ok, err := matchBoard(f, b)
		if err != nil {
			return nil, store.Wrap(store.Boards, store.OpSelect, f, err)
		}
		if ok {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) InsertBoard(ctx context.Context, b models.Board) (models.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Collection: store.Boards, Op: store.OpInsert}); err != nil {
		return models.Board{}, err
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	m.boards[b.ID] = b
	return b, nil
}

func (m *Memory) UpdateBoards(ctx context.Context, f store.Filter, p store.BoardPatch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Collection: store.Boards, Op: store.OpUpdate, Filter: f}); err != nil {
		return 0, err
	}
	if p.Empty() {
		return 0, store.Wrap(store.Boards, store.OpUpdate, f, store.ErrEmptyPatch)
	}
	var n int64
	for id, b := range m.boards {
		ok, err := matchBoard(f, b)
		if err != nil {
			return 0, store.Wrap(store.Boards, store.OpUpdate, f, err)
		}
		if !ok {
			continue
		}
		if p.Title != nil {
			b.Title = *p.Title
		}
		b.UpdatedAt = time.Now().UTC()
		m.boards[id] = b
		n++
	}
	return n, nil
}

func (m *Memory) DeleteBoards(ctx context.Context, f store.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Collection: store.Boards, Op: store.OpDelete, Filter: f}); err != nil {
		return 0, err
	}
	var n int64
	for id, b := range m.boards {
		ok, err := matchBoard(f, b)
		if err != nil {
			return 0, store.Wrap(store.Boards, store.OpDelete, f, err)
		}
		if ok {
			delete(m.boards, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) SelectLists(ctx context.Context, f store.Filter) ([]models.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Collection: store.Lists, Op: store.OpSelect, Filter: f}); err != nil {
		return nil, err
	}
	out := []models.List{}
	for _, l := range m.lists {
		ok, err := matchList(f, l)
		if err != nil {
			return nil, store.Wrap(store.Lists, store.OpSelect, f, err)
		}
		if ok {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) InsertList(ctx context.Context, l models.List) (models.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Collection: store.Lists, Op: store.OpInsert, Filter: store.Board(l.BoardID)}); err != nil {
		return models.List{}, err
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.Position = 0
	for _, other := range m.lists {
		if other.BoardID == l.BoardID {
			l.Position++
		}
	}
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	m.lists[l.ID] = l
	return l, nil
}

func (m *Memory) UpdateLists(ctx context.Context, f store.Filter, p store.ListPatch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Collection: store.Lists, Op: store.OpUpdate, Filter: f, ListPatch: p}); err != nil {
		return 0, err
	}
	if p.Empty() {
		return 0, store.Wrap(store.Lists, store.OpUpdate, f, store.ErrEmptyPatch)
	}
	var n int64
	for id, l := range m.lists {
		ok, err := matchList(f, l)
		if err != nil {
			return 0, store.Wrap(store.Lists, store.OpUpdate, f, err)
		}
		if !ok {
			continue
		}
		if p.Title != nil {
			l.Title = *p.Title
		}
		if p.Position != nil {
			l.Position = *p.Position
		}
		l.UpdatedAt = time.Now().UTC()
		m.lists[id] = l
		n++
	}
	return n, nil
}

func (m *Memory) DeleteLists(ctx context.Context, f store.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Collection: store.Lists, Op: store.OpDelete, Filter: f}); err != nil {
		return 0, err
	}
	var n int64
	for id, l := range m.lists {
		ok, err := matchList(f, l)
		if err != nil {
			return 0, store.Wrap(store.Lists, store.OpDelete, f, err)
		}
		if ok {
			delete(m.lists, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) SelectCards(ctx context.Context, f store.Filter) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Collection: store.Cards, Op: store.OpSelect, Filter: f}); err != nil {
		return nil, err
	}
	out := []models.Card{}
	for _, c := range m.cards {
		ok, err := matchCard(f, c)
		if err != nil {
			return nil, store.Wrap(store.Cards, store.OpSelect, f, err)
		}
		if ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) InsertCard(ctx context.Context, c models.Card) (models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := store.List(c.ListID)
	if err := m.record(Call{Collection: store.Cards, Op: store.OpInsert, Filter: f}); err != nil {
		return models.Card{}, err
	}
	list, ok := m.lists[c.ListID]
	if !ok {
		return models.Card{}, store.Wrap(store.Cards, store.OpInsert, f, store.ErrNotFound)
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.BoardID = list.BoardID
	c.Position = 0
	for _, other := range m.cards {
		if other.ListID == c.ListID {
			c.Position++
		}
	}
	if c.Description != nil && *c.Description == "" {
		c.Description = nil
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	m.cards[c.ID] = c
	return c, nil
}

func (m *Memory) UpdateCards(ctx context.Context, f store.Filter, p store.CardPatch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Collection: store.Cards, Op: store.OpUpdate, Filter: f, CardPatch: p}); err != nil {
		return 0, err
	}
	if p.Empty() {
		return 0, store.Wrap(store.Cards, store.OpUpdate, f, store.ErrEmptyPatch)
	}
	var n int64
	for id, c := range m.cards {
		ok, err := matchCard(f, c)
		if err != nil {
			return 0, store.Wrap(store.Cards, store.OpUpdate, f, err)
		}
		if !ok {
			continue
		}
		if p.Title != nil {
			c.Title = *p.Title
		}
		if p.Description != nil {
			if *p.Description == "" {
				c.Description = nil
			} else {
				d := *p.Description
				c.Description = &d
			}
		}
		if p.Position != nil {
			c.Position = *p.Position
		}
		if p.ListID != nil {
			c.ListID = *p.ListID
		}
		if p.BoardID != nil {
			c.BoardID = *p.BoardID
		}
		c.UpdatedAt = time.Now().UTC()
		m.cards[id] = c
		n++
	}
	return n, nil
}

func (m *Memory) DeleteCards(ctx context.Context, f store.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Collection: store.Cards, Op: store.OpDelete, Filter: f}); err != nil {
		return 0, err
	}
	var n int64
	for id, c := range m.cards {
		ok, err := matchCard(f, c)
		if err != nil {
			return 0, store.Wrap(store.Cards, store.OpDelete, f, err)
		}
		if ok {
			delete(m.cards, id)
			n++
		}
	}
	return n, nil
}
