// Package persist writes optimistic board changes to the backend.
//
// Every change runs as a Mutation: the view is updated first, then one call
// per changed row is issued. When all calls succeed the view's committed
// snapshot advances; otherwise the affected rows are reverted in the view,
// rows already written are restored on the backend, and a *BatchError is
// returned. Mutations on one Synchronizer never interleave.
package persist

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/chepyr/go-kanban/internal/position"
	"github.com/chepyr/go-kanban/internal/reorder"
	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/internal/view"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Synchronizer struct {
	store   store.Store
	view    *view.Model
	limit   int
	refresh bool
	logger  *log.Logger

	mu   sync.Mutex
	last *Mutation
}

type Option func(*Synchronizer)

// WithConcurrency bounds how many calls of one batch may be in flight. With
// the default of 1 calls are strictly sequential in issue order. Above 1 the
// calls still start in that order but may reach the backend in any order.
func WithConcurrency(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithRefresh controls whether the view is refetched after each committed
// mutation.
func WithRefresh(on bool) Option {
	return func(s *Synchronizer) { s.refresh = on }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

func New(st store.Store, v *view.Model, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:   st,
		view:    v,
		limit:   1,
		refresh: true,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Last returns a copy of the most recent mutation.
func (s *Synchronizer) Last() (Mutation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Mutation{}, false
	}
	return *s.last, true
}

// step is one backend call of a batch and the call that undoes it.
type step struct {
	id      uuid.UUID
	forward func(context.Context) error
	undo    func(context.Context) error
}

// issue runs calls in order, at most s.limit at a time, and returns one error
// slot per call. A failed call never cancels the others.
func (s *Synchronizer) issue(ctx context.Context, calls []func(context.Context) error) []error {
	errs := make([]error, len(calls))
	var g errgroup.Group
	g.SetLimit(s.limit)
	for i, call := range calls {
		g.Go(func() error {
			errs[i] = call(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// runBatch issues steps and settles mut. revertView restores the affected
// rows in the view when any step fails.
func (s *Synchronizer) runBatch(ctx context.Context, mut *Mutation, steps []step, revertView func()) error {
	forward := make([]func(context.Context) error, len(steps))
	for i, st := range steps {
		forward[i] = st.forward
	}
	errs := s.issue(ctx, forward)

	be := &BatchError{Mutation: mut.ID, Kind: mut.Kind, Total: len(steps), Compensated: true}
	var undo []func(context.Context) error
	var undoIDs []uuid.UUID
	for i, err := range errs {
		if err != nil {
			be.Failures = append(be.Failures, EntityError{ID: steps[i].id, Err: err})
			continue
		}
		be.Applied++
		if steps[i].undo != nil {
			undo = append(undo, steps[i].undo)
			undoIDs = append(undoIDs, steps[i].id)
		}
	}
	if len(be.Failures) == 0 {
		s.settle(ctx, mut)
		return nil
	}

	revertView()
	for i, err := range s.issue(ctx, undo) {
		if err != nil {
			be.Compensated = false
			be.Compensation = append(be.Compensation, EntityError{ID: undoIDs[i], Err: err})
		}
	}
	s.logger.Printf("[persist] %s %s failed: %d/%d applied, compensated=%t", mut.Kind, mut.ID, be.Applied, be.Total, be.Compensated)
	if !be.Compensated {
		s.resync(ctx)
	}
	mut.fail(be)
	return be
}

// settle commits the view and, if configured, refetches the board.
func (s *Synchronizer) settle(ctx context.Context, mut *Mutation) {
	s.view.Commit()
	mut.commit()
	if s.refresh {
		s.resync(ctx)
	}
}

func (s *Synchronizer) resync(ctx context.Context) {
	if err := s.view.Refresh(ctx); err != nil {
		s.logger.Printf("[persist] refresh after mutation: %v", err)
	}
}

func (s *Synchronizer) begin(kind string) *Mutation {
	mut := newMutation(kind)
	s.last = mut
	return mut
}

// ApplyMove persists a resolved card move. Updates are issued in the order of
// m.Changed: ascending destination position, source list first on ties.
func (s *Synchronizer) ApplyMove(ctx context.Context, m reorder.Move) (*Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mut := s.begin("move")
	if len(m.Changed) == 0 {
		mut.commit()
		return mut, nil
	}

	before := make(map[uuid.UUID]models.Card, len(m.Before))
	for _, c := range m.Before {
		before[c.ID] = c
	}
	s.view.PutCards(m.Changed...)

	steps := make([]step, 0, len(m.Changed))
	touched := make([]uuid.UUID, 0, len(m.Changed))
	for _, after := range m.Changed {
		prev, known := before[after.ID]
		st := step{id: after.ID, forward: s.updateCard(after.ID, cardPatch(prev, after, known))}
		if known {
			st.undo = s.updateCard(after.ID, cardPatch(after, prev, true))
		}
		steps = append(steps, st)
		touched = append(touched, after.ID)
	}
	err := s.runBatch(ctx, mut, steps, func() { s.view.RevertCards(touched...) })
	return mut, err
}

// ApplyListMove persists a resolved list reorder.
func (s *Synchronizer) ApplyListMove(ctx context.Context, m reorder.ListMove) (*Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mut := s.begin("move-list")
	if len(m.Changed) == 0 {
		mut.commit()
		return mut, nil
	}

	before := make(map[uuid.UUID]models.List, len(m.Before))
	for _, l := range m.Before {
		before[l.ID] = l
	}
	s.view.PutLists(m.Changed...)

	steps := make([]step, 0, len(m.Changed))
	touched := make([]uuid.UUID, 0, len(m.Changed))
	for _, after := range m.Changed {
		st := step{id: after.ID, forward: s.updateList(after.ID, listPosition(after.Position))}
		if prev, ok := before[after.ID]; ok {
			st.undo = s.updateList(after.ID, listPosition(prev.Position))
		}
		steps = append(steps, st)
		touched = append(touched, after.ID)
	}
	err := s.runBatch(ctx, mut, steps, func() { s.view.RevertLists(touched...) })
	return mut, err
}

// UpdateCard applies a title or description edit.
func (s *Synchronizer) UpdateCard(ctx context.Context, id uuid.UUID, p store.CardPatch) (*Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mut := s.begin("edit-card")
	prev, ok := s.view.Card(id)
	if !ok {
		mut.fail(store.Wrap(store.Cards, store.OpUpdate, store.ID(id), store.ErrNotFound))
		return mut, mut.Err
	}
	s.view.PutCards(applyCardPatch(prev, p))

	restore := store.CardPatch{Title: &prev.Title, Description: emptyIfNil(prev.Description)}
	err := s.runBatch(ctx, mut, []step{{
		id:      id,
		forward: s.updateCard(id, p),
		undo:    s.updateCard(id, restore),
	}}, func() { s.view.RevertCards(id) })
	return mut, err
}

// RenameList applies a list title edit.
func (s *Synchronizer) RenameList(ctx context.Context, id uuid.UUID, title string) (*Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mut := s.begin("rename-list")
	prev, ok := s.view.List(id)
	if !ok {
		mut.fail(store.Wrap(store.Lists, store.OpUpdate, store.ID(id), store.ErrNotFound))
		return mut, mut.Err
	}
	next := prev
	next.Title = title
	s.view.PutLists(next)

	err := s.runBatch(ctx, mut, []step{{
		id:      id,
		forward: s.updateList(id, store.ListPatch{Title: &title}),
		undo:    s.updateList(id, store.ListPatch{Title: &prev.Title}),
	}}, func() { s.view.RevertLists(id) })
	return mut, err
}

// AddList inserts a list at the end of the selected board. The backend
// assigns its position.
func (s *Synchronizer) AddList(ctx context.Context, board uuid.UUID, title string) (models.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mut := s.begin("add-list")
	l, err := s.store.InsertList(ctx, models.List{BoardID: board, Title: title})
	if err != nil {
		mut.fail(err)
		return models.List{}, err
	}
	s.view.PutLists(l)
	s.settle(ctx, mut)
	return l, nil
}

// AddCard appends a card to list. The backend assigns position and board_id.
func (s *Synchronizer) AddCard(ctx context.Context, list uuid.UUID, title string, description *string) (models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mut := s.begin("add-card")
	c, err := s.store.InsertCard(ctx, models.Card{ListID: list, Title: title, Description: description})
	if err != nil {
		mut.fail(err)
		return models.Card{}, err
	}
	s.view.PutCards(c)
	s.settle(ctx, mut)
	return c, nil
}

// DeleteCard removes a card and closes the gap it leaves in its list.
func (s *Synchronizer) DeleteCard(ctx context.Context, id uuid.UUID) (*Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mut := s.begin("delete-card")
	card, ok := s.view.Card(id)
	if !ok {
		mut.fail(store.Wrap(store.Cards, store.OpDelete, store.ID(id), store.ErrNotFound))
		return mut, mut.Err
	}
	rest := position.Without(s.view.CardsOf(card.ListID), id)
	next := position.Resequence(rest)
	shifted := position.Changed(rest, next)

	s.view.RemoveCards(func(c models.Card) bool { return c.ID == id })
	s.view.PutCards(shifted...)
	revert := func() { s.view.RevertCards(append(ids(shifted), id)...) }

	if _, err := s.store.DeleteCards(ctx, store.ID(id)); err != nil {
		revert()
		mut.fail(err)
		return mut, err
	}
	return mut, s.resequenceCards(ctx, mut, shifted)
}

// DeleteList deletes the cards of a list, then the list row, then closes the
// gap among the remaining lists. When the cards cannot be deleted the list
// row is left alone.
func (s *Synchronizer) DeleteList(ctx context.Context, id uuid.UUID) (*Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mut := s.begin("delete-list")
	list, ok := s.view.List(id)
	if !ok {
		mut.fail(store.Wrap(store.Lists, store.OpDelete, store.ID(id), store.ErrNotFound))
		return mut, mut.Err
	}
	cards := s.view.CardsOf(id)
	rest := position.Without(position.Siblings(s.view.Lists(), list.BoardID), id)
	next := position.Resequence(rest)
	shifted := position.Changed(rest, next)

	s.view.RemoveCards(func(c models.Card) bool { return c.ListID == id })
	s.view.RemoveList(id)
	s.view.PutLists(shifted...)

	if _, err := s.store.DeleteCards(ctx, store.List(id)); err != nil {
		s.view.RevertCards(ids(cards)...)
		s.view.RevertLists(append(ids(shifted), id)...)
		err = fmt.Errorf("delete cards of list %s: %w", id, err)
		mut.fail(err)
		return mut, err
	}
	if _, err := s.store.DeleteLists(ctx, store.ID(id)); err != nil {
		// The cards are already gone; show what the backend holds.
		s.resync(ctx)
		err = fmt.Errorf("delete list %s: %w", id, err)
		mut.fail(err)
		return mut, err
	}

	steps := make([]step, 0, len(shifted))
	for _, l := range shifted {
		steps = append(steps, step{id: l.ID, forward: s.updateList(l.ID, listPosition(l.Position))})
	}
	err := s.runBatch(ctx, mut, steps, func() { s.resync(ctx) })
	return mut, err
}

// resequenceCards writes the new positions of the cards after a deletion.
// The deletion itself cannot be undone, so a failure refetches the board.
func (s *Synchronizer) resequenceCards(ctx context.Context, mut *Mutation, shifted []models.Card) error {
	steps := make([]step, 0, len(shifted))
	for _, c := range shifted {
		pos := c.Position
		steps = append(steps, step{id: c.ID, forward: s.updateCard(c.ID, store.CardPatch{Position: &pos})})
	}
	return s.runBatch(ctx, mut, steps, func() { s.resync(ctx) })
}

func (s *Synchronizer) updateCard(id uuid.UUID, p store.CardPatch) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := s.store.UpdateCards(ctx, store.ID(id), p)
		if err != nil {
			return err
		}
		if n == 0 {
			return store.Wrap(store.Cards, store.OpUpdate, store.ID(id), store.ErrNotFound)
		}
		return nil
	}
}

func (s *Synchronizer) updateList(id uuid.UUID, p store.ListPatch) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := s.store.UpdateLists(ctx, store.ID(id), p)
		if err != nil {
			return err
		}
		if n == 0 {
			return store.Wrap(store.Lists, store.OpUpdate, store.ID(id), store.ErrNotFound)
		}
		return nil
	}
}

// cardPatch sets the absolute position of to, plus list and board when they
// differ from from. Without a known prior state every field is written.
func cardPatch(from, to models.Card, known bool) store.CardPatch {
	pos := to.Position
	p := store.CardPatch{Position: &pos}
	if !known || from.ListID != to.ListID {
		list := to.ListID
		p.ListID = &list
	}
	if !known || from.BoardID != to.BoardID {
		board := to.BoardID
		p.BoardID = &board
	}
	return p
}

func listPosition(pos int) store.ListPatch {
	return store.ListPatch{Position: &pos}
}

func applyCardPatch(c models.Card, p store.CardPatch) models.Card {
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
	return c
}

// emptyIfNil maps a NULL description to the empty string, which a patch
// interprets as "clear".
func emptyIfNil(s *string) *string {
	if s == nil {
		empty := ""
		return &empty
	}
	v := *s
	return &v
}

func ids[T any, P position.Item[T]](items []T) []uuid.UUID {
	out := make([]uuid.UUID, len(items))
	for i := range items {
		out[i] = P(&items[i]).GetID()
	}
	return out
}
