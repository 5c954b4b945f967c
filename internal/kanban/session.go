// Package kanban is the board session used by front ends: it owns the view of
// the selected board and routes every user action through validation, the
// move resolver and the synchronizer.
package kanban

import (
	"context"
	"errors"
	"fmt"

	"github.com/chepyr/go-kanban/internal/drag"
	"github.com/chepyr/go-kanban/internal/persist"
	"github.com/chepyr/go-kanban/internal/reorder"
	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/internal/view"
	"github.com/chepyr/go-kanban/shared"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
)

var ErrNotReady = errors.New("board is not loaded")

type Session struct {
	store    store.Store
	user     uuid.UUID
	view     *view.Model
	resolver *reorder.Resolver
	sync     *persist.Synchronizer
	drag     drag.Tracker
}

type config struct {
	resolve reorder.Options
	sync    []persist.Option
}

type Option func(*config)

// WithTargets selects which namespaced drop targets are honored.
func WithTargets(opts reorder.Options) Option {
	return func(c *config) { c.resolve = opts }
}

func WithSyncOptions(opts ...persist.Option) Option {
	return func(c *config) { c.sync = append(c.sync, opts...) }
}

// New starts a session for user. Nothing is loaded until SelectBoard.
func New(st store.Store, user uuid.UUID, opts ...Option) *Session {
	cfg := config{resolve: reorder.DefaultOptions}
	for _, opt := range opts {
		opt(&cfg)
	}
	v := view.New(st)
	return &Session{
		store:    st,
		user:     user,
		view:     v,
		resolver: reorder.New(cfg.resolve),
		sync:     persist.New(st, v, cfg.sync...),
	}
}

func (s *Session) View() *view.Model { return s.view }

// Boards returns the user's boards, oldest first.
func (s *Session) Boards(ctx context.Context) ([]models.Board, error) {
	return s.store.SelectBoards(ctx, store.User(s.user))
}

func (s *Session) SelectBoard(ctx context.Context, id uuid.UUID) error {
	return s.view.Select(ctx, id)
}

func (s *Session) CreateBoard(ctx context.Context, title string) (models.Board, error) {
	title, err := shared.ValidateBoardTitle(title)
	if err != nil {
		return models.Board{}, err
	}
	return s.store.InsertBoard(ctx, models.Board{UserID: s.user, Title: title})
}

func (s *Session) RenameBoard(ctx context.Context, id uuid.UUID, title string) error {
	title, err := shared.ValidateBoardTitle(title)
	if err != nil {
		return err
	}
	n, err := s.store.UpdateBoards(ctx, store.ID(id), store.BoardPatch{Title: &title})
	if err != nil {
		return err
	}
	if n == 0 {
		return store.Wrap(store.Boards, store.OpUpdate, store.ID(id), store.ErrNotFound)
	}
	return nil
}

// DeleteBoard removes a board with its lists and cards. Deleting the selected
// board clears the view.
func (s *Session) DeleteBoard(ctx context.Context, id uuid.UUID) error {
	n, err := s.store.DeleteBoards(ctx, store.ID(id))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.Wrap(store.Boards, store.OpDelete, store.ID(id), store.ErrNotFound)
	}
	if selected, ok := s.view.Board(); ok && selected == id {
		s.view.Clear()
	}
	return nil
}

func (s *Session) selected() (uuid.UUID, error) {
	board, ok := s.view.Board()
	if !ok {
		return uuid.Nil, view.ErrNoBoard
	}
	if st := s.view.State(); st != view.Ready {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNotReady, st)
	}
	return board, nil
}

// AddList appends a list to the selected board.
func (s *Session) AddList(ctx context.Context, title string) (models.List, error) {
	board, err := s.selected()
	if err != nil {
		return models.List{}, err
	}
	title, err = shared.ValidateListTitle(title)
	if err != nil {
		return models.List{}, err
	}
	return s.sync.AddList(ctx, board, title)
}

func (s *Session) RenameList(ctx context.Context, id uuid.UUID, title string) error {
	if _, err := s.selected(); err != nil {
		return err
	}
	title, err := shared.ValidateListTitle(title)
	if err != nil {
		return err
	}
	_, err = s.sync.RenameList(ctx, id, title)
	return err
}

// DeleteList deletes the list's cards first and keeps the list when that fails.
func (s *Session) DeleteList(ctx context.Context, id uuid.UUID) error {
	if _, err := s.selected(); err != nil {
		return err
	}
	_, err := s.sync.DeleteList(ctx, id)
	return err
}

// AddCard appends a card to list. An empty description is stored as none.
func (s *Session) AddCard(ctx context.Context, list uuid.UUID, title, description string) (models.Card, error) {
	if _, err := s.selected(); err != nil {
		return models.Card{}, err
	}
	title, err := shared.ValidateCardTitle(title)
	if err != nil {
		return models.Card{}, err
	}
	description, err = shared.ValidateDescription(description)
	if err != nil {
		return models.Card{}, err
	}
	if _, ok := s.view.List(list); !ok {
		return models.Card{}, store.Wrap(store.Lists, store.OpSelect, store.ID(list), store.ErrNotFound)
	}
	var desc *string
	if description != "" {
		desc = &description
	}
	return s.sync.AddCard(ctx, list, title, desc)
}

// EditCard changes the title and/or description; nil leaves a field as is and
// an empty description clears it.
func (s *Session) EditCard(ctx context.Context, id uuid.UUID, title, description *string) error {
	if _, err := s.selected(); err != nil {
		return err
	}
	var p store.CardPatch
	if title != nil {
		t, err := shared.ValidateCardTitle(*title)
		if err != nil {
			return err
		}
		p.Title = &t
	}
	if description != nil {
		d, err := shared.ValidateDescription(*description)
		if err != nil {
			return err
		}
		p.Description = &d
	}
	if p.Empty() {
		return nil
	}
	_, err := s.sync.UpdateCard(ctx, id, p)
	return err
}

func (s *Session) DeleteCard(ctx context.Context, id uuid.UUID) error {
	if _, err := s.selected(); err != nil {
		return err
	}
	_, err := s.sync.DeleteCard(ctx, id)
	return err
}

// DragStart claims the drag slot for a card.
func (s *Session) DragStart(id uuid.UUID) error {
	return s.drag.Start(drag.Start{ActiveID: id})
}

func (s *Session) DragCancel() {
	s.drag.Cancel()
}

// DragEnd resolves the drop and persists it. A drop that changes nothing
// returns a nil mutation and no error. The drag slot is free again when
// DragEnd returns, whatever the outcome.
func (s *Session) DragEnd(ctx context.Context, ev drag.End) (*persist.Mutation, error) {
	if err := s.drag.End(ev); err != nil {
		return nil, err
	}
	defer s.drag.Settle()

	if _, err := s.selected(); err != nil {
		return nil, err
	}
	m, ok := s.resolver.Resolve(s.view.Cards(), s.view.Lists(), ev)
	if !ok {
		return nil, nil
	}
	return s.sync.ApplyMove(ctx, m)
}

// MoveCard runs a complete drag of card onto overID.
func (s *Session) MoveCard(ctx context.Context, card uuid.UUID, overID string) (*persist.Mutation, error) {
	if err := s.DragStart(card); err != nil {
		return nil, err
	}
	return s.DragEnd(ctx, drag.End{ActiveID: card, OverID: &overID})
}

// MoveList moves a list to the index of the list overID names.
func (s *Session) MoveList(ctx context.Context, list uuid.UUID, overID string) (*persist.Mutation, error) {
	if _, err := s.selected(); err != nil {
		return nil, err
	}
	m, ok := s.resolver.ResolveLists(s.view.Lists(), list, &overID)
	if !ok {
		return nil, nil
	}
	return s.sync.ApplyListMove(ctx, m)
}

// Last reports the most recent mutation.
func (s *Session) Last() (persist.Mutation, bool) {
	return s.sync.Last()
}
