package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
)

// Store implements store.Store against the board-service REST API. Boards are
// always scoped to the token's user, so ByUser selects the caller's boards
// whatever the filter value.
type Store struct {
	t transport
}

var _ store.Store = (*Store)(nil)

func NewStore(baseURL string, opts ...Option) *Store {
	return &Store{t: newTransport(baseURL, opts)}
}

type affected struct {
	Affected int64 `json:"affected"`
}

func filterQuery(f store.Filter) url.Values {
	return url.Values{string(f.Key): {f.Value.String()}}
}

func requireID(c store.Collection, op store.Op, f store.Filter) error {
	if f.Key != store.ByID {
		return store.Wrap(c, op, f, store.ErrUnsupportedFilter)
	}
	return nil
}

func (s *Store) SelectBoards(ctx context.Context, f store.Filter) ([]models.Board, error) {
	switch f.Key {
	case store.ByUser:
		var boards []models.Board
		err := s.t.do(ctx, http.MethodGet, "/boards", nil, nil, &boards)
		return boards, store.Wrap(store.Boards, store.OpSelect, f, err)
	case store.ByID:
		var board models.Board
		err := s.t.do(ctx, http.MethodGet, "/boards/"+f.Value.String(), nil, nil, &board)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, store.Wrap(store.Boards, store.OpSelect, f, err)
		}
		return []models.Board{board}, nil
	}
	return nil, store.Wrap(store.Boards, store.OpSelect, f, store.ErrUnsupportedFilter)
}

func (s *Store) InsertBoard(ctx context.Context, b models.Board) (models.Board, error) {
	var out models.Board
	err := s.t.do(ctx, http.MethodPost, "/boards", nil, store.BoardPatch{Title: &b.Title}, &out)
	return out, store.Wrap(store.Boards, store.OpInsert, store.User(b.UserID), err)
}

func (s *Store) UpdateBoards(ctx context.Context, f store.Filter, p store.BoardPatch) (int64, error) {
	if err := requireID(store.Boards, store.OpUpdate, f); err != nil {
		return 0, err
	}
	if p.Empty() {
		return 0, store.Wrap(store.Boards, store.OpUpdate, f, store.ErrEmptyPatch)
	}
	if err := s.t.do(ctx, http.MethodPut, "/boards/"+f.Value.String(), nil, p, nil); err != nil {
		return 0, store.Wrap(store.Boards, store.OpUpdate, f, err)
	}
	return 1, nil
}

func (s *Store) DeleteBoards(ctx context.Context, f store.Filter) (int64, error) {
	if err := requireID(store.Boards, store.OpDelete, f); err != nil {
		return 0, err
	}
	var out affected
	err := s.t.do(ctx, http.MethodDelete, "/boards/"+f.Value.String(), nil, nil, &out)
	return out.Affected, store.Wrap(store.Boards, store.OpDelete, f, err)
}

func (s *Store) SelectLists(ctx context.Context, f store.Filter) ([]models.List, error) {
	var lists []models.List
	err := s.t.do(ctx, http.MethodGet, "/lists", filterQuery(f), nil, &lists)
	return lists, store.Wrap(store.Lists, store.OpSelect, f, err)
}

func (s *Store) InsertList(ctx context.Context, l models.List) (models.List, error) {
	in := struct {
		BoardID uuid.UUID `json:"board_id"`
		Title   string    `json:"title"`
	}{l.BoardID, l.Title}
	var out models.List
	err := s.t.do(ctx, http.MethodPost, "/lists", nil, in, &out)
	return out, store.Wrap(store.Lists, store.OpInsert, store.Board(l.BoardID), err)
}

func (s *Store) UpdateLists(ctx context.Context, f store.Filter, p store.ListPatch) (int64, error) {
	if err := requireID(store.Lists, store.OpUpdate, f); err != nil {
		return 0, err
	}
	if p.Empty() {
		return 0, store.Wrap(store.Lists, store.OpUpdate, f, store.ErrEmptyPatch)
	}
	var out affected
	err := s.t.do(ctx, http.MethodPatch, "/lists/"+f.Value.String(), nil, p, &out)
	return out.Affected, store.Wrap(store.Lists, store.OpUpdate, f, err)
}

func (s *Store) DeleteLists(ctx context.Context, f store.Filter) (int64, error) {
	var out affected
	err := s.t.do(ctx, http.MethodDelete, "/lists", filterQuery(f), nil, &out)
	return out.Affected, store.Wrap(store.Lists, store.OpDelete, f, err)
}

func (s *Store) SelectCards(ctx context.Context, f store.Filter) ([]models.Card, error) {
	var cards []models.Card
	err := s.t.do(ctx, http.MethodGet, "/cards", filterQuery(f), nil, &cards)
	return cards, store.Wrap(store.Cards, store.OpSelect, f, err)
}

func (s *Store) InsertCard(ctx context.Context, c models.Card) (models.Card, error) {
	in := struct {
		ListID      uuid.UUID `json:"list_id"`
		Title       string    `json:"title"`
		Description *string   `json:"description,omitempty"`
	}{c.ListID, c.Title, c.Description}
	var out models.Card
	err := s.t.do(ctx, http.MethodPost, "/cards", nil, in, &out)
	return out, store.Wrap(store.Cards, store.OpInsert, store.List(c.ListID), err)
}

func (s *Store) UpdateCards(ctx context.Context, f store.Filter, p store.CardPatch) (int64, error) {
	if err := requireID(store.Cards, store.OpUpdate, f); err != nil {
		return 0, err
	}
	if p.Empty() {
		return 0, store.Wrap(store.Cards, store.OpUpdate, f, store.ErrEmptyPatch)
	}
	var out affected
	err := s.t.do(ctx, http.MethodPatch, "/cards/"+f.Value.String(), nil, p, &out)
	return out.Affected, store.Wrap(store.Cards, store.OpUpdate, f, err)
}

func (s *Store) DeleteCards(ctx context.Context, f store.Filter) (int64, error) {
	var out affected
	err := s.t.do(ctx, http.MethodDelete, "/cards", filterQuery(f), nil, &out)
	return out.Affected, store.Wrap(store.Cards, store.OpDelete, f, err)
}
