// Package store defines the persistence port consumed by the board client.
//
// Every collection exposes the same capability set: select, insert, update and
// delete, filtered by equality on a single indexed key and ordered ascending by
// position (lists, cards) or created_at (boards). Patches carry absolute
// values, never deltas, so repeating an update is always safe.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("row not found")
	ErrUnsupportedFilter = errors.New("unsupported filter key")
	ErrEmptyPatch        = errors.New("patch has no fields")
)

type Key string

const (
	ByID    Key = "id"
	ByBoard Key = "board_id"
	ByList  Key = "list_id"
	ByUser  Key = "user_id"
)

// Filter is an equality match on one indexed key.
type Filter struct {
	Key   Key
	Value uuid.UUID
}

func ID(id uuid.UUID) Filter    { return Filter{Key: ByID, Value: id} }
func Board(id uuid.UUID) Filter { return Filter{Key: ByBoard, Value: id} }
func List(id uuid.UUID) Filter  { return Filter{Key: ByList, Value: id} }
func User(id uuid.UUID) Filter  { return Filter{Key: ByUser, Value: id} }

func (f Filter) String() string { return fmt.Sprintf("%s=%s", f.Key, f.Value) }

type Collection string

const (
	Boards Collection = "boards"
	Lists  Collection = "lists"
	Cards  Collection = "cards"
)

type Op string

const (
	OpSelect Op = "select"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Error reports a failed call against one collection.
type Error struct {
	Collection Collection
	Op         Op
	Filter     Filter
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Collection, e.Filter, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns nil when err is nil, otherwise err wrapped in an *Error.
func Wrap(c Collection, op Op, f Filter, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Collection: c, Op: op, Filter: f, Err: err}
}

type BoardPatch struct {
	Title *string `json:"title,omitempty"`
}

type ListPatch struct {
	Title    *string `json:"title,omitempty"`
	Position *int    `json:"position,omitempty"`
}

// CardPatch updates a card. A non-nil empty Description clears it to NULL.
type CardPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Position    *int       `json:"position,omitempty"`
	ListID      *uuid.UUID `json:"list_id,omitempty"`
	BoardID     *uuid.UUID `json:"board_id,omitempty"`
}

func (p BoardPatch) Empty() bool { return p.Title == nil }
func (p ListPatch) Empty() bool  { return p.Title == nil && p.Position == nil }
func (p CardPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Position == nil && p.ListID == nil && p.BoardID == nil
}

type BoardStore interface {
	SelectBoards(ctx context.Context, f Filter) ([]models.Board, error)
	InsertBoard(ctx context.Context, b models.Board) (models.Board, error)
	UpdateBoards(ctx context.Context, f Filter, p BoardPatch) (int64, error)
	DeleteBoards(ctx context.Context, f Filter) (int64, error)
}

// ListStore assigns the position of an inserted list as the count of its
// siblings, computed by the backend.
type ListStore interface {
	SelectLists(ctx context.Context, f Filter) ([]models.List, error)
	InsertList(ctx context.Context, l models.List) (models.List, error)
	UpdateLists(ctx context.Context, f Filter, p ListPatch) (int64, error)
	DeleteLists(ctx context.Context, f Filter) (int64, error)
}

// CardStore assigns position and board_id of an inserted card from its list.
type CardStore interface {
	SelectCards(ctx context.Context, f Filter) ([]models.Card, error)
	InsertCard(ctx context.Context, c models.Card) (models.Card, error)
	UpdateCards(ctx context.Context, f Filter, p CardPatch) (int64, error)
	DeleteCards(ctx context.Context, f Filter) (int64, error)
}

// Store is the full capability set over boards, lists and cards.
type Store interface {
	BoardStore
	ListStore
	CardStore
}
