package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
)

type ListRepository struct {
	db *sql.DB
}

var _ store.ListStore = (*ListRepository)(nil)

func NewListRepository(db *sql.DB) *ListRepository {
	return &ListRepository{db: db}
}

func (r *ListRepository) SelectLists(ctx context.Context, f store.Filter) ([]models.List, error) {
	col, err := column(store.Lists, f.Key)
	if err != nil {
		return nil, store.Wrap(store.Lists, store.OpSelect, f, err)
	}
	query := fmt.Sprintf(`SELECT id, board_id, title, position, created_at, updated_at
	 FROM lists WHERE %s = $1 ORDER BY position, id`, col)
	rows, err := r.db.QueryContext(ctx, query, f.Value)
	if err != nil {
		return nil, store.Wrap(store.Lists, store.OpSelect, f, err)
	}
	defer rows.Close()

	lists := []models.List{}
	for rows.Next() {
		var l models.List
		if err := rows.Scan(&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, store.Wrap(store.Lists, store.OpSelect, f, err)
		}
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap(store.Lists, store.OpSelect, f, err)
	}
	return lists, nil
}

func (r *ListRepository) GetByID(ctx context.Context, id uuid.UUID) (models.List, error) {
	lists, err := r.SelectLists(ctx, store.ID(id))
	if err != nil {
		return models.List{}, err
	}
	if len(lists) == 0 {
		return models.List{}, store.Wrap(store.Lists, store.OpSelect, store.ID(id), store.ErrNotFound)
	}
	return lists[0], nil
}

// InsertList appends l to its board. The position is computed inside the
// transaction after touching the board row, so concurrent inserts on the
// same board queue behind each other instead of reading the same maximum.
func (r *ListRepository) InsertList(ctx context.Context, l models.List) (models.List, error) {
	f := store.Board(l.BoardID)
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.List{}, store.Wrap(store.Lists, store.OpInsert, f, err)
	}
	defer rollback(tx)

	n, err := affected(tx.ExecContext(ctx, `UPDATE boards SET updated_at = $1 WHERE id = $2`, now, l.BoardID))
	if err != nil {
		return models.List{}, store.Wrap(store.Lists, store.OpInsert, f, err)
	}
	if n == 0 {
		return models.List{}, store.Wrap(store.Lists, store.OpInsert, f, store.ErrNotFound)
	}
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM lists WHERE board_id = $1`, l.BoardID,
	).Scan(&l.Position)
	if err != nil {
		return models.List{}, store.Wrap(store.Lists, store.OpInsert, f, err)
	}

	query := `INSERT INTO lists (id, board_id, title, position, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, query, l.ID, l.BoardID, l.Title, l.Position, l.CreatedAt, l.UpdatedAt); err != nil {
		return models.List{}, store.Wrap(store.Lists, store.OpInsert, f, err)
	}
	if err := tx.Commit(); err != nil {
		return models.List{}, store.Wrap(store.Lists, store.OpInsert, f, err)
	}
	return l, nil
}

func (r *ListRepository) UpdateLists(ctx context.Context, f store.Filter, p store.ListPatch) (int64, error) {
	col, err := column(store.Lists, f.Key)
	if err != nil {
		return 0, store.Wrap(store.Lists, store.OpUpdate, f, err)
	}
	if p.Empty() {
		return 0, store.Wrap(store.Lists, store.OpUpdate, f, store.ErrEmptyPatch)
	}
	var set setClause
	if p.Title != nil {
		set.add("title", *p.Title)
	}
	if p.Position != nil {
		set.add("position", *p.Position)
	}
	set.add("updated_at", time.Now().UTC())
	query, args := set.build("lists", col, f.Value)
	n, err := affected(r.db.ExecContext(ctx, query, args...))
	return n, store.Wrap(store.Lists, store.OpUpdate, f, err)
}

// DeleteLists removes list rows only. Callers delete the cards of a list
// first.
func (r *ListRepository) DeleteLists(ctx context.Context, f store.Filter) (int64, error) {
	col, err := column(store.Lists, f.Key)
	if err != nil {
		return 0, store.Wrap(store.Lists, store.OpDelete, f, err)
	}
	n, err := affected(r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM lists WHERE %s = $1`, col), f.Value))
	return n, store.Wrap(store.Lists, store.OpDelete, f, err)
}
