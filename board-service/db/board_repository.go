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

type BoardRepository struct {
	db *sql.DB
}

var _ store.BoardStore = (*BoardRepository)(nil)

func NewBoardRepository(db *sql.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

func (r *BoardRepository) SelectBoards(ctx context.Context, f store.Filter) ([]models.Board, error) {
	col, err := column(store.Boards, f.Key)
	if err != nil {
		return nil, store.Wrap(store.Boards, store.OpSelect, f, err)
	}
	query := fmt.Sprintf(`SELECT id, user_id, title, created_at, updated_at
	 FROM boards WHERE %s = $1 ORDER BY created_at, id`, col)
	rows, err := r.db.QueryContext(ctx, query, f.Value)
	if err != nil {
		return nil, store.Wrap(store.Boards, store.OpSelect, f, err)
	}
	defer rows.Close()

	boards := []models.Board{}
	for rows.Next() {
		var b models.Board
		if err := rows.Scan(&b.ID, &b.UserID, &b.Title, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, store.Wrap(store.Boards, store.OpSelect, f, err)
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap(store.Boards, store.OpSelect, f, err)
	}
	return boards, nil
}

// GetByID returns store.ErrNotFound when no board has the id.
func (r *BoardRepository) GetByID(ctx context.Context, id uuid.UUID) (models.Board, error) {
	boards, err := r.SelectBoards(ctx, store.ID(id))
	if err != nil {
		return models.Board{}, err
	}
	if len(boards) == 0 {
		return models.Board{}, store.Wrap(store.Boards, store.OpSelect, store.ID(id), store.ErrNotFound)
	}
	return boards[0], nil
}

func (r *BoardRepository) InsertBoard(ctx context.Context, b models.Board) (models.Board, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now

	query := `INSERT INTO boards (id, user_id, title, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, b.ID, b.UserID, b.Title, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return models.Board{}, store.Wrap(store.Boards, store.OpInsert, store.User(b.UserID), err)
	}
	return b, nil
}

func (r *BoardRepository) UpdateBoards(ctx context.Context, f store.Filter, p store.BoardPatch) (int64, error) {
	col, err := column(store.Boards, f.Key)
	if err != nil {
		return 0, store.Wrap(store.Boards, store.OpUpdate, f, err)
	}
	if p.Empty() {
		return 0, store.Wrap(store.Boards, store.OpUpdate, f, store.ErrEmptyPatch)
	}
	var set setClause
	set.add("title", *p.Title)
	set.add("updated_at", time.Now().UTC())
	query, args := set.build("boards", col, f.Value)
	n, err := affected(r.db.ExecContext(ctx, query, args...))
	return n, store.Wrap(store.Boards, store.OpUpdate, f, err)
}

// DeleteBoards removes the matching boards together with their lists and
// cards in one transaction.
func (r *BoardRepository) DeleteBoards(ctx context.Context, f store.Filter) (int64, error) {
	col, err := column(store.Boards, f.Key)
	if err != nil {
		return 0, store.Wrap(store.Boards, store.OpDelete, f, err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, store.Wrap(store.Boards, store.OpDelete, f, err)
	}
	defer rollback(tx)

	owned := fmt.Sprintf(`SELECT id FROM boards WHERE %s = $1`, col)
	for _, q := range []string{
		`DELETE FROM cards WHERE board_id IN (` + owned + `)`,
		`DELETE FROM lists WHERE board_id IN (` + owned + `)`,
	} {
		if _, err := tx.ExecContext(ctx, q, f.Value); err != nil {
			return 0, store.Wrap(store.Boards, store.OpDelete, f, err)
		}
	}
	n, err := affected(tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM boards WHERE %s = $1`, col), f.Value))
	if err != nil {
		return 0, store.Wrap(store.Boards, store.OpDelete, f, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, store.Wrap(store.Boards, store.OpDelete, f, err)
	}
	return n, nil
}
