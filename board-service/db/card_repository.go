package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
)

type CardRepository struct {
	db *sql.DB
}

var _ store.CardStore = (*CardRepository)(nil)

func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) SelectCards(ctx context.Context, f store.Filter) ([]models.Card, error) {
	col, err := column(store.Cards, f.Key)
	if err != nil {
		return nil, store.Wrap(store.Cards, store.OpSelect, f, err)
	}
	query := fmt.Sprintf(`SELECT id, list_id, board_id, title, description, position, created_at, updated_at
	 FROM cards WHERE %s = $1 ORDER BY position, id`, col)
	rows, err := r.db.QueryContext(ctx, query, f.Value)
	if err != nil {
		return nil, store.Wrap(store.Cards, store.OpSelect, f, err)
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		var (
			c    models.Card
			desc sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.ListID, &c.BoardID, &c.Title, &desc, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, store.Wrap(store.Cards, store.OpSelect, f, err)
		}
		if desc.Valid {
			c.Description = &desc.String
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap(store.Cards, store.OpSelect, f, err)
	}
	return cards, nil
}

func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (models.Card, error) {
	cards, err := r.SelectCards(ctx, store.ID(id))
	if err != nil {
		return models.Card{}, err
	}
	if len(cards) == 0 {
		return models.Card{}, store.Wrap(store.Cards, store.OpSelect, store.ID(id), store.ErrNotFound)
	}
	return cards[0], nil
}

// InsertCard appends c to its list. board_id is copied from the list row and
// the position is computed under the list row's lock.
func (r *CardRepository) InsertCard(ctx context.Context, c models.Card) (models.Card, error) {
	f := store.List(c.ListID)
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Description != nil && *c.Description == "" {
		c.Description = nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Card{}, store.Wrap(store.Cards, store.OpInsert, f, err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, `UPDATE lists SET updated_at = $1 WHERE id = $2`, now, c.ListID); err != nil {
		return models.Card{}, store.Wrap(store.Cards, store.OpInsert, f, err)
	}
	err = tx.QueryRowContext(ctx, `SELECT board_id FROM lists WHERE id = $1`, c.ListID).Scan(&c.BoardID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Card{}, store.Wrap(store.Cards, store.OpInsert, f, store.ErrNotFound)
	}
	if err != nil {
		return models.Card{}, store.Wrap(store.Cards, store.OpInsert, f, err)
	}
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM cards WHERE list_id = $1`, c.ListID,
	).Scan(&c.Position)
	if err != nil {
		return models.Card{}, store.Wrap(store.Cards, store.OpInsert, f, err)
	}

	query := `INSERT INTO cards (id, list_id, board_id, title, description, position, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = tx.ExecContext(ctx, query,
		c.ID, c.ListID, c.BoardID, c.Title, c.Description, c.Position, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return models.Card{}, store.Wrap(store.Cards, store.OpInsert, f, err)
	}
	if err := tx.Commit(); err != nil {
		return models.Card{}, store.Wrap(store.Cards, store.OpInsert, f, err)
	}
	return c, nil
}

// UpdateCards applies p to the matching cards. An empty description clears
// the column to NULL.
func (r *CardRepository) UpdateCards(ctx context.Context, f store.Filter, p store.CardPatch) (int64, error) {
	col, err := column(store.Cards, f.Key)
	if err != nil {
		return 0, store.Wrap(store.Cards, store.OpUpdate, f, err)
	}
	if p.Empty() {
		return 0, store.Wrap(store.Cards, store.OpUpdate, f, store.ErrEmptyPatch)
	}
	var set setClause
	if p.Title != nil {
		set.add("title", *p.Title)
	}
	if p.Description != nil {
		var desc any
		if *p.Description != "" {
			desc = *p.Description
		}
		set.add("description", desc)
	}
	if p.Position != nil {
		set.add("position", *p.Position)
	}
	if p.ListID != nil {
		set.add("list_id", *p.ListID)
	}
	if p.BoardID != nil {
		set.add("board_id", *p.BoardID)
	}
	set.add("updated_at", time.Now().UTC())
	query, args := set.build("cards", col, f.Value)
	n, err := affected(r.db.ExecContext(ctx, query, args...))
	return n, store.Wrap(store.Cards, store.OpUpdate, f, err)
}

func (r *CardRepository) DeleteCards(ctx context.Context, f store.Filter) (int64, error) {
	col, err := column(store.Cards, f.Key)
	if err != nil {
		return 0, store.Wrap(store.Cards, store.OpDelete, f, err)
	}
	n, err := affected(r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM cards WHERE %s = $1`, col), f.Value))
	return n, store.Wrap(store.Cards, store.OpDelete, f, err)
}
