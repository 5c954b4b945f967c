package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/chepyr/go-kanban/internal/store"
)

// Schema creates the boards, lists and cards tables. It runs unchanged on
// Postgres and SQLite.
const Schema = `
CREATE TABLE IF NOT EXISTS boards (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS lists (
  id TEXT PRIMARY KEY,
  board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  position INTEGER NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS cards (
  id TEXT PRIMARY KEY,
  list_id TEXT NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
  board_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  position INTEGER NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_boards_user_id ON boards(user_id);
CREATE INDEX IF NOT EXISTS idx_lists_board_id ON lists(board_id);
CREATE INDEX IF NOT EXISTS idx_cards_list_id ON cards(list_id);
CREATE INDEX IF NOT EXISTS idx_cards_board_id ON cards(board_id);
`

func Connect(driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// column maps a filter key to the column it matches in one table. Keys a
// table has no index for are rejected.
func column(c store.Collection, k store.Key) (string, error) {
	allowed := map[store.Collection][]store.Key{
		store.Boards: {store.ByID, store.ByUser},
		store.Lists:  {store.ByID, store.ByBoard},
		store.Cards:  {store.ByID, store.ByBoard, store.ByList},
	}
	for _, a := range allowed[c] {
		if a == k {
			return string(k), nil
		}
	}
	return "", store.ErrUnsupportedFilter
}

// setClause collects "col = $n" assignments, numbering placeholders in
// order of appearance.
type setClause struct {
	parts []string
	args  []any
}

func (s *setClause) add(col string, v any) {
	s.args = append(s.args, v)
	s.parts = append(s.parts, fmt.Sprintf("%s = $%d", col, len(s.args)))
}

// build returns "UPDATE table SET ... WHERE col = $n" and its arguments.
func (s *setClause) build(table, where string, value any) (string, []any) {
	args := append(s.args, value)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d", table, strings.Join(s.parts, ", "), where, len(args))
	return q, args
}

func affected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// rollback is deferred after BeginTx; it is a no-op once the transaction
// has been committed.
func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Printf("Rollback failed: %v", err)
	}
}
