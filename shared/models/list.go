package models

import (
	"time"

	"github.com/google/uuid"
)

// List is an ordered column of cards. Position is its zero-based rank among
// the lists of the same board.
type List struct {
	ID        uuid.UUID `json:"list_id"`
	BoardID   uuid.UUID `json:"board_id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *List) GetPosition() int     { return l.Position }
func (l *List) SetPosition(p int)    { l.Position = p }
func (l *List) GetID() uuid.UUID     { return l.ID }
func (l *List) GetParent() uuid.UUID { return l.BoardID }
