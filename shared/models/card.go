package models

import (
	"time"

	"github.com/google/uuid"
)

// Card belongs to one list. BoardID is denormalized and must always match the
// board of the list referenced by ListID.
type Card struct {
	ID          uuid.UUID `json:"card_id"`
	ListID      uuid.UUID `json:"list_id"`
	BoardID     uuid.UUID `json:"board_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *Card) GetPosition() int     { return c.Position }
func (c *Card) SetPosition(p int)    { c.Position = p }
func (c *Card) GetID() uuid.UUID     { return c.ID }
func (c *Card) GetParent() uuid.UUID { return c.ListID }
