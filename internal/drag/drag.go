// Package drag models the pointer gesture source: drag events, the namespaced
// drop target ids, and the single active-drag slot.
package drag

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	listZonePrefix  = "list-"
	endOfListPrefix = "card-end-"
)

var (
	ErrDragInProgress = errors.New("another drag is still active")
	ErrNoActiveDrag   = errors.New("no active drag")
	ErrWrongItem      = errors.New("drag event does not match the active item")
)

type Kind int

const (
	KindNone Kind = iota
	KindCard
	KindListZone
	KindEndOfList
)

func (k Kind) String() string {
	switch k {
	case KindCard:
		return "card"
	case KindListZone:
		return "list-zone"
	case KindEndOfList:
		return "end-of-list"
	}
	return "none"
}

// Target is a parsed drop target. For KindCard, ID is the card id; otherwise
// it is the list id.
type Target struct {
	Kind Kind
	ID   uuid.UUID
}

// ListZoneID is the drop id of a list's empty area.
func ListZoneID(listID uuid.UUID) string { return listZonePrefix + listID.String() }

// EndOfListID is the drop id of the placeholder after a list's last card.
func EndOfListID(listID uuid.UUID) string { return endOfListPrefix + listID.String() }

// ParseTarget disambiguates an over id. Unparseable ids yield KindNone.
func ParseTarget(id string) Target {
	kind := KindCard
	raw := id
	switch {
	case strings.HasPrefix(id, endOfListPrefix):
		kind, raw = KindEndOfList, strings.TrimPrefix(id, endOfListPrefix)
	case strings.HasPrefix(id, listZonePrefix):
		kind, raw = KindListZone, strings.TrimPrefix(id, listZonePrefix)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return Target{}
	}
	return Target{Kind: kind, ID: parsed}
}

type Start struct {
	ActiveID uuid.UUID
}

// End is emitted when the pointer is released. OverID is nil when the drop
// happened outside any target.
type End struct {
	ActiveID uuid.UUID
	OverID   *string
}

// Target returns the parsed drop target, KindNone when there is none.
func (e End) Target() Target {
	if e.OverID == nil {
		return Target{}
	}
	return ParseTarget(*e.OverID)
}

// Tracker holds the single active-drag slot. A drag occupies the slot from
// Start until Settle, so a new gesture cannot begin while the previous drop is
// still being resolved and persisted.
type Tracker struct {
	mu       sync.Mutex
	active   uuid.UUID
	dragging bool
	settling bool
}

func (t *Tracker) Start(ev Start) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dragging || t.settling {
		return ErrDragInProgress
	}
	t.active = ev.ActiveID
	t.dragging = true
	return nil
}

// End closes the gesture and moves the slot into the settling state. An End
// for another item abandons the gesture and frees the slot.
func (t *Tracker) End(ev End) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dragging {
		return ErrNoActiveDrag
	}
	if ev.ActiveID != t.active {
		t.dragging = false
		t.active = uuid.Nil
		return ErrWrongItem
	}
	t.dragging = false
	t.settling = true
	return nil
}

// Settle frees the slot after the drop has been applied.
func (t *Tracker) Settle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settling = false
	t.active = uuid.Nil
}

func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.settling {
		return
	}
	t.dragging = false
	t.active = uuid.Nil
}

// Active returns the dragged item, if a gesture is in progress.
func (t *Tracker) Active() (uuid.UUID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active, t.dragging
}
