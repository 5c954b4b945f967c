package view

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/internal/store/storetest"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) (*storetest.Memory, models.Board, models.List, []models.Card) {
	t.Helper()
	mem := storetest.NewMemory()
	ctx := context.Background()
	b, err := mem.InsertBoard(ctx, models.Board{Title: "Roadmap"})
	require.NoError(t, err)
	l, err := mem.InsertList(ctx, models.List{BoardID: b.ID, Title: "Todo"})
	require.NoError(t, err)
	var cards []models.Card
	for _, title := range []string{"one", "two"} {
		c, err := mem.InsertCard(ctx, models.Card{ListID: l.ID, Title: title})
		require.NoError(t, err)
		cards = append(cards, c)
	}
	return mem, b, l, cards
}

func TestModel_SelectLoadsBoard(t *testing.T) {
	mem, b, l, cards := seed(t)
	m := New(mem)
	assert.Equal(t, Unselected, m.State())

	require.NoError(t, m.Select(context.Background(), b.ID))
	assert.Equal(t, Ready, m.State())

	got, ok := m.Board()
	assert.True(t, ok)
	assert.Equal(t, b.ID, got)
	assert.Len(t, m.Lists(), 1)
	assert.Len(t, m.CardsOf(l.ID), 2)
	assert.Equal(t, cards[0].ID, m.CardsOf(l.ID)[0].ID)

	committedLists, committedCards := m.committed()
	assert.Len(t, committedLists, 1)
	assert.Len(t, committedCards, 2)
}

func TestModel_SelectFailureEntersError(t *testing.T) {
	mem, b, _, _ := seed(t)
	boom := errors.New("backend down")
	mem.SetFail(storetest.FailWhen(store.Cards, store.OpSelect, store.Board(b.ID), boom))

	m := New(mem)
	err := m.Select(context.Background(), b.ID)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Error, m.State())
	assert.ErrorIs(t, m.Err(), boom)

	mem.SetFail(nil)
	require.NoError(t, m.Refresh(context.Background()))
	assert.Equal(t, Ready, m.State())
	assert.NoError(t, m.Err())
}

func TestModel_RefreshRequiresSelection(t *testing.T) {
	m := New(storetest.NewMemory())
	assert.ErrorIs(t, m.Refresh(context.Background()), ErrNoBoard)
}

func TestModel_ClearResets(t *testing.T) {
	mem, b, _, _ := seed(t)
	m := New(mem)
	require.NoError(t, m.Select(context.Background(), b.ID))

	m.Clear()
	assert.Equal(t, Unselected, m.State())
	assert.Empty(t, m.Cards())
	assert.Empty(t, m.Lists())
	_, ok := m.Board()
	assert.False(t, ok)
}

// blockingReader parks the first SelectLists call until gate is closed so two
// fetches can overlap.
type blockingReader struct {
	*storetest.Memory
	calls   atomic.Int32
	entered chan struct{}
	gate    chan struct{}
}

func (r *blockingReader) SelectLists(ctx context.Context, f store.Filter) ([]models.List, error) {
	if r.calls.Add(1) == 1 {
		close(r.entered)
		<-r.gate
	}
	return r.Memory.SelectLists(ctx, f)
}

func TestModel_LastFetchWins(t *testing.T) {
	mem, first, _, _ := seed(t)
	second, err := mem.InsertBoard(context.Background(), models.Board{Title: "Other"})
	require.NoError(t, err)

	r := &blockingReader{Memory: mem, entered: make(chan struct{}), gate: make(chan struct{})}
	m := New(r)

	done := make(chan error, 1)
	go func() { done <- m.Select(context.Background(), first.ID) }()
	<-r.entered

	require.NoError(t, m.Select(context.Background(), second.ID))
	close(r.gate)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	got, _ := m.Board()
	assert.Equal(t, second.ID, got)
	assert.Empty(t, m.Lists())
	assert.Equal(t, Ready, m.State())
}

func TestModel_RevertCardsRestoresCommitted(t *testing.T) {
	mem, b, l, cards := seed(t)
	m := New(mem)
	require.NoError(t, m.Select(context.Background(), b.ID))

	moved := cards[0]
	moved.Position = 1
	other := cards[1]
	other.Position = 0
	m.PutCards(moved, other)
	assert.Equal(t, other.ID, m.CardsOf(l.ID)[0].ID)

	m.RevertCards(moved.ID, other.ID)
	order := m.CardsOf(l.ID)
	require.Len(t, order, 2)
	assert.Equal(t, cards[0].ID, order[0].ID)
	assert.Equal(t, 0, order[0].Position)
}

func TestModel_RevertBringsBackRemoved(t *testing.T) {
	mem, b, l, cards := seed(t)
	m := New(mem)
	require.NoError(t, m.Select(context.Background(), b.ID))

	m.RemoveCards(func(c models.Card) bool { return c.ListID == l.ID })
	m.RemoveList(l.ID)
	assert.Empty(t, m.Cards())
	assert.Empty(t, m.Lists())

	m.RevertCards(cards[0].ID, cards[1].ID)
	m.RevertLists(l.ID)
	assert.Len(t, m.Cards(), 2)
	assert.Len(t, m.Lists(), 1)
}

func TestModel_CommitMovesSnapshot(t *testing.T) {
	mem, b, _, cards := seed(t)
	m := New(mem)
	require.NoError(t, m.Select(context.Background(), b.ID))

	renamed := cards[0]
	renamed.Title = "renamed"
	m.PutCards(renamed)
	m.Commit()
	m.RevertCards(renamed.ID)

	got, ok := m.Card(renamed.ID)
	require.True(t, ok)
	assert.Equal(t, "renamed", got.Title)
}

func TestModel_PutAppendsUnknown(t *testing.T) {
	mem, b, l, _ := seed(t)
	m := New(mem)
	require.NoError(t, m.Select(context.Background(), b.ID))

	m.PutCards(models.Card{ID: uuid.New(), ListID: l.ID, BoardID: b.ID, Title: "new", Position: 2})
	assert.Len(t, m.CardsOf(l.ID), 3)

	m.RevertCards(m.CardsOf(l.ID)[2].ID)
	assert.Len(t, m.CardsOf(l.ID), 2, "cards never committed are dropped on revert")
}
