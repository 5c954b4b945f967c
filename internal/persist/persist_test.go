package persist

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chepyr/go-kanban/internal/drag"
	"github.com/chepyr/go-kanban/internal/position"
	"github.com/chepyr/go-kanban/internal/reorder"
	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/internal/store/storetest"
	"github.com/chepyr/go-kanban/internal/view"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = log.New(io.Discard, "", 0)

type board struct {
	mem   *storetest.Memory
	view  *view.Model
	id    uuid.UUID
	lists map[string]models.List
	cards map[string]models.Card
}

// newBoard seeds A=[C,D,E] and B=[F,G] and selects the board.
func newBoard(t *testing.T) *board {
	t.Helper()
	ctx := context.Background()
	b := &board{mem: storetest.NewMemory(), lists: map[string]models.List{}, cards: map[string]models.Card{}}
	brd, err := b.mem.InsertBoard(ctx, models.Board{Title: "Sprint"})
	require.NoError(t, err)
	b.id = brd.ID
	for _, name := range []string{"A", "B"} {
		l, err := b.mem.InsertList(ctx, models.List{BoardID: brd.ID, Title: name})
		require.NoError(t, err)
		b.lists[name] = l
	}
	for list, titles := range map[string][]string{"A": {"C", "D", "E"}, "B": {"F", "G"}} {
		for _, title := range titles {
			c, err := b.mem.InsertCard(ctx, models.Card{ListID: b.lists[list].ID, Title: title})
			require.NoError(t, err)
			b.cards[title] = c
		}
	}
	b.view = view.New(b.mem)
	require.NoError(t, b.view.Select(ctx, brd.ID))
	b.mem.ResetCalls()
	return b
}

func (b *board) resolve(t *testing.T, active, over string) reorder.Move {
	t.Helper()
	overID := b.cards[over].ID.String()
	m, ok := reorder.New(reorder.DefaultOptions).Resolve(b.view.Cards(), b.view.Lists(), drag.End{
		ActiveID: b.cards[active].ID,
		OverID:   &overID,
	})
	require.True(t, ok)
	return m
}

// backend returns the titles of a list's cards as stored, in position order.
func (b *board) backend(t *testing.T, list string) []string {
	t.Helper()
	cards, err := b.mem.SelectCards(context.Background(), store.List(b.lists[list].ID))
	require.NoError(t, err)
	require.True(t, position.IsContiguous(cards), "list %s not contiguous", list)
	return titles(cards)
}

func titles(cards []models.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Title
	}
	return out
}

func updateIDs(calls []storetest.Call) []uuid.UUID {
	var out []uuid.UUID
	for _, c := range calls {
		if c.Op == store.OpUpdate {
			out = append(out, c.Filter.Value)
		}
	}
	return out
}

func TestApplyMove_Commits(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet))
	m := b.resolve(t, "C", "G")

	mut, err := s.ApplyMove(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, Committed, mut.Status)

	assert.Equal(t, []string{"D", "E"}, b.backend(t, "A"))
	assert.Equal(t, []string{"F", "C", "G"}, b.backend(t, "B"))
	moved, _ := b.mem.Card(b.cards["C"].ID)
	assert.Equal(t, b.lists["B"].ID, moved.ListID)
	assert.Equal(t, b.id, moved.BoardID)

	assert.Equal(t, []string{"F", "C", "G"}, titles(b.view.CardsOf(b.lists["B"].ID)))
	assert.Equal(t, view.Ready, b.view.State())

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, mut.ID, last.ID)
}

func TestApplyMove_IssuesInChangedOrder(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet), WithRefresh(false))
	m := b.resolve(t, "C", "G")

	_, err := s.ApplyMove(context.Background(), m)
	require.NoError(t, err)

	want := make([]uuid.UUID, len(m.Changed))
	for i, c := range m.Changed {
		want[i] = c.ID
	}
	assert.Equal(t, want, updateIDs(b.mem.Calls()))

	// Only the moved card carries its new list; the board is unchanged.
	for _, c := range b.mem.Calls() {
		assert.Nil(t, c.CardPatch.BoardID)
		if c.Filter.Value == b.cards["C"].ID {
			require.NotNil(t, c.CardPatch.ListID)
			assert.Equal(t, b.lists["B"].ID, *c.CardPatch.ListID)
			continue
		}
		assert.Nil(t, c.CardPatch.ListID)
		assert.NotNil(t, c.CardPatch.Position)
	}
}

func TestApplyMove_PartialFailureReverts(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet))
	m := b.resolve(t, "C", "G")

	boom := errors.New("update rejected")
	b.mem.SetFail(storetest.FailWhen(store.Cards, store.OpUpdate, store.ID(b.cards["G"].ID), boom))

	mut, err := s.ApplyMove(context.Background(), m)
	require.Error(t, err)
	assert.Equal(t, Failed, mut.Status)

	be, ok := IsBatchError(err)
	require.True(t, ok)
	assert.Len(t, be.Failures, 1)
	assert.True(t, be.Failed(b.cards["G"].ID))
	assert.Equal(t, len(m.Changed)-1, be.Applied)
	assert.True(t, be.Compensated)
	assert.ErrorIs(t, err, boom)

	var se *store.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, store.Cards, se.Collection)

	assert.Equal(t, []string{"C", "D", "E"}, b.backend(t, "A"))
	assert.Equal(t, []string{"F", "G"}, b.backend(t, "B"))
	assert.Equal(t, []string{"C", "D", "E"}, titles(b.view.CardsOf(b.lists["A"].ID)))
	assert.Equal(t, []string{"F", "G"}, titles(b.view.CardsOf(b.lists["B"].ID)))
}

func TestApplyMove_FailedCompensationRefetches(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet), WithRefresh(false))
	m := b.resolve(t, "C", "G")

	g, d := b.cards["G"].ID, b.cards["D"].ID
	var dCalls atomic.Int32
	b.mem.SetFail(func(c store.Collection, op store.Op, f store.Filter) error {
		if c != store.Cards || op != store.OpUpdate {
			return nil
		}
		if f.Value == g {
			return errors.New("g rejected")
		}
		// D's forward update succeeds, its restore fails.
		if f.Value == d && dCalls.Add(1) > 1 {
			return errors.New("d restore rejected")
		}
		return nil
	})

	_, err := s.ApplyMove(context.Background(), m)
	be, ok := IsBatchError(err)
	require.True(t, ok)
	assert.False(t, be.Compensated)
	require.Len(t, be.Compensation, 1)
	assert.Equal(t, d, be.Compensation[0].ID)

	// The view mirrors the backend after the refetch.
	stored, err := b.mem.SelectCards(context.Background(), store.Board(b.id))
	require.NoError(t, err)
	assert.ElementsMatch(t, stored, b.view.Cards())
	assert.Equal(t, view.Ready, b.view.State())
}

func TestApplyMove_SerializesBatches(t *testing.T) {
	b := newBoard(t)
	tracked := &trackingStore{Memory: b.mem}
	s := New(tracked, b.view, WithLogger(quiet), WithRefresh(false), WithConcurrency(4))

	first := b.resolve(t, "C", "E")
	second := b.resolve(t, "F", "G")

	var wg sync.WaitGroup
	for _, m := range []reorder.Move{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ApplyMove(context.Background(), m)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Each batch's updates are contiguous in the issued sequence.
	issued := updateIDs(b.mem.Calls())
	require.Len(t, issued, len(first.Changed)+len(second.Changed))
	inFirst := map[uuid.UUID]bool{}
	for _, c := range first.Changed {
		inFirst[c.ID] = true
	}
	switches := 0
	for i := 1; i < len(issued); i++ {
		if inFirst[issued[i]] != inFirst[issued[i-1]] {
			switches++
		}
	}
	assert.Equal(t, 1, switches)
	assert.Equal(t, []string{"D", "E", "C"}, b.backend(t, "A"))
	assert.Equal(t, []string{"G", "F"}, b.backend(t, "B"))
}

// trackingStore delays card updates so overlapping batches would interleave.
type trackingStore struct {
	*storetest.Memory
}

func (s *trackingStore) UpdateCards(ctx context.Context, f store.Filter, p store.CardPatch) (int64, error) {
	time.Sleep(time.Millisecond)
	return s.Memory.UpdateCards(ctx, f, p)
}

func TestApplyListMove(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet))
	overID := b.lists["B"].ID.String()

	lm, ok := reorder.New(reorder.DefaultOptions).ResolveLists(b.view.Lists(), b.lists["A"].ID, &overID)
	require.True(t, ok)
	_, err := s.ApplyListMove(context.Background(), lm)
	require.NoError(t, err)

	lists, err := b.mem.SelectLists(context.Background(), store.Board(b.id))
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Equal(t, "B", lists[0].Title)
	assert.Equal(t, "A", lists[1].Title)
}

func TestApplyListMove_FailureReverts(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet))
	overID := b.lists["B"].ID.String()
	lm, ok := reorder.New(reorder.DefaultOptions).ResolveLists(b.view.Lists(), b.lists["A"].ID, &overID)
	require.True(t, ok)

	b.mem.SetFail(storetest.FailWhen(store.Lists, store.OpUpdate, store.ID(b.lists["A"].ID), errors.New("nope")))
	_, err := s.ApplyListMove(context.Background(), lm)
	_, isBatch := IsBatchError(err)
	require.True(t, isBatch)

	l, _ := b.mem.List(b.lists["B"].ID)
	assert.Equal(t, 1, l.Position)
	assert.Equal(t, "A", b.view.Lists()[0].Title)
}

func TestDeleteList_CascadeFailureKeepsList(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet))
	a := b.lists["A"].ID

	b.mem.SetFail(storetest.FailWhen(store.Cards, store.OpDelete, store.List(a), errors.New("cards locked")))
	mut, err := s.DeleteList(context.Background(), a)
	require.Error(t, err)
	assert.Equal(t, Failed, mut.Status)

	_, ok := b.mem.List(a)
	assert.True(t, ok, "list row must survive a failed cascade")
	assert.Equal(t, []string{"C", "D", "E"}, b.backend(t, "A"))
	for _, c := range b.mem.Calls() {
		assert.False(t, c.Collection == store.Lists && c.Op == store.OpDelete, "list delete must not be attempted")
	}

	_, inView := b.view.List(a)
	assert.True(t, inView)
	assert.Len(t, b.view.CardsOf(a), 3)
}

func TestDeleteList_CascadesAndResequences(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet))
	a := b.lists["A"].ID

	_, err := s.DeleteList(context.Background(), a)
	require.NoError(t, err)

	_, ok := b.mem.List(a)
	assert.False(t, ok)
	_, ok = b.mem.Card(b.cards["C"].ID)
	assert.False(t, ok)

	remaining, _ := b.mem.List(b.lists["B"].ID)
	assert.Equal(t, 0, remaining.Position)
	assert.Len(t, b.view.Lists(), 1)
	assert.Len(t, b.view.Cards(), 2)
}

func TestDeleteCard_Resequences(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet))

	_, err := s.DeleteCard(context.Background(), b.cards["C"].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "E"}, b.backend(t, "A"))
	assert.Equal(t, []string{"D", "E"}, titles(b.view.CardsOf(b.lists["A"].ID)))
}

func TestDeleteCard_FailureReverts(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet))
	c := b.cards["C"].ID

	b.mem.SetFail(storetest.FailWhen(store.Cards, store.OpDelete, store.ID(c), errors.New("gone wrong")))
	_, err := s.DeleteCard(context.Background(), c)
	require.Error(t, err)
	assert.Equal(t, []string{"C", "D", "E"}, titles(b.view.CardsOf(b.lists["A"].ID)))
	assert.Empty(t, updateIDs(b.mem.Calls()))
}

func TestUpdateCard(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet))
	c := b.cards["D"].ID
	title, desc := "Renamed", "details"

	_, err := s.UpdateCard(context.Background(), c, store.CardPatch{Title: &title, Description: &desc})
	require.NoError(t, err)
	got, _ := b.mem.Card(c)
	assert.Equal(t, "Renamed", got.Title)
	require.NotNil(t, got.Description)
	assert.Equal(t, "details", *got.Description)

	b.mem.SetFail(storetest.FailWhen(store.Cards, store.OpUpdate, store.ID(c), errors.New("offline")))
	other := "Again"
	_, err = s.UpdateCard(context.Background(), c, store.CardPatch{Title: &other})
	require.Error(t, err)
	inView, _ := b.view.Card(c)
	assert.Equal(t, "Renamed", inView.Title)
}

func TestUpdateCard_UnknownCard(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet))
	title := "x"

	mut, err := s.UpdateCard(context.Background(), uuid.New(), store.CardPatch{Title: &title})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, Failed, mut.Status)
	assert.Empty(t, updateIDs(b.mem.Calls()))
}

func TestRenameList(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet))

	_, err := s.RenameList(context.Background(), b.lists["B"].ID, "Done")
	require.NoError(t, err)
	l, _ := b.mem.List(b.lists["B"].ID)
	assert.Equal(t, "Done", l.Title)
}

func TestAddCardAppends(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet))

	c, err := s.AddCard(context.Background(), b.lists["B"].ID, "H", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Position)
	assert.Equal(t, b.id, c.BoardID)
	assert.Equal(t, []string{"F", "G", "H"}, titles(b.view.CardsOf(b.lists["B"].ID)))

	l, err := s.AddList(context.Background(), b.id, "Done")
	require.NoError(t, err)
	assert.Equal(t, 2, l.Position)
	assert.Len(t, b.view.Lists(), 3)
}

func TestAddCard_FailureLeavesViewUntouched(t *testing.T) {
	b := newBoard(t)
	s := New(b.mem, b.view, WithLogger(quiet))

	_, err := s.AddCard(context.Background(), uuid.New(), "orphan", nil)
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Len(t, b.view.Cards(), 5)
	last, _ := s.Last()
	assert.Equal(t, Failed, last.Status)
}
