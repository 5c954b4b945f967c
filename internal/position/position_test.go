package position

import (
	"testing"

	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardsIn(list uuid.UUID, titles ...string) []models.Card {
	out := make([]models.Card, len(titles))
	for i, title := range titles {
		out[i] = models.Card{ID: uuid.New(), ListID: list, Title: title, Position: i}
	}
	return out
}

func titles(cards []models.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Title
	}
	return out
}

func positions(cards []models.Card) []int {
	out := make([]int, len(cards))
	for i, c := range cards {
		out[i] = c.Position
	}
	return out
}

func TestResequence(t *testing.T) {
	list := uuid.New()
	cards := cardsIn(list, "a", "b", "c")
	cards[0].Position, cards[1].Position, cards[2].Position = 7, 3, 3

	got := Resequence(cards)

	assert.Equal(t, []int{0, 1, 2}, positions(got))
	assert.Equal(t, []string{"a", "b", "c"}, titles(got))
	assert.Equal(t, 7, cards[0].Position, "input must not be modified")
}

func TestResequence_Idempotent(t *testing.T) {
	cards := cardsIn(uuid.New(), "a", "b", "c", "d")
	once := Resequence(cards)
	twice := Resequence(once)
	assert.Equal(t, once, twice)
	assert.Equal(t, cards, once)
}

func TestResequence_Lists(t *testing.T) {
	board := uuid.New()
	lists := []models.List{
		{ID: uuid.New(), BoardID: board, Position: 4},
		{ID: uuid.New(), BoardID: board, Position: 9},
	}
	got := Resequence(lists)
	assert.Equal(t, 0, got[0].Position)
	assert.Equal(t, 1, got[1].Position)
}

func TestResequence_Empty(t *testing.T) {
	assert.Empty(t, Resequence([]models.Card{}))
}

func TestIsContiguous(t *testing.T) {
	cards := cardsIn(uuid.New(), "a", "b", "c")
	assert.True(t, IsContiguous(cards))

	cards[2].Position = 1
	assert.False(t, IsContiguous(cards), "duplicate")

	cards[2].Position = 3
	assert.False(t, IsContiguous(cards), "gap")

	assert.True(t, IsContiguous([]models.Card{}))
}

func TestSiblings(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	cards := append(cardsIn(a, "a0", "a1"), cardsIn(b, "b0", "b1", "b2")...)
	cards[0].Position, cards[1].Position = 1, 0

	assert.Equal(t, []string{"a1", "a0"}, titles(Siblings(cards, a)))
	assert.Equal(t, []string{"b0", "b1", "b2"}, titles(Siblings(cards, b)))
	assert.Empty(t, Siblings(cards, uuid.New()))
}

func TestMove(t *testing.T) {
	cards := cardsIn(uuid.New(), "C", "D", "E")

	assert.Equal(t, []string{"D", "E", "C"}, titles(Move(cards, 0, 2)))
	assert.Equal(t, []string{"E", "C", "D"}, titles(Move(cards, 2, 0)))
	assert.Equal(t, []string{"C", "D", "E"}, titles(Move(cards, 1, 1)))
	assert.Equal(t, []string{"C", "D", "E"}, titles(Move(cards, 5, 0)))
	assert.Equal(t, []string{"C", "D", "E"}, titles(cards))
}

func TestInsert_Clamps(t *testing.T) {
	cards := cardsIn(uuid.New(), "F", "G")
	x := models.Card{ID: uuid.New(), Title: "X"}

	assert.Equal(t, []string{"X", "F", "G"}, titles(Insert(cards, x, -3)))
	assert.Equal(t, []string{"F", "X", "G"}, titles(Insert(cards, x, 1)))
	assert.Equal(t, []string{"F", "G", "X"}, titles(Insert(cards, x, 99)))
}

func TestIndexOfAndWithout(t *testing.T) {
	cards := cardsIn(uuid.New(), "a", "b", "c")
	require.Equal(t, 1, IndexOf(cards, cards[1].ID))
	require.Equal(t, -1, IndexOf(cards, uuid.New()))

	rest := Without(cards, cards[1].ID)
	assert.Equal(t, []string{"a", "c"}, titles(rest))
	assert.Len(t, cards, 3)
}

func TestChanged(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	before := cardsIn(a, "C", "D", "E")

	after := Resequence(Move(before, 0, 2))
	assert.Equal(t, []string{"D", "E", "C"}, titles(Changed(before, after)))

	moved := before[2]
	moved.ListID = b
	moved.Position = 2
	assert.Equal(t, []string{"E"}, titles(Changed(before, []models.Card{moved})), "parent change alone counts")

	assert.Empty(t, Changed(before, before))
}
