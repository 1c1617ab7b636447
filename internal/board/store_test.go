package board

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(v string) *string     { return &v }
func float(v float64) *float64 { return &v }
func id(v uint) *uint          { return &v }

// two columns A(1) and B(2); cards 10 and 11 in A, 12 in B
func seeded() *Store {
	s := NewStore()
	s.ReplaceAll(
		[]Column{{ID: 2, Title: "B", Order: 1}, {ID: 1, Title: "A", Order: 0}},
		[]Card{
			{ID: 12, ColumnID: 2, Title: "c", Order: 0},
			{ID: 11, ColumnID: 1, Title: "b", Order: 1},
			{ID: 10, ColumnID: 1, Title: "a", Order: 0},
		},
	)
	return s
}

func cardIDs(cards []Card) []uint {
	out := []uint{}
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}

func TestFlatten(t *testing.T) {
	cols, cards := Flatten([]BoardColumn{
		{Column: Column{ID: 1, Title: "A"}, Cards: []Card{{ID: 5, Title: "x"}}},
		{Column: Column{ID: 2, Title: "B"}, Cards: nil},
	})
	require.Len(t, cols, 2)
	require.Len(t, cards, 1)
	assert.Equal(t, uint(1), cards[0].ColumnID)
}

func TestStore_ReplaceAllSorts(t *testing.T) {
	s := seeded()

	cols := s.Columns()
	assert.Equal(t, "A", cols[0].Title)
	assert.Equal(t, "B", cols[1].Title)
	assert.Equal(t, []uint{10, 11}, cardIDs(s.CardsIn(1)))
	assert.Equal(t, []uint{12}, cardIDs(s.CardsIn(2)))
}

func TestStore_ReplaceAllDropsOrphans(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]Column{{ID: 1}}, []Card{{ID: 5, ColumnID: 1}, {ID: 6, ColumnID: 99}})
	assert.Equal(t, []uint{5}, cardIDs(s.Cards()))
}

func TestStore_ApplyLocalReturnsPreviousSnapshot(t *testing.T) {
	s := seeded()

	snap := s.ApplyLocal(RemoveCard(10))
	assert.Equal(t, []uint{11}, cardIDs(s.CardsIn(1)))

	s.Restore(snap)
	assert.Equal(t, []uint{10, 11}, cardIDs(s.CardsIn(1)))
}

func TestStore_SnapshotsAreIndependent(t *testing.T) {
	s := seeded()

	first := s.ApplyLocal(UpdateCard(10, CardPatch{Title: str("renamed")}))
	second := s.ApplyLocal(RemoveCard(11))

	s.Restore(second)
	card, ok := s.Card(10)
	require.True(t, ok)
	assert.Equal(t, "renamed", card.Title)
	assert.Len(t, s.CardsIn(1), 2)

	s.Restore(first)
	card, _ = s.Card(10)
	assert.Equal(t, "a", card.Title)
}

func TestStore_RemoveColumnDropsItsCards(t *testing.T) {
	s := seeded()

	s.ApplyLocal(RemoveColumn(1))

	assert.Len(t, s.Columns(), 1)
	assert.Equal(t, []uint{12}, cardIDs(s.Cards()))
}

func TestStore_RejectsOrphaningMutations(t *testing.T) {
	s := seeded()
	before := s.State()

	s.ApplyLocal(InsertCard(Card{ID: 20, ColumnID: 99}))
	s.ApplyLocal(SetCardColumn(10, 99))
	s.ApplyLocal(UpdateCard(10, CardPatch{ColumnID: id(99)}))
	s.ApplyLocal(MoveCard(10, 0, 99))
	s.ApplyLocal(InsertColumn(Column{ID: 1, Title: "dup"}))
	s.ApplyLocal(func(st State) State {
		st = st.clone()
		st.Columns = st.Columns[1:]
		return st
	})

	assert.Equal(t, before, s.State())
}

func TestStore_InsertAndUpdate(t *testing.T) {
	s := seeded()

	s.ApplyLocal(InsertColumn(Column{ID: 3, Title: "C", Order: 2}))
	s.ApplyLocal(InsertCard(Card{ID: 13, ColumnID: 3, Title: "new"}))
	s.ApplyLocal(UpdateColumn(3, ColumnPatch{Title: str("Done")}))

	col, ok := s.Column(3)
	require.True(t, ok)
	assert.Equal(t, "Done", col.Title)
	assert.Equal(t, 2.0, col.Order)
	assert.Equal(t, []uint{13}, cardIDs(s.CardsIn(3)))
}

func TestStore_MoveColumn(t *testing.T) {
	s := seeded()
	s.ApplyLocal(InsertColumn(Column{ID: 3, Title: "C"}))

	s.ApplyLocal(MoveColumn(2, 0))

	titles := []string{}
	for _, c := range s.Columns() {
		titles = append(titles, c.Title)
	}
	assert.Equal(t, []string{"C", "A", "B"}, titles)

	before := s.State()
	s.ApplyLocal(MoveColumn(0, 7))
	assert.Equal(t, before, s.State())
}

func TestStore_MoveCardAndRank(t *testing.T) {
	s := seeded()

	rank, ok := s.RankInColumn(11)
	require.True(t, ok)
	assert.Equal(t, 1, rank)

	// card 11 over card 10: flat index 0, same column
	s.ApplyLocal(MoveCard(11, s.CardIndex(10), 0))
	assert.Equal(t, []uint{11, 10}, cardIDs(s.CardsIn(1)))
	rank, _ = s.RankInColumn(11)
	assert.Equal(t, 0, rank)

	// card 10 over card 12 in B
	s.ApplyLocal(MoveCard(10, s.CardIndex(12), 2))
	assert.Equal(t, []uint{11}, cardIDs(s.CardsIn(1)))
	assert.ElementsMatch(t, []uint{10, 12}, cardIDs(s.CardsIn(2)))

	_, ok = s.RankInColumn(404)
	assert.False(t, ok)
}

func TestStore_RenumberCards(t *testing.T) {
	s := seeded()
	s.ApplyLocal(MoveCard(11, s.CardIndex(10), 0))
	s.ApplyLocal(RenumberCards(1))

	var orders []float64
	for _, c := range s.CardsIn(1) {
		orders = append(orders, c.Order)
	}
	assert.Equal(t, []float64{0, 1}, orders)
	assert.Equal(t, []uint{11, 10}, cardIDs(s.CardsIn(1)))

	before := s.State()
	s.ApplyLocal(RenumberCards(404))
	assert.Equal(t, before, s.State())
}

func TestStore_SetCardColumnKeepsPosition(t *testing.T) {
	s := seeded()
	index := s.CardIndex(10)

	s.ApplyLocal(SetCardColumn(10, 2))

	card, _ := s.Card(10)
	assert.Equal(t, uint(2), card.ColumnID)
	assert.Equal(t, index, s.CardIndex(10))
}

func TestStore_BoardProjection(t *testing.T) {
	s := seeded()
	board := s.Board()

	require.Len(t, board, 2)
	assert.Equal(t, uint(1), board[0].ID)
	assert.Equal(t, []uint{10, 11}, cardIDs(board[0].Cards))
	assert.Equal(t, []uint{12}, cardIDs(board[1].Cards))
}

func TestPatches_Validate(t *testing.T) {
	assert.ErrorIs(t, ColumnPatch{}.Validate(), ErrEmptyPatch)
	assert.ErrorIs(t, CardPatch{}.Validate(), ErrEmptyPatch)

	assert.NoError(t, ColumnPatch{Title: str("Todo")}.Validate())
	assert.NoError(t, CardPatch{ColumnID: id(2), Order: float(0)}.Validate())

	tests := []struct {
		name    string
		err     error
		field   string
		message string
	}{
		{"blank column title", ColumnPatch{Title: str("")}.Validate(), "title", "title must be at least 1 characters"},
		{"long card title", CardPatch{Title: str(strings.Repeat("x", 201))}.Validate(), "title", "title must be at most 200 characters"},
		{"negative order", CardPatch{Order: float(-1)}.Validate(), "order", "order must not be less than 0"},
		{"zero column", CardPatch{ColumnID: id(0)}.Validate(), "columnId", "columnId must not be less than 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verr *ValidationError
			require.True(t, errors.As(tt.err, &verr), "expected ValidationError, got %v", tt.err)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.message, verr.Message)
		})
	}
}
