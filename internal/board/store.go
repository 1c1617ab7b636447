package board

import (
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Snapshot is a captured board state that Restore can roll back to.
type Snapshot struct {
	state State
}

// Store holds the local, possibly optimistic, copy of one user's board.
type Store struct {
	mu    sync.RWMutex
	state State
}

func NewStore() *Store {
	return &Store{state: State{Columns: []Column{}, Cards: []Card{}}}
}

// ReplaceAll discards local state and installs the server's board. Columns
// are sorted by order and cards by order within their column; ties keep the
// order they arrived in.
func (s *Store) ReplaceAll(columns []Column, cards []Card) {
	next := State{Columns: slices.Clone(columns), Cards: []Card{}}
	if next.Columns == nil {
		next.Columns = []Column{}
	}
	slices.SortStableFunc(next.Columns, func(a, b Column) int { return compareOrder(a.Order, b.Order) })

	for _, card := range cards {
		if next.hasColumn(card.ColumnID) {
			next.Cards = append(next.Cards, card)
		} else {
			log.WithFields(log.Fields{"card_id": card.ID, "column_id": card.ColumnID}).Warn("dropping card with unknown column")
		}
	}
	slices.SortStableFunc(next.Cards, func(a, b Card) int { return compareOrder(a.Order, b.Order) })

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

func compareOrder(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ApplyLocal applies m to the current state and returns the state as it was
// before. A result that would leave a card without its column is discarded.
func (s *Store) ApplyLocal(m Mutation) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := Snapshot{state: s.state}
	next := m(s.state)
	if !next.consistent() {
		log.Warn("rejected board mutation that would orphan a card")
		return prev
	}
	s.state = next
	return prev
}

func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	s.state = snap.state
	s.mu.Unlock()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{state: s.state}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) Columns() []Column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Columns)
}

func (s *Store) Cards() []Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Cards)
}

// CardsIn returns the column's cards in display order.
func (s *Store) CardsIn(columnID uint) []Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cardsIn(s.state, columnID)
}

func cardsIn(state State, columnID uint) []Card {
	out := []Card{}
	for _, c := range state.Cards {
		if c.ColumnID == columnID {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) Column(id uint) (Column, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.state.columnIndex(id); i >= 0 {
		return s.state.Columns[i], true
	}
	return Column{}, false
}

func (s *Store) Card(id uint) (Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.state.cardIndex(id); i >= 0 {
		return s.state.Cards[i], true
	}
	return Card{}, false
}

// ColumnIndex returns -1 when the column is unknown.
func (s *Store) ColumnIndex(id uint) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.columnIndex(id)
}

// CardIndex is the card's position in the flat card sequence, or -1.
func (s *Store) CardIndex(id uint) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.cardIndex(id)
}

// RankInColumn is the zero-based position of the card among the cards that
// share its column.
func (s *Store) RankInColumn(cardID uint) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.state.cardIndex(cardID)
	if i < 0 {
		return 0, false
	}
	columnID := s.state.Cards[i].ColumnID
	rank := 0
	for _, c := range s.state.Cards[:i] {
		if c.ColumnID == columnID {
			rank++
		}
	}
	return rank, true
}

// Board projects the store back into the nested shape the server serves.
func (s *Store) Board() []BoardColumn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]BoardColumn, 0, len(s.state.Columns))
	for _, col := range s.state.Columns {
		out = append(out, BoardColumn{Column: col, Cards: cardsIn(s.state, col.ID)})
	}
	return out
}
