package board

import "slices"

// Mutation is a pure function over the board. A mutation that cannot apply
// returns its input unchanged.
type Mutation func(State) State

func InsertColumn(column Column) Mutation {
	return func(s State) State {
		if s.hasColumn(column.ID) {
			return s
		}
		next := s.clone()
		next.Columns = append(next.Columns, column)
		return next
	}
}

func InsertCard(card Card) Mutation {
	return func(s State) State {
		if !s.hasColumn(card.ColumnID) || s.cardIndex(card.ID) >= 0 {
			return s
		}
		next := s.clone()
		next.Cards = append(next.Cards, card)
		return next
	}
}

// RemoveColumn drops the column and every card in it.
func RemoveColumn(id uint) Mutation {
	return func(s State) State {
		if !s.hasColumn(id) {
			return s
		}
		next := State{
			Columns: slices.DeleteFunc(slices.Clone(s.Columns), func(c Column) bool { return c.ID == id }),
			Cards:   slices.DeleteFunc(slices.Clone(s.Cards), func(c Card) bool { return c.ColumnID == id }),
		}
		return next
	}
}

func RemoveCard(id uint) Mutation {
	return func(s State) State {
		if s.cardIndex(id) < 0 {
			return s
		}
		next := s.clone()
		next.Cards = slices.DeleteFunc(next.Cards, func(c Card) bool { return c.ID == id })
		return next
	}
}

func UpdateColumn(id uint, patch ColumnPatch) Mutation {
	return func(s State) State {
		i := s.columnIndex(id)
		if i < 0 {
			return s
		}
		next := s.clone()
		patch.apply(&next.Columns[i])
		return next
	}
}

func UpdateCard(id uint, patch CardPatch) Mutation {
	return func(s State) State {
		i := s.cardIndex(id)
		if i < 0 {
			return s
		}
		if patch.ColumnID != nil && !s.hasColumn(*patch.ColumnID) {
			return s
		}
		next := s.clone()
		patch.apply(&next.Cards[i])
		return next
	}
}

// MoveColumn moves the column at index from to index to, shifting the
// columns in between.
func MoveColumn(from, to int) Mutation {
	return func(s State) State {
		if from == to || !inRange(from, len(s.Columns)) || !inRange(to, len(s.Columns)) {
			return s
		}
		next := s.clone()
		next.Columns = arrayMove(next.Columns, from, to)
		return next
	}
}

// MoveCard moves the card to index toIndex of the flat card sequence. A
// non-zero columnID also re-parents it.
func MoveCard(id uint, toIndex int, columnID uint) Mutation {
	return func(s State) State {
		from := s.cardIndex(id)
		if from < 0 || !inRange(toIndex, len(s.Cards)) {
			return s
		}
		if columnID != 0 && !s.hasColumn(columnID) {
			return s
		}
		next := s.clone()
		if columnID != 0 {
			next.Cards[from].ColumnID = columnID
		}
		next.Cards = arrayMove(next.Cards, from, toIndex)
		return next
	}
}

// SetCardColumn re-parents the card without changing its position.
func SetCardColumn(id, columnID uint) Mutation {
	return func(s State) State {
		i := s.cardIndex(id)
		if i < 0 || !s.hasColumn(columnID) || s.Cards[i].ColumnID == columnID {
			return s
		}
		next := s.clone()
		next.Cards[i].ColumnID = columnID
		return next
	}
}

// RenumberCards sets each card's order in the column to its rank, the way
// the server stores a drop.
func RenumberCards(columnID uint) Mutation {
	return func(s State) State {
		if !s.hasColumn(columnID) {
			return s
		}
		next := s.clone()
		rank := 0
		for i := range next.Cards {
			if next.Cards[i].ColumnID != columnID {
				continue
			}
			next.Cards[i].Order = float64(rank)
			rank++
		}
		return next
	}
}

func inRange(i, n int) bool {
	return i >= 0 && i < n
}

func arrayMove[T any](items []T, from, to int) []T {
	item := items[from]
	items = slices.Delete(items, from, from+1)
	return slices.Insert(items, to, item)
}
