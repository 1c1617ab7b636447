package board

import "slices"

type Column struct {
	ID    uint    `json:"id"`
	Title string  `json:"title"`
	Order float64 `json:"order"`
}

type Card struct {
	ID       uint    `json:"id"`
	ColumnID uint    `json:"columnId"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Order    float64 `json:"order"`
}

// BoardColumn is a column as served by GET /columns, with its cards nested.
type BoardColumn struct {
	Column
	Cards []Card `json:"cards"`
}

// Flatten splits a board into the two sequences the store keeps. Cards take
// the column id of the column they are nested under.
func Flatten(columns []BoardColumn) ([]Column, []Card) {
	cols := make([]Column, 0, len(columns))
	cards := []Card{}
	for _, bc := range columns {
		cols = append(cols, bc.Column)
		for _, card := range bc.Cards {
			card.ColumnID = bc.ID
			cards = append(cards, card)
		}
	}
	return cols, cards
}

// State is an immutable view of the board. Mutations return a new State and
// never modify the slices they were given.
type State struct {
	Columns []Column
	Cards   []Card
}

func (s State) clone() State {
	return State{Columns: slices.Clone(s.Columns), Cards: slices.Clone(s.Cards)}
}

func (s State) columnIndex(id uint) int {
	return slices.IndexFunc(s.Columns, func(c Column) bool { return c.ID == id })
}

func (s State) cardIndex(id uint) int {
	return slices.IndexFunc(s.Cards, func(c Card) bool { return c.ID == id })
}

func (s State) hasColumn(id uint) bool {
	return s.columnIndex(id) >= 0
}

// consistent reports whether every card points at an existing column and no
// id appears twice.
func (s State) consistent() bool {
	columns := make(map[uint]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if _, dup := columns[c.ID]; dup {
			return false
		}
		columns[c.ID] = struct{}{}
	}
	cards := make(map[uint]struct{}, len(s.Cards))
	for _, c := range s.Cards {
		if _, ok := columns[c.ColumnID]; !ok {
			return false
		}
		if _, dup := cards[c.ID]; dup {
			return false
		}
		cards[c.ID] = struct{}{}
	}
	return true
}
