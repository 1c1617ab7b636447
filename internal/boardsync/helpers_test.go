package boardsync_test

import (
	"strconv"

	"kanban-board/internal/apiclient"
	"kanban-board/internal/board"
)

func cardIDs(cards []board.Card) []uint {
	ids := make([]uint, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	return ids
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func apiNewColumn(title string, order float64) apiclient.NewColumn {
	return apiclient.NewColumn{Title: title, Order: order}
}
