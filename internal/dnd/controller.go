// Package dnd turns drag gestures over the board into store mutations and
// persistence calls.
//
// Only cross-column membership changes while a card is dragged. Position
// within a column is settled once, when the card is dropped, so hovering
// back and forth never reshuffles the column.
package dnd

import (
	"context"
	"errors"
	"sync"

	"kanban-board/internal/board"

	log "github.com/sirupsen/logrus"
)

type Kind int

const (
	KindNone Kind = iota
	KindColumn
	KindCard
)

func (k Kind) String() string {
	switch k {
	case KindColumn:
		return "column"
	case KindCard:
		return "card"
	default:
		return "none"
	}
}

// Item identifies a column or card under the pointer. The zero Item means
// nothing droppable.
type Item struct {
	Kind Kind
	ID   uint
}

var Nothing = Item{}

func Column(id uint) Item { return Item{Kind: KindColumn, ID: id} }
func Card(id uint) Item   { return Item{Kind: KindCard, ID: id} }

type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

var (
	ErrAlreadyDragging = errors.New("a drag is already in progress")
	ErrUnknownSubject  = errors.New("drag subject is not on the board")
)

// Mover persists a card's final placement.
type Mover interface {
	MoveCard(ctx context.Context, cardID, columnID uint, rank int) error
}

// ColumnOrderer persists the column sequence after a column drop.
type ColumnOrderer interface {
	PersistColumnOrder(ctx context.Context) error
}

type Controller struct {
	mu      sync.Mutex
	store   *board.Store
	mover   Mover
	orderer ColumnOrderer

	active       Item
	originColumn uint
	originRank   int
	overColumn   uint
}

// New builds a controller. orderer may be nil, in which case column drops
// only change local order.
func New(store *board.Store, mover Mover, orderer ColumnOrderer) *Controller {
	return &Controller{store: store, mover: mover, orderer: orderer}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active.Kind == KindNone {
		return Idle
	}
	return Dragging
}

// Active returns the item being dragged, for rendering a drag overlay.
func (c *Controller) Active() (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active.Kind != KindNone
}

// OverColumn is the column the dragged card currently belongs to, or 0.
func (c *Controller) OverColumn() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overColumn
}

func (c *Controller) DragStart(subject Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active.Kind != KindNone {
		return ErrAlreadyDragging
	}

	switch subject.Kind {
	case KindColumn:
		if _, ok := c.store.Column(subject.ID); !ok {
			return ErrUnknownSubject
		}
		c.originColumn = 0
	case KindCard:
		card, ok := c.store.Card(subject.ID)
		if !ok {
			return ErrUnknownSubject
		}
		c.originColumn = card.ColumnID
		c.originRank, _ = c.store.RankInColumn(card.ID)
	default:
		return ErrUnknownSubject
	}

	c.active = subject
	c.overColumn = 0
	return nil
}

// targetColumn resolves what column a drop target stands for.
func (c *Controller) targetColumn(target Item) (uint, bool) {
	switch target.Kind {
	case KindColumn:
		if _, ok := c.store.Column(target.ID); ok {
			return target.ID, true
		}
	case KindCard:
		if card, ok := c.store.Card(target.ID); ok {
			return card.ColumnID, true
		}
	}
	return 0, false
}

// DragOver re-parents a dragged card when it hovers another column. It never
// changes a card's position and ignores column drags.
func (c *Controller) DragOver(target Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active.Kind != KindCard || target == c.active {
		return
	}
	columnID, ok := c.targetColumn(target)
	if !ok {
		return
	}

	card, ok := c.store.Card(c.active.ID)
	if !ok {
		return
	}
	if card.ColumnID != columnID {
		c.store.ApplyLocal(board.SetCardColumn(card.ID, columnID))
	}
	c.overColumn = columnID
}

// Cancel aborts the drag and puts a dragged card back in the column it
// started in.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abort()
}

func (c *Controller) abort() {
	if c.active.Kind == KindCard && c.originColumn != 0 {
		c.store.ApplyLocal(board.SetCardColumn(c.active.ID, c.originColumn))
	}
	c.reset()
}

func (c *Controller) reset() {
	c.active = Nothing
	c.originColumn = 0
	c.originRank = 0
	c.overColumn = 0
}

// DragEnd settles the drop. Releasing over nothing aborts the drag. A card
// that ends up somewhere new is persisted through the mover; its error is
// returned unchanged and the local placement is kept either way.
func (c *Controller) DragEnd(ctx context.Context, target Item) error {
	c.mu.Lock()
	subject := c.active
	if subject.Kind == KindNone {
		c.mu.Unlock()
		return nil
	}
	if target.Kind == KindNone {
		c.abort()
		c.mu.Unlock()
		return nil
	}

	var persist func(context.Context) error
	switch subject.Kind {
	case KindColumn:
		persist = c.dropColumn(subject.ID, target)
	case KindCard:
		persist = c.dropCard(subject.ID, target)
	}
	c.reset()
	c.mu.Unlock()

	if persist == nil {
		return nil
	}
	return persist(ctx)
}

func (c *Controller) dropColumn(columnID uint, target Item) func(context.Context) error {
	targetID, ok := c.targetColumn(target)
	if !ok {
		return nil
	}
	from, to := c.store.ColumnIndex(columnID), c.store.ColumnIndex(targetID)
	if from < 0 || to < 0 || from == to {
		return nil
	}

	c.store.ApplyLocal(board.MoveColumn(from, to))
	log.WithFields(log.Fields{"column_id": columnID, "from": from, "to": to}).Debug("column dropped")

	if c.orderer == nil {
		return nil
	}
	return c.orderer.PersistColumnOrder
}

func (c *Controller) dropCard(cardID uint, target Item) func(context.Context) error {
	columnID, ok := c.targetColumn(target)
	if !ok {
		c.abort()
		return nil
	}

	toIndex := c.store.CardIndex(cardID)
	if target.Kind == KindCard && target.ID != cardID {
		toIndex = c.store.CardIndex(target.ID)
	}
	c.store.ApplyLocal(board.MoveCard(cardID, toIndex, columnID))

	card, ok := c.store.Card(cardID)
	if !ok {
		return nil
	}
	rank, _ := c.store.RankInColumn(cardID)
	if card.ColumnID == c.originColumn && rank == c.originRank {
		return nil
	}
	log.WithFields(log.Fields{"card_id": cardID, "column_id": card.ColumnID, "rank": rank}).Debug("card dropped")

	return func(ctx context.Context) error {
		return c.mover.MoveCard(ctx, cardID, card.ColumnID, rank)
	}
}
