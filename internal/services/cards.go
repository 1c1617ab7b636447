package services

import (
	"errors"
	"math"
	"strings"

	"kanban-board/internal/models"

	"gorm.io/gorm"
)

const maxSearchLength = 100

type CreateCardRequest struct {
	Title    string   `json:"title" binding:"required,max=200"`
	Content  string   `json:"content"`
	Order    *float64 `json:"order" binding:"required,min=0"`
	ColumnID uint     `json:"columnId" binding:"required"`
}

type UpdateCardRequest struct {
	Title    *string  `json:"title" binding:"omitempty,min=1,max=200"`
	Content  *string  `json:"content"`
	ColumnID *uint    `json:"columnId" binding:"omitempty,min=1"`
	Order    *float64 `json:"order" binding:"omitempty,min=0"`
}

func (r UpdateCardRequest) Update() models.CardUpdate {
	return models.CardUpdate{
		Title:    r.Title,
		Content:  r.Content,
		ColumnID: r.ColumnID,
		Order:    r.Order,
	}
}

type CardService interface {
	SearchCards(db *gorm.DB, userID uint, query string) ([]models.Card, error)
	CreateCard(db *gorm.DB, userID uint, req CreateCardRequest) (*models.Card, error)
	UpdateCard(db *gorm.DB, userID, id uint, update models.CardUpdate) (*models.Card, error)
	DeleteCard(db *gorm.DB, userID, id uint) (*models.Card, error)
}

type CardServiceImpl struct{}

func NewCardService() *CardServiceImpl {
	return &CardServiceImpl{}
}

// NormalizeSearch trims the query and caps it at 100 characters.
func NormalizeSearch(query string) string {
	query = strings.TrimSpace(query)
	if runes := []rune(query); len(runes) > maxSearchLength {
		query = string(runes[:maxSearchLength])
	}
	return query
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchCards lists the user's cards whose title or content contains the
// query. An empty query lists every card the user owns.
func (s *CardServiceImpl) SearchCards(db *gorm.DB, userID uint, query string) ([]models.Card, error) {
	owned := db.Model(&models.Column{}).Select("id").Where("user_id = ?", userID)
	q := db.Where("column_id IN (?)", owned)

	if term := NormalizeSearch(query); term != "" {
		pattern := "%" + likeEscaper.Replace(term) + "%"
		q = q.Where(`(title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	cards := []models.Card{}
	if err := q.Order("id asc").Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

func (s *CardServiceImpl) findColumn(db *gorm.DB, userID, columnID uint, target bool) (*models.Column, error) {
	label, denied := "Column", "You do not own this column"
	if target {
		label, denied = "Target column", "You do not own the target column"
	}

	var column models.Column
	if err := db.First(&column, columnID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("%s with ID %d not found", label, columnID)
		}
		return nil, err
	}
	if column.UserID != userID {
		return nil, forbidden(denied)
	}
	return &column, nil
}

func (s *CardServiceImpl) findOwnedCard(db *gorm.DB, userID, id uint) (*models.Card, error) {
	var card models.Card
	if err := db.Preload("Column").First(&card, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Card with ID %d not found", id)
		}
		return nil, err
	}
	if card.Column == nil || card.Column.UserID != userID {
		return nil, forbidden("You do not own this card")
	}
	return &card, nil
}

func (s *CardServiceImpl) CreateCard(db *gorm.DB, userID uint, req CreateCardRequest) (*models.Card, error) {
	if _, err := s.findColumn(db, userID, req.ColumnID, false); err != nil {
		return nil, err
	}

	card := models.Card{
		ColumnID: req.ColumnID,
		Title:    req.Title,
		Content:  req.Content,
	}
	if req.Order != nil {
		card.Order = *req.Order
	}

	if err := db.Create(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// UpdateCard applies a partial update. Moving to another column requires the
// target column to belong to the same user.
//
// An order is a position in the destination column: the card lands at that
// index and its siblings are renumbered 0..n-1 around it, so a drop never
// ties with the card it displaced.
func (s *CardServiceImpl) UpdateCard(db *gorm.DB, userID, id uint, update models.CardUpdate) (*models.Card, error) {
	card, err := s.findOwnedCard(db, userID, id)
	if err != nil {
		return nil, err
	}

	if update.ColumnID != nil && *update.ColumnID != card.ColumnID {
		if _, err := s.findColumn(db, userID, *update.ColumnID, true); err != nil {
			return nil, err
		}
	}

	changes := map[string]interface{}{}
	if update.Title != nil {
		changes["title"] = *update.Title
	}
	if update.Content != nil {
		changes["content"] = *update.Content
	}
	if update.ColumnID != nil {
		changes["column_id"] = *update.ColumnID
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if len(changes) > 0 {
			if err := tx.Model(&models.Card{}).Where("id = ?", id).Updates(changes).Error; err != nil {
				return err
			}
		}
		if update.Order == nil {
			return nil
		}
		columnID := card.ColumnID
		if update.ColumnID != nil {
			columnID = *update.ColumnID
		}
		return placeCard(tx, id, columnID, *update.Order)
	})
	if err != nil {
		return nil, err
	}

	var updated models.Card
	if err := db.First(&updated, id).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

func placeCard(tx *gorm.DB, id, columnID uint, order float64) error {
	var siblings []models.Card
	err := tx.Select("id", "sort_order").
		Where("column_id = ? AND id <> ?", columnID, id).
		Scopes(byBoardOrder).
		Find(&siblings).Error
	if err != nil {
		return err
	}

	rank := min(max(int(math.Floor(order)), 0), len(siblings))

	ordered := make([]models.Card, 0, len(siblings)+1)
	ordered = append(ordered, siblings[:rank]...)
	ordered = append(ordered, models.Card{ID: id, Order: -1})
	ordered = append(ordered, siblings[rank:]...)

	for i, c := range ordered {
		if c.Order == float64(i) {
			continue
		}
		if err := tx.Model(&models.Card{}).Where("id = ?", c.ID).Update("sort_order", float64(i)).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *CardServiceImpl) DeleteCard(db *gorm.DB, userID, id uint) (*models.Card, error) {
	card, err := s.findOwnedCard(db, userID, id)
	if err != nil {
		return nil, err
	}

	if err := db.Delete(&models.Card{}, id).Error; err != nil {
		return nil, err
	}
	card.Column = nil
	return card, nil
}
