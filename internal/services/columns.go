package services

import (
	"errors"

	"kanban-board/internal/models"

	"gorm.io/gorm"
)

type CreateColumnRequest struct {
	Title string   `json:"title" binding:"required,max=100"`
	Order *float64 `json:"order" binding:"required,min=0"`
}

type UpdateColumnRequest struct {
	Title *string  `json:"title" binding:"omitempty,min=1,max=100"`
	Order *float64 `json:"order" binding:"omitempty,min=0"`
}

func (r UpdateColumnRequest) Update() models.ColumnUpdate {
	return models.ColumnUpdate{Title: r.Title, Order: r.Order}
}

type ColumnService interface {
	GetBoard(db *gorm.DB, userID uint) ([]models.Column, error)
	CreateColumn(db *gorm.DB, userID uint, req CreateColumnRequest) (*models.Column, error)
	UpdateColumn(db *gorm.DB, userID, id uint, update models.ColumnUpdate) (*models.Column, error)
	DeleteColumn(db *gorm.DB, userID, id uint) (*models.Column, error)
}

type ColumnServiceImpl struct{}

func NewColumnService() *ColumnServiceImpl {
	return &ColumnServiceImpl{}
}

func byBoardOrder(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order asc").Order("id asc")
}

// GetBoard returns the user's columns in board order, each with its cards in
// column order.
func (s *ColumnServiceImpl) GetBoard(db *gorm.DB, userID uint) ([]models.Column, error) {
	columns := []models.Column{}
	err := db.Where("user_id = ?", userID).
		Preload("Cards", byBoardOrder).
		Scopes(byBoardOrder).
		Find(&columns).Error
	if err != nil {
		return nil, err
	}

	for i := range columns {
		if columns[i].Cards == nil {
			columns[i].Cards = []models.Card{}
		}
	}
	return columns, nil
}

func (s *ColumnServiceImpl) CreateColumn(db *gorm.DB, userID uint, req CreateColumnRequest) (*models.Column, error) {
	column := models.Column{
		UserID: userID,
		Title:  req.Title,
	}
	if req.Order != nil {
		column.Order = *req.Order
	}

	if err := db.Create(&column).Error; err != nil {
		return nil, err
	}
	column.Cards = []models.Card{}
	return &column, nil
}

func (s *ColumnServiceImpl) findOwnedColumn(db *gorm.DB, userID, id uint) (*models.Column, error) {
	var column models.Column
	if err := db.First(&column, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Column with ID %d not found", id)
		}
		return nil, err
	}
	if column.UserID != userID {
		return nil, forbidden("You do not own this column")
	}
	return &column, nil
}

func (s *ColumnServiceImpl) UpdateColumn(db *gorm.DB, userID, id uint, update models.ColumnUpdate) (*models.Column, error) {
	column, err := s.findOwnedColumn(db, userID, id)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return column, nil
	}

	changes := map[string]interface{}{}
	if update.Title != nil {
		changes["title"] = *update.Title
	}
	if update.Order != nil {
		changes["sort_order"] = *update.Order
	}

	if err := db.Model(column).Updates(changes).Error; err != nil {
		return nil, err
	}
	if err := db.First(column, id).Error; err != nil {
		return nil, err
	}
	return column, nil
}

// DeleteColumn removes the column and every card in it.
func (s *ColumnServiceImpl) DeleteColumn(db *gorm.DB, userID, id uint) (*models.Column, error) {
	column, err := s.findOwnedColumn(db, userID, id)
	if err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("column_id = ?", id).Delete(&models.Card{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Column{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	return column, nil
}
