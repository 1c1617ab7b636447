package models

import "time"

// Card is a single task on the board. Its owner is the owner of the column it
// points at.
type Card struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ColumnID  uint      `json:"columnId" gorm:"index;not null"`
	Title     string    `json:"title" gorm:"size:200;not null"`
	Content   string    `json:"content"`
	Order     float64   `json:"order" gorm:"column:sort_order;not null;default:0"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Column *Column `json:"-" gorm:"foreignKey:ColumnID"`
}

// CardUpdate carries the mutable card fields; nil means unchanged.
type CardUpdate struct {
	Title    *string
	Content  *string
	ColumnID *uint
	Order    *float64
}

func (u CardUpdate) IsEmpty() bool {
	return u.Title == nil && u.Content == nil && u.ColumnID == nil && u.Order == nil
}
