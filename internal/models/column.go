package models

import "time"

type Column struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"index;not null"`
	Title     string    `json:"title" gorm:"size:100;not null"`
	Order     float64   `json:"order" gorm:"column:sort_order;not null;default:0"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Cards []Card `json:"cards" gorm:"foreignKey:ColumnID;constraint:OnDelete:CASCADE"`
}

// ColumnUpdate carries the mutable column fields; nil means unchanged.
type ColumnUpdate struct {
	Title *string
	Order *float64
}

func (u ColumnUpdate) IsEmpty() bool {
	return u.Title == nil && u.Order == nil
}
