package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Book is a catalog entry. AvailableCopies is only ever decremented by the
// checkout transaction, never by cart mutations.
type Book struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Title           string          `gorm:"column:title;not null" json:"title"`
	Author          string          `gorm:"column:author" json:"author"`
	Price           decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	AvailableCopies int             `gorm:"column:available_copies;not null;default:0" json:"available_copies"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
