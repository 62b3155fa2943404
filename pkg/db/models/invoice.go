package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoice is the immutable record of a completed checkout. Totals are copied
// verbatim from the cart at the moment of conversion and never recomputed.
type Invoice struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Number    string          `gorm:"column:number;uniqueIndex;not null" json:"number"`
	IssuedAt  time.Time       `gorm:"column:issued_at;not null" json:"issued_at"`
	Subtotal  decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	Discount  decimal.Decimal `gorm:"column:discount;type:numeric(12,2);not null" json:"discount"`
	Tax       decimal.Decimal `gorm:"column:tax;type:numeric(12,2);not null" json:"tax"`
	Total     decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	Lines     []InvoiceLine   `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"lines"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
