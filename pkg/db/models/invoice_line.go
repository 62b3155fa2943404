package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceLine snapshots one cart line at checkout time. It references the
// book for reporting but must not change when the book or cart later change.
type InvoiceLine struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InvoiceID uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index" json:"invoice_id"`
	BookID    uuid.UUID       `gorm:"column:book_id;type:uuid;not null" json:"book_id"`
	BookTitle string          `gorm:"column:book_title;not null" json:"book_title"`
	Quantity  int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null" json:"line_total"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (l *InvoiceLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
