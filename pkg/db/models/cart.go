package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart holds the pre-purchase line items for exactly one identity: a
// registered customer or an anonymous token, never both. The monetary fields
// are derived from the lines and recomputed on every mutation; they are
// persisted only so reads do not have to re-derive them.
type Cart struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CustomerID *uuid.UUID      `gorm:"column:customer_id;type:uuid;uniqueIndex" json:"customer_id,omitempty"`
	Token      *string         `gorm:"column:token;uniqueIndex" json:"token,omitempty"`
	Subtotal   decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	Discount   decimal.Decimal `gorm:"column:discount;type:numeric(12,2);not null" json:"discount"`
	Tax        decimal.Decimal `gorm:"column:tax;type:numeric(12,2);not null" json:"tax"`
	Total      decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	Lines      []CartLine      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"lines"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
