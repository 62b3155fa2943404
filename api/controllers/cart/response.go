package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/distribuida/libreria-backend/pkg/db/models"
)

// CartView is the cart snapshot exposed through the API. Money fields are
// fixed two-decimal strings.
type CartView struct {
	ID         uuid.UUID      `json:"id"`
	CustomerID *uuid.UUID     `json:"customer_id,omitempty"`
	Token      *string        `json:"token,omitempty"`
	Subtotal   string         `json:"subtotal"`
	Discount   string         `json:"discount"`
	Tax        string         `json:"tax"`
	Total      string         `json:"total"`
	Lines      []CartLineView `json:"lines"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// CartLineView describes one line of the cart snapshot.
type CartLineView struct {
	ID        uuid.UUID `json:"id"`
	BookID    uuid.UUID `json:"book_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	LineTotal string    `json:"line_total"`
}

func newCartView(record *models.Cart) CartView {
	view := CartView{
		ID:         record.ID,
		CustomerID: record.CustomerID,
		Token:      record.Token,
		Subtotal:   record.Subtotal.StringFixed(2),
		Discount:   record.Discount.StringFixed(2),
		Tax:        record.Tax.StringFixed(2),
		Total:      record.Total.StringFixed(2),
		Lines:      make([]CartLineView, 0, len(record.Lines)),
		UpdatedAt:  record.UpdatedAt,
	}
	for _, line := range record.Lines {
		view.Lines = append(view.Lines, CartLineView{
			ID:        line.ID,
			BookID:    line.BookID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			LineTotal: line.LineTotal.StringFixed(2),
		})
	}
	return view
}
