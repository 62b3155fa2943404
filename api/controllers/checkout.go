package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/distribuida/libreria-backend/api/middleware"
	"github.com/distribuida/libreria-backend/api/responses"
	"github.com/distribuida/libreria-backend/api/validators"
	"github.com/distribuida/libreria-backend/internal/checkout"
	"github.com/distribuida/libreria-backend/pkg/db/models"
	"github.com/distribuida/libreria-backend/pkg/logger"
)

// InvoiceView is the invoice snapshot exposed through the API. Money fields
// are fixed two-decimal strings.
type InvoiceView struct {
	ID       uuid.UUID         `json:"id"`
	Number   string            `json:"number"`
	IssuedAt time.Time         `json:"issued_at"`
	Subtotal string            `json:"subtotal"`
	Discount string            `json:"discount"`
	Tax      string            `json:"tax"`
	Total    string            `json:"total"`
	Lines    []InvoiceLineView `json:"lines"`
}

type InvoiceLineView struct {
	ID        uuid.UUID `json:"id"`
	BookID    uuid.UUID `json:"book_id"`
	BookTitle string    `json:"book_title"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	LineTotal string    `json:"line_total"`
}

// GuestCheckout converts the guest cart into an invoice.
func GuestCheckout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := middleware.CartTokenFromContext(r.Context())

		record, err := svc.CheckoutByToken(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newInvoiceView(record))
	}
}

// InvoiceFetch returns a stored invoice by id.
func InvoiceFetch(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "invoiceID"), "invoiceID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.GetInvoice(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInvoiceView(record))
	}
}

func newInvoiceView(record *models.Invoice) InvoiceView {
	view := InvoiceView{
		ID:       record.ID,
		Number:   record.Number,
		IssuedAt: record.IssuedAt,
		Subtotal: record.Subtotal.StringFixed(2),
		Discount: record.Discount.StringFixed(2),
		Tax:      record.Tax.StringFixed(2),
		Total:    record.Total.StringFixed(2),
		Lines:    make([]InvoiceLineView, 0, len(record.Lines)),
	}
	for _, line := range record.Lines {
		view.Lines = append(view.Lines, InvoiceLineView{
			ID:        line.ID,
			BookID:    line.BookID,
			BookTitle: line.BookTitle,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			LineTotal: line.LineTotal.StringFixed(2),
		})
	}
	return view
}
