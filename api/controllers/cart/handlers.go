package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/distribuida/libreria-backend/api/middleware"
	"github.com/distribuida/libreria-backend/api/responses"
	"github.com/distribuida/libreria-backend/api/validators"
	cartsvc "github.com/distribuida/libreria-backend/internal/cart"
	"github.com/distribuida/libreria-backend/pkg/db/models"
	pkgerrors "github.com/distribuida/libreria-backend/pkg/errors"
	"github.com/distribuida/libreria-backend/pkg/logger"
)

// CustomerCartFetch returns the active cart for a registered customer,
// creating it on first access.
func CustomerCartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.GetOrCreateByCustomer(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, record)
	}
}

// CustomerCartAddItem appends a book to the customer's cart.
func CustomerCartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bookID, quantity, err := decodeAddItem(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.AddItemByCustomer(r.Context(), customerID, bookID, quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, record)
	}
}

// CustomerCartUpdateItem replaces a line quantity; zero removes the line.
func CustomerCartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lineID, err := validators.ParsePathUUID(chi.URLParam(r, "lineID"), "lineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.UpdateItemQuantityByCustomer(r.Context(), customerID, lineID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, record)
	}
}

// CustomerCartRemoveItem drops a line from the customer's cart.
func CustomerCartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lineID, err := validators.ParsePathUUID(chi.URLParam(r, "lineID"), "lineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.RemoveItemByCustomer(r.Context(), customerID, lineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, record)
	}
}

// CustomerCartClear empties the customer's cart.
func CustomerCartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.ClearByCustomer(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, record)
	}
}

// GuestCartFetch returns (creating if needed) the guest cart for the token.
func GuestCartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := middleware.CartTokenFromContext(r.Context())

		record, err := svc.GetOrCreateByToken(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, record)
	}
}

// GuestCartAddItem appends a book to the guest cart.
func GuestCartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := middleware.CartTokenFromContext(r.Context())

		bookID, quantity, err := decodeAddItem(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.AddItemByToken(r.Context(), token, bookID, quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, record)
	}
}

// GuestCartUpdateItem replaces a line quantity on the guest cart.
func GuestCartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := middleware.CartTokenFromContext(r.Context())

		lineID, err := validators.ParsePathUUID(chi.URLParam(r, "lineID"), "lineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.UpdateItemQuantityByToken(r.Context(), token, lineID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, record)
	}
}

// GuestCartRemoveItem drops a line from the guest cart.
func GuestCartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := middleware.CartTokenFromContext(r.Context())

		lineID, err := validators.ParsePathUUID(chi.URLParam(r, "lineID"), "lineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.RemoveItemByToken(r.Context(), token, lineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, record)
	}
}

// GuestCartClear empties the guest cart.
func GuestCartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := middleware.CartTokenFromContext(r.Context())

		record, err := svc.ClearByToken(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, record)
	}
}

func customerIDFromPath(r *http.Request) (uuid.UUID, error) {
	return validators.ParsePathUUID(chi.URLParam(r, "customerID"), "customerID")
}

func decodeAddItem(r *http.Request) (uuid.UUID, int, error) {
	var payload addItemRequest
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return uuid.Nil, 0, err
	}
	bookID, err := uuid.Parse(payload.BookID)
	if err != nil {
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "book_id must be a uuid")
	}
	return bookID, payload.Quantity, nil
}

func writeCart(w http.ResponseWriter, record *models.Cart) {
	responses.WriteSuccess(w, newCartView(record))
}
