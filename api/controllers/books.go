package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/distribuida/libreria-backend/api/responses"
	"github.com/distribuida/libreria-backend/api/validators"
	"github.com/distribuida/libreria-backend/internal/catalog"
	pkgerrors "github.com/distribuida/libreria-backend/pkg/errors"
	"github.com/distribuida/libreria-backend/pkg/logger"
)

type bookCreateRequest struct {
	Title           string `json:"title" validate:"required,max=255"`
	Author          string `json:"author" validate:"max=255"`
	Price           string `json:"price" validate:"required"`
	AvailableCopies int    `json:"available_copies" validate:"gte=0"`
}

type bookUpdateRequest struct {
	Title           *string `json:"title,omitempty" validate:"omitempty,max=255"`
	Author          *string `json:"author,omitempty" validate:"omitempty,max=255"`
	Price           *string `json:"price,omitempty"`
	AvailableCopies *int    `json:"available_copies,omitempty" validate:"omitempty,gte=0"`
}

// BookList returns a page of the catalog.
func BookList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 25, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<20)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := svc.ListBooks(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, records)
	}
}

func BookFetch(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "bookID"), "bookID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.GetBook(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func BookCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload bookCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := parsePrice(payload.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.CreateBook(r.Context(), catalog.BookInput{
			Title:           validators.SanitizeString(payload.Title, 255),
			Author:          validators.SanitizeString(payload.Author, 255),
			Price:           price,
			AvailableCopies: payload.AvailableCopies,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

func BookUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "bookID"), "bookID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload bookUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		patch := catalog.BookPatch{
			Title:           payload.Title,
			Author:          payload.Author,
			AvailableCopies: payload.AvailableCopies,
		}
		if payload.Price != nil {
			price, err := parsePrice(*payload.Price)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			patch.Price = &price
		}

		record, err := svc.UpdateBook(r.Context(), id, patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "price must be a decimal string")
	}
	if price.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	return price, nil
}
