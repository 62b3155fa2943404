package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/distribuida/libreria-backend/api/responses"
	"github.com/distribuida/libreria-backend/api/validators"
	"github.com/distribuida/libreria-backend/pkg/db/models"
	"github.com/distribuida/libreria-backend/pkg/logger"
)

// CustomerDirectory is the customer surface the API depends on.
type CustomerDirectory interface {
	Register(ctx context.Context, name, email string) (*models.Customer, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

type customerRegisterRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
}

func CustomerRegister(directory CustomerDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload customerRegisterRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := directory.Register(r.Context(),
			validators.SanitizeString(payload.Name, 255),
			validators.SanitizeString(payload.Email, 255))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

func CustomerFetch(directory CustomerDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "customerID"), "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := directory.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}
