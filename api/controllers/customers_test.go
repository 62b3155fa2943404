package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/distribuida/libreria-backend/pkg/db/models"
	pkgerrors "github.com/distribuida/libreria-backend/pkg/errors"
)

type stubDirectory struct {
	name  string
	email string
	err   error
}

func (s *stubDirectory) Register(ctx context.Context, name, email string) (*models.Customer, error) {
	s.name, s.email = name, email
	if s.err != nil {
		return nil, s.err
	}
	return &models.Customer{ID: uuid.New(), Name: name, Email: email}, nil
}

func (s *stubDirectory) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Customer{ID: id, Name: "Ana", Email: "ana@example.com"}, nil
}

func TestCustomerRegister(t *testing.T) {
	logg := testLogger()

	t.Run("success", func(t *testing.T) {
		stub := &stubDirectory{}
		body := `{"name":"  Ana Lucia  ","email":"ana@example.com"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", strings.NewReader(body))
		rec := httptest.NewRecorder()
		CustomerRegister(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.name != "Ana Lucia" {
			t.Fatalf("expected sanitized name, got %q", stub.name)
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", strings.NewReader(`{"name":"Ana","email":"not-an-email"}`))
		rec := httptest.NewRecorder()
		CustomerRegister(&stubDirectory{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("duplicate email maps to 409", func(t *testing.T) {
		stub := &stubDirectory{err: pkgerrors.New(pkgerrors.CodeConflict, "email already registered")}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", strings.NewReader(`{"name":"Ana","email":"ana@example.com"}`))
		rec := httptest.NewRecorder()
		CustomerRegister(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestCustomerFetchInvalidID(t *testing.T) {
	logg := testLogger()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers/nope", nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("customerID", "nope")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	rec := httptest.NewRecorder()
	CustomerFetch(&stubDirectory{}, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
