package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/distribuida/libreria-backend/internal/catalog"
	"github.com/distribuida/libreria-backend/internal/checkout"
	"github.com/distribuida/libreria-backend/pkg/config"
	"github.com/distribuida/libreria-backend/pkg/db/models"
	pkgerrors "github.com/distribuida/libreria-backend/pkg/errors"
	"github.com/distribuida/libreria-backend/pkg/logger"
	"github.com/distribuida/libreria-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubCatalogService struct{}

func (stubCatalogService) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
}

func (stubCatalogService) ListBooks(ctx context.Context, limit, offset int) ([]models.Book, error) {
	return []models.Book{{ID: uuid.New(), Title: "Dune", Price: decimal.New(10, 0)}}, nil
}

func (stubCatalogService) CreateBook(ctx context.Context, input catalog.BookInput) (*models.Book, error) {
	return &models.Book{ID: uuid.New(), Title: input.Title, Price: input.Price}, nil
}

func (stubCatalogService) UpdateBook(ctx context.Context, id uuid.UUID, patch catalog.BookPatch) (*models.Book, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
}

type stubCustomerDirectory struct{}

func (stubCustomerDirectory) Register(ctx context.Context, name, email string) (*models.Customer, error) {
	return &models.Customer{ID: uuid.New(), Name: name, Email: email}, nil
}

func (stubCustomerDirectory) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
}

type stubCartService struct{}

func (stubCartService) emptyCart(token string) *models.Cart {
	return &models.Cart{ID: uuid.New(), Token: &token}
}

func (s stubCartService) GetOrCreateByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	return &models.Cart{ID: uuid.New(), CustomerID: &customerID}, nil
}

func (s stubCartService) GetOrCreateByToken(ctx context.Context, token string) (*models.Cart, error) {
	return s.emptyCart(token), nil
}

func (s stubCartService) GetCartByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
}

func (s stubCartService) GetCartByToken(ctx context.Context, token string) (*models.Cart, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
}

func (s stubCartService) AddItemByCustomer(ctx context.Context, customerID, bookID uuid.UUID, quantity int) (*models.Cart, error) {
	return &models.Cart{ID: uuid.New(), CustomerID: &customerID}, nil
}

func (s stubCartService) AddItemByToken(ctx context.Context, token string, bookID uuid.UUID, quantity int) (*models.Cart, error) {
	return s.emptyCart(token), nil
}

func (s stubCartService) UpdateItemQuantityByCustomer(ctx context.Context, customerID, lineID uuid.UUID, quantity int) (*models.Cart, error) {
	return &models.Cart{ID: uuid.New(), CustomerID: &customerID}, nil
}

func (s stubCartService) UpdateItemQuantityByToken(ctx context.Context, token string, lineID uuid.UUID, quantity int) (*models.Cart, error) {
	return s.emptyCart(token), nil
}

func (s stubCartService) RemoveItemByCustomer(ctx context.Context, customerID, lineID uuid.UUID) (*models.Cart, error) {
	return &models.Cart{ID: uuid.New(), CustomerID: &customerID}, nil
}

func (s stubCartService) RemoveItemByToken(ctx context.Context, token string, lineID uuid.UUID) (*models.Cart, error) {
	return s.emptyCart(token), nil
}

func (s stubCartService) ClearByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	return &models.Cart{ID: uuid.New(), CustomerID: &customerID}, nil
}

func (s stubCartService) ClearByToken(ctx context.Context, token string) (*models.Cart, error) {
	return s.emptyCart(token), nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) CheckoutByToken(ctx context.Context, token string) (*models.Invoice, error) {
	return &models.Invoice{ID: uuid.New(), Number: "F-20250610093000", IssuedAt: time.Now()}, nil
}

func (stubCheckoutService) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
}

var _ checkout.Service = stubCheckoutService{}

func newTestRouter() http.Handler {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	return NewRouter(Dependencies{
		Config:    cfg,
		Logger:    logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}),
		DB:        stubPinger{},
		Cache:     stubPinger{},
		Catalog:   stubCatalogService{},
		Customers: stubCustomerDirectory{},
		Carts:     stubCartService{},
		Checkout:  stubCheckoutService{},
	})
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter()

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
		if rec.Header().Get("X-Libreria-Env") != "test" {
			t.Fatalf("%s: env header missing", path)
		}
	}
}

func TestBookListRoute(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/books", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data == nil {
		t.Fatalf("expected data payload")
	}
}

func TestGuestRoutesRequireToken(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/guest/cart", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without token, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/guest/cart?token=g1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
}

func TestGuestCheckoutRoute(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/guest/checkout?token=g1", strings.NewReader(""))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nothing-here", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestInvoiceFetchRoute(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from stub, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}
