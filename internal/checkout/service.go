package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/distribuida/libreria-backend/internal/cart"
	"github.com/distribuida/libreria-backend/internal/catalog"
	"github.com/distribuida/libreria-backend/pkg/db"
	"github.com/distribuida/libreria-backend/pkg/db/models"
	pkgerrors "github.com/distribuida/libreria-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service converts a guest cart into an immutable invoice. The whole
// conversion runs in one transaction: stock validation, inventory decrement,
// invoice creation, and cart clearing either all land or none do.
type Service interface {
	CheckoutByToken(ctx context.Context, token string) (*models.Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

type service struct {
	tx       txRunner
	carts    *cart.Repository
	books    *catalog.Repository
	invoices *Repository
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(tx txRunner, carts *cart.Repository, books *catalog.Repository, invoices *Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if books == nil {
		return nil, fmt.Errorf("book repository required")
	}
	if invoices == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	return &service{
		tx:       tx,
		carts:    carts,
		books:    books,
		invoices: invoices,
		now:      time.Now,
	}, nil
}

func (s *service) CheckoutByToken(ctx context.Context, token string) (*models.Invoice, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart token is required")
	}

	var result *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts.WithTx(tx)
		bookRepo := s.books.WithTx(tx)
		invoiceRepo := s.invoices.WithTx(tx)

		record, err := cartRepo.FindByTokenForUpdate(ctx, token)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(record.Lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
		}

		// Every line is validated before anything is decremented, so a
		// shortfall on the last line cannot leave earlier books touched.
		titles := make(map[uuid.UUID]string, len(record.Lines))
		for _, line := range record.Lines {
			book, err := bookRepo.FindByID(ctx, line.BookID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "book no longer available")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
			}
			if book.AvailableCopies < line.Quantity {
				return insufficientStock(book.Title)
			}
			titles[book.ID] = book.Title
		}

		for _, line := range record.Lines {
			if err := bookRepo.DecrementCopies(ctx, line.BookID, line.Quantity); err != nil {
				// A concurrent checkout got there first; the guarded update
				// already re-checked availability, so this is a real shortfall.
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
					return insufficientStock(titles[line.BookID])
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
		}

		invoice, err := s.createInvoice(ctx, tx, invoiceRepo, record)
		if err != nil {
			return err
		}

		lines := make([]models.InvoiceLine, 0, len(record.Lines))
		for _, line := range record.Lines {
			lines = append(lines, models.InvoiceLine{
				InvoiceID: invoice.ID,
				BookID:    line.BookID,
				BookTitle: titles[line.BookID],
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				LineTotal: line.LineTotal,
			})
		}
		if err := invoiceRepo.CreateLines(ctx, lines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice lines")
		}
		invoice.Lines = lines

		if err := cartRepo.DeleteLinesByCart(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart lines")
		}
		record.Lines = nil
		record.Subtotal = decimal.Zero
		record.Discount = decimal.Zero
		record.Tax = decimal.Zero
		record.Total = decimal.Zero
		if _, err := cartRepo.Save(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
		}

		result = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// createInvoice copies the cart's stored totals verbatim. Second-resolution
// numbers can collide under concurrent checkouts; the unique constraint
// catches that and one retry with a random suffix resolves it. The insert is
// fenced with a savepoint so the collision does not poison the enclosing
// transaction.
func (s *service) createInvoice(ctx context.Context, tx *gorm.DB, repo *Repository, record *models.Cart) (*models.Invoice, error) {
	issuedAt := s.now()
	invoice := &models.Invoice{
		Number:   invoiceNumber(issuedAt),
		IssuedAt: issuedAt,
		Subtotal: record.Subtotal,
		Discount: record.Discount,
		Tax:      record.Tax,
		Total:    record.Total,
	}

	tx.SavePoint("invoice_number")
	created, err := repo.CreateInvoice(ctx, invoice)
	if err == nil {
		return created, nil
	}
	if !db.IsUniqueViolation(err, "") {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
	}
	tx.RollbackTo("invoice_number")

	invoice.ID = uuid.Nil
	invoice.Number = invoiceNumberSuffixed(issuedAt)
	created, err = repo.CreateInvoice(ctx, invoice)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
	}
	return created, nil
}

func (s *service) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	invoice, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	return invoice, nil
}

func insufficientStock(title string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("insufficient stock for: %s", title)).
		WithDetails(map[string]any{"book_title": title})
}
