package checkout

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/distribuida/libreria-backend/internal/cart"
	"github.com/distribuida/libreria-backend/internal/catalog"
	"github.com/distribuida/libreria-backend/internal/customers"
	"github.com/distribuida/libreria-backend/internal/pricing"
	"github.com/distribuida/libreria-backend/pkg/db/models"
	pkgerrors "github.com/distribuida/libreria-backend/pkg/errors"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fixture struct {
	db       *gorm.DB
	carts    cart.Service
	checkout Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Book{}, &models.Customer{},
		&models.Cart{}, &models.CartLine{},
		&models.Invoice{}, &models.InvoiceLine{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	policy, err := pricing.NewPolicy(pricing.DefaultTaxRate)
	if err != nil {
		t.Fatalf("build policy: %v", err)
	}
	cartRepo := cart.NewRepository(db)
	bookRepo := catalog.NewRepository(db)
	runner := testTxRunner{db: db}

	carts, err := cart.NewService(cartRepo, runner, bookRepo, customers.NewRepository(db), policy)
	if err != nil {
		t.Fatalf("build cart service: %v", err)
	}
	checkout, err := NewService(runner, cartRepo, bookRepo, NewRepository(db))
	if err != nil {
		t.Fatalf("build checkout service: %v", err)
	}
	return &fixture{db: db, carts: carts, checkout: checkout}
}

func (f *fixture) seedBook(t *testing.T, title, price string, copies int) *models.Book {
	t.Helper()
	book := &models.Book{
		Title:           title,
		Author:          "test author",
		Price:           decimal.RequireFromString(price),
		AvailableCopies: copies,
	}
	if err := f.db.Create(book).Error; err != nil {
		t.Fatalf("seed book: %v", err)
	}
	return book
}

func (f *fixture) bookCopies(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var book models.Book
	if err := f.db.First(&book, "id = ?", id).Error; err != nil {
		t.Fatalf("load book: %v", err)
	}
	return book.AvailableCopies
}

var invoiceNumberRe = regexp.MustCompile(`^F-\d{14}(-[0-9a-f]{6})?$`)

func TestCheckoutHappyPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	bookA := f.seedBook(t, "Dune", "10.00", 5)
	bookB := f.seedBook(t, "Neuromancer", "5.00", 5)

	if _, err := f.carts.AddItemByToken(ctx, "guest-ok", bookA.ID, 2); err != nil {
		t.Fatalf("add a: %v", err)
	}
	before, err := f.carts.AddItemByToken(ctx, "guest-ok", bookB.ID, 1)
	if err != nil {
		t.Fatalf("add b: %v", err)
	}

	invoice, err := f.checkout.CheckoutByToken(ctx, "guest-ok")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if !invoiceNumberRe.MatchString(invoice.Number) {
		t.Fatalf("unexpected invoice number %q", invoice.Number)
	}
	if invoice.IssuedAt.IsZero() || time.Since(invoice.IssuedAt) > time.Minute {
		t.Fatalf("unexpected issued_at %v", invoice.IssuedAt)
	}
	if !invoice.Subtotal.Equal(before.Subtotal) ||
		!invoice.Tax.Equal(before.Tax) ||
		!invoice.Total.Equal(before.Total) {
		t.Fatalf("invoice totals %s/%s/%s disagree with cart %s/%s/%s",
			invoice.Subtotal, invoice.Tax, invoice.Total,
			before.Subtotal, before.Tax, before.Total)
	}
	if len(invoice.Lines) != 2 {
		t.Fatalf("expected 2 invoice lines, got %d", len(invoice.Lines))
	}
	for _, line := range invoice.Lines {
		if line.BookTitle == "" {
			t.Fatalf("invoice line missing title snapshot: %+v", line)
		}
	}

	// Stock decremented.
	if got := f.bookCopies(t, bookA.ID); got != 3 {
		t.Fatalf("expected 3 copies of a, got %d", got)
	}
	if got := f.bookCopies(t, bookB.ID); got != 4 {
		t.Fatalf("expected 4 copies of b, got %d", got)
	}

	// Cart emptied with zeroed totals.
	after, err := f.carts.GetCartByToken(ctx, "guest-ok")
	if err != nil {
		t.Fatalf("reload cart: %v", err)
	}
	if len(after.Lines) != 0 {
		t.Fatalf("cart not emptied, %d lines remain", len(after.Lines))
	}
	if !after.Total.Equal(decimal.Zero) || !after.Subtotal.Equal(decimal.Zero) {
		t.Fatalf("cart totals not zeroed: %+v", after)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.carts.GetOrCreateByToken(ctx, "guest-empty"); err != nil {
		t.Fatalf("create cart: %v", err)
	}

	_, err := f.checkout.CheckoutByToken(ctx, "guest-empty")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCheckoutUnknownToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.checkout.CheckoutByToken(context.Background(), "guest-missing")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCheckoutBlankToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.checkout.CheckoutByToken(context.Background(), "  ")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckoutInsufficientStockLeavesEverythingUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	plenty := f.seedBook(t, "Dune", "10.00", 10)
	scarce := f.seedBook(t, "Rare Print", "50.00", 1)

	if _, err := f.carts.AddItemByToken(ctx, "guest-short", plenty.ID, 2); err != nil {
		t.Fatalf("add plenty: %v", err)
	}
	if _, err := f.carts.AddItemByToken(ctx, "guest-short", scarce.ID, 2); err != nil {
		t.Fatalf("add scarce: %v", err)
	}

	_, err := f.checkout.CheckoutByToken(ctx, "guest-short")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if typed.Message() != "insufficient stock for: Rare Print" {
		t.Fatalf("unexpected message %q", typed.Message())
	}

	// No partial effects: stock and cart intact, no invoice stored.
	if got := f.bookCopies(t, plenty.ID); got != 10 {
		t.Fatalf("plenty stock touched: %d", got)
	}
	if got := f.bookCopies(t, scarce.ID); got != 1 {
		t.Fatalf("scarce stock touched: %d", got)
	}
	record, err := f.carts.GetCartByToken(ctx, "guest-short")
	if err != nil {
		t.Fatalf("reload cart: %v", err)
	}
	if len(record.Lines) != 2 {
		t.Fatalf("cart lines lost: %d", len(record.Lines))
	}
	var invoices int64
	if err := f.db.Model(&models.Invoice{}).Count(&invoices).Error; err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if invoices != 0 {
		t.Fatalf("expected no invoice, found %d", invoices)
	}
}

func TestCheckoutVanishedBook(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	book := f.seedBook(t, "Dune", "10.00", 5)
	if _, err := f.carts.AddItemByToken(ctx, "guest-gone", book.ID, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.db.Delete(&models.Book{}, "id = ?", book.ID).Error; err != nil {
		t.Fatalf("delete book: %v", err)
	}

	_, err := f.checkout.CheckoutByToken(ctx, "guest-gone")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCompetingCheckoutsCannotOversell(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	book := f.seedBook(t, "Dune", "10.00", 5)

	if _, err := f.carts.AddItemByToken(ctx, "guest-first", book.ID, 3); err != nil {
		t.Fatalf("fill first cart: %v", err)
	}
	if _, err := f.carts.AddItemByToken(ctx, "guest-second", book.ID, 3); err != nil {
		t.Fatalf("fill second cart: %v", err)
	}

	if _, err := f.checkout.CheckoutByToken(ctx, "guest-first"); err != nil {
		t.Fatalf("first checkout: %v", err)
	}

	_, err := f.checkout.CheckoutByToken(ctx, "guest-second")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for second checkout, got %v", err)
	}

	if got := f.bookCopies(t, book.ID); got != 2 {
		t.Fatalf("expected 2 copies left, got %d", got)
	}
}

func TestInvoiceNumberCollisionRetries(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	book := f.seedBook(t, "Dune", "10.00", 10)

	fixed := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)
	svc := f.checkout.(*service)
	svc.now = func() time.Time { return fixed }

	if _, err := f.carts.AddItemByToken(ctx, "guest-c1", book.ID, 1); err != nil {
		t.Fatalf("fill first cart: %v", err)
	}
	if _, err := f.carts.AddItemByToken(ctx, "guest-c2", book.ID, 1); err != nil {
		t.Fatalf("fill second cart: %v", err)
	}

	first, err := f.checkout.CheckoutByToken(ctx, "guest-c1")
	if err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	second, err := f.checkout.CheckoutByToken(ctx, "guest-c2")
	if err != nil {
		t.Fatalf("second checkout: %v", err)
	}

	if first.Number != "F-20250610093000" {
		t.Fatalf("unexpected first number %q", first.Number)
	}
	if second.Number == first.Number {
		t.Fatalf("invoice numbers collided")
	}
	if !invoiceNumberRe.MatchString(second.Number) {
		t.Fatalf("unexpected retry number %q", second.Number)
	}
}

func TestGetInvoice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	book := f.seedBook(t, "Dune", "10.00", 5)
	if _, err := f.carts.AddItemByToken(ctx, "guest-get", book.ID, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	created, err := f.checkout.CheckoutByToken(ctx, "guest-get")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	loaded, err := f.checkout.GetInvoice(ctx, created.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if loaded.Number != created.Number || len(loaded.Lines) != 1 {
		t.Fatalf("unexpected invoice %+v", loaded)
	}

	if _, err := f.checkout.GetInvoice(ctx, uuid.New()); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.checkout.GetInvoice(ctx, uuid.Nil); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
