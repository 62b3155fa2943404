package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/distribuida/libreria-backend/pkg/db/models"
)

// Repository encapsulates cart and cart-line persistence. Mutating flows lock
// the cart row so concurrent requests against the same identity serialize.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// lockRows adds FOR UPDATE on dialects that support it. SQLite (tests)
// serializes writers on its own.
func (r *Repository) lockRows(q *gorm.DB) *gorm.DB {
	if r.db.Dialector.Name() == "postgres" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

// FindByCustomer returns the customer's cart or gorm.ErrRecordNotFound.
func (r *Repository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("customer_id = ?", customerID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByCustomerForUpdate locks and returns the customer's cart.
func (r *Repository) FindByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.lockRows(r.db.WithContext(ctx)).
		Where("customer_id = ?", customerID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByToken returns the guest cart or gorm.ErrRecordNotFound.
func (r *Repository) FindByToken(ctx context.Context, token string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("token = ?", token).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByTokenForUpdate locks and returns the guest cart.
func (r *Repository) FindByTokenForUpdate(ctx context.Context, token string) (*models.Cart, error) {
	var cart models.Cart
	err := r.lockRows(r.db.WithContext(ctx)).
		Where("token = ?", token).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// Preload does not compose with row locks, so locked reads fetch lines with a
// second query inside the same transaction.
func (r *Repository) loadLines(ctx context.Context, cart *models.Cart) error {
	var lines []models.CartLine
	if err := r.db.WithContext(ctx).Where("cart_id = ?", cart.ID).Find(&lines).Error; err != nil {
		return err
	}
	cart.Lines = lines
	return nil
}

// Create inserts the provided cart.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// Save persists the cart's own columns (not its lines).
func (r *Repository) Save(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Omit("Lines").Save(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// FindLineByCartAndBook returns the line for a book within a cart, or
// gorm.ErrRecordNotFound.
func (r *Repository) FindLineByCartAndBook(ctx context.Context, cartID, bookID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND book_id = ?", cartID, bookID).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// FindLineByID returns the line regardless of owning cart, or
// gorm.ErrRecordNotFound. Ownership is checked by the service.
func (r *Repository) FindLineByID(ctx context.Context, lineID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	if err := r.db.WithContext(ctx).First(&line, "id = ?", lineID).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

// SaveLine inserts or updates a cart line.
func (r *Repository) SaveLine(ctx context.Context, line *models.CartLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

// DeleteLine removes a single cart line.
func (r *Repository) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.CartLine{}, "id = ?", lineID).Error
}

// DeleteLinesByCart removes every line belonging to the cart.
func (r *Repository) DeleteLinesByCart(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.CartLine{}, "cart_id = ?", cartID).Error
}
