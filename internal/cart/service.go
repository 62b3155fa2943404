package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/distribuida/libreria-backend/internal/catalog"
	"github.com/distribuida/libreria-backend/internal/customers"
	"github.com/distribuida/libreria-backend/internal/pricing"
	"github.com/distribuida/libreria-backend/pkg/db"
	"github.com/distribuida/libreria-backend/pkg/db/models"
	pkgerrors "github.com/distribuida/libreria-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the cart lifecycle for both identity paths. The customer path
// requires a registered customer; the token path accepts any non-blank token
// and creates carts on first touch. The resolution rules differ on purpose:
// see the per-operation comments.
type Service interface {
	GetOrCreateByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	GetOrCreateByToken(ctx context.Context, token string) (*models.Cart, error)
	GetCartByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	GetCartByToken(ctx context.Context, token string) (*models.Cart, error)
	AddItemByCustomer(ctx context.Context, customerID, bookID uuid.UUID, quantity int) (*models.Cart, error)
	AddItemByToken(ctx context.Context, token string, bookID uuid.UUID, quantity int) (*models.Cart, error)
	UpdateItemQuantityByCustomer(ctx context.Context, customerID, lineID uuid.UUID, quantity int) (*models.Cart, error)
	UpdateItemQuantityByToken(ctx context.Context, token string, lineID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItemByCustomer(ctx context.Context, customerID, lineID uuid.UUID) (*models.Cart, error)
	RemoveItemByToken(ctx context.Context, token string, lineID uuid.UUID) (*models.Cart, error)
	ClearByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	ClearByToken(ctx context.Context, token string) (*models.Cart, error)
}

type service struct {
	repo      *Repository
	tx        txRunner
	books     *catalog.Repository
	customers *customers.Repository
	policy    pricing.Policy
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo *Repository, tx txRunner, books *catalog.Repository, custs *customers.Repository, policy pricing.Policy) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if books == nil {
		return nil, fmt.Errorf("book repository required")
	}
	if custs == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		books:     books,
		customers: custs,
		policy:    policy,
	}, nil
}

// GetOrCreateByCustomer returns the customer's cart, creating an empty one on
// first access. The customer must already exist.
func (s *service) GetOrCreateByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.resolveCustomerCart(ctx, tx, customerID, true)
		if err != nil {
			return err
		}
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetOrCreateByToken returns the guest cart for a non-blank token, creating
// an empty one on first access.
func (s *service) GetOrCreateByToken(ctx context.Context, token string) (*models.Cart, error) {
	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.resolveTokenCart(ctx, tx, token)
		if err != nil {
			return err
		}
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetCartByCustomer is a read path: the customer must exist and a cart must
// already have been created for them.
func (s *service) GetCartByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	cart, err := s.repo.FindByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

// GetCartByToken is a read path: no cart is created for unseen tokens.
func (s *service) GetCartByToken(ctx context.Context, token string) (*models.Cart, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart token is required")
	}
	cart, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) AddItemByCustomer(ctx context.Context, customerID, bookID uuid.UUID, quantity int) (*models.Cart, error) {
	return s.addItem(ctx, func(tx *gorm.DB) (*models.Cart, error) {
		return s.resolveCustomerCart(ctx, tx, customerID, true)
	}, bookID, quantity)
}

func (s *service) AddItemByToken(ctx context.Context, token string, bookID uuid.UUID, quantity int) (*models.Cart, error) {
	return s.addItem(ctx, func(tx *gorm.DB) (*models.Cart, error) {
		return s.resolveTokenCart(ctx, tx, token)
	}, bookID, quantity)
}

// UpdateItemQuantityByCustomer never creates a cart: an unknown customer is
// NOT_FOUND and so is a customer who has no cart yet. This mirrors the
// original store's behavior and differs from the token path deliberately.
func (s *service) UpdateItemQuantityByCustomer(ctx context.Context, customerID, lineID uuid.UUID, quantity int) (*models.Cart, error) {
	return s.updateQuantity(ctx, func(tx *gorm.DB) (*models.Cart, error) {
		return s.resolveCustomerCart(ctx, tx, customerID, false)
	}, lineID, quantity)
}

// UpdateItemQuantityByToken get-or-creates the cart; a freshly created cart
// then fails line ownership, which surfaces as FORBIDDEN.
func (s *service) UpdateItemQuantityByToken(ctx context.Context, token string, lineID uuid.UUID, quantity int) (*models.Cart, error) {
	return s.updateQuantity(ctx, func(tx *gorm.DB) (*models.Cart, error) {
		return s.resolveTokenCart(ctx, tx, token)
	}, lineID, quantity)
}

func (s *service) RemoveItemByCustomer(ctx context.Context, customerID, lineID uuid.UUID) (*models.Cart, error) {
	return s.UpdateItemQuantityByCustomer(ctx, customerID, lineID, 0)
}

func (s *service) RemoveItemByToken(ctx context.Context, token string, lineID uuid.UUID) (*models.Cart, error) {
	return s.UpdateItemQuantityByToken(ctx, token, lineID, 0)
}

func (s *service) ClearByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	return s.clear(ctx, func(tx *gorm.DB) (*models.Cart, error) {
		return s.resolveCustomerCart(ctx, tx, customerID, false)
	})
}

func (s *service) ClearByToken(ctx context.Context, token string) (*models.Cart, error) {
	return s.clear(ctx, func(tx *gorm.DB) (*models.Cart, error) {
		return s.resolveTokenCart(ctx, tx, token)
	})
}

type cartResolver func(tx *gorm.DB) (*models.Cart, error)

func (s *service) addItem(ctx context.Context, resolve cartResolver, bookID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}

	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := resolve(tx)
		if err != nil {
			return err
		}

		book, err := s.books.WithTx(tx).FindByID(ctx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
		}

		line, err := repo.FindLineByCartAndBook(ctx, cart.ID, book.ID)
		switch {
		case err == nil:
			// Re-adding refreshes the price snapshot to the book's current
			// price; a bare quantity update does not.
			line.Quantity += quantity
			line.UnitPrice = book.Price
			line.LineTotal = pricing.LineTotal(line.UnitPrice, line.Quantity)
			if err := repo.SaveLine(ctx, line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			newLine := &models.CartLine{
				CartID:    cart.ID,
				BookID:    book.ID,
				Quantity:  quantity,
				UnitPrice: book.Price,
				LineTotal: pricing.LineTotal(book.Price, quantity),
			}
			if err := repo.SaveLine(ctx, newLine); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}

		result, err = s.recompute(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) updateQuantity(ctx context.Context, resolve cartResolver, lineID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := resolve(tx)
		if err != nil {
			return err
		}

		line, err := repo.FindLineByID(ctx, lineID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}
		if line.CartID != cart.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cart line does not belong to this cart")
		}

		if quantity == 0 {
			if err := repo.DeleteLine(ctx, line.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
			}
		} else {
			// The unit-price snapshot is intentionally left as-is here.
			line.Quantity = quantity
			line.LineTotal = pricing.LineTotal(line.UnitPrice, quantity)
			if err := repo.SaveLine(ctx, line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
			}
		}

		result, err = s.recompute(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) clear(ctx context.Context, resolve cartResolver) (*models.Cart, error) {
	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := resolve(tx)
		if err != nil {
			return err
		}

		if err := repo.DeleteLinesByCart(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart lines")
		}

		cart.Lines = nil
		cart.Subtotal = decimal.Zero
		cart.Discount = decimal.Zero
		cart.Tax = decimal.Zero
		cart.Total = decimal.Zero
		if _, err := repo.Save(ctx, cart); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
		}
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// recompute reloads the cart's lines and re-derives every monetary field, so
// no caller ever observes totals that disagree with the lines.
func (s *service) recompute(ctx context.Context, repo *Repository, cart *models.Cart) (*models.Cart, error) {
	if err := repo.loadLines(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart lines")
	}

	subtotal := decimal.Zero
	for _, line := range cart.Lines {
		subtotal = subtotal.Add(line.LineTotal)
	}

	totals, err := s.policy.Compute(subtotal, cart.Discount)
	if err != nil {
		return nil, err
	}

	cart.Subtotal = totals.Subtotal
	cart.Discount = totals.Discount
	cart.Tax = totals.Tax
	cart.Total = totals.Total

	if _, err := repo.Save(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart totals")
	}
	return cart, nil
}

// resolveCustomerCart loads the customer's cart with the row locked. When
// createMissing is false the operation is read-before-write: a missing cart is
// NOT_FOUND instead of being created.
func (s *service) resolveCustomerCart(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, createMissing bool) (*models.Cart, error) {
	repo := s.repo.WithTx(tx)

	if _, err := s.customers.WithTx(tx).Get(ctx, customerID); err != nil {
		return nil, err
	}

	cart, err := repo.FindByCustomerForUpdate(ctx, customerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if !createMissing {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}

	// The insert is fenced with a savepoint: on Postgres a unique violation
	// aborts the transaction, and without the rollback the fallback lookup
	// below would fail too.
	id := customerID
	tx.SavePoint("cart_create")
	created, err := repo.Create(ctx, &models.Cart{CustomerID: &id})
	if err != nil {
		// A concurrent request may have created the cart first.
		if db.IsUniqueViolation(err, "") {
			tx.RollbackTo("cart_create")
			return repo.FindByCustomerForUpdate(ctx, customerID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

// resolveTokenCart always get-or-creates for a non-blank token.
func (s *service) resolveTokenCart(ctx context.Context, tx *gorm.DB, token string) (*models.Cart, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart token is required")
	}

	repo := s.repo.WithTx(tx)

	cart, err := repo.FindByTokenForUpdate(ctx, token)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	tok := token
	tx.SavePoint("cart_create")
	created, err := repo.Create(ctx, &models.Cart{Token: &tok})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			tx.RollbackTo("cart_create")
			return repo.FindByTokenForUpdate(ctx, token)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}
