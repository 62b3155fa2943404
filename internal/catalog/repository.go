package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/distribuida/libreria-backend/pkg/db/models"
	pkgerrors "github.com/distribuida/libreria-backend/pkg/errors"
)

// Repository encapsulates book persistence.
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

// FindByID returns the book or gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// List returns books ordered by title.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.Book, error) {
	var books []models.Book
	err := r.db.WithContext(ctx).
		Order("title ASC").
		Limit(limit).
		Offset(offset).
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	return books, nil
}

// Create inserts the provided book.
func (r *Repository) Create(ctx context.Context, book *models.Book) (*models.Book, error) {
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		return nil, err
	}
	return book, nil
}

// Update saves the provided book.
func (r *Repository) Update(ctx context.Context, book *models.Book) (*models.Book, error) {
	if err := r.db.WithContext(ctx).Save(book).Error; err != nil {
		return nil, err
	}
	return book, nil
}

// DecrementCopies atomically takes qty copies off a book's availability. The
// guard in the WHERE clause makes concurrent checkouts race safely: whichever
// transaction loses sees zero rows affected and reports insufficient stock.
func (r *Repository) DecrementCopies(ctx context.Context, bookID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ? AND available_copies >= ?", bookID, qty).
		UpdateColumn("available_copies", gorm.Expr("available_copies - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")
	}
	return nil
}
