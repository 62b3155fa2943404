package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/distribuida/libreria-backend/pkg/db/models"
)

// Repository encapsulates invoice persistence. Invoices are write-once: there
// is deliberately no update surface here.
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

// CreateInvoice inserts the invoice header.
func (r *Repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	if err := r.db.WithContext(ctx).Omit("Lines").Create(invoice).Error; err != nil {
		return nil, err
	}
	return invoice, nil
}

// CreateLines inserts the invoice's line snapshots.
func (r *Repository) CreateLines(ctx context.Context, lines []models.InvoiceLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

// FindByID returns the invoice with its lines, or gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByNumber returns the invoice with its lines, or gorm.ErrRecordNotFound.
func (r *Repository) FindByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&invoice, "number = ?", number).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}
