package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/distribuida/libreria-backend/pkg/db/models"
	pkgerrors "github.com/distribuida/libreria-backend/pkg/errors"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// Service exposes catalog reads and book maintenance.
type Service interface {
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	ListBooks(ctx context.Context, limit, offset int) ([]models.Book, error)
	CreateBook(ctx context.Context, input BookInput) (*models.Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, input BookPatch) (*models.Book, error)
}

// BookInput carries the fields required to register a book.
type BookInput struct {
	Title           string
	Author          string
	Price           decimal.Decimal
	AvailableCopies int
}

// BookPatch carries optional updates; nil fields are left untouched.
type BookPatch struct {
	Title           *string
	Author          *string
	Price           *decimal.Decimal
	AvailableCopies *int
}

type service struct {
	repo *Repository
}

// NewService builds the catalog service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id is required")
	}
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}
	return book, nil
}

func (s *service) ListBooks(ctx context.Context, limit, offset int) ([]models.Book, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	books, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list books")
	}
	return books, nil
}

func (s *service) CreateBook(ctx context.Context, input BookInput) (*models.Book, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.AvailableCopies < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "available copies cannot be negative")
	}

	book := &models.Book{
		Title:           strings.TrimSpace(input.Title),
		Author:          strings.TrimSpace(input.Author),
		Price:           input.Price.Round(2),
		AvailableCopies: input.AvailableCopies,
	}
	created, err := s.repo.Create(ctx, book)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create book")
	}
	return created, nil
}

func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, patch BookPatch) (*models.Book, error) {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be blank")
		}
		book.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Author != nil {
		book.Author = strings.TrimSpace(*patch.Author)
	}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		book.Price = patch.Price.Round(2)
	}
	if patch.AvailableCopies != nil {
		if *patch.AvailableCopies < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "available copies cannot be negative")
		}
		book.AvailableCopies = *patch.AvailableCopies
	}

	updated, err := s.repo.Update(ctx, book)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update book")
	}
	return updated, nil
}
