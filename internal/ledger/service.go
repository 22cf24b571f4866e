package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fakturku/fakturku/internal/shared"
)

// RepositoryPort defines data access methods for the ledger.
type RepositoryPort interface {
	CreateTransaction(ctx context.Context, tx *Transaction) (*Transaction, error)
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) ([]Transaction, int, error)
	UpdateTransaction(ctx context.Context, tx *Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
	SummarizeMonth(ctx context.Context, month, year int) (MonthlySummary, error)

	CreateCategory(ctx context.Context, cat *Category) (*Category, error)
	FindCategory(ctx context.Context, name string, catType TransactionType) (*Category, error)
	ListCategories(ctx context.Context, catType TransactionType) ([]Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// Service handles ledger business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateTransaction records a ledger entry, deriving month and year from
// the transaction date.
func (s *Service) CreateTransaction(ctx context.Context, input CreateTransactionInput) (*Transaction, error) {
	if !input.Type.Valid() {
		return nil, fmt.Errorf("%w: type must be INCOME or EXPENSE", shared.ErrValidation)
	}
	if input.Description == "" {
		return nil, fmt.Errorf("%w: description is required", shared.ErrValidation)
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	date := input.TransactionDate
	if date.IsZero() {
		date = time.Now()
	}
	tx := &Transaction{
		Type:            input.Type,
		TransactionDate: date,
		Month:           int(date.Month()),
		Year:            date.Year(),
		Description:     input.Description,
		Amount:          input.Amount,
		Reference:       input.Reference,
		CategoryID:      input.CategoryID,
		InvoiceID:       input.InvoiceID,
		UserID:          input.UserID,
	}
	return s.repo.CreateTransaction(ctx, tx)
}

// GetTransaction returns a single transaction with its category.
func (s *Service) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// ListTransactions returns filtered transactions plus the total row count.
func (s *Service) ListTransactions(ctx context.Context, req ListTransactionsRequest) ([]Transaction, shared.Pagination, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	rows, total, err := s.repo.ListTransactions(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(req.Page, req.Limit, total), nil
}

// UpdateTransaction applies a partial patch. Month and year follow the
// transaction date whenever it changes.
func (s *Service) UpdateTransaction(ctx context.Context, id int64, patch UpdateTransactionPatch) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Type != nil {
		if !patch.Type.Valid() {
			return nil, fmt.Errorf("%w: type must be INCOME or EXPENSE", shared.ErrValidation)
		}
		tx.Type = *patch.Type
	}
	if patch.TransactionDate != nil {
		tx.TransactionDate = *patch.TransactionDate
		tx.Month = int(patch.TransactionDate.Month())
		tx.Year = patch.TransactionDate.Year()
	}
	if patch.Description != nil {
		if *patch.Description == "" {
			return nil, fmt.Errorf("%w: description is required", shared.ErrValidation)
		}
		tx.Description = *patch.Description
	}
	if patch.Amount != nil {
		if patch.Amount.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
		}
		tx.Amount = *patch.Amount
	}
	if patch.Reference != nil {
		tx.Reference = *patch.Reference
	}
	if patch.CategoryID != nil {
		tx.CategoryID = patch.CategoryID
	}
	if err := s.repo.UpdateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// DeleteTransaction removes a ledger entry.
func (s *Service) DeleteTransaction(ctx context.Context, id int64) error {
	return s.repo.DeleteTransaction(ctx, id)
}

// FindOrCreateCategory looks up a category by name and type, creating it
// when absent. Used by invoice settlement for "Pembayaran Invoice".
func (s *Service) FindOrCreateCategory(ctx context.Context, name string, catType TransactionType) (*Category, error) {
	cat, err := s.repo.FindCategory(ctx, name, catType)
	if err == nil && cat != nil {
		return cat, nil
	}
	if err != nil {
		return nil, err
	}
	return s.repo.CreateCategory(ctx, &Category{Name: name, Type: catType})
}

// CreateCategory adds a category.
func (s *Service) CreateCategory(ctx context.Context, name string, catType TransactionType) (*Category, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if !catType.Valid() {
		return nil, fmt.Errorf("%w: type must be INCOME or EXPENSE", shared.ErrValidation)
	}
	return s.repo.CreateCategory(ctx, &Category{Name: name, Type: catType})
}

// ListCategories returns categories, optionally filtered by type.
func (s *Service) ListCategories(ctx context.Context, catType TransactionType) ([]Category, error) {
	return s.repo.ListCategories(ctx, catType)
}

// DeleteCategory removes a category.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.repo.DeleteCategory(ctx, id)
}

// SummarizeMonth aggregates income and expense for a month.
func (s *Service) SummarizeMonth(ctx context.Context, month, year int) (MonthlySummary, error) {
	if month < 1 || month > 12 {
		return MonthlySummary{}, fmt.Errorf("%w: month must be between 1 and 12", shared.ErrValidation)
	}
	return s.repo.SummarizeMonth(ctx, month, year)
}
