package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fakturku/fakturku/internal/shared"
)

// TransactionType distinguishes income from expense entries.
type TransactionType string

const (
	TypeIncome  TransactionType = "INCOME"
	TypeExpense TransactionType = "EXPENSE"
)

// Valid reports whether the type is a known value.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Category groups transactions, typed INCOME or EXPENSE.
type Category struct {
	ID        shared.ID       `json:"id"`
	Name      string          `json:"name"`
	Type      TransactionType `json:"type"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Transaction is a generic income/expense ledger entry, optionally linked
// to an invoice and a category.
type Transaction struct {
	ID              shared.ID       `json:"id"`
	Type            TransactionType `json:"type"`
	TransactionDate time.Time       `json:"transactionDate"`
	Month           int             `json:"month"`
	Year            int             `json:"year"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Reference       string          `json:"reference,omitempty"`
	CategoryID      *shared.ID      `json:"categoryId"`
	InvoiceID       *shared.ID      `json:"invoiceId"`
	UserID          *shared.ID      `json:"userId"`
	Category        *Category       `json:"category,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// CreateTransactionInput for recording a ledger entry. Month and year are
// derived from TransactionDate, never supplied by the caller.
type CreateTransactionInput struct {
	Type            TransactionType `json:"type" validate:"required,oneof=INCOME EXPENSE"`
	TransactionDate time.Time       `json:"transactionDate"`
	Description     string          `json:"description" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Reference       string          `json:"reference"`
	CategoryID      *shared.ID      `json:"categoryId"`
	InvoiceID       *shared.ID      `json:"invoiceId"`
	UserID          *shared.ID      `json:"userId"`
}

// UpdateTransactionPatch carries optional replacement fields.
type UpdateTransactionPatch struct {
	Type            *TransactionType `json:"type"`
	TransactionDate *time.Time       `json:"transactionDate"`
	Description     *string          `json:"description"`
	Amount          *decimal.Decimal `json:"amount"`
	Reference       *string          `json:"reference"`
	CategoryID      *shared.ID       `json:"categoryId"`
}

// ListTransactionsRequest filters the transaction listing.
type ListTransactionsRequest struct {
	Type       TransactionType
	Month      int
	Year       int
	CategoryID int64
	InvoiceID  int64
	Search     string
	Page       int
	Limit      int
}

// MonthlySummary aggregates a month of ledger activity.
type MonthlySummary struct {
	Month   int             `json:"month"`
	Year    int             `json:"year"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}
