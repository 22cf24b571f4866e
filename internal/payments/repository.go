package payments

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fakturku/fakturku/internal/invoicing"
)

// Repository provides PostgreSQL backed persistence for payment
// recording, reusing the invoicing tables.
type Repository struct {
	pool     *pgxpool.Pool
	invoices *invoicing.Repository
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, invoices: invoicing.NewRepository(pool)}
}

// GetInvoice fetches the invoice the payment targets.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*invoicing.Invoice, error) {
	return r.invoices.GetInvoice(ctx, id)
}

// CreatePayment inserts the payment row.
func (r *Repository) CreatePayment(ctx context.Context, p *invoicing.Payment) (*invoicing.Payment, error) {
	return r.invoices.CreatePayment(ctx, p)
}

// SumPayments returns the cumulative payment amount for an invoice.
func (r *Repository) SumPayments(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	return r.invoices.SumPayments(ctx, invoiceID)
}

// UpdateInvoiceStatus persists only the status field.
func (r *Repository) UpdateInvoiceStatus(ctx context.Context, invoiceID int64, status invoicing.InvoiceStatus) error {
	result, err := r.pool.Exec(ctx,
		"UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1",
		invoiceID, string(status),
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return invoicing.ErrInvoiceNotFound
	}
	return nil
}
