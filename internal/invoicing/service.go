package invoicing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fakturku/fakturku/internal/ledger"
	"github.com/fakturku/fakturku/internal/shared"
)

// SettlementCategoryName is the income category auto-settlement books into.
const SettlementCategoryName = "Pembayaran Invoice"

// RepositoryPort defines data access methods for invoicing.
type RepositoryPort interface {
	CreateInvoice(ctx context.Context, inv *Invoice, items []InvoiceItem) (*Invoice, error)
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	GetInvoiceDetail(ctx context.Context, id int64) (*InvoiceDetail, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	CountByStatus(ctx context.Context, req ListInvoicesRequest) (ListSummary, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	ReplaceItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error
	ListItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error)
	SumPayments(ctx context.Context, invoiceID int64) (decimal.Decimal, error)
	CreatePayment(ctx context.Context, p *Payment) (*Payment, error)
	CountRelated(ctx context.Context, invoiceID int64) (payments, transactions int, err error)
	DeleteInvoiceCascade(ctx context.Context, invoiceID int64) (DeleteResult, error)
	NextInvoiceNumber(ctx context.Context) (string, error)
	GetCustomerRef(ctx context.Context, id int64) (*CustomerRef, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// LedgerPort is the slice of the ledger used by auto-settlement.
type LedgerPort interface {
	FindOrCreateCategory(ctx context.Context, name string, catType ledger.TransactionType) (*ledger.Category, error)
	CreateTransaction(ctx context.Context, input ledger.CreateTransactionInput) (*ledger.Transaction, error)
}

// Service owns invoice totals computation and the status state machine,
// including the automatic settlement side effect on transition to PAID.
type Service struct {
	repo            RepositoryPort
	ledger          LedgerPort
	defaultCurrency string
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, ledgerPort LedgerPort, defaultCurrency string) *Service {
	if defaultCurrency == "" {
		defaultCurrency = "IDR"
	}
	return &Service{repo: repo, ledger: ledgerPort, defaultCurrency: defaultCurrency}
}

// buildItems validates item inputs and derives per-line subtotals.
func buildItems(items []ItemInput) ([]InvoiceItem, decimal.Decimal, error) {
	out := make([]InvoiceItem, 0, len(items))
	subtotal := decimal.Zero
	for i, item := range items {
		if item.Description == "" {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d: description is required", shared.ErrValidation, i+1)
		}
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d: quantity must be positive", shared.ErrValidation, i+1)
		}
		if item.UnitPrice.LessThanOrEqual(decimal.Zero) {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d: unitPrice must be positive", shared.ErrValidation, i+1)
		}
		if item.Discount.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d: discount must not be negative", shared.ErrValidation, i+1)
		}
		line := InvoiceItem{
			Description: item.Description,
			ProductSKU:  item.ProductSKU,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Discount:    item.Discount,
			Subtotal:    item.Quantity.Mul(item.UnitPrice).Sub(item.Discount),
		}
		subtotal = subtotal.Add(line.Subtotal)
		out = append(out, line)
	}
	return out, subtotal, nil
}

// CreateInvoice generates an invoice number, computes totals from the
// items and persists invoice plus items together. New invoices are
// always DRAFT, regardless of any status supplied by the caller.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*InvoiceDetail, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", shared.ErrValidation)
	}
	items, subtotal, err := buildItems(input.Items)
	if err != nil {
		return nil, err
	}

	number, err := s.repo.NextInvoiceNumber(ctx)
	if err != nil {
		return nil, err
	}

	currency := input.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	inv := &Invoice{
		InvoiceNo:  number,
		CustomerID: input.CustomerID,
		UserID:     input.UserID,
		Status:     StatusDraft,
		IssueDate:  input.IssueDate,
		DueDate:    input.DueDate,
		Subtotal:   subtotal,
		Discount:   input.Discount,
		Tax:        input.Tax,
		Total:      subtotal.Sub(input.Discount).Add(input.Tax),
		Currency:   currency,
		Notes:      input.Notes,
	}

	created, err := s.repo.CreateInvoice(ctx, inv, items)
	if err != nil {
		return nil, err
	}
	return s.repo.GetInvoiceDetail(ctx, created.ID.Int64())
}

// GetInvoice returns an invoice with its relations and balances.
func (s *Service) GetInvoice(ctx context.Context, id int64) (*InvoiceDetail, error) {
	return s.repo.GetInvoiceDetail(ctx, id)
}

// ListInvoices returns filtered invoices, pagination metadata and, when
// requested, the status summary counts.
func (s *Service) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, shared.Pagination, *ListSummary, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	rows, total, err := s.repo.ListInvoices(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, nil, err
	}
	var summary *ListSummary
	if req.Summary {
		counts, err := s.repo.CountByStatus(ctx, req)
		if err != nil {
			return nil, shared.Pagination{}, nil, err
		}
		summary = &counts
	}
	return rows, shared.NewPagination(req.Page, req.Limit, total), summary, nil
}

// UpdateInvoice applies a partial patch, replaces items wholesale when
// supplied, recomputes totals, and runs the settlement side effect when
// the patch transitions the invoice into PAID.
//
// The settlement writes (payment, category, transaction) run after the
// invoice row is persisted and are not wrapped in a compensating
// rollback: a failure there leaves the invoice PAID without its
// settlement records.
func (s *Service) UpdateInvoice(ctx context.Context, id int64, patch UpdateInvoicePatch) (*InvoiceDetail, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	// The PAID guard runs before any other validation.
	if inv.Status == StatusPaid {
		return nil, ErrInvoicePaid
	}

	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, *patch.Status)
	}

	var subtotal decimal.Decimal
	var newItems []InvoiceItem
	replaceItems := len(patch.Items) > 0
	if replaceItems {
		newItems, subtotal, err = buildItems(patch.Items)
		if err != nil {
			return nil, err
		}
	} else {
		stored, err := s.repo.ListItems(ctx, id)
		if err != nil {
			return nil, err
		}
		subtotal = decimal.Zero
		for _, item := range stored {
			subtotal = subtotal.Add(item.Subtotal)
		}
	}

	discount := inv.Discount
	if patch.Discount != nil {
		discount = *patch.Discount
	}
	tax := inv.Tax
	if patch.Tax != nil {
		tax = *patch.Tax
	}
	total := subtotal.Sub(discount).Add(tax)

	isChangingToPaid := patch.Status != nil && *patch.Status == StatusPaid && inv.Status != StatusPaid

	var remaining decimal.Decimal
	if isChangingToPaid {
		paid, err := s.repo.SumPayments(ctx, id)
		if err != nil {
			return nil, err
		}
		remaining = total.Sub(paid)
	}

	if replaceItems {
		if err := s.repo.ReplaceItems(ctx, id, newItems); err != nil {
			return nil, err
		}
	}

	if patch.CustomerID != nil {
		inv.CustomerID = patch.CustomerID
	}
	if patch.IssueDate != nil {
		inv.IssueDate = patch.IssueDate
	}
	if patch.DueDate != nil {
		inv.DueDate = patch.DueDate
	}
	if patch.Status != nil {
		inv.Status = *patch.Status
	}
	if patch.Currency != nil {
		inv.Currency = *patch.Currency
	}
	if patch.Notes != nil {
		inv.Notes = *patch.Notes
	}
	inv.Subtotal = subtotal
	inv.Discount = discount
	inv.Tax = tax
	inv.Total = total

	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	if isChangingToPaid && remaining.GreaterThan(decimal.Zero) {
		if err := s.settle(ctx, inv, remaining); err != nil {
			return nil, err
		}
	}

	return s.repo.GetInvoiceDetail(ctx, id)
}

// settle books the remainder as a CASH payment plus an income transaction
// in the settlement category.
func (s *Service) settle(ctx context.Context, inv *Invoice, remaining decimal.Decimal) error {
	now := time.Now()

	_, err := s.repo.CreatePayment(ctx, &Payment{
		InvoiceID:   inv.ID,
		Amount:      remaining,
		PaymentDate: now,
		Method:      MethodCash,
		ReferenceNo: "AUTO-" + inv.InvoiceNo,
		CreatedBy:   inv.UserID,
	})
	if err != nil {
		return fmt.Errorf("settlement payment: %w", err)
	}

	category, err := s.ledger.FindOrCreateCategory(ctx, SettlementCategoryName, ledger.TypeIncome)
	if err != nil {
		return fmt.Errorf("settlement category: %w", err)
	}

	description := SettlementCategoryName + " " + inv.InvoiceNo
	if inv.CustomerID != nil {
		customer, lookupErr := s.repo.GetCustomerRef(ctx, inv.CustomerID.Int64())
		switch {
		case lookupErr != nil:
			// The description degrades but settlement still books.
			slog.Default().Warn("settlement customer lookup",
				slog.Any("error", lookupErr), slog.Int64("customerId", inv.CustomerID.Int64()))
		case customer != nil:
			description += " - " + customer.Name
		}
	}

	invoiceID := inv.ID
	categoryID := category.ID
	_, err = s.ledger.CreateTransaction(ctx, ledger.CreateTransactionInput{
		Type:            ledger.TypeIncome,
		TransactionDate: now,
		Description:     description,
		Amount:          remaining,
		Reference:       inv.InvoiceNo,
		CategoryID:      &categoryID,
		InvoiceID:       &invoiceID,
		UserID:          inv.UserID,
	})
	if err != nil {
		return fmt.Errorf("settlement transaction: %w", err)
	}
	return nil
}

// DeleteInvoice removes an invoice. Without force it refuses when
// payments or transactions exist, itemizing their counts; with force it
// deletes transactions, then payments, then the invoice and its items.
func (s *Service) DeleteInvoice(ctx context.Context, id int64, force bool) (DeleteResult, error) {
	if _, err := s.repo.GetInvoice(ctx, id); err != nil {
		return DeleteResult{}, err
	}

	payments, transactions, err := s.repo.CountRelated(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	if (payments > 0 || transactions > 0) && !force {
		return DeleteResult{}, &RelatedDataError{Payments: payments, Transactions: transactions}
	}

	return s.repo.DeleteInvoiceCascade(ctx, id)
}

// MarkOverdue flips ISSUED and PARTIAL invoices past their due date to
// OVERDUE, returning the number of rows changed. Run by the nightly scan.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	return s.repo.MarkOverdue(ctx, asOf)
}
