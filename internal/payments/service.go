// Package payments records explicit payments against invoices and keeps
// invoice status consistent with cumulative payment amounts. It does not
// run the auto-settlement side effect of the invoice lifecycle; both
// paths can independently drive an invoice to PAID.
package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fakturku/fakturku/internal/invoicing"
	"github.com/fakturku/fakturku/internal/shared"
)

// RecordPaymentInput for registering a payment.
type RecordPaymentInput struct {
	InvoiceID   shared.ID               `json:"invoiceId" validate:"required"`
	Amount      decimal.Decimal         `json:"amount"`
	Method      invoicing.PaymentMethod `json:"paymentMethod" validate:"required"`
	PaymentDate time.Time               `json:"paymentDate"`
	ReferenceNo string                  `json:"referenceNo"`
	Notes       string                  `json:"notes"`
	CreatedBy   *shared.ID              `json:"createdBy"`
}

// RecordPaymentResult returns the created payment and the status the
// invoice landed in.
type RecordPaymentResult struct {
	Payment   *invoicing.Payment      `json:"payment"`
	NewStatus invoicing.InvoiceStatus `json:"newStatus"`
}

// RepositoryPort defines data access methods for payment recording.
type RepositoryPort interface {
	GetInvoice(ctx context.Context, id int64) (*invoicing.Invoice, error)
	CreatePayment(ctx context.Context, p *invoicing.Payment) (*invoicing.Payment, error)
	SumPayments(ctx context.Context, invoiceID int64) (decimal.Decimal, error)
	UpdateInvoiceStatus(ctx context.Context, invoiceID int64, status invoicing.InvoiceStatus) error
}

// Service handles payment recording.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// RecordPayment inserts the payment, recomputes the cumulative paid
// amount and derives the invoice's new status: PAID when payments cover
// the total, PARTIAL when anything has been paid, otherwise unchanged.
// Overpayment is not rejected here; the dashboard warns before submit.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*RecordPaymentResult, error) {
	if input.InvoiceID == 0 {
		return nil, fmt.Errorf("%w: invoiceId is required", shared.ErrValidation)
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	if !input.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, input.Method)
	}

	inv, err := s.repo.GetInvoice(ctx, input.InvoiceID.Int64())
	if err != nil {
		return nil, err
	}

	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}
	referenceNo := input.ReferenceNo
	if referenceNo == "" {
		referenceNo = "PAY-" + uuid.NewString()[:8]
	}

	payment, err := s.repo.CreatePayment(ctx, &invoicing.Payment{
		InvoiceID:   inv.ID,
		Amount:      input.Amount,
		PaymentDate: paymentDate,
		Method:      input.Method,
		ReferenceNo: referenceNo,
		Notes:       input.Notes,
		CreatedBy:   input.CreatedBy,
	})
	if err != nil {
		return nil, err
	}

	totalPaid, err := s.repo.SumPayments(ctx, inv.ID.Int64())
	if err != nil {
		return nil, err
	}

	newStatus := inv.Status
	switch {
	case totalPaid.GreaterThanOrEqual(inv.Total):
		newStatus = invoicing.StatusPaid
	case totalPaid.GreaterThan(decimal.Zero):
		newStatus = invoicing.StatusPartial
	}

	if newStatus != inv.Status {
		if err := s.repo.UpdateInvoiceStatus(ctx, inv.ID.Int64(), newStatus); err != nil {
			return nil, err
		}
	}

	return &RecordPaymentResult{Payment: payment, NewStatus: newStatus}, nil
}
