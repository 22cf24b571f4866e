package payments

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fakturku/fakturku/internal/invoicing"
	"github.com/fakturku/fakturku/internal/shared"
)

type fakeRepo struct {
	invoice       *invoicing.Invoice
	payments      []invoicing.Payment
	statusUpdates []invoicing.InvoiceStatus
}

func (f *fakeRepo) GetInvoice(ctx context.Context, id int64) (*invoicing.Invoice, error) {
	if f.invoice == nil || f.invoice.ID.Int64() != id {
		return nil, invoicing.ErrInvoiceNotFound
	}
	clone := *f.invoice
	return &clone, nil
}

func (f *fakeRepo) CreatePayment(ctx context.Context, p *invoicing.Payment) (*invoicing.Payment, error) {
	p.ID = shared.ID(len(f.payments) + 1)
	f.payments = append(f.payments, *p)
	return p, nil
}

func (f *fakeRepo) SumPayments(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range f.payments {
		if p.InvoiceID.Int64() == invoiceID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (f *fakeRepo) UpdateInvoiceStatus(ctx context.Context, invoiceID int64, status invoicing.InvoiceStatus) error {
	f.invoice.Status = status
	f.statusUpdates = append(f.statusUpdates, status)
	return nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func issuedInvoice(total string) *invoicing.Invoice {
	return &invoicing.Invoice{
		ID:        shared.ID(1),
		InvoiceNo: "INV-202608-0001",
		Status:    invoicing.StatusIssued,
		Total:     dec(total),
	}
}

func TestRecordPaymentPartial(t *testing.T) {
	repo := &fakeRepo{invoice: issuedInvoice("100000")}
	svc := NewService(repo)

	result, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID: shared.ID(1),
		Amount:    dec("40000"),
		Method:    invoicing.MethodBankTransfer,
	})
	require.NoError(t, err)
	require.Equal(t, invoicing.StatusPartial, result.NewStatus)
	require.Equal(t, invoicing.StatusPartial, repo.invoice.Status)
	require.NotEmpty(t, result.Payment.ReferenceNo)
	require.Contains(t, result.Payment.ReferenceNo, "PAY-")
	require.False(t, result.Payment.PaymentDate.IsZero())
}

func TestRecordPaymentCompletesInvoice(t *testing.T) {
	repo := &fakeRepo{invoice: issuedInvoice("100000")}
	svc := NewService(repo)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID: shared.ID(1),
		Amount:    dec("60000"),
		Method:    invoicing.MethodCash,
	})
	require.NoError(t, err)

	result, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID: shared.ID(1),
		Amount:    dec("40000"),
		Method:    invoicing.MethodCash,
	})
	require.NoError(t, err)
	require.Equal(t, invoicing.StatusPaid, result.NewStatus)
	require.Equal(t, []invoicing.InvoiceStatus{invoicing.StatusPartial, invoicing.StatusPaid}, repo.statusUpdates)
}

func TestRecordPaymentOverpaymentStillPaid(t *testing.T) {
	repo := &fakeRepo{invoice: issuedInvoice("100000")}
	svc := NewService(repo)

	result, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID: shared.ID(1),
		Amount:    dec("150000"),
		Method:    invoicing.MethodEWallet,
	})
	require.NoError(t, err)
	require.Equal(t, invoicing.StatusPaid, result.NewStatus)
}

func TestRecordPaymentKeepsSuppliedReference(t *testing.T) {
	repo := &fakeRepo{invoice: issuedInvoice("100000")}
	svc := NewService(repo)

	when := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	result, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:   shared.ID(1),
		Amount:      dec("10000"),
		Method:      invoicing.MethodCheck,
		PaymentDate: when,
		ReferenceNo: "BCA-123",
	})
	require.NoError(t, err)
	require.Equal(t, "BCA-123", result.Payment.ReferenceNo)
	require.Equal(t, when, result.Payment.PaymentDate)
}

func TestRecordPaymentValidation(t *testing.T) {
	svc := NewService(&fakeRepo{invoice: issuedInvoice("100000")})

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		Amount: dec("10000"), Method: invoicing.MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID: shared.ID(1), Amount: dec("0"), Method: invoicing.MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID: shared.ID(1), Amount: dec("10000"), Method: invoicing.PaymentMethod("BARTER"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordPaymentUnknownInvoice(t *testing.T) {
	svc := NewService(&fakeRepo{})

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID: shared.ID(42), Amount: dec("10000"), Method: invoicing.MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
