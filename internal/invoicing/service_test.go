package invoicing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fakturku/fakturku/internal/ledger"
	"github.com/fakturku/fakturku/internal/shared"
)

type fakeRepo struct {
	invoices     map[int64]*Invoice
	items        map[int64][]InvoiceItem
	payments     map[int64][]Payment
	transactions map[int64]int
	customers    map[int64]*CustomerRef
	customerErr  error
	nextID       int64
	nextNumber   int
	updateCalls  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		invoices:     map[int64]*Invoice{},
		items:        map[int64][]InvoiceItem{},
		payments:     map[int64][]Payment{},
		transactions: map[int64]int{},
		customers:    map[int64]*CustomerRef{},
	}
}

func (f *fakeRepo) CreateInvoice(ctx context.Context, inv *Invoice, items []InvoiceItem) (*Invoice, error) {
	f.nextID++
	inv.ID = shared.ID(f.nextID)
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	f.invoices[f.nextID] = inv
	for i := range items {
		items[i].InvoiceID = inv.ID
	}
	f.items[f.nextID] = items
	return inv, nil
}

func (f *fakeRepo) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	clone := *inv
	return &clone, nil
}

func (f *fakeRepo) GetInvoiceDetail(ctx context.Context, id int64) (*InvoiceDetail, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	paid := decimal.Zero
	for _, p := range f.payments[id] {
		paid = paid.Add(p.Amount)
	}
	detail := &InvoiceDetail{
		Invoice:   *inv,
		Items:     f.items[id],
		Payments:  f.payments[id],
		TotalPaid: paid,
		Remaining: inv.Total.Sub(paid),
	}
	if inv.CustomerID != nil {
		detail.Customer = f.customers[inv.CustomerID.Int64()]
	}
	return detail, nil
}

func (f *fakeRepo) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	out := make([]Invoice, 0, len(f.invoices))
	for _, inv := range f.invoices {
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (f *fakeRepo) CountByStatus(ctx context.Context, req ListInvoicesRequest) (ListSummary, error) {
	summary := ListSummary{}
	for _, inv := range f.invoices {
		summary.Total++
		switch inv.Status {
		case StatusPaid:
			summary.Paid++
		case StatusDraft, StatusIssued, StatusPartial, StatusOverdue:
			summary.Pending++
		}
	}
	return summary, nil
}

func (f *fakeRepo) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	if _, ok := f.invoices[inv.ID.Int64()]; !ok {
		return ErrInvoiceNotFound
	}
	f.updateCalls++
	clone := *inv
	f.invoices[inv.ID.Int64()] = &clone
	return nil
}

func (f *fakeRepo) ReplaceItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error {
	for i := range items {
		items[i].InvoiceID = shared.ID(invoiceID)
	}
	f.items[invoiceID] = items
	return nil
}

func (f *fakeRepo) ListItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	return f.items[invoiceID], nil
}

func (f *fakeRepo) SumPayments(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range f.payments[invoiceID] {
		sum = sum.Add(p.Amount)
	}
	return sum, nil
}

func (f *fakeRepo) CreatePayment(ctx context.Context, p *Payment) (*Payment, error) {
	f.nextID++
	p.ID = shared.ID(f.nextID)
	p.CreatedAt = time.Now()
	f.payments[p.InvoiceID.Int64()] = append(f.payments[p.InvoiceID.Int64()], *p)
	return p, nil
}

func (f *fakeRepo) CountRelated(ctx context.Context, invoiceID int64) (int, int, error) {
	return len(f.payments[invoiceID]), f.transactions[invoiceID], nil
}

func (f *fakeRepo) DeleteInvoiceCascade(ctx context.Context, invoiceID int64) (DeleteResult, error) {
	result := DeleteResult{
		DeletedPayments:     len(f.payments[invoiceID]),
		DeletedTransactions: f.transactions[invoiceID],
	}
	delete(f.invoices, invoiceID)
	delete(f.items, invoiceID)
	delete(f.payments, invoiceID)
	delete(f.transactions, invoiceID)
	return result, nil
}

func (f *fakeRepo) NextInvoiceNumber(ctx context.Context) (string, error) {
	f.nextNumber++
	return fmt.Sprintf("INV-202608-%04d", f.nextNumber), nil
}

func (f *fakeRepo) GetCustomerRef(ctx context.Context, id int64) (*CustomerRef, error) {
	if f.customerErr != nil {
		return nil, f.customerErr
	}
	return f.customers[id], nil
}

func (f *fakeRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	var marked int64
	for _, inv := range f.invoices {
		if inv.Status != StatusIssued && inv.Status != StatusPartial {
			continue
		}
		if inv.DueDate != nil && inv.DueDate.Before(asOf) {
			inv.Status = StatusOverdue
			marked++
		}
	}
	return marked, nil
}

type fakeLedger struct {
	categories   []*ledger.Category
	transactions []ledger.CreateTransactionInput
	nextID       int64
}

func (f *fakeLedger) FindOrCreateCategory(ctx context.Context, name string, catType ledger.TransactionType) (*ledger.Category, error) {
	for _, c := range f.categories {
		if c.Name == name && c.Type == catType {
			return c, nil
		}
	}
	f.nextID++
	c := &ledger.Category{ID: shared.ID(f.nextID), Name: name, Type: catType}
	f.categories = append(f.categories, c)
	return c, nil
}

func (f *fakeLedger) CreateTransaction(ctx context.Context, input ledger.CreateTransactionInput) (*ledger.Transaction, error) {
	f.transactions = append(f.transactions, input)
	f.nextID++
	return &ledger.Transaction{ID: shared.ID(f.nextID), Type: input.Type, Amount: input.Amount}, nil
}

func newTestService() (*Service, *fakeRepo, *fakeLedger) {
	repo := newFakeRepo()
	led := &fakeLedger{}
	return NewService(repo, led, "IDR"), repo, led
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCreateInvoiceStartsAsDraft(t *testing.T) {
	svc, _, _ := newTestService()

	detail, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Discount: dec("5000"),
		Tax:      dec("11000"),
		Items: []ItemInput{
			{Description: "Jasa desain", Quantity: dec("2"), UnitPrice: dec("50000")},
			{Description: "Jasa cetak", Quantity: dec("1"), UnitPrice: dec("10000"), Discount: dec("1000")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, detail.Status)
	require.Equal(t, "IDR", detail.Currency)
	require.Contains(t, detail.InvoiceNo, "INV-")
	require.True(t, detail.Subtotal.Equal(dec("109000")), "subtotal %s", detail.Subtotal)
	require.True(t, detail.Total.Equal(dec("115000")), "total %s", detail.Total)
	require.Len(t, detail.Items, 2)
	require.True(t, detail.Items[1].Subtotal.Equal(dec("9000")))
}

func TestCreateInvoiceRequiresItems(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateInvoiceRejectsBadItem(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Items: []ItemInput{
			{Description: "Ok", Quantity: dec("1"), UnitPrice: dec("1000")},
			{Description: "Gratis", Quantity: dec("1"), UnitPrice: dec("0")},
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "item 2")
}

func TestUpdateInvoicePaidIsTerminal(t *testing.T) {
	svc, repo, _ := newTestService()

	detail, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Items: []ItemInput{{Description: "Jasa", Quantity: dec("1"), UnitPrice: dec("100000")}},
	})
	require.NoError(t, err)

	repo.invoices[detail.ID.Int64()].Status = StatusPaid
	updatesBefore := repo.updateCalls

	notes := "late edit"
	_, err = svc.UpdateInvoice(context.Background(), detail.ID.Int64(), UpdateInvoicePatch{Notes: &notes})
	require.ErrorIs(t, err, shared.ErrStateConflict)
	require.Equal(t, updatesBefore, repo.updateCalls, "paid invoice must not be written")
}

func TestUpdateInvoiceRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService()

	detail, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Items: []ItemInput{{Description: "Jasa", Quantity: dec("1"), UnitPrice: dec("100000")}},
	})
	require.NoError(t, err)

	bogus := InvoiceStatus("SHIPPED")
	_, err = svc.UpdateInvoice(context.Background(), detail.ID.Int64(), UpdateInvoicePatch{Status: &bogus})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateInvoiceSettlesRemainderOnPaid(t *testing.T) {
	svc, repo, led := newTestService()

	customerID := shared.ID(7)
	repo.customers[7] = &CustomerRef{ID: customerID, Name: "PT Maju Bersama"}

	detail, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: &customerID,
		Items:      []ItemInput{{Description: "Jasa", Quantity: dec("1"), UnitPrice: dec("100000")}},
	})
	require.NoError(t, err)

	// A partial payment of 40.000 leaves 60.000 outstanding.
	_, err = repo.CreatePayment(context.Background(), &Payment{
		InvoiceID: detail.ID, Amount: dec("40000"), Method: MethodBankTransfer,
	})
	require.NoError(t, err)

	paid := StatusPaid
	updated, err := svc.UpdateInvoice(context.Background(), detail.ID.Int64(), UpdateInvoicePatch{Status: &paid})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)

	payments := repo.payments[detail.ID.Int64()]
	require.Len(t, payments, 2)
	auto := payments[1]
	require.True(t, auto.Amount.Equal(dec("60000")), "settlement amount %s", auto.Amount)
	require.Equal(t, MethodCash, auto.Method)
	require.Equal(t, "AUTO-"+detail.InvoiceNo, auto.ReferenceNo)

	require.Len(t, led.transactions, 1)
	tx := led.transactions[0]
	require.Equal(t, ledger.TypeIncome, tx.Type)
	require.True(t, tx.Amount.Equal(dec("60000")))
	require.Equal(t, detail.InvoiceNo, tx.Reference)
	require.Contains(t, tx.Description, SettlementCategoryName)
	require.Contains(t, tx.Description, "PT Maju Bersama")
	require.NotNil(t, tx.CategoryID)
	require.NotNil(t, tx.InvoiceID)
	require.Equal(t, detail.ID, *tx.InvoiceID)

	require.Len(t, led.categories, 1)
	require.Equal(t, SettlementCategoryName, led.categories[0].Name)
	require.Equal(t, ledger.TypeIncome, led.categories[0].Type)

	require.True(t, updated.Remaining.Equal(decimal.Zero), "remaining %s", updated.Remaining)
}

func TestUpdateInvoiceSettlesFullTotalWithoutPriorPayments(t *testing.T) {
	svc, repo, led := newTestService()

	detail, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Items: []ItemInput{{Description: "Jasa", Quantity: dec("2"), UnitPrice: dec("50000")}},
	})
	require.NoError(t, err)
	require.True(t, detail.Total.Equal(dec("100000")))

	paid := StatusPaid
	updated, err := svc.UpdateInvoice(context.Background(), detail.ID.Int64(), UpdateInvoicePatch{Status: &paid})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)

	payments := repo.payments[detail.ID.Int64()]
	require.Len(t, payments, 1)
	require.True(t, payments[0].Amount.Equal(dec("100000")), "settlement amount %s", payments[0].Amount)
	require.Equal(t, "AUTO-"+detail.InvoiceNo, payments[0].ReferenceNo)

	require.Len(t, led.transactions, 1)
	require.True(t, led.transactions[0].Amount.Equal(dec("100000")))
	require.True(t, updated.Remaining.Equal(decimal.Zero), "remaining %s", updated.Remaining)
}

func TestUpdateInvoiceSettlesWhenCustomerLookupFails(t *testing.T) {
	svc, repo, led := newTestService()

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	customerID := shared.ID(7)
	repo.customers[7] = &CustomerRef{ID: customerID, Name: "PT Maju Bersama"}

	detail, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: &customerID,
		Items:      []ItemInput{{Description: "Jasa", Quantity: dec("1"), UnitPrice: dec("100000")}},
	})
	require.NoError(t, err)

	repo.customerErr = errors.New("connection reset")

	paid := StatusPaid
	updated, err := svc.UpdateInvoice(context.Background(), detail.ID.Int64(), UpdateInvoicePatch{Status: &paid})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)

	require.Len(t, led.transactions, 1)
	tx := led.transactions[0]
	require.Equal(t, SettlementCategoryName+" "+detail.InvoiceNo, tx.Description)
	require.NotContains(t, tx.Description, "PT Maju Bersama")
	require.Contains(t, logs.String(), "settlement customer lookup")
}

func TestUpdateInvoiceNoSettlementWhenFullyPaid(t *testing.T) {
	svc, repo, led := newTestService()

	detail, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Items: []ItemInput{{Description: "Jasa", Quantity: dec("1"), UnitPrice: dec("100000")}},
	})
	require.NoError(t, err)

	_, err = repo.CreatePayment(context.Background(), &Payment{
		InvoiceID: detail.ID, Amount: dec("100000"), Method: MethodBankTransfer,
	})
	require.NoError(t, err)

	paid := StatusPaid
	updated, err := svc.UpdateInvoice(context.Background(), detail.ID.Int64(), UpdateInvoicePatch{Status: &paid})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)

	require.Len(t, repo.payments[detail.ID.Int64()], 1, "no synthetic payment expected")
	require.Empty(t, led.transactions)
}

func TestUpdateInvoiceReplacesItemsWholesale(t *testing.T) {
	svc, repo, _ := newTestService()

	detail, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Items: []ItemInput{
			{Description: "Lama A", Quantity: dec("1"), UnitPrice: dec("10000")},
			{Description: "Lama B", Quantity: dec("1"), UnitPrice: dec("20000")},
		},
	})
	require.NoError(t, err)

	tax := dec("5000")
	updated, err := svc.UpdateInvoice(context.Background(), detail.ID.Int64(), UpdateInvoicePatch{
		Tax:   &tax,
		Items: []ItemInput{{Description: "Baru", Quantity: dec("3"), UnitPrice: dec("15000")}},
	})
	require.NoError(t, err)

	require.Len(t, updated.Items, 1)
	require.Equal(t, "Baru", updated.Items[0].Description)
	require.True(t, updated.Subtotal.Equal(dec("45000")))
	require.True(t, updated.Total.Equal(dec("50000")))

	items := repo.items[detail.ID.Int64()]
	require.Len(t, items, 1)
}

func TestUpdateInvoiceRecomputesTotalsFromStoredItems(t *testing.T) {
	svc, _, _ := newTestService()

	detail, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Items: []ItemInput{{Description: "Jasa", Quantity: dec("2"), UnitPrice: dec("25000")}},
	})
	require.NoError(t, err)

	discount := dec("10000")
	updated, err := svc.UpdateInvoice(context.Background(), detail.ID.Int64(), UpdateInvoicePatch{Discount: &discount})
	require.NoError(t, err)

	require.True(t, updated.Subtotal.Equal(dec("50000")))
	require.True(t, updated.Total.Equal(dec("40000")))
}

func TestDeleteInvoiceRefusesRelatedData(t *testing.T) {
	svc, repo, _ := newTestService()

	detail, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Items: []ItemInput{{Description: "Jasa", Quantity: dec("1"), UnitPrice: dec("100000")}},
	})
	require.NoError(t, err)

	_, err = repo.CreatePayment(context.Background(), &Payment{
		InvoiceID: detail.ID, Amount: dec("40000"), Method: MethodCash,
	})
	require.NoError(t, err)
	repo.transactions[detail.ID.Int64()] = 2

	_, err = svc.DeleteInvoice(context.Background(), detail.ID.Int64(), false)
	require.ErrorIs(t, err, shared.ErrStateConflict)

	var related *RelatedDataError
	require.True(t, errors.As(err, &related))
	require.Equal(t, 1, related.Payments)
	require.Equal(t, 2, related.Transactions)

	// The invoice is untouched.
	_, err = repo.GetInvoice(context.Background(), detail.ID.Int64())
	require.NoError(t, err)
}

func TestDeleteInvoiceForceCascades(t *testing.T) {
	svc, repo, _ := newTestService()

	detail, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Items: []ItemInput{{Description: "Jasa", Quantity: dec("1"), UnitPrice: dec("100000")}},
	})
	require.NoError(t, err)

	_, err = repo.CreatePayment(context.Background(), &Payment{
		InvoiceID: detail.ID, Amount: dec("40000"), Method: MethodCash,
	})
	require.NoError(t, err)
	repo.transactions[detail.ID.Int64()] = 1

	result, err := svc.DeleteInvoice(context.Background(), detail.ID.Int64(), true)
	require.NoError(t, err)
	require.Equal(t, 1, result.DeletedPayments)
	require.Equal(t, 1, result.DeletedTransactions)

	_, err = repo.GetInvoice(context.Background(), detail.ID.Int64())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteInvoiceNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.DeleteInvoice(context.Background(), 999, false)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMarkOverdueFlipsIssuedPastDue(t *testing.T) {
	svc, repo, _ := newTestService()

	due := time.Now().Add(-48 * time.Hour)
	detail, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		DueDate: &due,
		Items:   []ItemInput{{Description: "Jasa", Quantity: dec("1"), UnitPrice: dec("100000")}},
	})
	require.NoError(t, err)
	repo.invoices[detail.ID.Int64()].Status = StatusIssued

	marked, err := svc.MarkOverdue(context.Background(), time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, marked)
	require.Equal(t, StatusOverdue, repo.invoices[detail.ID.Int64()].Status)
}

func TestInvoiceDetailPaymentSerializesUser(t *testing.T) {
	createdBy := shared.ID(42)
	detail := InvoiceDetail{
		Invoice: Invoice{ID: 1, InvoiceNo: "INV-202608-0001", Status: StatusPartial},
		Payments: []Payment{{
			ID:        2,
			InvoiceID: 1,
			Amount:    dec("40000"),
			Method:    MethodBankTransfer,
			CreatedBy: &createdBy,
			User:      &UserRef{ID: 42, Name: "Admin"},
		}},
	}

	body, err := json.Marshal(detail)
	require.NoError(t, err)
	require.Contains(t, string(body), `"createdBy":"42"`)
	require.Contains(t, string(body), `"user":{"id":"42","name":"Admin"}`)
}
