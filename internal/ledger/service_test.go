package ledger

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fakturku/fakturku/internal/shared"
)

type fakeRepo struct {
	transactions map[int64]*Transaction
	categories   []*Category
	nextID       int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{transactions: map[int64]*Transaction{}}
}

func (f *fakeRepo) CreateTransaction(ctx context.Context, tx *Transaction) (*Transaction, error) {
	f.nextID++
	tx.ID = shared.ID(f.nextID)
	tx.CreatedAt = time.Now()
	f.transactions[f.nextID] = tx
	return tx, nil
}

func (f *fakeRepo) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	tx, ok := f.transactions[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *tx
	return &clone, nil
}

func (f *fakeRepo) ListTransactions(ctx context.Context, req ListTransactionsRequest) ([]Transaction, int, error) {
	out := make([]Transaction, 0, len(f.transactions))
	for _, tx := range f.transactions {
		out = append(out, *tx)
	}
	return out, len(out), nil
}

func (f *fakeRepo) UpdateTransaction(ctx context.Context, tx *Transaction) error {
	if _, ok := f.transactions[tx.ID.Int64()]; !ok {
		return shared.ErrNotFound
	}
	clone := *tx
	f.transactions[tx.ID.Int64()] = &clone
	return nil
}

func (f *fakeRepo) DeleteTransaction(ctx context.Context, id int64) error {
	if _, ok := f.transactions[id]; !ok {
		return shared.ErrNotFound
	}
	delete(f.transactions, id)
	return nil
}

func (f *fakeRepo) SummarizeMonth(ctx context.Context, month, year int) (MonthlySummary, error) {
	summary := MonthlySummary{Month: month, Year: year, Income: decimal.Zero, Expense: decimal.Zero}
	for _, tx := range f.transactions {
		if tx.Month != month || tx.Year != year {
			continue
		}
		if tx.Type == TypeIncome {
			summary.Income = summary.Income.Add(tx.Amount)
		} else {
			summary.Expense = summary.Expense.Add(tx.Amount)
		}
	}
	summary.Net = summary.Income.Sub(summary.Expense)
	return summary, nil
}

func (f *fakeRepo) CreateCategory(ctx context.Context, cat *Category) (*Category, error) {
	f.nextID++
	cat.ID = shared.ID(f.nextID)
	f.categories = append(f.categories, cat)
	return cat, nil
}

func (f *fakeRepo) FindCategory(ctx context.Context, name string, catType TransactionType) (*Category, error) {
	for _, c := range f.categories {
		if c.Name == name && c.Type == catType {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) ListCategories(ctx context.Context, catType TransactionType) ([]Category, error) {
	out := make([]Category, 0, len(f.categories))
	for _, c := range f.categories {
		if catType != "" && c.Type != catType {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeRepo) DeleteCategory(ctx context.Context, id int64) error {
	for i, c := range f.categories {
		if c.ID.Int64() == id {
			f.categories = append(f.categories[:i], f.categories[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCreateTransactionDerivesPeriod(t *testing.T) {
	svc := NewService(newFakeRepo())

	when := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	tx, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		Type:            TypeExpense,
		TransactionDate: when,
		Description:     "Sewa kantor",
		Amount:          dec("2500000"),
	})
	require.NoError(t, err)
	require.Equal(t, 3, tx.Month)
	require.Equal(t, 2026, tx.Year)
}

func TestCreateTransactionDefaultsDateToNow(t *testing.T) {
	svc := NewService(newFakeRepo())

	tx, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		Type:        TypeIncome,
		Description: "Penjualan tunai",
		Amount:      dec("100000"),
	})
	require.NoError(t, err)
	require.False(t, tx.TransactionDate.IsZero())
	require.Equal(t, int(tx.TransactionDate.Month()), tx.Month)
}

func TestCreateTransactionValidation(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		Type: "TRANSFER", Description: "x", Amount: dec("1"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateTransaction(context.Background(), CreateTransactionInput{
		Type: TypeIncome, Amount: dec("1"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateTransaction(context.Background(), CreateTransactionInput{
		Type: TypeIncome, Description: "x", Amount: dec("-5"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateTransactionMovesPeriodWithDate(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	tx, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		Type:            TypeIncome,
		TransactionDate: time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
		Description:     "Penjualan",
		Amount:          dec("50000"),
	})
	require.NoError(t, err)

	moved := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	updated, err := svc.UpdateTransaction(context.Background(), tx.ID.Int64(), UpdateTransactionPatch{
		TransactionDate: &moved,
	})
	require.NoError(t, err)
	require.Equal(t, 7, updated.Month)
	require.Equal(t, 2026, updated.Year)
}

func TestFindOrCreateCategoryIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	first, err := svc.FindOrCreateCategory(context.Background(), "Pembayaran Invoice", TypeIncome)
	require.NoError(t, err)
	second, err := svc.FindOrCreateCategory(context.Background(), "Pembayaran Invoice", TypeIncome)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.categories, 1)

	// Same name with a different type is a distinct category.
	other, err := svc.FindOrCreateCategory(context.Background(), "Pembayaran Invoice", TypeExpense)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID)
	require.Len(t, repo.categories, 2)
}

func TestSummarizeMonth(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	when := time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)
	for _, in := range []CreateTransactionInput{
		{Type: TypeIncome, TransactionDate: when, Description: "Invoice A", Amount: dec("150000")},
		{Type: TypeIncome, TransactionDate: when, Description: "Invoice B", Amount: dec("50000")},
		{Type: TypeExpense, TransactionDate: when, Description: "Listrik", Amount: dec("75000")},
	} {
		_, err := svc.CreateTransaction(context.Background(), in)
		require.NoError(t, err)
	}

	summary, err := svc.SummarizeMonth(context.Background(), 8, 2026)
	require.NoError(t, err)
	require.True(t, summary.Income.Equal(dec("200000")))
	require.True(t, summary.Expense.Equal(dec("75000")))
	require.True(t, summary.Net.Equal(dec("125000")))

	_, err = svc.SummarizeMonth(context.Background(), 13, 2026)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestWriteCSV(t *testing.T) {
	when := time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)
	category := &Category{ID: shared.ID(1), Name: "Pembayaran Invoice", Type: TypeIncome}
	transactions := []Transaction{
		{
			Type:            TypeIncome,
			TransactionDate: when,
			Description:     "Pembayaran Invoice INV-202608-0001",
			Amount:          dec("1500000"),
			Reference:       "INV-202608-0001",
			Category:        category,
		},
		{
			Type:            TypeExpense,
			TransactionDate: when,
			Description:     "Listrik",
			Amount:          dec("75000.50"),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, transactions, 8, 2026))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "# Transaksi 08/2026"))
	require.Contains(t, out, "Tanggal,Tipe,Deskripsi,Kategori,Referensi,Jumlah")
	require.Contains(t, out, "2026-08-10,INCOME,Pembayaran Invoice INV-202608-0001,Pembayaran Invoice,INV-202608-0001,1500000")
	require.Contains(t, out, "1.500.000")
}

func TestFormatAmountIndonesianGrouping(t *testing.T) {
	require.Equal(t, "1.500.000", FormatAmount(dec("1500000")))
	require.Equal(t, "1.234,5", FormatAmount(dec("1234.5")))
}
