package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fakturku/fakturku/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTransaction inserts a ledger entry.
func (r *Repository) CreateTransaction(ctx context.Context, tx *Transaction) (*Transaction, error) {
	query := `
		INSERT INTO transactions (
			type, transaction_date, month, year, description, amount,
			reference, category_id, invoice_id, user_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		string(tx.Type),
		tx.TransactionDate,
		tx.Month,
		tx.Year,
		tx.Description,
		tx.Amount,
		tx.Reference,
		optionalID(tx.CategoryID),
		optionalID(tx.InvoiceID),
		optionalID(tx.UserID),
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// GetTransaction retrieves a transaction with its category, if any.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	query := `
		SELECT t.id, t.type, t.transaction_date, t.month, t.year, t.description,
			t.amount, t.reference, t.category_id, t.invoice_id, t.user_id,
			t.created_at, t.updated_at,
			c.id, c.name, c.type, c.created_at
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.id = $1`

	tx, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transaction %d: %w", id, shared.ErrNotFound)
	}
	return tx, err
}

// ListTransactions returns filtered transactions and the total row count.
func (r *Repository) ListTransactions(ctx context.Context, req ListTransactionsRequest) ([]Transaction, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argNum := 1

	if req.Type != "" {
		where += fmt.Sprintf(" AND t.type = $%d", argNum)
		args = append(args, string(req.Type))
		argNum++
	}
	if req.Month > 0 {
		where += fmt.Sprintf(" AND t.month = $%d", argNum)
		args = append(args, req.Month)
		argNum++
	}
	if req.Year > 0 {
		where += fmt.Sprintf(" AND t.year = $%d", argNum)
		args = append(args, req.Year)
		argNum++
	}
	if req.CategoryID > 0 {
		where += fmt.Sprintf(" AND t.category_id = $%d", argNum)
		args = append(args, req.CategoryID)
		argNum++
	}
	if req.InvoiceID > 0 {
		where += fmt.Sprintf(" AND t.invoice_id = $%d", argNum)
		args = append(args, req.InvoiceID)
		argNum++
	}
	if req.Search != "" {
		where += fmt.Sprintf(" AND (t.description ILIKE $%d OR t.reference ILIKE $%d)", argNum, argNum)
		args = append(args, "%"+req.Search+"%")
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM transactions t"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT t.id, t.type, t.transaction_date, t.month, t.year, t.description,
			t.amount, t.reference, t.category_id, t.invoice_id, t.user_id,
			t.created_at, t.updated_at,
			c.id, c.name, c.type, c.created_at
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id` + where +
		" ORDER BY t.transaction_date DESC, t.id DESC"

	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
		args = append(args, req.Limit, (req.Page-1)*req.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *tx)
	}
	return out, total, rows.Err()
}

// UpdateTransaction persists a full transaction row.
func (r *Repository) UpdateTransaction(ctx context.Context, tx *Transaction) error {
	query := `
		UPDATE transactions
		SET type = $2, transaction_date = $3, month = $4, year = $5,
			description = $6, amount = $7, reference = $8, category_id = $9,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		tx.ID.Int64(),
		string(tx.Type),
		tx.TransactionDate,
		tx.Month,
		tx.Year,
		tx.Description,
		tx.Amount,
		tx.Reference,
		optionalID(tx.CategoryID),
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d: %w", tx.ID.Int64(), shared.ErrNotFound)
	}
	return nil
}

// DeleteTransaction removes a single entry.
func (r *Repository) DeleteTransaction(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM transactions WHERE id = $1", id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// SummarizeMonth aggregates income and expense totals for a month.
func (r *Repository) SummarizeMonth(ctx context.Context, month, year int) (MonthlySummary, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'INCOME'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'EXPENSE'), 0)
		FROM transactions
		WHERE month = $1 AND year = $2`

	var income, expense decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, month, year).Scan(&income, &expense); err != nil {
		return MonthlySummary{}, err
	}
	return MonthlySummary{
		Month:   month,
		Year:    year,
		Income:  income,
		Expense: expense,
		Net:     income.Sub(expense),
	}, nil
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, cat *Category) (*Category, error) {
	query := `
		INSERT INTO categories (name, type, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, cat.Name, string(cat.Type)).Scan(&cat.ID, &cat.CreatedAt)
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// FindCategory returns the first category matching name and type, or nil.
func (r *Repository) FindCategory(ctx context.Context, name string, catType TransactionType) (*Category, error) {
	query := `
		SELECT id, name, type, created_at
		FROM categories
		WHERE name = $1 AND type = $2
		ORDER BY id
		LIMIT 1`

	var cat Category
	err := r.pool.QueryRow(ctx, query, name, string(catType)).Scan(&cat.ID, &cat.Name, &cat.Type, &cat.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// ListCategories returns categories, optionally filtered by type.
func (r *Repository) ListCategories(ctx context.Context, catType TransactionType) ([]Category, error) {
	query := "SELECT id, name, type, created_at FROM categories"
	args := []any{}
	if catType != "" {
		query += " WHERE type = $1"
		args = append(args, string(catType))
	}
	query += " ORDER BY name"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var cat Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Type, &cat.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, rows.Err()
}

// DeleteCategory removes a category.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("category %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var tx Transaction
	var categoryID, invoiceID, userID pgtype.Int8
	var catID pgtype.Int8
	var catName, catType pgtype.Text
	var catCreatedAt pgtype.Timestamptz

	err := row.Scan(
		&tx.ID, &tx.Type, &tx.TransactionDate, &tx.Month, &tx.Year, &tx.Description,
		&tx.Amount, &tx.Reference, &categoryID, &invoiceID, &userID,
		&tx.CreatedAt, &tx.UpdatedAt,
		&catID, &catName, &catType, &catCreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.CategoryID = idPtr(categoryID)
	tx.InvoiceID = idPtr(invoiceID)
	tx.UserID = idPtr(userID)
	if catID.Valid {
		tx.Category = &Category{
			ID:        shared.ID(catID.Int64),
			Name:      catName.String,
			Type:      TransactionType(catType.String),
			CreatedAt: catCreatedAt.Time,
		}
	}
	return &tx, nil
}

func idPtr(v pgtype.Int8) *shared.ID {
	if !v.Valid {
		return nil
	}
	id := shared.ID(v.Int64)
	return &id
}

func optionalID(id *shared.ID) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: id.Int64(), Valid: true}
}
