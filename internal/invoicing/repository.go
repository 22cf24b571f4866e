package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fakturku/fakturku/internal/ledger"
	"github.com/fakturku/fakturku/internal/platform/db"
	"github.com/fakturku/fakturku/internal/shared"
)

// Repository provides PostgreSQL backed persistence for invoicing.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, invoice_no, customer_id, user_id, status, issue_date, due_date,
	subtotal, discount, tax, total, currency, notes, created_at, updated_at`

// CreateInvoice persists the invoice and its items in one transaction.
func (r *Repository) CreateInvoice(ctx context.Context, inv *Invoice, items []InvoiceItem) (*Invoice, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO invoices (
				invoice_no, customer_id, user_id, status, issue_date, due_date,
				subtotal, discount, tax, total, currency, notes, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
			RETURNING id, created_at, updated_at`

		err := tx.QueryRow(ctx, query,
			inv.InvoiceNo,
			optionalID(inv.CustomerID),
			optionalID(inv.UserID),
			string(inv.Status),
			optionalDate(inv.IssueDate),
			optionalDate(inv.DueDate),
			inv.Subtotal,
			inv.Discount,
			inv.Tax,
			inv.Total,
			inv.Currency,
			inv.Notes,
		).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
		if err != nil {
			return err
		}
		return insertItems(ctx, tx, inv.ID.Int64(), items)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetInvoice retrieves an invoice row by ID.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	query := "SELECT " + invoiceColumns + " FROM invoices WHERE id = $1"
	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	return inv, err
}

// GetInvoiceDetail retrieves an invoice with customer, user, items,
// payments, transactions and computed balances.
func (r *Repository) GetInvoiceDetail(ctx context.Context, id int64) (*InvoiceDetail, error) {
	inv, err := r.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &InvoiceDetail{Invoice: *inv}

	if inv.CustomerID != nil {
		detail.Customer, err = r.GetCustomerRef(ctx, inv.CustomerID.Int64())
		if err != nil {
			return nil, err
		}
	}
	if inv.UserID != nil {
		detail.User, err = r.getUserRef(ctx, inv.UserID.Int64())
		if err != nil {
			return nil, err
		}
	}

	detail.Items, err = r.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Payments, err = r.listPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Transactions, err = r.listTransactions(ctx, id)
	if err != nil {
		return nil, err
	}

	detail.TotalPaid, err = r.SumPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Remaining = inv.Total.Sub(detail.TotalPaid)
	return detail, nil
}

// invoice list sort keys exposed to the API.
var sortColumns = map[string]string{
	"invoiceNo": "i.invoice_no",
	"issueDate": "i.issue_date",
	"dueDate":   "i.due_date",
	"total":     "i.total",
	"status":    "i.status",
	"createdAt": "i.created_at",
}

func listFilters(req ListInvoicesRequest, includeStatus bool) (string, []any) {
	where := " WHERE 1=1"
	args := []any{}
	argNum := 1

	if includeStatus && req.Status != "" {
		where += fmt.Sprintf(" AND i.status = $%d", argNum)
		args = append(args, string(req.Status))
		argNum++
	}
	if req.CustomerID > 0 {
		where += fmt.Sprintf(" AND i.customer_id = $%d", argNum)
		args = append(args, req.CustomerID)
		argNum++
	}
	if req.UserID > 0 {
		where += fmt.Sprintf(" AND i.user_id = $%d", argNum)
		args = append(args, req.UserID)
		argNum++
	}
	if req.Year > 0 {
		where += fmt.Sprintf(" AND EXTRACT(YEAR FROM COALESCE(i.issue_date, i.created_at)) = $%d", argNum)
		args = append(args, req.Year)
		argNum++
	}
	if req.Month > 0 {
		where += fmt.Sprintf(" AND EXTRACT(MONTH FROM COALESCE(i.issue_date, i.created_at)) = $%d", argNum)
		args = append(args, req.Month)
		argNum++
	}
	if req.Day > 0 {
		where += fmt.Sprintf(" AND EXTRACT(DAY FROM COALESCE(i.issue_date, i.created_at)) = $%d", argNum)
		args = append(args, req.Day)
		argNum++
	}
	if req.Search != "" {
		where += fmt.Sprintf(` AND (i.invoice_no ILIKE $%d OR i.notes ILIKE $%d
			OR EXISTS (SELECT 1 FROM customers c WHERE c.id = i.customer_id AND c.name ILIKE $%d))`,
			argNum, argNum, argNum)
		args = append(args, "%"+req.Search+"%")
		argNum++
	}
	return where, args
}

// ListInvoices returns invoices matching the filters plus the total count.
func (r *Repository) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	where, args := listFilters(req, true)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM invoices i"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orderBy := "i.created_at DESC"
	if col, ok := sortColumns[req.SortBy]; ok {
		orderBy = col + " DESC"
	}

	query := "SELECT " + prefixColumns("i") + " FROM invoices i" + where +
		" ORDER BY " + orderBy +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, req.Limit, (req.Page-1)*req.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *inv)
	}
	return out, total, rows.Err()
}

// CountByStatus returns the summary counts for the filtered set,
// ignoring the status filter itself.
func (r *Repository) CountByStatus(ctx context.Context, req ListInvoicesRequest) (ListSummary, error) {
	where, args := listFilters(req, false)
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE i.status = 'PAID'),
			COUNT(*) FILTER (WHERE i.status IN ('DRAFT', 'ISSUED', 'PARTIAL', 'OVERDUE'))
		FROM invoices i` + where

	var summary ListSummary
	err := r.pool.QueryRow(ctx, query, args...).Scan(&summary.Total, &summary.Paid, &summary.Pending)
	return summary, err
}

// UpdateInvoice persists the invoice's scalar fields.
func (r *Repository) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	query := `
		UPDATE invoices
		SET customer_id = $2, status = $3, issue_date = $4, due_date = $5,
			subtotal = $6, discount = $7, tax = $8, total = $9,
			currency = $10, notes = $11, updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		inv.ID.Int64(),
		optionalID(inv.CustomerID),
		string(inv.Status),
		optionalDate(inv.IssueDate),
		optionalDate(inv.DueDate),
		inv.Subtotal,
		inv.Discount,
		inv.Tax,
		inv.Total,
		inv.Currency,
		inv.Notes,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// ReplaceItems deletes all existing items and inserts the replacements.
func (r *Repository) ReplaceItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM invoice_items WHERE invoice_id = $1", invoiceID); err != nil {
			return err
		}
		return insertItems(ctx, tx, invoiceID, items)
	})
}

// ListItems returns the line items of an invoice in insertion order.
func (r *Repository) ListItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, description, product_sku, quantity, unit_price, discount, subtotal
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InvoiceItem
	for rows.Next() {
		var item InvoiceItem
		err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &item.ProductSKU,
			&item.Quantity, &item.UnitPrice, &item.Discount, &item.Subtotal)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SumPayments returns the cumulative payment amount for an invoice.
func (r *Repository) SumPayments(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM invoice_payments WHERE invoice_id = $1",
		invoiceID,
	).Scan(&sum)
	return sum, err
}

// CreatePayment inserts a payment row.
func (r *Repository) CreatePayment(ctx context.Context, p *Payment) (*Payment, error) {
	query := `
		INSERT INTO invoice_payments (
			invoice_id, amount, payment_date, payment_method, reference_no, notes, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		p.InvoiceID.Int64(),
		p.Amount,
		p.PaymentDate,
		string(p.Method),
		p.ReferenceNo,
		p.Notes,
		optionalID(p.CreatedBy),
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CountRelated counts payments and transactions still owned by an invoice.
func (r *Repository) CountRelated(ctx context.Context, invoiceID int64) (payments, transactions int, err error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM invoice_payments WHERE invoice_id = $1),
			(SELECT COUNT(*) FROM transactions WHERE invoice_id = $1)`
	err = r.pool.QueryRow(ctx, query, invoiceID).Scan(&payments, &transactions)
	return
}

// DeleteInvoiceCascade removes transactions, then payments, then the
// invoice itself. Items go with the invoice via ON DELETE CASCADE.
func (r *Repository) DeleteInvoiceCascade(ctx context.Context, invoiceID int64) (DeleteResult, error) {
	var result DeleteResult
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM transactions WHERE invoice_id = $1", invoiceID)
		if err != nil {
			return err
		}
		result.DeletedTransactions = int(tag.RowsAffected())

		tag, err = tx.Exec(ctx, "DELETE FROM invoice_payments WHERE invoice_id = $1", invoiceID)
		if err != nil {
			return err
		}
		result.DeletedPayments = int(tag.RowsAffected())

		tag, err = tx.Exec(ctx, "DELETE FROM invoices WHERE id = $1", invoiceID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrInvoiceNotFound
		}
		return nil
	})
	return result, err
}

// NextInvoiceNumber generates the next number in the INV-YYYYMM-NNNN
// sequence. Uniqueness is ultimately guaranteed by the database
// constraint on invoice_no; a collision surfaces as a Conflict.
func (r *Repository) NextInvoiceNumber(ctx context.Context) (string, error) {
	prefix := "INV-" + time.Now().Format("200601") + "-"
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM invoices WHERE invoice_no LIKE $1",
		prefix+"%",
	).Scan(&count)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

// GetCustomerRef returns the customer fields invoice views need.
func (r *Repository) GetCustomerRef(ctx context.Context, id int64) (*CustomerRef, error) {
	var ref CustomerRef
	err := r.pool.QueryRow(ctx,
		"SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(address, '') FROM customers WHERE id = $1",
		id,
	).Scan(&ref.ID, &ref.Name, &ref.Email, &ref.Phone, &ref.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// MarkOverdue flips ISSUED and PARTIAL invoices past their due date.
func (r *Repository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET status = 'OVERDUE', updated_at = NOW()
		WHERE status IN ('ISSUED', 'PARTIAL')
			AND due_date IS NOT NULL
			AND due_date < $1`,
		asOf,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// --- internals ---

func (r *Repository) getUserRef(ctx context.Context, id int64) (*UserRef, error) {
	var ref UserRef
	err := r.pool.QueryRow(ctx, "SELECT id, name FROM users WHERE id = $1", id).Scan(&ref.ID, &ref.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *Repository) listPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	query := `
		SELECT p.id, p.invoice_id, p.amount, p.payment_date, p.payment_method,
			COALESCE(p.reference_no, ''), COALESCE(p.notes, ''), p.created_by, p.created_at,
			u.id, u.name
		FROM invoice_payments p
		LEFT JOIN users u ON u.id = p.created_by
		WHERE p.invoice_id = $1
		ORDER BY p.payment_date, p.id`

	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		var createdBy, userID pgtype.Int8
		var userName pgtype.Text
		err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.PaymentDate, &p.Method,
			&p.ReferenceNo, &p.Notes, &createdBy, &p.CreatedAt, &userID, &userName)
		if err != nil {
			return nil, err
		}
		p.CreatedBy = idPtr(createdBy)
		if userID.Valid {
			p.User = &UserRef{ID: shared.ID(userID.Int64), Name: userName.String}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) listTransactions(ctx context.Context, invoiceID int64) ([]ledger.Transaction, error) {
	query := `
		SELECT t.id, t.type, t.transaction_date, t.month, t.year, t.description,
			t.amount, t.reference, t.category_id, t.user_id, t.created_at, t.updated_at,
			c.id, c.name, c.type, c.created_at
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.invoice_id = $1
		ORDER BY t.transaction_date, t.id`

	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invID := shared.ID(invoiceID)
	var out []ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		var categoryID, userID pgtype.Int8
		var catID pgtype.Int8
		var catName, catType pgtype.Text
		var catCreatedAt pgtype.Timestamptz

		err := rows.Scan(&tx.ID, &tx.Type, &tx.TransactionDate, &tx.Month, &tx.Year,
			&tx.Description, &tx.Amount, &tx.Reference, &categoryID, &userID,
			&tx.CreatedAt, &tx.UpdatedAt,
			&catID, &catName, &catType, &catCreatedAt)
		if err != nil {
			return nil, err
		}

		tx.InvoiceID = &invID
		tx.CategoryID = idPtr(categoryID)
		tx.UserID = idPtr(userID)
		if catID.Valid {
			tx.Category = &ledger.Category{
				ID:        shared.ID(catID.Int64),
				Name:      catName.String,
				Type:      ledger.TransactionType(catType.String),
				CreatedAt: catCreatedAt.Time,
			}
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func insertItems(ctx context.Context, tx pgx.Tx, invoiceID int64, items []InvoiceItem) error {
	query := `
		INSERT INTO invoice_items (invoice_id, description, product_sku, quantity, unit_price, discount, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, item := range items {
		_, err := tx.Exec(ctx, query,
			invoiceID,
			item.Description,
			item.ProductSKU,
			item.Quantity,
			item.UnitPrice,
			item.Discount,
			item.Subtotal,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*Invoice, error) {
	var inv Invoice
	var customerID, userID pgtype.Int8
	var issueDate, dueDate pgtype.Date
	var notes pgtype.Text

	err := row.Scan(
		&inv.ID, &inv.InvoiceNo, &customerID, &userID, &inv.Status, &issueDate, &dueDate,
		&inv.Subtotal, &inv.Discount, &inv.Tax, &inv.Total, &inv.Currency, &notes,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.CustomerID = idPtr(customerID)
	inv.UserID = idPtr(userID)
	if issueDate.Valid {
		t := issueDate.Time
		inv.IssueDate = &t
	}
	if dueDate.Valid {
		t := dueDate.Time
		inv.DueDate = &t
	}
	inv.Notes = notes.String
	return &inv, nil
}

func prefixColumns(alias string) string {
	return alias + ".id, " + alias + ".invoice_no, " + alias + ".customer_id, " + alias + ".user_id, " +
		alias + ".status, " + alias + ".issue_date, " + alias + ".due_date, " +
		alias + ".subtotal, " + alias + ".discount, " + alias + ".tax, " + alias + ".total, " +
		alias + ".currency, " + alias + ".notes, " + alias + ".created_at, " + alias + ".updated_at"
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

func optionalDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}
