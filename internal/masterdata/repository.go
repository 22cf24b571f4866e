package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fakturku/fakturku/internal/shared"
)

// Repository provides PostgreSQL backed persistence for master data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// --- Customers ---

func (r *Repository) CreateCustomer(ctx context.Context, c *Customer) (*Customer, error) {
	query := `
		INSERT INTO customers (name, email, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query, c.Name, c.Email, c.Phone, c.Address).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repository) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	query := `
		SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(address, ''),
			created_at, updated_at
		FROM customers WHERE id = $1`
	var c Customer
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) ListCustomers(ctx context.Context, search string) ([]Customer, error) {
	query := `
		SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(address, ''),
			created_at, updated_at
		FROM customers`
	args := []any{}
	if search != "" {
		query += " WHERE name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1"
		args = append(args, "%"+search+"%")
	}
	query += " ORDER BY name"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateCustomer(ctx context.Context, c *Customer) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE customers
		SET name = $2, email = $3, phone = $4, address = $5, updated_at = NOW()
		WHERE id = $1`,
		c.ID.Int64(), c.Name, c.Email, c.Phone, c.Address)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", c.ID.Int64(), shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteCustomer(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM customers WHERE id = $1", id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// --- Users ---

func (r *Repository) CreateUser(ctx context.Context, u *User) (*User, error) {
	query := `
		INSERT INTO users (name, email, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query, u.Name, u.Email, u.Role, u.PasswordHash).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT id, name, email, role, password_hash, created_at, updated_at
		FROM users WHERE id = $1`
	var u User
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, role, password_hash, created_at, updated_at
		FROM users ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateUser(ctx context.Context, u *User) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users
		SET name = $2, email = $3, role = $4, password_hash = $5, updated_at = NOW()
		WHERE id = $1`,
		u.ID.Int64(), u.Name, u.Email, u.Role, u.PasswordHash)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", u.ID.Int64(), shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// --- Invoice templates ---

func (r *Repository) CreateTemplate(ctx context.Context, t *InvoiceTemplate) (*InvoiceTemplate, error) {
	query := `
		INSERT INTO invoice_templates (name, content, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query, t.Name, t.Content, t.IsDefault).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Repository) GetTemplate(ctx context.Context, id int64) (*InvoiceTemplate, error) {
	query := `
		SELECT id, name, content, is_default, created_at, updated_at
		FROM invoice_templates WHERE id = $1`
	var t InvoiceTemplate
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&t.ID, &t.Name, &t.Content, &t.IsDefault, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("template %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) GetDefaultTemplate(ctx context.Context) (*InvoiceTemplate, error) {
	query := `
		SELECT id, name, content, is_default, created_at, updated_at
		FROM invoice_templates
		WHERE is_default ORDER BY id LIMIT 1`
	var t InvoiceTemplate
	err := r.pool.QueryRow(ctx, query).
		Scan(&t.ID, &t.Name, &t.Content, &t.IsDefault, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("default template: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) ListTemplates(ctx context.Context) ([]InvoiceTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, content, is_default, created_at, updated_at
		FROM invoice_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvoiceTemplate
	for rows.Next() {
		var t InvoiceTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.Content, &t.IsDefault, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateTemplate(ctx context.Context, t *InvoiceTemplate) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE invoice_templates
		SET name = $2, content = $3, is_default = $4, updated_at = NOW()
		WHERE id = $1`,
		t.ID.Int64(), t.Name, t.Content, t.IsDefault)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("template %d: %w", t.ID.Int64(), shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteTemplate(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM invoice_templates WHERE id = $1", id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("template %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) ClearDefaultTemplate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, "UPDATE invoice_templates SET is_default = FALSE WHERE is_default")
	return err
}
