package masterdata

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/fakturku/fakturku/internal/shared"
)

// RepositoryPort defines data access methods for master data.
type RepositoryPort interface {
	CreateCustomer(ctx context.Context, c *Customer) (*Customer, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	ListCustomers(ctx context.Context, search string) ([]Customer, error)
	UpdateCustomer(ctx context.Context, c *Customer) error
	DeleteCustomer(ctx context.Context, id int64) error

	CreateUser(ctx context.Context, u *User) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id int64) error

	CreateTemplate(ctx context.Context, t *InvoiceTemplate) (*InvoiceTemplate, error)
	GetTemplate(ctx context.Context, id int64) (*InvoiceTemplate, error)
	GetDefaultTemplate(ctx context.Context) (*InvoiceTemplate, error)
	ListTemplates(ctx context.Context) ([]InvoiceTemplate, error)
	UpdateTemplate(ctx context.Context, t *InvoiceTemplate) error
	DeleteTemplate(ctx context.Context, id int64) error
	ClearDefaultTemplate(ctx context.Context) error
}

// Service handles master data business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// --- Customers ---

func (s *Service) CreateCustomer(ctx context.Context, input CustomerInput) (*Customer, error) {
	return s.repo.CreateCustomer(ctx, &Customer{
		Name:    input.Name,
		Email:   input.Email,
		Phone:   input.Phone,
		Address: input.Address,
	})
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *Service) ListCustomers(ctx context.Context, search string) ([]Customer, error) {
	return s.repo.ListCustomers(ctx, search)
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, input CustomerInput) (*Customer, error) {
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = input.Name
	c.Email = input.Email
	c.Phone = input.Phone
	c.Address = input.Address
	if err := s.repo.UpdateCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	return s.repo.DeleteCustomer(ctx, id)
}

// --- Users ---

// CreateUser hashes the password with bcrypt before persisting.
func (s *Service) CreateUser(ctx context.Context, input UserInput) (*User, error) {
	if input.Password == "" {
		return nil, fmt.Errorf("%w: password is required", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	role := input.Role
	if role == "" {
		role = "STAFF"
	}
	return s.repo.CreateUser(ctx, &User{
		Name:         input.Name,
		Email:        input.Email,
		Role:         role,
		PasswordHash: string(hash),
	})
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// UpdateUser rehashes the password only when a new one is supplied.
func (s *Service) UpdateUser(ctx context.Context, id int64, input UserInput) (*User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Name = input.Name
	u.Email = input.Email
	if input.Role != "" {
		u.Role = input.Role
	}
	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = string(hash)
	}
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	return s.repo.DeleteUser(ctx, id)
}

// --- Invoice templates ---

// CreateTemplate stores a template; marking it default clears the
// previous default first.
func (s *Service) CreateTemplate(ctx context.Context, input TemplateInput) (*InvoiceTemplate, error) {
	if input.IsDefault {
		if err := s.repo.ClearDefaultTemplate(ctx); err != nil {
			return nil, err
		}
	}
	return s.repo.CreateTemplate(ctx, &InvoiceTemplate{
		Name:      input.Name,
		Content:   input.Content,
		IsDefault: input.IsDefault,
	})
}

func (s *Service) GetTemplate(ctx context.Context, id int64) (*InvoiceTemplate, error) {
	return s.repo.GetTemplate(ctx, id)
}

// GetDefaultTemplate returns the template marked default, or
// shared.ErrNotFound when none is set.
func (s *Service) GetDefaultTemplate(ctx context.Context) (*InvoiceTemplate, error) {
	return s.repo.GetDefaultTemplate(ctx)
}

func (s *Service) ListTemplates(ctx context.Context) ([]InvoiceTemplate, error) {
	return s.repo.ListTemplates(ctx)
}

func (s *Service) UpdateTemplate(ctx context.Context, id int64, input TemplateInput) (*InvoiceTemplate, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.IsDefault && !t.IsDefault {
		if err := s.repo.ClearDefaultTemplate(ctx); err != nil {
			return nil, err
		}
	}
	t.Name = input.Name
	t.Content = input.Content
	t.IsDefault = input.IsDefault
	if err := s.repo.UpdateTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, id int64) error {
	return s.repo.DeleteTemplate(ctx, id)
}
