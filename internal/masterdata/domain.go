package masterdata

import (
	"time"

	"github.com/fakturku/fakturku/internal/shared"
)

// Customer record.
type Customer struct {
	ID        shared.ID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CustomerInput for create and update.
type CustomerInput struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// User record. The password hash never crosses the JSON boundary.
type User struct {
	ID           shared.ID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserInput for create and update. Password is optional on update.
type UserInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"omitempty,oneof=ADMIN STAFF"`
	Password string `json:"password"`
}

// InvoiceTemplate holds an HTML layout for invoice print and PDF preview.
type InvoiceTemplate struct {
	ID        shared.ID `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TemplateInput for create and update. Name is unique across templates.
type TemplateInput struct {
	Name      string `json:"name" validate:"required"`
	Content   string `json:"content" validate:"required"`
	IsDefault bool   `json:"isDefault"`
}
