package invoicing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fakturku/fakturku/internal/ledger"
	"github.com/fakturku/fakturku/internal/shared"
)

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "DRAFT"
	StatusIssued    InvoiceStatus = "ISSUED"
	StatusPartial   InvoiceStatus = "PARTIAL"
	StatusPaid      InvoiceStatus = "PAID"
	StatusCancelled InvoiceStatus = "CANCELLED"
	StatusOverdue   InvoiceStatus = "OVERDUE"
)

// Valid reports whether the status is a known value.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusIssued, StatusPartial, StatusPaid, StatusCancelled, StatusOverdue:
		return true
	}
	return false
}

// PaymentMethod enumerates how money was received.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCreditCard   PaymentMethod = "CREDIT_CARD"
	MethodEWallet      PaymentMethod = "E_WALLET"
	MethodCheck        PaymentMethod = "CHECK"
)

// Valid reports whether the method is a known value.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCreditCard, MethodEWallet, MethodCheck:
		return true
	}
	return false
}

// Invoice is a bill issued to a customer. Total always equals
// subtotal - discount + tax after any mutating operation.
type Invoice struct {
	ID         shared.ID       `json:"id"`
	InvoiceNo  string          `json:"invoiceNo"`
	CustomerID *shared.ID      `json:"customerId"`
	UserID     *shared.ID      `json:"userId"`
	Status     InvoiceStatus   `json:"status"`
	IssueDate  *time.Time      `json:"issueDate"`
	DueDate    *time.Time      `json:"dueDate"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency"`
	Notes      string          `json:"notes,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// InvoiceItem is one billable line, owned exclusively by one invoice.
// Subtotal is derived: quantity * unitPrice - discount.
type InvoiceItem struct {
	ID          shared.ID       `json:"id"`
	InvoiceID   shared.ID       `json:"invoiceId"`
	Description string          `json:"description"`
	ProductSKU  string          `json:"productSku,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Discount    decimal.Decimal `json:"discount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Payment is a receipt of money against an invoice.
type Payment struct {
	ID          shared.ID       `json:"id"`
	InvoiceID   shared.ID       `json:"invoiceId"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"paymentDate"`
	Method      PaymentMethod   `json:"paymentMethod"`
	ReferenceNo string          `json:"referenceNo,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	CreatedBy   *shared.ID      `json:"createdBy"`
	User        *UserRef        `json:"user,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// CustomerRef is the slice of customer data the invoice views need.
type CustomerRef struct {
	ID      shared.ID `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email,omitempty"`
	Phone   string    `json:"phone,omitempty"`
	Address string    `json:"address,omitempty"`
}

// UserRef identifies the creating user in invoice views.
type UserRef struct {
	ID   shared.ID `json:"id"`
	Name string    `json:"name"`
}

// InvoiceDetail is an invoice with its relations and computed balances.
type InvoiceDetail struct {
	Invoice
	Customer     *CustomerRef         `json:"customer,omitempty"`
	User         *UserRef             `json:"user,omitempty"`
	Items        []InvoiceItem        `json:"items"`
	Payments     []Payment            `json:"payments"`
	Transactions []ledger.Transaction `json:"transactions"`
	TotalPaid    decimal.Decimal      `json:"totalPaid"`
	Remaining    decimal.Decimal      `json:"remaining"`
}

// ItemInput is one line in a create or update request.
type ItemInput struct {
	Description string          `json:"description"`
	ProductSKU  string          `json:"productSku"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Discount    decimal.Decimal `json:"discount"`
}

// CreateInvoiceInput for creating invoices. Status is not accepted:
// every invoice starts in DRAFT.
type CreateInvoiceInput struct {
	CustomerID *shared.ID      `json:"customerId"`
	UserID     *shared.ID      `json:"userId"`
	IssueDate  *time.Time      `json:"issueDate"`
	DueDate    *time.Time      `json:"dueDate"`
	Discount   decimal.Decimal `json:"discount"`
	Tax        decimal.Decimal `json:"tax"`
	Currency   string          `json:"currency"`
	Notes      string          `json:"notes"`
	Items      []ItemInput     `json:"items"`
}

// UpdateInvoicePatch carries the optional fields of an invoice update.
// Nil means "keep the stored value"; a non-nil Items slice replaces all
// line items wholesale.
type UpdateInvoicePatch struct {
	CustomerID *shared.ID       `json:"customerId"`
	IssueDate  *time.Time       `json:"issueDate"`
	DueDate    *time.Time       `json:"dueDate"`
	Status     *InvoiceStatus   `json:"status"`
	Discount   *decimal.Decimal `json:"discount"`
	Tax        *decimal.Decimal `json:"tax"`
	Currency   *string          `json:"currency"`
	Notes      *string          `json:"notes"`
	Items      []ItemInput      `json:"items"`
}

// ListInvoicesRequest filters the invoice listing.
type ListInvoicesRequest struct {
	Status     InvoiceStatus
	CustomerID int64
	UserID     int64
	Month      int
	Year       int
	Day        int
	Search     string
	SortBy     string
	Page       int
	Limit      int
	Summary    bool
}

// ListSummary carries the status counts requested with summary=true.
type ListSummary struct {
	Total   int `json:"total"`
	Paid    int `json:"paid"`
	Pending int `json:"pending"`
}

// DeleteResult reports what a forced delete removed.
type DeleteResult struct {
	DeletedPayments     int `json:"deletedPayments"`
	DeletedTransactions int `json:"deletedTransactions"`
}
