package invoicing

import (
	"fmt"

	"github.com/fakturku/fakturku/internal/shared"
)

var (
	// ErrInvoiceNotFound indicates the invoice id does not resolve.
	ErrInvoiceNotFound = fmt.Errorf("invoice %w", shared.ErrNotFound)
	// ErrInvoicePaid blocks any edit of a PAID invoice.
	ErrInvoicePaid = fmt.Errorf("%w: invoice is paid, cannot be modified", shared.ErrStateConflict)
)

// RelatedDataError blocks deletion of an invoice that still owns payments
// or transactions, carrying the counts so the caller can retry with force.
type RelatedDataError struct {
	Payments     int
	Transactions int
}

func (e *RelatedDataError) Error() string {
	return fmt.Sprintf("invoice has related data: %d payments, %d transactions; pass force=true to delete them",
		e.Payments, e.Transactions)
}

// Is lets errors.Is classify this as a state conflict.
func (e *RelatedDataError) Is(target error) bool {
	return target == shared.ErrStateConflict
}
