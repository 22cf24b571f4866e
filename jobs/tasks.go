// Package jobs holds background task definitions and the Asynq worker
// runtime.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceOverdueScan flags issued invoices past their due date.
	TaskInvoiceOverdueScan = "invoice:overdue_scan"
)

// OverdueScanPayload carries scheduling metadata for the overdue scan.
type OverdueScanPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewOverdueScanTask constructs an Asynq task for the overdue scan.
func NewOverdueScanTask(asOf time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(OverdueScanPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceOverdueScan, body, asynq.Queue(QueueDefault)), nil
}
