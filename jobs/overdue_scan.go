package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// OverdueMarker flags invoices past due. Implemented by the invoicing
// service.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// OverdueScanJob moves ISSUED and PARTIAL invoices past their due date
// to OVERDUE.
type OverdueScanJob struct {
	Invoices OverdueMarker
	Logger   *slog.Logger
	clock    func() time.Time
}

// NewOverdueScanJob constructs the job handler.
func NewOverdueScanJob(invoices OverdueMarker, logger *slog.Logger) *OverdueScanJob {
	return &OverdueScanJob{
		Invoices: invoices,
		Logger:   logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the overdue scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Invoices == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.now()
	}

	start := j.now()
	marked, err := j.Invoices.MarkOverdue(ctx, asOf)
	if err != nil {
		j.log().Error("overdue scan failed", slog.Any("error", err))
		return err
	}

	j.log().Info("completed overdue scan",
		slog.Time("as_of", asOf),
		slog.Int64("marked", marked),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// WithClock overrides the internal clock for deterministic tests.
func (j *OverdueScanJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}

func (j *OverdueScanJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInvoiceOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskInvoiceOverdueScan))
}

func (j *OverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
