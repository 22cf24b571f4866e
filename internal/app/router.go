package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fakturku/fakturku/internal/invoicing"
	"github.com/fakturku/fakturku/internal/ledger"
	"github.com/fakturku/fakturku/internal/masterdata"
	"github.com/fakturku/fakturku/internal/payments"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	InvoiceHandler    *invoicing.Handler
	PaymentHandler    *payments.Handler
	LedgerHandler     *ledger.Handler
	MasterDataHandler *masterdata.Handler
}

// NewRouter constructs the chi.Router serving the dashboard API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.InvoiceHandler != nil {
			params.InvoiceHandler.MountRoutes(r)
		}
		if params.PaymentHandler != nil {
			params.PaymentHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.MasterDataHandler != nil {
			params.MasterDataHandler.MountRoutes(r)
		}
	})

	return r
}
