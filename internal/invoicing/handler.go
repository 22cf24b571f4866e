package invoicing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fakturku/fakturku/internal/platform/httpx"
)

// PDFRenderer renders an invoice into a PDF document.
type PDFRenderer interface {
	RenderInvoice(ctx context.Context, detail *InvoiceDetail, templateID int64) ([]byte, error)
}

// Handler manages invoice endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pdf     PDFRenderer
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, pdf PDFRenderer) *Handler {
	return &Handler{logger: logger, service: service, pdf: pdf}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Post("/", h.createInvoice)
		r.Get("/{id}", h.getInvoice)
		r.Put("/{id}", h.updateInvoice)
		r.Delete("/{id}", h.deleteInvoice)
		r.Get("/{id}/pdf", h.invoicePDF)
	})
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var input CreateInvoiceInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	detail, err := h.service.CreateInvoice(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, detail)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListInvoicesRequest{
		Status:  InvoiceStatus(q.Get("status")),
		Search:  q.Get("search"),
		SortBy:  q.Get("sortBy"),
		Summary: q.Get("summary") == "true",
	}
	req.CustomerID, _ = strconv.ParseInt(q.Get("customerId"), 10, 64)
	req.UserID, _ = strconv.ParseInt(q.Get("userId"), 10, 64)
	req.Month, _ = strconv.Atoi(q.Get("month"))
	req.Year, _ = strconv.Atoi(q.Get("year"))
	req.Day, _ = strconv.Atoi(q.Get("day"))
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.Limit, _ = strconv.Atoi(q.Get("limit"))

	rows, pagination, summary, err := h.service.ListInvoices(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}

	payload := map[string]any{
		"data":       rows,
		"pagination": pagination,
	}
	if summary != nil {
		payload["summary"] = summary
	}
	httpx.JSON(w, http.StatusOK, payload)
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var patch UpdateInvoicePatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	detail, err := h.service.UpdateInvoice(r.Context(), id, patch)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	force := r.URL.Query().Get("force") == "true"

	result, err := h.service.DeleteInvoice(r.Context(), id, force)
	if err != nil {
		var related *RelatedDataError
		if errors.As(err, &related) {
			httpx.ProblemWithExtra(w, http.StatusBadRequest, "State Conflict", related.Error(), map[string]any{
				"payments":     related.Payments,
				"transactions": related.Transactions,
				"canForce":     true,
			})
			return
		}
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"deleted":             true,
		"deletedPayments":     result.DeletedPayments,
		"deletedTransactions": result.DeletedTransactions,
	})
}

func (h *Handler) invoicePDF(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	if h.pdf == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "PDF Unavailable", "pdf rendering is not configured")
		return
	}
	templateID, _ := strconv.ParseInt(r.URL.Query().Get("templateId"), 10, 64)

	detail, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}

	pdf, err := h.pdf.RenderInvoice(r.Context(), detail, templateID)
	if err != nil {
		h.logger.Error("render invoice pdf", slog.Any("error", err), slog.Int64("id", id))
		httpx.Problem(w, http.StatusBadGateway, "PDF Render Failed", "could not render invoice pdf")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+detail.InvoiceNo+`.pdf"`)
	_, _ = w.Write(pdf)
}

func (h *Handler) invoiceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invoice id must be numeric")
		return 0, false
	}
	return id, true
}
