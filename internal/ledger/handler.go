package ledger

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fakturku/fakturku/internal/platform/httpx"
)

// Handler manages transaction, category and dashboard endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", h.listTransactions)
		r.Post("/", h.createTransaction)
		r.Get("/export", h.exportTransactions)
		r.Get("/{id}", h.getTransaction)
		r.Put("/{id}", h.updateTransaction)
		r.Delete("/{id}", h.deleteTransaction)
	})
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.listCategories)
		r.Post("/", h.createCategory)
		r.Delete("/{id}", h.deleteCategory)
	})
	r.Get("/dashboard/summary", h.dashboardSummary)
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var input CreateTransactionInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	tx, err := h.service.CreateTransaction(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transaction id must be numeric")
		return
	}
	tx, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListTransactionsRequest{
		Type:   TransactionType(q.Get("type")),
		Search: q.Get("search"),
	}
	req.Month, _ = strconv.Atoi(q.Get("month"))
	req.Year, _ = strconv.Atoi(q.Get("year"))
	req.CategoryID, _ = strconv.ParseInt(q.Get("categoryId"), 10, 64)
	req.InvoiceID, _ = strconv.ParseInt(q.Get("invoiceId"), 10, 64)
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.Limit, _ = strconv.Atoi(q.Get("limit"))

	rows, pagination, err := h.service.ListTransactions(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       rows,
		"pagination": pagination,
	})
}

func (h *Handler) updateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transaction id must be numeric")
		return
	}
	var patch UpdateTransactionPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	tx, err := h.service.UpdateTransaction(r.Context(), id, patch)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

func (h *Handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transaction id must be numeric")
		return
	}
	if err := h.service.DeleteTransaction(r.Context(), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) exportTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month, _ := strconv.Atoi(q.Get("month"))
	year, _ := strconv.Atoi(q.Get("year"))
	now := time.Now()
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}

	rows, _, err := h.service.ListTransactions(r.Context(), ListTransactionsRequest{
		Month: month,
		Year:  year,
		Limit: 10000,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transaksi-%02d-%d.csv"`, month, year))
	if err := WriteCSV(w, rows, month, year); err != nil {
		h.logger.Error("write csv", slog.Any("error", err))
	}
}

type createCategoryRequest struct {
	Name string          `json:"name" validate:"required"`
	Type TransactionType `json:"type" validate:"required,oneof=INCOME EXPENSE"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var input createCategoryRequest
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	cat, err := h.service.CreateCategory(r.Context(), input.Name, input.Type)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cat)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.ListCategories(r.Context(), TransactionType(r.URL.Query().Get("type")))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": cats})
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "category id must be numeric")
		return
	}
	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) dashboardSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month, _ := strconv.Atoi(q.Get("month"))
	year, _ := strconv.Atoi(q.Get("year"))
	now := time.Now()
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}

	summary, err := h.service.SummarizeMonth(r.Context(), month, year)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
