package expenses

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

var errorRules = []httpx.Rule{
	{Target: ErrExpenseNotFound, Status: http.StatusNotFound, Title: "Expense Not Found"},
	{Target: ErrInvalidExpense, Status: http.StatusBadRequest, Title: "Invalid Expense"},
}

// Handler wires HTTP endpoints for expenses.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs expenses handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountRoutes registers expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/total", h.total)
	r.Get("/{expenseID}", h.get)
	r.Patch("/{expenseID}", h.update)
	r.Delete("/{expenseID}", h.delete)
}

type listResponse struct {
	Items      []Expense         `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

type totalResponse struct {
	From  string          `json:"from,omitempty"`
	To    string          `json:"to,omitempty"`
	Total decimal.Decimal `json:"total"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	filter := ListFilter{
		From:     from,
		To:       to,
		Category: r.URL.Query().Get("category"),
		Limit:    httpx.QueryInt(r, "limit", 0),
		Offset:   httpx.QueryInt(r, "offset", 0),
	}
	items, page, err := h.service.List(r.Context(), account, filter)
	if err != nil {
		h.fail(w, r, "list expenses", err)
		return
	}
	if items == nil {
		items = []Expense{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: page})
}

func (h *Handler) total(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	total, err := h.service.Total(r.Context(), account, from, to)
	if err != nil {
		h.fail(w, r, "total expenses", err)
		return
	}
	httpx.JSON(w, http.StatusOK, totalResponse{
		From:  r.URL.Query().Get("from"),
		To:    r.URL.Query().Get("to"),
		Total: total,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	var input CreateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	expense, err := h.service.Create(r.Context(), account, input)
	if err != nil {
		h.fail(w, r, "create expense", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, expense)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	account, id, ok := h.params(w, r)
	if !ok {
		return
	}
	expense, err := h.service.Get(r.Context(), account, id)
	if err != nil {
		h.fail(w, r, "get expense", err)
		return
	}
	httpx.JSON(w, http.StatusOK, expense)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	account, id, ok := h.params(w, r)
	if !ok {
		return
	}
	var input UpdateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	expense, err := h.service.Update(r.Context(), account, id, input)
	if err != nil {
		h.fail(w, r, "update expense", err)
		return
	}
	httpx.JSON(w, http.StatusOK, expense)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	account, id, ok := h.params(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), account, id); err != nil {
		h.fail(w, r, "delete expense", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) params(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "expenseID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: expense id must be a positive integer", httpx.ErrValidation))
		return 0, 0, false
	}
	return account, id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpx.IsServerError(err, errorRules...) {
		h.logger.Error(op+" failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err, errorRules...)
}

func dateRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		if from, err = parseDate(raw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if raw := q.Get("to"); raw != "" {
		if to, err = parseDate(raw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}
