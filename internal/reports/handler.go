package reports

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var errorRules = []httpx.Rule{
	{Target: ErrInvalidRange, Status: http.StatusBadRequest, Title: "Invalid Date Range"},
}

// Handler serves report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/valuation", h.valuation)
	r.Get("/valuation.xlsx", h.valuationXLSX)
	r.Get("/profit-loss", h.profitLoss)
	r.Get("/profit-loss.xlsx", h.profitLossXLSX)
	r.Get("/low-stock", h.lowStock)
}

func (h *Handler) valuation(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	v, err := h.service.InventoryValuation(r.Context(), account)
	if err != nil {
		h.fail(w, r, "inventory valuation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) valuationXLSX(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.service.ExportValuationXLSX(r.Context(), account, &buf); err != nil {
		h.fail(w, r, "export valuation", err)
		return
	}
	writeWorkbook(w, "valuation.xlsx", buf.Bytes())
}

func (h *Handler) profitLoss(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	from, to, err := period(r)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	pl, err := h.service.ProfitLoss(r.Context(), account, from, to)
	if err != nil {
		h.fail(w, r, "profit and loss", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) profitLossXLSX(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	from, to, err := period(r)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	var buf bytes.Buffer
	if err := h.service.ExportProfitLossXLSX(r.Context(), account, from, to, &buf); err != nil {
		h.fail(w, r, "export profit and loss", err)
		return
	}
	writeWorkbook(w, "profit-loss.xlsx", buf.Bytes())
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	rows, err := h.service.LowStock(r.Context(), account)
	if err != nil {
		h.fail(w, r, "low stock", err)
		return
	}
	if rows == nil {
		rows = []LowStockRow{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpx.IsServerError(err, errorRules...) {
		h.logger.Error(op+" failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err, errorRules...)
}

func writeWorkbook(w http.ResponseWriter, name string, body []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func period(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		if from, err = time.Parse(DateLayout, raw); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be YYYY-MM-DD", httpx.ErrValidation)
		}
	}
	if raw := q.Get("to"); raw != "" {
		if to, err = time.Parse(DateLayout, raw); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: to must be YYYY-MM-DD", httpx.ErrValidation)
		}
	}
	return from, to, nil
}
