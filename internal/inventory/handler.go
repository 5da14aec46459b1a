package inventory

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockroom/internal/catalog"
	"github.com/odyssey-erp/stockroom/internal/ledger"
	"github.com/odyssey-erp/stockroom/internal/partners"
	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// IdempotencyHeader carries the client's replay key on import and export requests.
const IdempotencyHeader = "Idempotency-Key"

const dateLayout = "2006-01-02"

var errorRules = []httpx.Rule{
	{Target: ledger.ErrInvalidQuantity, Status: http.StatusBadRequest, Title: "Invalid Quantity"},
	{Target: ledger.ErrInvalidPrice, Status: http.StatusBadRequest, Title: "Invalid Price"},
	{Target: ledger.ErrInsufficientStock, Status: http.StatusBadRequest, Title: "Insufficient Stock"},
	{Target: ErrInvalidTransaction, Status: http.StatusBadRequest, Title: "Invalid Transaction"},
	{Target: catalog.ErrProductNotFound, Status: http.StatusNotFound, Title: "Product Not Found"},
	{Target: ErrTransactionNotFound, Status: http.StatusNotFound, Title: "Transaction Not Found"},
	{Target: partners.ErrPartnerNotFound, Status: http.StatusNotFound, Title: "Partner Not Found"},
	{Target: partners.ErrPartnerInactive, Status: http.StatusBadRequest, Title: "Partner Inactive"},
	{Target: partners.ErrKindMismatch, Status: http.StatusBadRequest, Title: "Partner Kind Mismatch"},
	{Target: ErrDuplicateCode, Status: http.StatusConflict, Title: "Duplicate Transaction Code"},
	{Target: ErrInvalidTransition, Status: http.StatusConflict, Title: "Invalid Transition"},
	{Target: ErrVersionConflict, Status: http.StatusConflict, Title: "Concurrent Update"},
	{Target: shared.ErrLockTimeout, Status: http.StatusConflict, Title: "Product Busy"},
	{Target: shared.ErrIdempotencyConflict, Status: http.StatusConflict, Title: "Duplicate Request"},
	{Target: ledger.ErrLedgerInconsistency, Status: http.StatusUnprocessableEntity, Title: "Ledger Inconsistency"},
}

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountRoutes registers transaction routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/import", h.recordImport)
	r.Post("/export", h.recordExport)
	r.Get("/{txID}", h.get)
	r.Patch("/{txID}", h.update)
	r.Delete("/{txID}", h.delete)
	r.Post("/{txID}/submit", h.submit)
	r.Post("/{txID}/complete", h.complete)
	r.Post("/{txID}/cancel", h.cancel)
}

// MountStockCard registers the stock card route on the products router.
func (h *Handler) MountStockCard(r chi.Router) {
	r.Get("/{productID}/stock-card", h.stockCard)
}

type listResponse struct {
	Items      []Transaction     `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

type stockCardResponse struct {
	ProductID string        `json:"product_id"`
	Entries   []LedgerEntry `json:"entries"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from, to, err := dateRange(r)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	filter := ListFilter{
		ProductID: q.Get("product_id"),
		Kind:      Kind(strings.ToUpper(q.Get("kind"))),
		Status:    Status(strings.ToLower(q.Get("status"))),
		From:      from,
		To:        to,
		Limit:     httpx.QueryInt(r, "limit", 0),
		Offset:    httpx.QueryInt(r, "offset", 0),
	}
	items, page, err := h.service.ListTransactions(r.Context(), account, filter)
	if err != nil {
		h.fail(w, r, "list transactions", err)
		return
	}
	if items == nil {
		items = []Transaction{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: page})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	var input CreateInput
	if !h.decode(w, r, &input) {
		return
	}
	t, err := h.service.CreateTransaction(r.Context(), account, input)
	if err != nil {
		h.fail(w, r, "create transaction", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) recordImport(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	var input ImportInput
	if !h.decode(w, r, &input) {
		return
	}
	input.IdempotencyKey = strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	t, err := h.service.RecordImport(r.Context(), account, input)
	if err != nil {
		h.fail(w, r, "record import", err)
		return
	}
	h.logger.Info("import recorded",
		slog.Int64("account_id", account),
		slog.String("product_id", t.ProductID),
		slog.String("quantity", t.Quantity.String()),
		slog.Int64("seq", t.Seq))
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) recordExport(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	var input ExportInput
	if !h.decode(w, r, &input) {
		return
	}
	input.IdempotencyKey = strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	t, err := h.service.RecordExport(r.Context(), account, input)
	if err != nil {
		h.fail(w, r, "record export", err)
		return
	}
	h.logger.Info("export recorded",
		slog.Int64("account_id", account),
		slog.String("product_id", t.ProductID),
		slog.String("quantity", t.Quantity.String()),
		slog.Int64("seq", t.Seq))
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	account, id, ok := h.params(w, r)
	if !ok {
		return
	}
	t, err := h.service.GetTransaction(r.Context(), account, id)
	if err != nil {
		h.fail(w, r, "get transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	account, id, ok := h.params(w, r)
	if !ok {
		return
	}
	var input UpdateInput
	if !h.decode(w, r, &input) {
		return
	}
	t, err := h.service.UpdateTransaction(r.Context(), account, id, input)
	if err != nil {
		h.fail(w, r, "update transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	account, id, ok := h.params(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteTransaction(r.Context(), account, id); err != nil {
		h.fail(w, r, "delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	account, id, ok := h.params(w, r)
	if !ok {
		return
	}
	t, err := h.service.SubmitTransaction(r.Context(), account, id)
	if err != nil {
		h.fail(w, r, "submit transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	account, id, ok := h.params(w, r)
	if !ok {
		return
	}
	t, err := h.service.CompleteTransaction(r.Context(), account, id)
	if err != nil {
		h.fail(w, r, "complete transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	account, id, ok := h.params(w, r)
	if !ok {
		return
	}
	t, err := h.service.CancelTransaction(r.Context(), account, id)
	if err != nil {
		h.fail(w, r, "cancel transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) stockCard(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	productID := catalog.NormalizeID(chi.URLParam(r, "productID"))
	entries, err := h.service.GetStockCard(r.Context(), StockCardFilter{
		AccountID: account,
		ProductID: productID,
		From:      from,
		To:        to,
		Limit:     httpx.QueryInt(r, "limit", 0),
	})
	if err != nil {
		h.fail(w, r, "get stock card", err)
		return
	}
	if entries == nil {
		entries = []LedgerEntry{}
	}
	httpx.JSON(w, http.StatusOK, stockCardResponse{ProductID: productID, Entries: entries})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return false
	}
	return true
}

func (h *Handler) params(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "txID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: transaction id must be a positive integer", httpx.ErrValidation))
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

// dateRange parses from/to query dates. The to bound covers its whole day.
func dateRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		if from, err = time.Parse(dateLayout, raw); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrInvalidTransaction)
		}
	}
	if raw := q.Get("to"); raw != "" {
		if to, err = time.Parse(dateLayout, raw); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrInvalidTransaction)
		}
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, nil
}
