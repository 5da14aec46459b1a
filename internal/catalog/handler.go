package catalog

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

var errorRules = []httpx.Rule{
	{Target: ErrProductNotFound, Status: http.StatusNotFound, Title: "Product Not Found"},
	{Target: ErrDuplicateProduct, Status: http.StatusConflict, Title: "Duplicate Product"},
	{Target: ErrProductHasStock, Status: http.StatusConflict, Title: "Product Has Stock"},
	{Target: ErrProductInUse, Status: http.StatusConflict, Title: "Product In Use"},
	{Target: ErrInvalidProduct, Status: http.StatusBadRequest, Title: "Invalid Product"},
}

// Handler wires HTTP endpoints for the product catalog.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountRoutes registers product routes. Stock card routes are added by the
// inventory handler on the same subrouter.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{productID}", h.get)
	r.Patch("/{productID}", h.update)
	r.Delete("/{productID}", h.delete)
}

type listResponse struct {
	Items      []Product         `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := ListFilter{
		Search:   q.Get("search"),
		LowStock: strings.EqualFold(q.Get("low_stock"), "true"),
		Limit:    httpx.QueryInt(r, "limit", 0),
		Offset:   httpx.QueryInt(r, "offset", 0),
	}
	products, page, err := h.service.List(r.Context(), account, filter)
	if err != nil {
		h.fail(w, r, "list products", err)
		return
	}
	if products == nil {
		products = []Product{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: products, Pagination: page})
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
	product, err := h.service.Create(r.Context(), account, input)
	if err != nil {
		h.fail(w, r, "create product", err)
		return
	}
	h.logger.Info("product created", slog.Int64("account_id", account), slog.String("product_id", product.ProductID))
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	product, err := h.service.Get(r.Context(), account, chi.URLParam(r, "productID"))
	if err != nil {
		h.fail(w, r, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
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
	product, err := h.service.Update(r.Context(), account, chi.URLParam(r, "productID"), input)
	if err != nil {
		h.fail(w, r, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), account, chi.URLParam(r, "productID")); err != nil {
		h.fail(w, r, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpx.IsServerError(err, errorRules...) {
		h.logger.Error(op+" failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err, errorRules...)
}
