package partners

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

var errorRules = []httpx.Rule{
	{Target: ErrPartnerNotFound, Status: http.StatusNotFound, Title: "Partner Not Found"},
	{Target: ErrInvalidPartner, Status: http.StatusBadRequest, Title: "Invalid Partner"},
}

// Handler wires HTTP endpoints for partners.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs partners handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountRoutes registers partner routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{partnerID}", h.get)
	r.Patch("/{partnerID}", h.update)
	r.Post("/{partnerID}/deactivate", h.deactivate)
}

type listResponse struct {
	Items      []Partner         `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := ListFilter{
		Kind:       Kind(strings.ToUpper(q.Get("kind"))),
		ActiveOnly: strings.EqualFold(q.Get("active"), "true"),
		Search:     q.Get("search"),
		Limit:      httpx.QueryInt(r, "limit", 0),
		Offset:     httpx.QueryInt(r, "offset", 0),
	}
	items, page, err := h.service.List(r.Context(), account, filter)
	if err != nil {
		h.fail(w, r, "list partners", err)
		return
	}
	if items == nil {
		items = []Partner{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: page})
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
	partner, err := h.service.Create(r.Context(), account, input)
	if err != nil {
		h.fail(w, r, "create partner", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, partner)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	account, id, ok := h.params(w, r)
	if !ok {
		return
	}
	partner, err := h.service.Get(r.Context(), account, id)
	if err != nil {
		h.fail(w, r, "get partner", err)
		return
	}
	httpx.JSON(w, http.StatusOK, partner)
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
	partner, err := h.service.Update(r.Context(), account, id, input)
	if err != nil {
		h.fail(w, r, "update partner", err)
		return
	}
	httpx.JSON(w, http.StatusOK, partner)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	account, id, ok := h.params(w, r)
	if !ok {
		return
	}
	partner, err := h.service.Deactivate(r.Context(), account, id)
	if err != nil {
		h.fail(w, r, "deactivate partner", err)
		return
	}
	httpx.JSON(w, http.StatusOK, partner)
}

func (h *Handler) params(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	account, ok := httpx.Account(w, r)
	if !ok {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "partnerID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: partner id must be a positive integer", httpx.ErrValidation))
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
