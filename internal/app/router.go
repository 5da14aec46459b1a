package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/odyssey-erp/stockroom/internal/audit/http"
	"github.com/odyssey-erp/stockroom/internal/catalog"
	"github.com/odyssey-erp/stockroom/internal/expenses"
	"github.com/odyssey-erp/stockroom/internal/inventory"
	"github.com/odyssey-erp/stockroom/internal/observability"
	"github.com/odyssey-erp/stockroom/internal/partners"
	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/reports"
	"github.com/odyssey-erp/stockroom/jobs"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(r *http.Request) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	CatalogHandler   *catalog.Handler
	InventoryHandler *inventory.Handler
	PartnersHandler  *partners.Handler
	ExpensesHandler  *expenses.Handler
	ReportsHandler   *reports.Handler
	AuditHandler     *audithttp.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
	Health           map[string]HealthCheck
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", healthHandler(params.Logger, params.Health))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireAccount)
		r.Route("/products", func(r chi.Router) {
			if params.CatalogHandler != nil {
				params.CatalogHandler.MountRoutes(r)
			}
			if params.InventoryHandler != nil {
				params.InventoryHandler.MountStockCard(r)
			}
		})
		if params.InventoryHandler != nil {
			r.Route("/transactions", params.InventoryHandler.MountRoutes)
		}
		if params.PartnersHandler != nil {
			r.Route("/partners", params.PartnersHandler.MountRoutes)
		}
		if params.ExpensesHandler != nil {
			r.Route("/expenses", params.ExpensesHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
	})

	return r
}

func healthHandler(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(r); err != nil {
				logger.Warn("health check failed", slog.String("check", name), slog.Any("error", err))
				body[name] = "down"
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "up"
		}
		httpx.JSON(w, status, body)
	}
}
