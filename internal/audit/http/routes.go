package audithttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// ExportLimit bounds how often one account may download the CSV export.
type ExportLimit struct {
	Requests int
	Window   time.Duration
}

// DefaultExportLimit applies unless WithExportLimit overrides it.
var DefaultExportLimit = ExportLimit{Requests: 10, Window: time.Minute}

// WithExportLimit replaces the export rate limit. Non-positive values keep the
// default.
func (h *Handler) WithExportLimit(limit ExportLimit) *Handler {
	if limit.Requests > 0 && limit.Window > 0 {
		h.exportLimit = limit
	}
	return h
}

// MountRoutes registers the audit timeline and its CSV export.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/", h.handleTimeline)
	r.With(h.exportLimiter()).Get("/export.csv", h.handleExport)
}

func (h *Handler) exportLimiter() func(http.Handler) http.Handler {
	limit := h.exportLimit
	return httprate.Limit(limit.Requests, limit.Window,
		httprate.WithKeyFuncs(exportKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Exports",
				"audit export is limited to "+strconv.Itoa(limit.Requests)+" downloads per "+limit.Window.String())
		}),
	)
}

// exportKey buckets requests by account, falling back to the client address.
func exportKey(r *http.Request) (string, error) {
	if accountID, ok := shared.AccountFromContext(r.Context()); ok {
		return "account:" + strconv.FormatInt(accountID, 10), nil
	}
	return httprate.KeyByRealIP(r)
}
