package catalog

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

func newTestRouter(repo *memoryRepo) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo, nil, nil, nil))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := shared.AccountFromRequest(r); err == nil {
				r = r.WithContext(shared.ContextWithAccount(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/products", h.MountRoutes)
	return r
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(shared.AccountHeader, "1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndGet(t *testing.T) {
	router := newTestRouter(newMemoryRepo())

	rec := doRequest(router, http.MethodPost, "/products", `{"product_id":"abc","name":"Bolt","sell_price":"2.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "ABC", created.ProductID)
	require.True(t, created.SellPrice.Equal(decimal.RequireFromString("2.5")))

	rec = doRequest(router, http.MethodPost, "/products", `{"product_id":"ABC","name":"Bolt"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(router, http.MethodGet, "/products/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/products/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerValidation(t *testing.T) {
	router := newTestRouter(newMemoryRepo())

	rec := doRequest(router, http.MethodPost, "/products", `{"product_id":"","name":"x","reorder_level":-1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "product_id")
	require.Contains(t, rec.Body.String(), "reorder_level")

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerDeleteWithStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[key(1, "A")] = Product{AccountID: 1, ProductID: "A", Name: "A", OnHandQty: decimal.NewFromInt(3)}
	router := newTestRouter(repo)

	rec := doRequest(router, http.MethodDelete, "/products/A", "")
	require.Equal(t, http.StatusConflict, rec.Code)
}
