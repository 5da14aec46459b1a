package httpx

import (
	"net/http"
	"strconv"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Account returns the request's owning account, answering 400 when it is absent.
func Account(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := shared.AccountFromContext(r.Context())
	if !ok {
		Problem(w, http.StatusBadRequest, "Missing Account", shared.ErrAccountMissing.Error())
		return 0, false
	}
	return id, true
}

// QueryInt parses an integer query parameter, falling back to def when absent or malformed.
func QueryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
