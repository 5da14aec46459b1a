package shared

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// AccountHeader carries the owning account of a request.
const AccountHeader = "X-Account-ID"

type accountContextKey struct{}

// ContextWithAccount stores the owning account id in context.
func ContextWithAccount(ctx context.Context, accountID int64) context.Context {
	return context.WithValue(ctx, accountContextKey{}, accountID)
}

// AccountFromContext extracts the owning account id from context.
func AccountFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(accountContextKey{}).(int64)
	return id, ok && id > 0
}

// AccountFromRequest parses the account header.
func AccountFromRequest(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(AccountHeader))
	if raw == "" {
		return 0, ErrAccountMissing
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrAccountMissing
	}
	return id, nil
}
