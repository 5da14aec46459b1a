package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/observability"
	"github.com/odyssey-erp/stockroom/internal/reports"
	_ "github.com/odyssey-erp/stockroom/testing"
)

type stubReportsRepo struct {
	accounts []int64
}

func (s *stubReportsRepo) ValuationRows(ctx context.Context, accountID int64) ([]reports.ValuationRow, error) {
	s.accounts = append(s.accounts, accountID)
	return []reports.ValuationRow{{ProductID: "A", OnHandQty: decimal.NewFromInt(2), AvgUnitCost: decimal.NewFromInt(5)}}, nil
}

func (s *stubReportsRepo) SumTransactions(ctx context.Context, accountID int64, kind string, from, to time.Time) (reports.TxTotals, error) {
	return reports.TxTotals{}, nil
}

func (s *stubReportsRepo) SumExpenses(ctx context.Context, accountID int64, from, to time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubReportsRepo) LowStockRows(ctx context.Context, accountID int64) ([]reports.LowStockRow, error) {
	return nil, nil
}

func (s *stubReportsRepo) Accounts(ctx context.Context) ([]int64, error) {
	return nil, nil
}

func (s *stubReportsRepo) InsertSnapshot(ctx context.Context, snap reports.Snapshot) (reports.Snapshot, error) {
	return snap, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(repo *stubReportsRepo, health map[string]HealthCheck) http.Handler {
	logger := testLogger()
	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppEnv: "test", RateLimitPerMinute: 1000},
		ReportsHandler: reports.NewHandler(logger, reports.NewService(repo, nil, logger)),
		Metrics:        observability.NewMetrics(),
		Health:         health,
	})
}

func TestRouterRequiresAccount(t *testing.T) {
	repo := &stubReportsRepo{}
	router := newTestRouter(repo, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/valuation", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Missing Account")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/valuation", nil)
	req.Header.Set("X-Account-ID", "abc")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reports/valuation", nil)
	req.Header.Set("X-Account-ID", "9")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, []int64{9}, repo.accounts)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestHealthzAndMetrics(t *testing.T) {
	router := newTestRouter(&stubReportsRepo{}, map[string]HealthCheck{
		"postgres": func(*http.Request) error { return nil },
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","postgres":"up"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "stockroom_http_requests_total")
}

func TestHealthzDegraded(t *testing.T) {
	router := newTestRouter(&stubReportsRepo{}, map[string]HealthCheck{
		"redis": func(*http.Request) error { return errors.New("connection refused") },
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"status":"degraded","redis":"down"}`, rec.Body.String())
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PG_DSN", "postgres://u:p@db:5432/stock")
	t.Setenv("LEDGER_LOCK_TTL", "3s")
	t.Setenv("NATS_URL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@db:5432/stock", cfg.PGDSN)
	require.Equal(t, 3*time.Second, cfg.LedgerLockTTL)
	require.Equal(t, 3, cfg.TxRetryAttempts)
	require.Equal(t, "stockroom.movements", cfg.NATSSubject)
	require.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TX_RETRY_ATTEMPTS", "0")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("TX_RETRY_ATTEMPTS", "2")
	t.Setenv("PG_MAX_CONNS", "many")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(TestModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv(TestModeEnv, "true")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv(TestModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
	t.Setenv(TestModeEnv, "nope")
	RefreshTestMode()
	require.False(t, InTestMode())
}

func TestLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{AppEnv: "staging", LogFormat: "json", LogLevel: "warn"})
	logger.Info("hidden")
	logger.Warn("shown", slog.String("product_id", "SKU"))

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, `"msg":"shown"`)
	require.Contains(t, out, `"service":"stockroom"`)
	require.Contains(t, out, `"env":"staging"`)

	buf.Reset()
	newLogger(&buf, nil).Debug("quiet")
	require.Empty(t, buf.String())
	require.Equal(t, slog.LevelDebug, parseLevel(" DEBUG "))
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
