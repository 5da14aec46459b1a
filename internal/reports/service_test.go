package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

type fakeRepo struct {
	mu         sync.Mutex
	valuation  map[int64][]ValuationRow
	totals     map[string]TxTotals
	expenses   decimal.Decimal
	lowStock   []LowStockRow
	snapshots  []Snapshot
	gate       chan struct{}
	valCalls   atomic.Int32
	plCalls    atomic.Int32
	lastFrom   time.Time
	lastTo     time.Time
	lowCalls   atomic.Int32
	accountIDs []int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{valuation: map[int64][]ValuationRow{}, totals: map[string]TxTotals{}}
}

func (f *fakeRepo) ValuationRows(ctx context.Context, accountID int64) ([]ValuationRow, error) {
	f.valCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ValuationRow(nil), f.valuation[accountID]...), nil
}

func (f *fakeRepo) SumTransactions(ctx context.Context, accountID int64, kind string, from, to time.Time) (TxTotals, error) {
	f.plCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFrom, f.lastTo = from, to
	return f.totals[kind], nil
}

func (f *fakeRepo) SumExpenses(ctx context.Context, accountID int64, from, to time.Time) (decimal.Decimal, error) {
	return f.expenses, nil
}

func (f *fakeRepo) LowStockRows(ctx context.Context, accountID int64) ([]LowStockRow, error) {
	f.lowCalls.Add(1)
	return append([]LowStockRow(nil), f.lowStock...), nil
}

func (f *fakeRepo) Accounts(ctx context.Context) ([]int64, error) {
	return f.accountIDs, nil
}

func (f *fakeRepo) InsertSnapshot(ctx context.Context, s Snapshot) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = int64(len(f.snapshots) + 1)
	f.snapshots = append(f.snapshots, s)
	return s, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s got %s", want, got)
}

func newTestService(t *testing.T, repo RepositoryPort) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(repo, NewCache(client, time.Minute), slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestInventoryValuationTotalsAndCaches(t *testing.T) {
	repo := newFakeRepo()
	repo.valuation[1] = []ValuationRow{
		{ProductID: "A", OnHandQty: dec("150"), AvgUnitCost: dec("12")},
		{ProductID: "B", OnHandQty: dec("2.5"), AvgUnitCost: dec("4")},
	}
	svc := newTestService(t, repo)
	ctx := context.Background()

	v, err := svc.InventoryValuation(ctx, 1)
	require.NoError(t, err)
	require.Len(t, v.Rows, 2)
	requireDecimal(t, "1800", v.Rows[0].Value)
	requireDecimal(t, "152.5", v.TotalQty)
	requireDecimal(t, "1810", v.TotalValue)

	_, err = svc.InventoryValuation(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, repo.valCalls.Load())

	repo.valuation[1][0].OnHandQty = dec("100")
	require.NoError(t, svc.Invalidate(ctx, 1))
	v, err = svc.InventoryValuation(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, repo.valCalls.Load())
	requireDecimal(t, "1210", v.TotalValue)
}

func TestInvalidateIsScopedToAccount(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.InventoryValuation(ctx, 1)
	require.NoError(t, err)
	_, err = svc.InventoryValuation(ctx, 2)
	require.NoError(t, err)
	require.EqualValues(t, 2, repo.valCalls.Load())

	require.NoError(t, svc.Invalidate(ctx, 1))
	_, err = svc.InventoryValuation(ctx, 2)
	require.NoError(t, err)
	require.EqualValues(t, 2, repo.valCalls.Load())
	_, err = svc.InventoryValuation(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 3, repo.valCalls.Load())
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	repo := newFakeRepo()
	repo.gate = make(chan struct{})
	svc := newTestService(t, repo)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.InventoryValuation(context.Background(), 1)
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return repo.valCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(repo.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, repo.valCalls.Load())
}

func TestProfitLoss(t *testing.T) {
	repo := newFakeRepo()
	repo.totals["IMPORT"] = TxTotals{Amount: dec("1800")}
	repo.totals["EXPORT"] = TxTotals{Amount: dec("590"), Cost: dec("360"), Profit: dec("230")}
	repo.expenses = dec("50")
	svc := newTestService(t, repo)

	pl, err := svc.ProfitLoss(context.Background(), 1,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	requireDecimal(t, "590", pl.Revenue)
	requireDecimal(t, "1800", pl.Purchases)
	requireDecimal(t, "360", pl.COGS)
	requireDecimal(t, "230", pl.GrossProfit)
	requireDecimal(t, "50", pl.Expenses)
	requireDecimal(t, "180", pl.NetProfit)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), repo.lastTo)
	require.EqualValues(t, 2, repo.plCalls.Load())
}

func TestProfitLossPeriodDefaultsAndValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	pl, err := svc.ProfitLoss(context.Background(), 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), pl.From)
	require.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), pl.To)

	_, err = svc.ProfitLoss(context.Background(), 1,
		time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestLowStockShortfall(t *testing.T) {
	repo := newFakeRepo()
	repo.lowStock = []LowStockRow{{ProductID: "A", OnHandQty: dec("3"), ReorderLevel: dec("10")}}
	svc := newTestService(t, repo)

	rows, err := svc.LowStock(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	requireDecimal(t, "7", rows[0].Shortfall)
}

func TestServiceWithoutCache(t *testing.T) {
	repo := newFakeRepo()
	repo.valuation[1] = []ValuationRow{{ProductID: "A", OnHandQty: dec("2"), AvgUnitCost: dec("3")}}
	svc := NewService(repo, nil, nil)

	v, err := svc.InventoryValuation(context.Background(), 1)
	require.NoError(t, err)
	requireDecimal(t, "6", v.TotalValue)
	_, err = svc.InventoryValuation(context.Background(), 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, repo.valCalls.Load())
	require.NoError(t, svc.Invalidate(context.Background(), 1))
}

func TestSnapshotValuationBypassesCache(t *testing.T) {
	repo := newFakeRepo()
	repo.valuation[1] = []ValuationRow{{ProductID: "A", OnHandQty: dec("4"), AvgUnitCost: dec("2.5")}}
	svc := newTestService(t, repo)

	_, err := svc.InventoryValuation(context.Background(), 1)
	require.NoError(t, err)
	snap, err := svc.SnapshotValuation(context.Background(), 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, repo.valCalls.Load())
	require.Equal(t, 1, snap.ProductCount)
	requireDecimal(t, "10", snap.TotalValue)
	require.Len(t, repo.snapshots, 1)
}

func TestWriteValuationXLSX(t *testing.T) {
	var buf bytes.Buffer
	err := WriteValuationXLSX(&buf, Valuation{
		Rows:       []ValuationRow{{ProductID: "A", Name: "Apple", Unit: "kg", OnHandQty: dec("150"), AvgUnitCost: dec("12"), Value: dec("1800")}},
		TotalQty:   dec("150"),
		TotalValue: dec("1800"),
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(valuationSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Product ID", rows[0][0])
	require.Equal(t, []string{"A", "Apple", "kg", "150", "12", "1800"}, rows[1])
	require.Equal(t, "Total", rows[2][0])
	require.Equal(t, "1 products", rows[2][1])
}

func TestWriteProfitLossXLSX(t *testing.T) {
	var buf bytes.Buffer
	err := WriteProfitLossXLSX(&buf, ProfitLoss{
		From:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Revenue:   dec("12500"),
		NetProfit: dec("1234.5"),
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	title, err := f.GetCellValue(profitLossSheet, "A1")
	require.NoError(t, err)
	require.Equal(t, "Profit & Loss 2024-01-01 to 2024-01-31", title)
	label, err := f.GetCellValue(profitLossSheet, "C3")
	require.NoError(t, err)
	require.Equal(t, "12,500.00", label)
	net, err := f.GetCellValue(profitLossSheet, "B7")
	require.NoError(t, err)
	require.Equal(t, "1234.5", net)
}

func TestHandlerRoutes(t *testing.T) {
	repo := newFakeRepo()
	repo.valuation[7] = []ValuationRow{{ProductID: "A", OnHandQty: dec("1"), AvgUnitCost: dec("2")}}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), newTestService(t, repo))
	r := chi.NewRouter()
	r.Route("/reports", h.MountRoutes)

	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(shared.ContextWithAccount(req.Context(), 7))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do("/reports/valuation")
	require.Equal(t, http.StatusOK, rec.Code)
	var v Valuation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	requireDecimal(t, "2", v.TotalValue)

	rec = do("/reports/valuation.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	require.NotZero(t, rec.Body.Len())

	rec = do("/reports/profit-loss?from=2024-02-02&to=2024-02-01")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do("/reports/profit-loss?from=bad")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do("/reports/profit-loss.xlsx?from=2024-01-01&to=2024-01-31")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do("/reports/low-stock")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"items":[]}`, rec.Body.String())
}
