package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/stockroom/internal/jobs"
	"github.com/odyssey-erp/stockroom/internal/reports"
)

type fakeReports struct {
	accounts []int64
	snapped  []int64
	failFor  int64
	lowStock map[int64][]reports.LowStockRow
	listErr  error
}

func (f *fakeReports) Accounts(ctx context.Context) ([]int64, error) {
	return f.accounts, f.listErr
}

func (f *fakeReports) SnapshotValuation(ctx context.Context, accountID int64) (reports.Snapshot, error) {
	if accountID == f.failFor {
		return reports.Snapshot{}, errors.New("db down")
	}
	f.snapped = append(f.snapped, accountID)
	return reports.Snapshot{AccountID: accountID, ProductCount: 1, TotalValue: decimal.NewFromInt(10)}, nil
}

func (f *fakeReports) LowStock(ctx context.Context, accountID int64) ([]reports.LowStockRow, error) {
	return f.lowStock[accountID], nil
}

type fakeCleaner struct {
	olderThan time.Duration
	removed   int64
}

func (f *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return f.removed, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValuationSnapshotAllAccounts(t *testing.T) {
	svc := &fakeReports{accounts: []int64{1, 2, 3}, failFor: 2}
	job := NewValuationSnapshotJob(svc, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewValuationSnapshotTask(0)
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.Contains(t, err.Error(), "account 2")
	require.Equal(t, []int64{1, 3}, svc.snapped)
}

func TestValuationSnapshotSingleAccount(t *testing.T) {
	svc := &fakeReports{accounts: []int64{1, 2}}
	job := NewValuationSnapshotJob(svc, discardLogger(), nil)

	task, err := NewValuationSnapshotTask(2)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{2}, svc.snapped)
}

func TestValuationSnapshotRejectsBadPayload(t *testing.T) {
	job := NewValuationSnapshotJob(&fakeReports{}, discardLogger(), nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskValuationSnapshot, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLowStockScan(t *testing.T) {
	svc := &fakeReports{
		accounts: []int64{1, 2},
		lowStock: map[int64][]reports.LowStockRow{
			1: {{ProductID: "A"}, {ProductID: "B"}},
		},
	}
	job := NewLowStockScanJob(svc, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewLowStockScanTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	svc.listErr = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), task))
}

func TestIdempotencyCleanup(t *testing.T) {
	store := &fakeCleaner{removed: 4}
	job := NewIdempotencyCleanupJob(store, discardLogger(), nil)

	task, err := NewIdempotencyCleanupTask(24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 24*time.Hour, store.olderThan)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	require.Equal(t, DefaultIdempotencyRetention, store.olderThan)
}

func TestUnconfiguredJobs(t *testing.T) {
	var snap *ValuationSnapshotJob
	require.Error(t, snap.Handle(context.Background(), asynq.NewTask(TaskValuationSnapshot, nil)))
	require.Error(t, NewIdempotencyCleanupJob(nil, nil, nil).Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestHealthEndpoint(t *testing.T) {
	serve := func(inspector QueueInspector) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", NewHandler(inspector, discardLogger()).MountRoutes)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rec
	}

	rec := serve(fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Failed: 1}})
	require.Equal(t, http.StatusOK, rec.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 3, body.Pending)
	require.Equal(t, 1, body.Failed)
	require.Contains(t, rec.Body.String(), `"failed_today":1`)

	rec = serve(fakeInspector{err: errors.New("redis down")})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildTask(t *testing.T) {
	task, err := BuildTask(TaskLowStockScan, 9)
	require.NoError(t, err)
	require.Equal(t, TaskLowStockScan, task.Type())
	require.JSONEq(t, `{"account_id":9}`, string(task.Payload()))

	_, err = BuildTask("reports:email", 0)
	require.ErrorIs(t, err, ErrUnknownTask)
}

func TestClientEnqueue(t *testing.T) {
	var got []*asynq.Task
	client := NewClientWith(enqueueFunc(func(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
		got = append(got, task)
		return &asynq.TaskInfo{ID: "1", Type: task.Type(), Queue: QueueDefault}, nil
	}))

	info, err := client.Enqueue(context.Background(), TaskValuationSnapshot, 4)
	require.NoError(t, err)
	require.Equal(t, TaskValuationSnapshot, info.Type)
	require.Len(t, got, 1)
	require.NoError(t, client.Close())

	var nilClient *Client
	_, err = nilClient.Enqueue(context.Background(), TaskValuationSnapshot, 0)
	require.Error(t, err)
}

type enqueueFunc func(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)

func (f enqueueFunc) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return f(ctx, task, opts...)
}

func TestNewWorkerRejectsIncompleteHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{
		Logger:   discardLogger(),
		Handlers: []TaskHandler{{Type: TaskLowStockScan}},
	})
	require.ErrorContains(t, err, TaskLowStockScan)
}

func TestLogTasksPassesThroughErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	boom := errors.New("boom")

	handler := logTasks(logger)(asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
		return boom
	}))
	err := handler.ProcessTask(context.Background(), asynq.NewTask(TaskLowStockScan, nil))
	require.ErrorIs(t, err, boom)
	require.Contains(t, buf.String(), "type="+TaskLowStockScan)
	require.Contains(t, buf.String(), "ok=false")
}

func TestAsynqLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := asynqLogger{slog.New(slog.NewTextHandler(&buf, nil))}
	l.Warn("lease ", "expired")
	require.Contains(t, buf.String(), `msg="lease expired"`)
	require.Contains(t, buf.String(), "component=asynq")
}
