package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/accountingtest"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/reports"
	jobmetrics "github.com/Corner-venturo/Corner-sub009/internal/jobs"
)

type ledgerWorkspace struct {
	id   uuid.UUID
	cash accounting.Account
	rev  accounting.Account
}

func seedWorkspace(store *accountingtest.Store) ledgerWorkspace {
	ws := uuid.New()
	w := ledgerWorkspace{
		id:   ws,
		cash: store.AddAccount(ws, "1100", "Cash", accounting.AccountTypeAsset),
		rev:  store.AddAccount(ws, "4000", "Revenue", accounting.AccountTypeRevenue),
	}
	store.Seed(ws, "JV2024030001", accountingtest.Date("2024-03-03"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: w.cash, Debit: "1000"},
		accountingtest.Line{Account: w.rev, Credit: "1000"})
	return w
}

type failingBalancer struct{ err error }

func (f failingBalancer) TrialBalance(context.Context, uuid.UUID, time.Time) (accounting.TrialBalance, error) {
	return accounting.TrialBalance{}, f.err
}

func TestGLIntegrityFlagsImbalancedWorkspaces(t *testing.T) {
	store := accountingtest.NewStore()
	healthy := seedWorkspace(store)
	broken := seedWorkspace(store)
	store.Seed(broken.id, "JV2024030002", accountingtest.Date("2024-03-05"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: broken.cash, Debit: "300"},
		accountingtest.Line{Account: broken.rev, Credit: "250"})

	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewGLIntegrityJob(store, accounting.NewAggregator(store), nil, metrics)

	report, err := job.Run(context.Background(), uuid.Nil, accountingtest.Date("2024-03-31"))
	require.NoError(t, err)
	require.Equal(t, 2, report.Checked)
	require.Equal(t, []uuid.UUID{broken.id}, report.Imbalanced)
	require.Empty(t, report.Incomplete)

	report, err = job.Run(context.Background(), healthy.id, accountingtest.Date("2024-03-31"))
	require.NoError(t, err)
	require.Equal(t, 1, report.Checked)
	require.Empty(t, report.Imbalanced)
}

func TestGLIntegrityReportsIncompleteCatalog(t *testing.T) {
	store := accountingtest.NewStore()
	w := seedWorkspace(store)
	store.RemoveAccount(w.rev.ID)

	job := NewGLIntegrityJob(store, accounting.NewAggregator(store), nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	report, err := job.Run(context.Background(), w.id, accountingtest.Date("2024-03-31"))
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{w.id}, report.Incomplete)
}

func TestGLIntegrityFailsOnStoreFaults(t *testing.T) {
	store := accountingtest.NewStore()
	seedWorkspace(store)
	boom := errors.New("connection reset")

	job := NewGLIntegrityJob(store, failingBalancer{err: boom}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	_, err := job.Run(context.Background(), uuid.Nil, time.Time{})
	require.ErrorIs(t, err, boom)
}

func TestHandlersRejectMalformedPayloads(t *testing.T) {
	store := accountingtest.NewStore()
	integrity := NewGLIntegrityJob(store, accounting.NewAggregator(store), nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := integrity.Handle(context.Background(), asynq.NewTask(TaskGLIntegrity, []byte(`{"workspace_id":"nope"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = integrity.Handle(context.Background(), asynq.NewTask(TaskGLIntegrity, []byte(`{`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	require.NoError(t, integrity.Handle(context.Background(), asynq.NewTask(TaskGLIntegrity, nil)))

	_, err = NewReportWarmupTask(ScopePayload{AsOf: "31/03/2024"})
	require.Error(t, err)
	task, err := NewReportWarmupTask(ScopePayload{AsOf: "2024-03-31"})
	require.NoError(t, err)
	require.Equal(t, TaskReportWarmup, task.Type())
}

func TestReportWarmupPopulatesCache(t *testing.T) {
	store := accountingtest.NewStore()
	w := seedWorkspace(store)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	statements := reports.NewService(accounting.NewAggregator(store), reports.NewCache(client, time.Hour), nil)

	job := NewReportWarmupJob(store, statements, nil, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewReportWarmupTask(ScopePayload{AsOf: "2024-03-15"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	var kinds []string
	for _, key := range mr.Keys() {
		if !strings.HasPrefix(key, "ledger:reports:"+w.id.String()+":") || strings.HasSuffix(key, ":version") {
			continue
		}
		kinds = append(kinds, strings.Split(strings.TrimPrefix(key, "ledger:reports:"+w.id.String()+":"), ":")[0])
	}
	require.ElementsMatch(t, []string{"tb", "bs", "pl", "cf"}, kinds)
	require.True(t, mr.Exists("ledger:reports:"+w.id.String()+":pl:2024-03-01_2024-03-15:v1"))
}

func TestReportWarmupWithoutWorkspaces(t *testing.T) {
	store := accountingtest.NewStore()
	job := NewReportWarmupJob(store, reports.NewService(accounting.NewAggregator(store), nil, nil), nil, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	warmed, err := job.Run(context.Background(), uuid.Nil, time.Time{})
	require.NoError(t, err)
	require.Zero(t, warmed)
}

type recordingInvalidator struct {
	calls []uuid.UUID
	err   error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, ws uuid.UUID) error {
	r.calls = append(r.calls, ws)
	return r.err
}

type recordingQueue struct {
	payloads []ScopePayload
	err      error
}

func (q *recordingQueue) EnqueueReportWarmup(_ context.Context, p ScopePayload) (*asynq.TaskInfo, error) {
	q.payloads = append(q.payloads, p)
	return nil, q.err
}

func TestRefreshingInvalidator(t *testing.T) {
	ws := uuid.New()
	cache := &recordingInvalidator{}
	queue := &recordingQueue{err: asynq.ErrDuplicateTask}
	inv := RefreshingInvalidator{Cache: cache, Queue: queue}

	require.NoError(t, inv.Invalidate(context.Background(), ws))
	require.Equal(t, []uuid.UUID{ws}, cache.calls)
	require.Equal(t, []ScopePayload{{WorkspaceID: ws.String()}}, queue.payloads)

	cache.err = errors.New("redis down")
	require.ErrorIs(t, inv.Invalidate(context.Background(), ws), cache.err)
	require.Len(t, queue.payloads, 1)
}
