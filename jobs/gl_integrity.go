package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	jobmetrics "github.com/Corner-venturo/Corner-sub009/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// WorkspaceLister enumerates the workspaces a job sweeps.
type WorkspaceLister interface {
	ListWorkspaces(ctx context.Context) ([]uuid.UUID, error)
}

// TrialBalancer computes a verified trial balance.
type TrialBalancer interface {
	TrialBalance(ctx context.Context, workspaceID uuid.UUID, asOf time.Time) (accounting.TrialBalance, error)
}

// IntegrityReport summarises one integrity sweep.
type IntegrityReport struct {
	Checked    int
	Imbalanced []uuid.UUID
	Incomplete []uuid.UUID
}

// GLIntegrityJob recomputes each workspace trial balance and reports any
// whose debit and credit balances diverge. Findings are logged and counted;
// only infrastructure faults fail the task.
type GLIntegrityJob struct {
	Workspaces WorkspaceLister
	Balances   TrialBalancer
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewGLIntegrityJob wires dependencies for the integrity handler.
func NewGLIntegrityJob(workspaces WorkspaceLister, balances TrialBalancer, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{
		Workspaces: workspaces,
		Balances:   balances,
		Logger:     logger,
		Metrics:    metrics,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes TaskGLIntegrity tasks.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Balances == nil {
		return errors.New("gl integrity: handler not configured")
	}
	ws, asOf, err := decodeScope(t)
	if err != nil {
		return errors.Join(err, asynq.SkipRetry)
	}
	_, err = j.Run(ctx, ws, asOf)
	return err
}

// Run sweeps one workspace, or every workspace when workspaceID is nil, as of
// asOf, defaulting to today.
func (j *GLIntegrityJob) Run(ctx context.Context, workspaceID uuid.UUID, asOf time.Time) (report IntegrityReport, resultErr error) {
	tracker := j.metrics().Track(TaskGLIntegrity)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	if asOf.IsZero() {
		asOf = j.now()
	}
	asOf = accounting.DateOf(asOf)
	logger := j.logger().With(slog.String("as_of", asOf.Format(accounting.DateLayout)))
	logger.Info("starting gl integrity check")
	start := time.Now()

	workspaces, err := j.scope(ctx, workspaceID)
	if err != nil {
		logger.Error("load workspaces", slog.Any("error", err))
		return report, err
	}

	var faults []error
	for _, ws := range workspaces {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		_, err := j.Balances.TrialBalance(ctx, ws, asOf)
		var imbalance *accounting.ImbalanceError
		switch {
		case err == nil:
		case errors.As(err, &imbalance):
			report.Imbalanced = append(report.Imbalanced, ws)
			j.metrics().AddImbalance(ws.String())
			logger.Error("trial balance out of balance",
				slog.String("workspace_id", ws.String()),
				slog.String("debit", imbalance.Debit.StringFixed(accounting.AmountScale)),
				slog.String("credit", imbalance.Credit.StringFixed(accounting.AmountScale)))
		case errors.Is(err, accounting.ErrIncompleteCatalog):
			report.Incomplete = append(report.Incomplete, ws)
			logger.Error("posted lines reference unknown accounts", slog.String("workspace_id", ws.String()), slog.Any("error", err))
		default:
			faults = append(faults, err)
			logger.Error("compute trial balance", slog.String("workspace_id", ws.String()), slog.Any("error", err))
		}
	}

	logger.Info("completed gl integrity check",
		slog.Int("workspaces", report.Checked),
		slog.Int("imbalanced", len(report.Imbalanced)),
		slog.Int("incomplete", len(report.Incomplete)),
		slog.Duration("duration", time.Since(start)))
	return report, errors.Join(faults...)
}

func (j *GLIntegrityJob) scope(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error) {
	if workspaceID != uuid.Nil {
		return []uuid.UUID{workspaceID}, nil
	}
	if j.Workspaces == nil {
		return nil, errors.New("gl integrity: workspace lister not configured")
	}
	return j.Workspaces.ListWorkspaces(ctx)
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGLIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskGLIntegrity))
}

func (j *GLIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *GLIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
