package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/mappings"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/reports"
	jobmetrics "github.com/Corner-venturo/Corner-sub009/internal/jobs"
)

// StatementBuilder is the cached statement surface a warmup exercises.
type StatementBuilder interface {
	TrialBalance(ctx context.Context, workspaceID uuid.UUID, asOf time.Time) (reports.GroupedTrialBalance, error)
	IncomeStatement(ctx context.Context, workspaceID uuid.UUID, rng accounting.DateRange) (reports.IncomeStatement, error)
	BalanceSheet(ctx context.Context, workspaceID uuid.UUID, asOf time.Time) (reports.BalanceSheet, error)
	CashFlow(ctx context.Context, workspaceID uuid.UUID, rng accounting.DateRange, classifier reports.ActivityClassifier) (reports.CashFlowStatement, error)
}

// ClassifierSource resolves the cash flow classifier of a workspace.
type ClassifierSource interface {
	Classifier(ctx context.Context, workspaceID uuid.UUID) (*mappings.Classifier, error)
}

// ReportWarmupJob pre-populates the report cache with the current month
// statements of every workspace.
type ReportWarmupJob struct {
	Workspaces   WorkspaceLister
	Statements   StatementBuilder
	Classifiers  ClassifierSource
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
	ScopeTimeout time.Duration
	clock        func() time.Time
}

// NewReportWarmupJob wires dependencies for the warmup handler. classifiers
// may be nil, in which case the default cash flow convention is warmed.
func NewReportWarmupJob(workspaces WorkspaceLister, statements StatementBuilder, classifiers ClassifierSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{
		Workspaces:   workspaces,
		Statements:   statements,
		Classifiers:  classifiers,
		Logger:       logger,
		Metrics:      metrics,
		ScopeTimeout: 20 * time.Second,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes TaskReportWarmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Statements == nil {
		return errors.New("report warmup: handler not configured")
	}
	ws, asOf, err := decodeScope(t)
	if err != nil {
		return errors.Join(err, asynq.SkipRetry)
	}
	_, err = j.Run(ctx, ws, asOf)
	return err
}

// Run warms one workspace, or every workspace when workspaceID is nil, and
// returns how many were warmed.
func (j *ReportWarmupJob) Run(ctx context.Context, workspaceID uuid.UUID, asOf time.Time) (warmed int, resultErr error) {
	tracker := j.metrics().Track(TaskReportWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	if asOf.IsZero() {
		asOf = j.now()
	}
	asOf = accounting.DateOf(asOf)
	logger := j.logger().With(slog.String("as_of", asOf.Format(accounting.DateLayout)))
	logger.Info("starting report warmup")
	start := time.Now()

	var workspaces []uuid.UUID
	if workspaceID != uuid.Nil {
		workspaces = []uuid.UUID{workspaceID}
	} else if j.Workspaces != nil {
		list, err := j.Workspaces.ListWorkspaces(ctx)
		if err != nil {
			logger.Error("load workspaces", slog.Any("error", err))
			return 0, err
		}
		workspaces = list
	}
	if len(workspaces) == 0 {
		logger.Info("no workspaces discovered for warmup")
		return 0, nil
	}

	for _, ws := range workspaces {
		if err := j.warmWorkspace(ctx, ws, asOf); err != nil {
			logger.Error("warm workspace", slog.String("workspace_id", ws.String()), slog.Any("error", err))
			return warmed, err
		}
		warmed++
	}

	logger.Info("completed report warmup", slog.Int("workspaces", warmed), slog.Duration("duration", time.Since(start)))
	return warmed, nil
}

func (j *ReportWarmupJob) warmWorkspace(ctx context.Context, ws uuid.UUID, asOf time.Time) error {
	if j.ScopeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.ScopeTimeout)
		defer cancel()
	}
	month := accounting.Between(time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC), asOf)

	if _, err := j.Statements.TrialBalance(ctx, ws, asOf); err != nil {
		return err
	}
	if _, err := j.Statements.BalanceSheet(ctx, ws, asOf); err != nil {
		return err
	}
	if _, err := j.Statements.IncomeStatement(ctx, ws, month); err != nil {
		return err
	}
	var classifier reports.ActivityClassifier
	if j.Classifiers != nil {
		c, err := j.Classifiers.Classifier(ctx, ws)
		if err != nil {
			return err
		}
		classifier = c
	}
	_, err := j.Statements.CashFlow(ctx, ws, month, classifier)
	return err
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReportWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
