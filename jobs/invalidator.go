package jobs

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
)

// WarmupEnqueuer schedules report warmups.
type WarmupEnqueuer interface {
	EnqueueReportWarmup(ctx context.Context, payload ScopePayload) (*asynq.TaskInfo, error)
}

// RefreshingInvalidator drops cached statements of a workspace and schedules
// a warmup so the next read hits a populated cache. Scheduling is best
// effort.
type RefreshingInvalidator struct {
	Cache  accounting.CacheInvalidator
	Queue  WarmupEnqueuer
	Logger *slog.Logger
}

// Invalidate implements accounting.CacheInvalidator.
func (r RefreshingInvalidator) Invalidate(ctx context.Context, workspaceID uuid.UUID) error {
	if r.Cache != nil {
		if err := r.Cache.Invalidate(ctx, workspaceID); err != nil {
			return err
		}
	}
	if r.Queue == nil {
		return nil
	}
	if _, err := r.Queue.EnqueueReportWarmup(ctx, ScopePayload{WorkspaceID: workspaceID.String()}); err != nil {
		logger := r.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("enqueue report warmup", slog.String("workspace_id", workspaceID.String()), slog.Any("error", err))
	}
	return nil
}
