package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGLIntegrity verifies that every workspace trial balance balances.
	TaskGLIntegrity = "ledger:gl_integrity"
	// TaskReportWarmup pre-computes current statements into the report cache.
	TaskReportWarmup = "ledger:report_warmup"
)

// ScopePayload narrows a ledger task. Zero values mean every workspace and
// the current date.
type ScopePayload struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
	AsOf        string `json:"as_of,omitempty"`
}

// NewGLIntegrityTask builds a ledger integrity task.
func NewGLIntegrityTask(payload ScopePayload) (*asynq.Task, error) {
	return newScopedTask(TaskGLIntegrity, payload)
}

// NewReportWarmupTask builds a report warmup task.
func NewReportWarmupTask(payload ScopePayload) (*asynq.Task, error) {
	return newScopedTask(TaskReportWarmup, payload)
}

func newScopedTask(typ string, payload ScopePayload) (*asynq.Task, error) {
	if _, _, err := payload.parse(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data), nil
}

func decodeScope(t *asynq.Task) (uuid.UUID, time.Time, error) {
	var payload ScopePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return uuid.Nil, time.Time{}, err
		}
	}
	return payload.parse()
}

func (p ScopePayload) parse() (uuid.UUID, time.Time, error) {
	var ws uuid.UUID
	if raw := strings.TrimSpace(p.WorkspaceID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, time.Time{}, fmt.Errorf("jobs: workspace id: %w", err)
		}
		ws = id
	}
	var asOf time.Time
	if strings.TrimSpace(p.AsOf) != "" {
		t, err := accounting.ParseDate(p.AsOf)
		if err != nil {
			return uuid.Nil, time.Time{}, err
		}
		asOf = t
	}
	return ws, asOf, nil
}
