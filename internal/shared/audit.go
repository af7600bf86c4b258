package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	WorkspaceID uuid.UUID
	ActorID     string
	Action      string
	Entity      string
	EntityID    string
	Meta        map[string]any
	At          time.Time
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Validate checks the mandatory fields of an audit record.
func (l AuditLog) Validate() error {
	if l.WorkspaceID == uuid.Nil {
		return errors.New("audit log requires workspace")
	}
	if l.Action == "" || l.Entity == "" || l.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	return nil
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if err := log.Validate(); err != nil {
		return err
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at any
	if !log.At.IsZero() {
		at = log.At
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (workspace_id, actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`, log.WorkspaceID, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}
