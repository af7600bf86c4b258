package mappings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	"github.com/Corner-venturo/Corner-sub009/internal/platform/db"
)

// Repository stores cash flow mappings.
type Repository interface {
	List(ctx context.Context, workspaceID uuid.UUID) ([]Mapping, error)
	Upsert(ctx context.Context, mapping Mapping) error
	Delete(ctx context.Context, workspaceID, accountID uuid.UUID) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

// List returns the overrides of a workspace ordered by account.
func (r *repository) List(ctx context.Context, workspaceID uuid.UUID) ([]Mapping, error) {
	rows, err := r.db.Query(ctx, `SELECT workspace_id, account_id, activity, updated_at
FROM cash_flow_mappings WHERE workspace_id=$1 ORDER BY account_id`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Mapping
	for rows.Next() {
		var (
			m   Mapping
			raw string
		)
		if err := rows.Scan(&m.WorkspaceID, &m.AccountID, &raw, &m.UpdatedAt); err != nil {
			return nil, err
		}
		if m.Role, err = ParseRole(raw); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Upsert creates or replaces the override of an account.
func (r *repository) Upsert(ctx context.Context, mapping Mapping) error {
	_, err := r.db.Exec(ctx, `INSERT INTO cash_flow_mappings (workspace_id, account_id, activity, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (workspace_id, account_id) DO UPDATE SET activity=EXCLUDED.activity, updated_at=NOW()`,
		mapping.WorkspaceID, mapping.AccountID, string(mapping.Role))
	if pgErr, ok := db.PgError(err); ok && pgErr.Code == db.CodeForeignKeyViolation {
		return fmt.Errorf("%w: %s", accounting.ErrUnknownAccount, mapping.AccountID)
	}
	return err
}

// Delete removes an override.
func (r *repository) Delete(ctx context.Context, workspaceID, accountID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cash_flow_mappings WHERE workspace_id=$1 AND account_id=$2`, workspaceID, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMappingNotFound
	}
	return nil
}
