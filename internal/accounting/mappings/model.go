package mappings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting/reports"
)

// Role is what an account plays in the cash flow statement.
type Role string

const (
	RoleCash      Role = "cash"
	RoleOperating Role = Role(reports.ActivityOperating)
	RoleInvesting Role = Role(reports.ActivityInvesting)
	RoleFinancing Role = Role(reports.ActivityFinancing)
)

// ParseRole normalises a stored or submitted role.
func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleCash, RoleOperating, RoleInvesting, RoleFinancing:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
}

// Mapping overrides the convention for one account of a workspace.
type Mapping struct {
	WorkspaceID uuid.UUID `json:"workspace_id"`
	AccountID   uuid.UUID `json:"account_id"`
	Role        Role      `json:"role"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var (
	// ErrInvalidRole indicates an unknown cash flow role.
	ErrInvalidRole = errors.New("mappings: invalid cash flow role")
	// ErrMappingNotFound indicates the account has no override.
	ErrMappingNotFound = errors.New("mappings: cash flow mapping not found")
)
