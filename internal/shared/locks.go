package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// LedgerLockKey names the advisory lock serialising writes to a workspace ledger.
func LedgerLockKey(workspaceID uuid.UUID) string {
	return fmt.Sprintf("ledger:workspace:%s:lock", workspaceID)
}
