package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrWorkspaceRequired indicates a request without workspace scope.
	ErrWorkspaceRequired = errors.New("workspace required")
)
