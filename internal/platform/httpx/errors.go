// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/mappings"
	closing "github.com/Corner-venturo/Corner-sub009/internal/close"
	"github.com/Corner-venturo/Corner-sub009/internal/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

type problemMapping struct {
	target error
	status int
	title  string
}

var problemMappings = []problemMapping{
	{ErrNotFound, http.StatusNotFound, "Not Found"},
	{shared.ErrNotFound, http.StatusNotFound, "Not Found"},
	{accounting.ErrVoucherNotFound, http.StatusNotFound, "Voucher Not Found"},
	{mappings.ErrMappingNotFound, http.StatusNotFound, "Mapping Not Found"},
	{ErrDuplicate, http.StatusConflict, "Duplicate"},
	{shared.ErrIdempotencyConflict, http.StatusConflict, "Duplicate Request"},
	{closing.ErrAlreadyClosed, http.StatusConflict, "Period Already Closed"},
	{closing.ErrStalePreview, http.StatusConflict, "Stale Preview"},
	{accounting.ErrVoucherNumberConflict, http.StatusConflict, "Voucher Number Conflict"},
	{accounting.ErrInvalidStatus, http.StatusConflict, "Invalid Status"},
	{ErrValidation, http.StatusBadRequest, "Validation Failed"},
	{shared.ErrWorkspaceRequired, http.StatusBadRequest, "Workspace Required"},
	{accounting.ErrInvalidRange, http.StatusBadRequest, "Invalid Date Range"},
	{closing.ErrInvalidPeriod, http.StatusBadRequest, "Invalid Period"},
	{mappings.ErrInvalidRole, http.StatusBadRequest, "Invalid Cash Flow Role"},
	{accounting.ErrUnknownAccount, http.StatusUnprocessableEntity, "Unknown Account"},
	{accounting.ErrInactiveAccount, http.StatusUnprocessableEntity, "Inactive Account"},
	{accounting.ErrUnbalanced, http.StatusUnprocessableEntity, "Unbalanced Voucher"},
	{accounting.ErrTooFewLines, http.StatusUnprocessableEntity, "Too Few Lines"},
	{accounting.ErrInvalidPosting, http.StatusUnprocessableEntity, "Invalid Posting"},
	{closing.ErrNothingToClose, http.StatusUnprocessableEntity, "Nothing To Close"},
	{accounting.ErrIncompleteCatalog, http.StatusInternalServerError, "Incomplete Chart Of Accounts"},
	{accounting.ErrImbalancedLedger, http.StatusInternalServerError, "Imbalanced Ledger"},
	{closing.ErrTransactionFailure, http.StatusServiceUnavailable, "Closing Failed"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "Timeout"},
	{ErrForbidden, http.StatusForbidden, "Forbidden"},
	{ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
}

// StatusOf returns the HTTP status and title err maps to.
func StatusOf(err error) (int, string) {
	for _, m := range problemMappings {
		if errors.Is(err, m.target) {
			return m.status, m.title
		}
	}
	return http.StatusInternalServerError, "Internal Error"
}

// RespondError maps domain errors to HTTP responses using RFC7807. Details of
// unmapped errors are not exposed.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusOf(err)
	detail := err.Error()
	if status == http.StatusInternalServerError && title == "Internal Error" {
		detail = ""
	}
	Problem(w, status, title, detail)
}
