package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	closing "github.com/Corner-venturo/Corner-sub009/internal/close"
)

func TestRespondErrorMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("wrapped: %w", closing.ErrAlreadyClosed), http.StatusConflict},
		{closing.ErrNothingToClose, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: %w", closing.ErrTransactionFailure, fmt.Errorf("boom")), http.StatusServiceUnavailable},
		{accounting.ErrInvalidRange, http.StatusBadRequest},
		{&accounting.ImbalanceError{}, http.StatusInternalServerError},
		{accounting.ErrVoucherNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.status, rr.Code, tc.err.Error())
		var problem ProblemDetail
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&problem))
		require.Equal(t, tc.status, problem.Status)
		require.NotEmpty(t, problem.Detail)
	}
}

func TestRespondErrorHidesUnmappedDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("pq: password authentication failed"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var problem ProblemDetail
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&problem))
	require.Empty(t, problem.Detail)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}
