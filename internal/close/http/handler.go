package closehttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	closing "github.com/Corner-venturo/Corner-sub009/internal/close"
	"github.com/Corner-venturo/Corner-sub009/internal/platform/httpx"
	"github.com/Corner-venturo/Corner-sub009/internal/shared"
)

const idempotencyModule = "period_close"

type closingService interface {
	Preview(ctx context.Context, in closing.PreviewInput) (closing.ClosingPreview, error)
	Execute(ctx context.Context, in closing.ExecuteInput) (closing.ClosingResult, error)
	History(ctx context.Context, workspaceID uuid.UUID) ([]closing.ClosingRecord, error)
	Status(ctx context.Context, key closing.PeriodKey) (closing.State, error)
}

type idempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Handler exposes the period-end closing workflow.
type Handler struct {
	logger      *slog.Logger
	service     closingService
	idempotency idempotencyStore
	validator   *validator.Validate
	limiter     func(http.Handler) http.Handler
}

// NewHandler builds the closing handler. idempotency may be nil, in which case
// Idempotency-Key headers are ignored.
func NewHandler(logger *slog.Logger, service closingService, idempotency idempotencyStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		idempotency: idempotency,
		validator:   validator.New(),
		limiter: httprate.Limit(5, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if ws, ok := shared.WorkspaceFromContext(r.Context()); ok {
				return "ws:" + ws.String(), nil
			}
			return httprate.KeyByIP(r)
		})),
	}
}

// MountRoutes registers closing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/closing", func(r chi.Router) {
		r.Get("/preview", h.preview)
		r.Get("/status", h.status)
		r.Get("/history", h.history)
		r.With(h.limiter).Post("/execute", h.execute)
	})
}

type periodRequest struct {
	PeriodType string `json:"period_type" validate:"required,oneof=month quarter year"`
	Year       int    `json:"year" validate:"required,min=1,max=9999"`
	Number     int    `json:"number" validate:"min=0,max=12"`
}

type statusResponse struct {
	Period closing.Period `json:"period"`
	State  closing.State  `json:"state"`
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	req, ok := h.periodQuery(w, r)
	if !ok {
		return
	}
	preview, err := h.service.Preview(r.Context(), previewInput(ws, req))
	if err != nil {
		h.fail(w, "closing preview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, preview)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	req, ok := h.periodQuery(w, r)
	if !ok {
		return
	}
	period, err := closing.PeriodBounds(closing.PeriodType(req.PeriodType), req.Year, req.Number)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	state, err := h.service.Status(r.Context(), period.Key(ws))
	if err != nil {
		h.fail(w, "closing status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, statusResponse{Period: period, State: state})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	records, err := h.service.History(r.Context(), ws)
	if err != nil {
		h.fail(w, "closing history", err)
		return
	}
	if records == nil {
		records = []closing.ClosingRecord{}
	}
	httpx.JSON(w, http.StatusOK, records)
}

// execute recomputes the preview server side and commits it. A client-held
// preview is never trusted.
func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	var req periodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" && h.idempotency != nil {
		scoped := ws.String() + ":" + key
		if err := h.idempotency.CheckAndInsert(r.Context(), scoped, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				err = h.replayedExecute(r.Context(), ws, req)
			}
			h.fail(w, "closing idempotency", err)
			return
		}
		committed := false
		defer func() {
			if committed {
				return
			}
			if err := h.idempotency.Delete(context.WithoutCancel(r.Context()), scoped, idempotencyModule); err != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", err))
			}
		}()
		result, ok := h.runExecute(w, r, ws, req)
		if ok {
			committed = true
			httpx.JSON(w, http.StatusCreated, result)
		}
		return
	}
	if result, ok := h.runExecute(w, r, ws, req); ok {
		httpx.JSON(w, http.StatusCreated, result)
	}
}

// replayedExecute answers a reused Idempotency-Key from the ledger: a retry
// after a commit the client never saw reports the period as closed, while a
// key still held by an unfinished request stays a duplicate.
func (h *Handler) replayedExecute(ctx context.Context, ws uuid.UUID, req periodRequest) error {
	period, err := closing.PeriodBounds(closing.PeriodType(req.PeriodType), req.Year, req.Number)
	if err != nil {
		return err
	}
	state, err := h.service.Status(ctx, period.Key(ws))
	if err != nil {
		return err
	}
	if state == closing.StateClosed {
		return closing.ErrAlreadyClosed
	}
	return shared.ErrIdempotencyConflict
}

func (h *Handler) runExecute(w http.ResponseWriter, r *http.Request, ws uuid.UUID, req periodRequest) (closing.ClosingResult, bool) {
	preview, err := h.service.Preview(r.Context(), previewInput(ws, req))
	if err != nil {
		h.fail(w, "closing preview", err)
		return closing.ClosingResult{}, false
	}
	if preview.AlreadyClosed {
		h.fail(w, "closing execute", closing.ErrAlreadyClosed)
		return closing.ClosingResult{}, false
	}
	result, err := h.service.Execute(r.Context(), closing.ExecuteInput{
		Preview: preview,
		ActorID: shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "closing execute", err)
		return closing.ClosingResult{}, false
	}
	h.logger.Info("period closed",
		slog.String("workspace_id", ws.String()),
		slog.String("period", preview.Period.Label),
		slog.String("voucher", result.Voucher.Number))
	return result, true
}

func (h *Handler) periodQuery(w http.ResponseWriter, r *http.Request) (periodRequest, bool) {
	q := r.URL.Query()
	req := periodRequest{PeriodType: strings.ToLower(strings.TrimSpace(q.Get("period_type")))}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"year", &req.Year}, {"number", &req.Number}} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: %s must be an integer", httpx.ErrValidation, p.name))
			return periodRequest{}, false
		}
		*p.dst = v
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return periodRequest{}, false
	}
	return req, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status, _ := httpx.StatusOf(err)
	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Error(op, slog.Any("error", err))
	case errors.Is(err, closing.ErrAlreadyClosed), errors.Is(err, shared.ErrIdempotencyConflict):
		h.logger.Info(op, slog.Any("error", err))
	default:
		h.logger.Debug(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func previewInput(ws uuid.UUID, req periodRequest) closing.PreviewInput {
	return closing.PreviewInput{
		WorkspaceID: ws,
		PeriodType:  closing.PeriodType(req.PeriodType),
		Year:        req.Year,
		Number:      req.Number,
	}
}

func workspace(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ws, ok := shared.WorkspaceFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrWorkspaceRequired)
		return uuid.Nil, false
	}
	return ws, true
}
