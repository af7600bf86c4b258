package accountinghttp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/mappings"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/reports"
	"github.com/Corner-venturo/Corner-sub009/internal/platform/httpx"
	"github.com/Corner-venturo/Corner-sub009/internal/shared"
)

type ledgerService interface {
	PostVoucher(ctx context.Context, input accounting.PostingInput) (accounting.Voucher, error)
	VoidVoucher(ctx context.Context, input accounting.VoidInput) (accounting.Voucher, error)
	ListAccounts(ctx context.Context, workspaceID uuid.UUID) ([]accounting.Account, error)
}

type reportService interface {
	TrialBalance(ctx context.Context, workspaceID uuid.UUID, asOf time.Time) (reports.GroupedTrialBalance, error)
	IncomeStatement(ctx context.Context, workspaceID uuid.UUID, rng accounting.DateRange) (reports.IncomeStatement, error)
	BalanceSheet(ctx context.Context, workspaceID uuid.UUID, asOf time.Time) (reports.BalanceSheet, error)
	CashFlow(ctx context.Context, workspaceID uuid.UUID, rng accounting.DateRange, classifier reports.ActivityClassifier) (reports.CashFlowStatement, error)
	Ledger(ctx context.Context, workspaceID, accountID uuid.UUID, rng accounting.DateRange) (accounting.AccountLedger, error)
	GeneralLedger(ctx context.Context, workspaceID uuid.UUID, rng accounting.DateRange) ([]accounting.AccountLedger, error)
}

type mappingService interface {
	List(ctx context.Context, workspaceID uuid.UUID) ([]mappings.Mapping, error)
	Assign(ctx context.Context, workspaceID, accountID uuid.UUID, role string) (mappings.Mapping, error)
	Remove(ctx context.Context, workspaceID, accountID uuid.UUID) error
	Classifier(ctx context.Context, workspaceID uuid.UUID) (*mappings.Classifier, error)
}

// Handler exposes ledger postings and financial statements as JSON and CSV.
type Handler struct {
	logger    *slog.Logger
	ledger    ledgerService
	reports   reportService
	mappings  mappingService
	validator *validator.Validate
	now       func() time.Time
	limiter   func(http.Handler) http.Handler
}

// NewHandler constructs the accounting handler. mappings may be nil, in which
// case cash flow uses the default convention.
func NewHandler(logger *slog.Logger, ledger ledgerService, statements reportService, cashMappings mappingService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		ledger:    ledger,
		reports:   statements,
		mappings:  cashMappings,
		validator: validator.New(),
		now:       time.Now,
		limiter:   httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(workspaceKey)),
	}
}

// MountRoutes registers accounting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounting", func(r chi.Router) {
		r.Get("/accounts", h.listAccounts)
		r.Post("/vouchers", h.postVoucher)
		r.Post("/vouchers/{id}/void", h.voidVoucher)

		r.Get("/trial-balance", h.trialBalance)
		r.Get("/ledger/{accountID}", h.accountLedger)
		r.Get("/general-ledger", h.generalLedger)
		r.Get("/income-statement", h.incomeStatement)
		r.Get("/balance-sheet", h.balanceSheet)
		r.Get("/cash-flow", h.cashFlow)

		r.Group(func(r chi.Router) {
			r.Use(h.limiter)
			r.Get("/trial-balance.csv", h.trialBalanceCSV)
			r.Get("/income-statement.csv", h.incomeStatementCSV)
			r.Get("/balance-sheet.csv", h.balanceSheetCSV)
			r.Get("/cash-flow.csv", h.cashFlowCSV)
		})

		r.Get("/cash-flow/mappings", h.listMappings)
		r.Put("/cash-flow/mappings/{accountID}", h.assignMapping)
		r.Delete("/cash-flow/mappings/{accountID}", h.removeMapping)
	})
}

type postLineRequest struct {
	AccountID   string          `json:"account_id" validate:"required,uuid"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description" validate:"max=255"`
}

type postVoucherRequest struct {
	Date  string            `json:"date" validate:"required,datetime=2006-01-02"`
	Memo  string            `json:"memo" validate:"max=500"`
	Lines []postLineRequest `json:"lines" validate:"required,min=2,dive"`
}

type voidVoucherRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type assignMappingRequest struct {
	Role string `json:"role" validate:"required,oneof=cash operating investing financing"`
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	accounts, err := h.ledger.ListAccounts(r.Context(), ws)
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) postVoucher(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	var req postVoucherRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := accounting.ParseDate(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := accounting.PostingInput{
		WorkspaceID: ws,
		Date:        date,
		Memo:        strings.TrimSpace(req.Memo),
		PostedBy:    shared.ActorFromContext(r.Context()),
		Lines:       make([]accounting.PostingLineInput, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, accounting.PostingLineInput{
			AccountID:   uuid.MustParse(line.AccountID),
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: strings.TrimSpace(line.Description),
		})
	}
	voucher, err := h.ledger.PostVoucher(r.Context(), input)
	if err != nil {
		h.fail(w, "post voucher", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, voucher)
}

func (h *Handler) voidVoucher(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req voidVoucherRequest
	if !h.decode(w, r, &req) {
		return
	}
	voucher, err := h.ledger.VoidVoucher(r.Context(), accounting.VoidInput{
		WorkspaceID: ws,
		VoucherID:   id,
		ActorID:     shared.ActorFromContext(r.Context()),
		Reason:      req.Reason,
	})
	if err != nil {
		h.fail(w, "void voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, voucher)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	tb, ok := h.loadTrialBalance(w, r)
	if ok {
		httpx.JSON(w, http.StatusOK, tb)
	}
}

func (h *Handler) trialBalanceCSV(w http.ResponseWriter, r *http.Request) {
	tb, ok := h.loadTrialBalance(w, r)
	if ok {
		h.writeCSV(w, "trial-balance-"+tb.AsOf.Format(accounting.DateLayout)+".csv", func(out io.Writer) error {
			return reports.WriteTrialBalanceCSV(out, tb)
		})
	}
}

func (h *Handler) loadTrialBalance(w http.ResponseWriter, r *http.Request) (reports.GroupedTrialBalance, bool) {
	ws, ok := workspace(w, r)
	if !ok {
		return reports.GroupedTrialBalance{}, false
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return reports.GroupedTrialBalance{}, false
	}
	tb, err := h.reports.TrialBalance(r.Context(), ws, asOf)
	if err != nil {
		h.fail(w, "trial balance", err)
		return reports.GroupedTrialBalance{}, false
	}
	return tb, true
}

func (h *Handler) accountLedger(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	accountID, ok := pathUUID(w, r, "accountID")
	if !ok {
		return
	}
	rng, ok := dateRange(w, r)
	if !ok {
		return
	}
	ledger, err := h.reports.Ledger(r.Context(), ws, accountID, rng)
	if err != nil {
		h.fail(w, "account ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}

func (h *Handler) generalLedger(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	rng, ok := dateRange(w, r)
	if !ok {
		return
	}
	ledgers, err := h.reports.GeneralLedger(r.Context(), ws, rng)
	if err != nil {
		h.fail(w, "general ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledgers)
}

func (h *Handler) incomeStatement(w http.ResponseWriter, r *http.Request) {
	is, ok := h.loadIncomeStatement(w, r)
	if ok {
		httpx.JSON(w, http.StatusOK, is)
	}
}

func (h *Handler) incomeStatementCSV(w http.ResponseWriter, r *http.Request) {
	is, ok := h.loadIncomeStatement(w, r)
	if ok {
		h.writeCSV(w, "income-statement.csv", func(out io.Writer) error {
			return reports.WriteIncomeStatementCSV(out, is)
		})
	}
}

func (h *Handler) loadIncomeStatement(w http.ResponseWriter, r *http.Request) (reports.IncomeStatement, bool) {
	ws, ok := workspace(w, r)
	if !ok {
		return reports.IncomeStatement{}, false
	}
	rng, ok := dateRange(w, r)
	if !ok {
		return reports.IncomeStatement{}, false
	}
	is, err := h.reports.IncomeStatement(r.Context(), ws, rng)
	if err != nil {
		h.fail(w, "income statement", err)
		return reports.IncomeStatement{}, false
	}
	return is, true
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	bs, ok := h.loadBalanceSheet(w, r)
	if ok {
		httpx.JSON(w, http.StatusOK, bs)
	}
}

func (h *Handler) balanceSheetCSV(w http.ResponseWriter, r *http.Request) {
	bs, ok := h.loadBalanceSheet(w, r)
	if ok {
		h.writeCSV(w, "balance-sheet-"+bs.AsOf+".csv", func(out io.Writer) error {
			return reports.WriteBalanceSheetCSV(out, bs)
		})
	}
}

func (h *Handler) loadBalanceSheet(w http.ResponseWriter, r *http.Request) (reports.BalanceSheet, bool) {
	ws, ok := workspace(w, r)
	if !ok {
		return reports.BalanceSheet{}, false
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return reports.BalanceSheet{}, false
	}
	bs, err := h.reports.BalanceSheet(r.Context(), ws, asOf)
	if err != nil {
		h.fail(w, "balance sheet", err)
		return reports.BalanceSheet{}, false
	}
	return bs, true
}

func (h *Handler) cashFlow(w http.ResponseWriter, r *http.Request) {
	cf, ok := h.loadCashFlow(w, r)
	if ok {
		httpx.JSON(w, http.StatusOK, cf)
	}
}

func (h *Handler) cashFlowCSV(w http.ResponseWriter, r *http.Request) {
	cf, ok := h.loadCashFlow(w, r)
	if ok {
		h.writeCSV(w, "cash-flow.csv", func(out io.Writer) error {
			return reports.WriteCashFlowCSV(out, cf)
		})
	}
}

func (h *Handler) loadCashFlow(w http.ResponseWriter, r *http.Request) (reports.CashFlowStatement, bool) {
	ws, ok := workspace(w, r)
	if !ok {
		return reports.CashFlowStatement{}, false
	}
	rng, ok := dateRange(w, r)
	if !ok {
		return reports.CashFlowStatement{}, false
	}
	var classifier reports.ActivityClassifier
	if h.mappings != nil {
		c, err := h.mappings.Classifier(r.Context(), ws)
		if err != nil {
			h.fail(w, "load cash flow mappings", err)
			return reports.CashFlowStatement{}, false
		}
		classifier = c
	}
	cf, err := h.reports.CashFlow(r.Context(), ws, rng, classifier)
	if err != nil {
		h.fail(w, "cash flow", err)
		return reports.CashFlowStatement{}, false
	}
	return cf, true
}

func (h *Handler) listMappings(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok || !h.requireMappings(w) {
		return
	}
	items, err := h.mappings.List(r.Context(), ws)
	if err != nil {
		h.fail(w, "list cash flow mappings", err)
		return
	}
	if items == nil {
		items = []mappings.Mapping{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) assignMapping(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok || !h.requireMappings(w) {
		return
	}
	accountID, ok := pathUUID(w, r, "accountID")
	if !ok {
		return
	}
	var req assignMappingRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.mappings.Assign(r.Context(), ws, accountID, req.Role)
	if err != nil {
		h.fail(w, "assign cash flow mapping", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) removeMapping(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok || !h.requireMappings(w) {
		return
	}
	accountID, ok := pathUUID(w, r, "accountID")
	if !ok {
		return
	}
	if err := h.mappings.Remove(r.Context(), ws, accountID); err != nil {
		h.fail(w, "remove cash flow mapping", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireMappings(w http.ResponseWriter) bool {
	if h.mappings == nil {
		httpx.Problem(w, http.StatusNotImplemented, "Not Implemented", "cash flow mappings are not configured")
		return false
	}
	return true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handler) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("as_of"))
	if raw == "" {
		return accounting.DateOf(h.now()), true
	}
	t, err := accounting.ParseDate(raw)
	if err != nil {
		httpx.RespondError(w, err)
		return time.Time{}, false
	}
	return t, true
}

func (h *Handler) writeCSV(w http.ResponseWriter, filename string, write func(io.Writer) error) {
	httpx.CSV(w, filename)
	if err := write(w); err != nil {
		h.logger.Error("write csv", slog.String("file", filename), slog.Any("error", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status, _ := httpx.StatusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	} else {
		h.logger.Debug(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// workspaceKey rate limits exports per workspace, falling back to the client IP.
func workspaceKey(r *http.Request) (string, error) {
	if ws, ok := shared.WorkspaceFromContext(r.Context()); ok {
		return "ws:" + ws.String(), nil
	}
	return httprate.KeyByIP(r)
}

func workspace(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ws, ok := shared.WorkspaceFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrWorkspaceRequired)
		return uuid.Nil, false
	}
	return ws, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s must be a uuid", httpx.ErrValidation, name))
		return uuid.Nil, false
	}
	return id, true
}

// dateRange reads the optional from/to query parameters.
func dateRange(w http.ResponseWriter, r *http.Request) (accounting.DateRange, bool) {
	var rng accounting.DateRange
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &rng.From}, {"to", &rng.To}} {
		raw := strings.TrimSpace(r.URL.Query().Get(p.name))
		if raw == "" {
			continue
		}
		t, err := accounting.ParseDate(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return accounting.DateRange{}, false
		}
		*p.dst = t
	}
	if err := rng.Validate(); err != nil {
		httpx.RespondError(w, err)
		return accounting.DateRange{}, false
	}
	return rng, true
}
