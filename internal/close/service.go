package close

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	"github.com/Corner-venturo/Corner-sub009/internal/shared"
)

// DefaultRetainedEarningsCode is used when no code is configured.
const DefaultRetainedEarningsCode = "3350"

// Store is the persistence port of the closing engine.
type Store interface {
	ActiveClosing(ctx context.Context, key PeriodKey) (ClosingRecord, bool, error)
	History(ctx context.Context, workspaceID uuid.UUID) ([]ClosingRecord, error)
	WithClosingTx(ctx context.Context, fn func(context.Context, ClosingTx) error) error
}

// ClosingTx is the transactional view used by Execute.
type ClosingTx interface {
	accounting.TxRepository
	SumPostedLines(ctx context.Context, filter accounting.LineFilter) ([]accounting.Movement, error)
	ActiveClosing(ctx context.Context, key PeriodKey) (ClosingRecord, bool, error)
	InsertClosing(ctx context.Context, rec ClosingRecord) error
}

// Config tunes the closing engine.
type Config struct {
	RetainedEarningsCode string
	TxTimeout            time.Duration
}

// Service orchestrates period closing previews and executions.
type Service struct {
	agg    *accounting.Aggregator
	store  Store
	audit  accounting.AuditPort
	cache  accounting.CacheInvalidator
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service instance. audit and cache are optional.
func NewService(agg *accounting.Aggregator, store Store, audit accounting.AuditPort, cache accounting.CacheInvalidator, cfg Config, logger *slog.Logger) *Service {
	if cfg.RetainedEarningsCode == "" {
		cfg.RetainedEarningsCode = DefaultRetainedEarningsCode
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{agg: agg, store: store, audit: audit, cache: cache, cfg: cfg, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Preview computes the candidate closing of a period without writing.
func (s *Service) Preview(ctx context.Context, in PreviewInput) (ClosingPreview, error) {
	if in.WorkspaceID == uuid.Nil {
		return ClosingPreview{}, shared.ErrWorkspaceRequired
	}
	period, err := PeriodBounds(in.PeriodType, in.Year, in.Number)
	if err != nil {
		return ClosingPreview{}, err
	}
	catalog, err := s.agg.Catalog(ctx, in.WorkspaceID)
	if err != nil {
		return ClosingPreview{}, err
	}
	accounts := closableAccounts(catalog)
	movements := accounting.Movements{}
	if len(accounts) > 0 {
		movements, err = s.agg.AggregateWith(ctx, catalog, accounting.LineFilter{
			WorkspaceID: in.WorkspaceID,
			AccountIDs:  accountIDs(accounts),
			Range:       period.Range(),
		})
		if err != nil {
			return ClosingPreview{}, err
		}
	}
	_, closed, err := s.store.ActiveClosing(ctx, period.Key(in.WorkspaceID))
	if err != nil {
		return ClosingPreview{}, fmt.Errorf("close: load closing: %w", err)
	}
	preview := buildPreview(in.WorkspaceID, period, accounts, movements)
	preview.AlreadyClosed = closed
	return preview, nil
}

// Execute commits a preview: one posted closing voucher and its closing record
// in a single transaction. Retrying after an ambiguous failure is safe; a
// committed closing surfaces as ErrAlreadyClosed.
func (s *Service) Execute(ctx context.Context, in ExecuteInput) (ClosingResult, error) {
	p := in.Preview
	if p.AlreadyClosed {
		return ClosingResult{}, ErrAlreadyClosed
	}
	if p.WorkspaceID == uuid.Nil {
		return ClosingResult{}, shared.ErrWorkspaceRequired
	}
	if len(p.Items()) == 0 {
		return ClosingResult{}, ErrNothingToClose
	}
	if s.cfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TxTimeout)
		defer cancel()
	}

	key := p.Period.Key(p.WorkspaceID)
	var result ClosingResult
	err := s.store.WithClosingTx(ctx, func(ctx context.Context, tx ClosingTx) error {
		if err := tx.LockWorkspace(ctx, p.WorkspaceID); err != nil {
			return err
		}
		if _, closed, err := tx.ActiveClosing(ctx, key); err != nil {
			return err
		} else if closed {
			return ErrAlreadyClosed
		}
		accounts, err := tx.ListAccounts(ctx, p.WorkspaceID)
		if err != nil {
			return err
		}
		catalog := accounting.NewCatalog(accounts)
		retained, ok := catalog.ByCode(s.cfg.RetainedEarningsCode)
		if !ok {
			return fmt.Errorf("%w: retained earnings account %s", accounting.ErrUnknownAccount, s.cfg.RetainedEarningsCode)
		}
		if err := s.ensureCurrent(ctx, tx, catalog, p); err != nil {
			return err
		}

		now := s.now()
		number, err := accounting.AllocateVoucherNumber(ctx, tx, p.WorkspaceID, p.Period.End)
		if err != nil {
			return err
		}
		voucher := accounting.NewPostedVoucher(p.WorkspaceID, number, p.Period.End,
			p.Period.Label+" period-end closing", in.ActorID, now, p.Lines(retained))
		if !voucher.TotalDebit().Equal(voucher.TotalCredit()) {
			return accounting.ErrUnbalanced
		}
		record := ClosingRecord{
			ID:          uuid.New(),
			WorkspaceID: p.WorkspaceID,
			PeriodType:  p.Period.Type,
			PeriodStart: p.Period.Start,
			PeriodEnd:   p.Period.End,
			NetIncome:   p.NetIncome,
			VoucherID:   voucher.ID,
			ClosedBy:    in.ActorID,
			ClosedAt:    now,
		}
		if err := tx.InsertClosing(ctx, record); err != nil {
			return err
		}
		if err := tx.InsertVoucher(ctx, voucher); err != nil {
			return err
		}
		result = ClosingResult{Record: record, Voucher: voucher}
		return nil
	})
	if err != nil {
		err = classifyExecuteError(err)
		s.logger.Warn("period closing failed",
			slog.String("workspace_id", p.WorkspaceID.String()),
			slog.String("period", p.Period.Label),
			slog.Any("error", err))
		return ClosingResult{}, err
	}

	s.logger.Info("period closed",
		slog.String("workspace_id", p.WorkspaceID.String()),
		slog.String("period", p.Period.Label),
		slog.String("voucher_no", result.Voucher.Number),
		slog.String("net_income", result.Record.NetIncome.StringFixed(accounting.AmountScale)))
	s.afterCommit(context.WithoutCancel(ctx), result)
	return result, nil
}

// History lists the closings of a workspace, newest period first.
func (s *Service) History(ctx context.Context, workspaceID uuid.UUID) ([]ClosingRecord, error) {
	if workspaceID == uuid.Nil {
		return nil, shared.ErrWorkspaceRequired
	}
	return s.store.History(ctx, workspaceID)
}

// Status reports whether a period has an active closing.
func (s *Service) Status(ctx context.Context, key PeriodKey) (State, error) {
	_, closed, err := s.store.ActiveClosing(ctx, key)
	if err != nil {
		return "", err
	}
	if closed {
		return StateClosed, nil
	}
	return StateNotClosed, nil
}

// ensureCurrent recomputes the preview under the workspace lock and rejects
// it when postings moved since it was taken.
func (s *Service) ensureCurrent(ctx context.Context, tx ClosingTx, catalog *accounting.Catalog, p ClosingPreview) error {
	accounts := closableAccounts(catalog)
	rows, err := tx.SumPostedLines(ctx, accounting.LineFilter{
		WorkspaceID: p.WorkspaceID,
		AccountIDs:  accountIDs(accounts),
		Range:       p.Period.Range(),
	})
	if err != nil {
		return err
	}
	movements := make(accounting.Movements, len(rows))
	for _, mv := range rows {
		movements[mv.AccountID] = mv
	}
	current := buildPreview(p.WorkspaceID, p.Period, accounts, movements)
	if !samePreview(current, p) {
		return ErrStalePreview
	}
	return nil
}

func (s *Service) afterCommit(ctx context.Context, result ClosingResult) {
	ws := result.Record.WorkspaceID
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, ws); err != nil {
			s.logger.Warn("report cache invalidation failed", slog.String("workspace_id", ws.String()), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		log := shared.AuditLog{
			WorkspaceID: ws,
			ActorID:     result.Record.ClosedBy,
			Action:      "period.close",
			Entity:      "accounting_period_closing",
			EntityID:    result.Record.ID.String(),
			Meta: map[string]any{
				"period_type":  string(result.Record.PeriodType),
				"period_start": result.Record.PeriodStart.Format(accounting.DateLayout),
				"voucher_no":   result.Voucher.Number,
				"net_income":   result.Record.NetIncome.StringFixed(accounting.AmountScale),
			},
			At: result.Record.ClosedAt,
		}
		if err := s.audit.Record(ctx, log); err != nil {
			s.logger.Warn("audit record failed", slog.String("action", log.Action), slog.Any("error", err))
		}
	}
}

func classifyExecuteError(err error) error {
	switch {
	case errors.Is(err, ErrAlreadyClosed),
		errors.Is(err, ErrStalePreview),
		errors.Is(err, accounting.ErrUnknownAccount):
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransactionFailure, err)
}

func closableAccounts(catalog *accounting.Catalog) []accounting.Account {
	return catalog.OfType(accounting.AccountTypeRevenue, accounting.AccountTypeCost, accounting.AccountTypeExpense)
}

func accountIDs(accounts []accounting.Account) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(accounts))
	for _, acc := range accounts {
		ids = append(ids, acc.ID)
	}
	return ids
}

// buildPreview turns period movements into closing candidates. Revenue closes
// on the debit side and cost or expense on the credit side.
func buildPreview(workspaceID uuid.UUID, period Period, accounts []accounting.Account, movements accounting.Movements) ClosingPreview {
	p := ClosingPreview{
		WorkspaceID:  workspaceID,
		Period:       period,
		RevenueItems: []PreviewItem{},
		CostItems:    []PreviewItem{},
		ExpenseItems: []PreviewItem{},
		TotalRevenue: decimal.Zero,
		TotalCost:    decimal.Zero,
		TotalExpense: decimal.Zero,
	}
	for _, acc := range accounts {
		amount := accounting.Balance(acc, movements.Get(acc.ID))
		if amount.IsZero() {
			continue
		}
		side := SideCredit
		if acc.Type == accounting.AccountTypeRevenue {
			side = SideDebit
		}
		if amount.IsNegative() {
			side = flip(side)
		}
		item := PreviewItem{AccountID: acc.ID, Code: acc.Code, Name: acc.Name, Type: acc.Type, Amount: amount, Side: side}
		switch acc.Type {
		case accounting.AccountTypeRevenue:
			p.RevenueItems = append(p.RevenueItems, item)
			p.TotalRevenue = p.TotalRevenue.Add(amount)
		case accounting.AccountTypeCost:
			p.CostItems = append(p.CostItems, item)
			p.TotalCost = p.TotalCost.Add(amount)
		default:
			p.ExpenseItems = append(p.ExpenseItems, item)
			p.TotalExpense = p.TotalExpense.Add(amount)
		}
	}
	p.GrossProfit = p.TotalRevenue.Sub(p.TotalCost)
	p.NetIncome = p.GrossProfit.Sub(p.TotalExpense)
	p.IsProfit = !p.NetIncome.IsNegative()
	return p
}

func flip(side Side) Side {
	if side == SideDebit {
		return SideCredit
	}
	return SideDebit
}

func samePreview(a, b ClosingPreview) bool {
	left, right := a.Items(), b.Items()
	if len(left) != len(right) || !a.NetIncome.Equal(b.NetIncome) {
		return false
	}
	for i := range left {
		if left[i].AccountID != right[i].AccountID || !left[i].Amount.Equal(right[i].Amount) || left[i].Side != right[i].Side {
			return false
		}
	}
	return true
}
