package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Corner-venturo/Corner-sub009/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator drops derived report results after the ledger changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, workspaceID uuid.UUID) error
}

// Service coordinates posting and voiding journal vouchers.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cache  CacheInvalidator
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the ledger service. audit and cache are optional.
func NewService(repo RepositoryPort, audit AuditPort, cache CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostVoucher validates and persists a new posted voucher.
func (s *Service) PostVoucher(ctx context.Context, input PostingInput) (Voucher, error) {
	if err := input.Validate(); err != nil {
		return Voucher{}, err
	}
	var voucher Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockWorkspace(ctx, input.WorkspaceID); err != nil {
			return err
		}
		accounts, err := tx.ListAccounts(ctx, input.WorkspaceID)
		if err != nil {
			return err
		}
		catalog := NewCatalog(accounts)
		for idx, line := range input.Lines {
			acc, ok := catalog.Lookup(line.AccountID)
			if !ok {
				return fmt.Errorf("%w: line %d account %s", ErrUnknownAccount, idx, line.AccountID)
			}
			if !acc.IsActive {
				return fmt.Errorf("%w: %s", ErrInactiveAccount, acc.Code)
			}
		}
		date := DateOf(input.Date)
		number, err := AllocateVoucherNumber(ctx, tx, input.WorkspaceID, date)
		if err != nil {
			return err
		}
		voucher = NewPostedVoucher(input.WorkspaceID, number, date, input.Memo, input.PostedBy, s.now(), input.Lines)
		return tx.InsertVoucher(ctx, voucher)
	})
	if err != nil {
		return Voucher{}, err
	}
	s.afterWrite(ctx, shared.AuditLog{
		WorkspaceID: voucher.WorkspaceID,
		ActorID:     input.PostedBy,
		Action:      "voucher.post",
		Entity:      "journal_voucher",
		EntityID:    voucher.ID.String(),
		Meta: map[string]any{
			"number": voucher.Number,
			"amount": voucher.TotalDebit().StringFixed(AmountScale),
		},
		At: s.now(),
	})
	return voucher, nil
}

// VoidVoucher marks a posted voucher as voided so it no longer counts.
func (s *Service) VoidVoucher(ctx context.Context, input VoidInput) (Voucher, error) {
	if input.VoucherID == uuid.Nil {
		return Voucher{}, fmt.Errorf("%w: voucher id required", ErrInvalidPosting)
	}
	var voucher Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockWorkspace(ctx, input.WorkspaceID); err != nil {
			return err
		}
		current, err := tx.GetVoucher(ctx, input.WorkspaceID, input.VoucherID)
		if err != nil {
			return err
		}
		if current.Status != VoucherStatusPosted {
			return ErrInvalidStatus
		}
		if err := tx.UpdateVoucherStatus(ctx, current.ID, VoucherStatusVoided); err != nil {
			return err
		}
		voucher = current
		voucher.Status = VoucherStatusVoided
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}
	s.afterWrite(ctx, shared.AuditLog{
		WorkspaceID: voucher.WorkspaceID,
		ActorID:     input.ActorID,
		Action:      "voucher.void",
		Entity:      "journal_voucher",
		EntityID:    voucher.ID.String(),
		Meta: map[string]any{
			"number": voucher.Number,
			"reason": input.Reason,
		},
		At: s.now(),
	})
	return voucher, nil
}

// ListAccounts retrieves the workspace chart of accounts.
func (s *Service) ListAccounts(ctx context.Context, workspaceID uuid.UUID) ([]Account, error) {
	var accounts []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, workspaceID)
		return err
	})
	return accounts, err
}

// afterWrite runs the best-effort side effects of a committed write.
func (s *Service) afterWrite(ctx context.Context, log shared.AuditLog) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, log.WorkspaceID); err != nil {
			s.logger.Warn("report cache invalidation failed", slog.String("workspace_id", log.WorkspaceID.String()), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, log); err != nil {
			s.logger.Warn("audit record failed", slog.String("action", log.Action), slog.Any("error", err))
		}
	}
}

// NewPostedVoucher assembles a posted voucher with fresh ids and sequential
// line numbers starting at 1.
func NewPostedVoucher(workspaceID uuid.UUID, number string, date time.Time, memo, createdBy string, at time.Time, lines []PostingLineInput) Voucher {
	v := Voucher{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Number:      number,
		Date:        DateOf(date),
		Status:      VoucherStatusPosted,
		Memo:        memo,
		CreatedBy:   createdBy,
		CreatedAt:   at,
		Lines:       make([]JournalLine, 0, len(lines)),
	}
	for idx, line := range lines {
		v.Lines = append(v.Lines, JournalLine{
			ID:          uuid.New(),
			VoucherID:   v.ID,
			AccountID:   line.AccountID,
			LineNo:      idx + 1,
			Debit:       RoundAmount(line.Debit),
			Credit:      RoundAmount(line.Credit),
			Description: line.Description,
		})
	}
	return v
}
