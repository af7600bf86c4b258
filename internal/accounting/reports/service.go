package reports

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
)

// CacheKeyer is implemented by classifiers whose results may be cached.
type CacheKeyer interface {
	CacheKey() string
}

// Service composes financial statements from ledger aggregates.
type Service struct {
	agg    *accounting.Aggregator
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewService wires the statement service. cache may be nil.
func NewService(agg *accounting.Aggregator, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{agg: agg, cache: cache, logger: logger}
}

// Invalidate drops cached statements of a workspace.
func (s *Service) Invalidate(ctx context.Context, workspaceID uuid.UUID) error {
	return s.cache.Invalidate(ctx, workspaceID)
}

// TrialBalance returns the grouped trial balance as of a date.
func (s *Service) TrialBalance(ctx context.Context, workspaceID uuid.UUID, asOf time.Time) (GroupedTrialBalance, error) {
	asOf = accounting.DateOf(asOf)
	return cached(ctx, s, workspaceID, []string{"tb", asOf.Format(accounting.DateLayout)}, func(ctx context.Context) (GroupedTrialBalance, error) {
		tb, err := s.agg.TrialBalance(ctx, workspaceID, asOf)
		if err != nil {
			return GroupedTrialBalance{}, err
		}
		return GroupTrialBalance(tb), nil
	})
}

// IncomeStatement builds the profit and loss report for the range.
func (s *Service) IncomeStatement(ctx context.Context, workspaceID uuid.UUID, rng accounting.DateRange) (IncomeStatement, error) {
	if err := rng.Validate(); err != nil {
		return IncomeStatement{}, err
	}
	return cached(ctx, s, workspaceID, []string{"pl", rangeToken(rng)}, func(ctx context.Context) (IncomeStatement, error) {
		catalog, err := s.agg.Catalog(ctx, workspaceID)
		if err != nil {
			return IncomeStatement{}, err
		}
		movements, err := s.aggregatePartitions(ctx, catalog, workspaceID, rng,
			accounting.AccountTypeRevenue, accounting.AccountTypeCost, accounting.AccountTypeExpense)
		if err != nil {
			return IncomeStatement{}, err
		}
		return BuildIncomeStatement(catalog, movements, rng)
	})
}

// BalanceSheet builds the position as of a date.
func (s *Service) BalanceSheet(ctx context.Context, workspaceID uuid.UUID, asOf time.Time) (BalanceSheet, error) {
	asOf = accounting.DateOf(asOf)
	return cached(ctx, s, workspaceID, []string{"bs", asOf.Format(accounting.DateLayout)}, func(ctx context.Context) (BalanceSheet, error) {
		catalog, err := s.agg.Catalog(ctx, workspaceID)
		if err != nil {
			return BalanceSheet{}, err
		}
		movements, err := s.aggregatePartitions(ctx, catalog, workspaceID, accounting.Through(asOf),
			accounting.AccountTypeAsset, accounting.AccountTypeLiability)
		if err != nil {
			return BalanceSheet{}, err
		}
		return BuildBalanceSheet(catalog, movements, asOf)
	})
}

// CashFlow builds the cash flow statement for the range. Results are cached
// only when the classifier exposes a cache key.
func (s *Service) CashFlow(ctx context.Context, workspaceID uuid.UUID, rng accounting.DateRange, classifier ActivityClassifier) (CashFlowStatement, error) {
	if err := rng.Validate(); err != nil {
		return CashFlowStatement{}, err
	}
	if classifier == nil {
		classifier = DefaultConvention()
	}
	build := func(ctx context.Context) (CashFlowStatement, error) {
		return s.buildCashFlow(ctx, workspaceID, rng, classifier)
	}
	keyer, ok := classifier.(CacheKeyer)
	if !ok {
		return build(ctx)
	}
	return cached(ctx, s, workspaceID, []string{"cf", keyer.CacheKey(), rangeToken(rng)}, build)
}

// Ledger returns the running-balance ledger of one account.
func (s *Service) Ledger(ctx context.Context, workspaceID, accountID uuid.UUID, rng accounting.DateRange) (accounting.AccountLedger, error) {
	return s.agg.BuildLedger(ctx, workspaceID, accountID, rng)
}

// GeneralLedger returns the ledgers of every active account in the range.
func (s *Service) GeneralLedger(ctx context.Context, workspaceID uuid.UUID, rng accounting.DateRange) ([]accounting.AccountLedger, error) {
	return s.agg.GeneralLedger(ctx, workspaceID, rng)
}

func (s *Service) buildCashFlow(ctx context.Context, workspaceID uuid.UUID, rng accounting.DateRange, classifier ActivityClassifier) (CashFlowStatement, error) {
	catalog, err := s.agg.Catalog(ctx, workspaceID)
	if err != nil {
		return CashFlowStatement{}, err
	}
	cashAccounts := CashAccounts(catalog, classifier)
	if len(cashAccounts) == 0 {
		return BuildCashFlow(catalog, classifier, CashPosition{Opening: decimal.Zero, Closing: decimal.Zero}, nil, rng)
	}
	ids := make([]uuid.UUID, 0, len(cashAccounts))
	for _, acc := range cashAccounts {
		ids = append(ids, acc.ID)
	}

	position := CashPosition{Opening: decimal.Zero, Closing: decimal.Zero}
	var lines []accounting.PostedLine
	g, gctx := errgroup.WithContext(ctx)
	cashBalance := func(rng accounting.DateRange, dest *decimal.Decimal) func() error {
		return func() error {
			mv, err := s.agg.AggregateWith(gctx, catalog, accounting.LineFilter{
				WorkspaceID: workspaceID,
				AccountIDs:  ids,
				Range:       rng,
			})
			if err != nil {
				return err
			}
			for _, acc := range cashAccounts {
				*dest = dest.Add(accounting.Balance(acc, mv.Get(acc.ID)))
			}
			return nil
		}
	}
	if !rng.From.IsZero() {
		g.Go(cashBalance(accounting.Before(rng.From), &position.Opening))
	}
	g.Go(cashBalance(accounting.DateRange{To: rng.To}, &position.Closing))
	g.Go(func() error {
		var err error
		lines, err = s.agg.Reader().ListPostedVoucherLines(gctx, accounting.LineFilter{
			WorkspaceID: workspaceID,
			AccountIDs:  ids,
			Range:       rng,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return CashFlowStatement{}, err
	}
	accounting.SortPostedLines(lines)
	return BuildCashFlow(catalog, classifier, position, lines, rng)
}

// aggregatePartitions aggregates each account type concurrently together with
// a catalog-wide guard pass. Movements on accounts missing from the catalog
// are carried into the result so builders can reject them.
func (s *Service) aggregatePartitions(ctx context.Context, catalog *accounting.Catalog, workspaceID uuid.UUID, rng accounting.DateRange, types ...accounting.AccountType) (accounting.Movements, error) {
	results := make([]accounting.Movements, len(types)+1)
	g, gctx := errgroup.WithContext(ctx)
	for idx, typ := range types {
		accounts := catalog.OfType(typ)
		if len(accounts) == 0 {
			continue
		}
		ids := make([]uuid.UUID, 0, len(accounts))
		for _, acc := range accounts {
			ids = append(ids, acc.ID)
		}
		g.Go(func() error {
			mv, err := s.agg.AggregateWith(gctx, catalog, accounting.LineFilter{WorkspaceID: workspaceID, AccountIDs: ids, Range: rng})
			if err != nil {
				return err
			}
			results[idx] = mv
			return nil
		})
	}
	g.Go(func() error {
		mv, err := s.agg.AggregateWith(gctx, catalog, accounting.LineFilter{WorkspaceID: workspaceID, Range: rng})
		if err != nil {
			return err
		}
		unknown := accounting.Movements{}
		for id, m := range mv {
			if _, ok := catalog.Lookup(id); !ok {
				unknown[id] = m
			}
		}
		results[len(types)] = unknown
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	merged := accounting.Movements{}
	for _, part := range results {
		for id, mv := range part {
			merged[id] = mv
		}
	}
	return merged, nil
}

// sharedBuildTimeout bounds a collapsed statement build once it no longer
// follows any single caller.
const sharedBuildTimeout = 2 * time.Minute

type loaderError struct{ err error }

func (e loaderError) Error() string { return e.err.Error() }
func (e loaderError) Unwrap() error { return e.err }

// cached serves a report from the cache, collapsing identical concurrent
// builds. Each caller stops waiting when its own ctx ends. Cache faults
// degrade to a direct build.
func cached[T any](ctx context.Context, s *Service, workspaceID uuid.UUID, parts []string, build func(context.Context) (T, error)) (T, error) {
	var zero T
	key, err := s.cache.BuildKey(ctx, workspaceID, parts...)
	if err != nil {
		s.logger.Warn("report cache key failed", slog.Any("error", err))
		return build(ctx)
	}
	resultChan := s.group.DoChan(key, func() (any, error) {
		// The build is shared by every waiter on key, so it must not inherit
		// the first caller's cancellation.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedBuildTimeout)
		defer cancel()
		var out T
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			value, err := build(ctx)
			if err != nil {
				return nil, loaderError{err: err}
			}
			return value, nil
		})
		if err != nil {
			var le loaderError
			if errors.As(err, &le) {
				return nil, le.err
			}
			s.logger.Warn("report cache unavailable", slog.String("key", key), slog.Any("error", err))
			return build(ctx)
		}
		return out, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func rangeToken(rng accounting.DateRange) string {
	from, to := "min", "max"
	if !rng.From.IsZero() {
		from = rng.From.Format(accounting.DateLayout)
	}
	if !rng.To.IsZero() {
		to = rng.To.Format(accounting.DateLayout)
	}
	return from + "_" + to
}
