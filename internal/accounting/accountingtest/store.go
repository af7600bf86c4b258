// Package accountingtest provides an in-memory journal store for tests.
package accountingtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
)

// Store is an in-memory journal. WithTx calls are serialised, which mirrors the
// workspace advisory lock taken by the Postgres repository, and their writes
// are applied only when fn succeeds.
type Store struct {
	txMu     sync.Mutex
	mu       sync.RWMutex
	accounts map[uuid.UUID]accounting.Account
	vouchers map[uuid.UUID]accounting.Voucher

	// SumErr, when set, fails SumPostedLines.
	SumErr error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]accounting.Account),
		vouchers: make(map[uuid.UUID]accounting.Voucher),
	}
}

// AddAccount registers an account and returns it with a fresh id.
func (s *Store) AddAccount(workspaceID uuid.UUID, code, name string, typ accounting.AccountType) accounting.Account {
	acc := accounting.Account{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Code:        code,
		Name:        name,
		Type:        typ,
		IsActive:    true,
	}
	s.mu.Lock()
	s.accounts[acc.ID] = acc
	s.mu.Unlock()
	return acc
}

// PutAccount stores acc as given, replacing any account with the same id.
func (s *Store) PutAccount(acc accounting.Account) {
	s.mu.Lock()
	s.accounts[acc.ID] = acc
	s.mu.Unlock()
}

// RemoveAccount deletes an account while leaving its lines in place.
func (s *Store) RemoveAccount(id uuid.UUID) {
	s.mu.Lock()
	delete(s.accounts, id)
	s.mu.Unlock()
}

// Line is shorthand for seeding journal lines.
type Line struct {
	Account accounting.Account
	Debit   string
	Credit  string
	Memo    string
}

// Seed stores a voucher with the given status directly, bypassing validation.
func (s *Store) Seed(workspaceID uuid.UUID, number string, date time.Time, status accounting.VoucherStatus, lines ...Line) accounting.Voucher {
	inputs := make([]accounting.PostingLineInput, 0, len(lines))
	for _, l := range lines {
		inputs = append(inputs, accounting.PostingLineInput{
			AccountID:   l.Account.ID,
			Debit:       amount(l.Debit),
			Credit:      amount(l.Credit),
			Description: l.Memo,
		})
	}
	v := accounting.NewPostedVoucher(workspaceID, number, date, "seed "+number, "seed", date, inputs)
	v.Status = status
	s.mu.Lock()
	s.vouchers[v.ID] = v
	s.mu.Unlock()
	return v
}

// Vouchers returns every stored voucher ordered by number.
func (s *Store) Vouchers(workspaceID uuid.UUID) []accounting.Voucher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []accounting.Voucher
	for _, v := range s.vouchers {
		if v.WorkspaceID == workspaceID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return accounting.CompareVoucherNumbers(out[i].Number, out[j].Number) < 0 })
	return out
}

// Voucher returns a stored voucher by id.
func (s *Store) Voucher(id uuid.UUID) (accounting.Voucher, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vouchers[id]
	return v, ok
}

// WithTx runs fn against a transaction view and applies its writes on success.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	tx := s.Begin()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.Commit()
	return nil
}

// Begin opens a transaction view. Callers must hold no other transaction.
func (s *Store) Begin() *Tx {
	return &Tx{store: s, pending: make(map[uuid.UUID]accounting.Voucher)}
}

// Lock serialises composite transactions built on top of Begin.
func (s *Store) Lock() { s.txMu.Lock() }

// Unlock releases the lock taken by Lock.
func (s *Store) Unlock() { s.txMu.Unlock() }

// ListAccounts implements accounting.LedgerReader.
func (s *Store) ListAccounts(_ context.Context, workspaceID uuid.UUID) ([]accounting.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []accounting.Account
	for _, acc := range s.accounts {
		if acc.WorkspaceID == workspaceID {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// ListWorkspaces returns the workspaces that own accounts, sorted.
func (s *Store) ListWorkspaces(context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, acc := range s.accounts {
		if _, ok := seen[acc.WorkspaceID]; ok {
			continue
		}
		seen[acc.WorkspaceID] = struct{}{}
		out = append(out, acc.WorkspaceID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// SumPostedLines implements accounting.LedgerReader.
func (s *Store) SumPostedLines(ctx context.Context, filter accounting.LineFilter) ([]accounting.Movement, error) {
	if s.SumErr != nil {
		return nil, s.SumErr
	}
	lines, err := s.ListPostedLines(ctx, filter)
	if err != nil {
		return nil, err
	}
	totals := make(map[uuid.UUID]accounting.Movement)
	var order []uuid.UUID
	for _, l := range lines {
		mv, ok := totals[l.AccountID]
		if !ok {
			mv = accounting.Movement{AccountID: l.AccountID, Debit: decimal.Zero, Credit: decimal.Zero}
			order = append(order, l.AccountID)
		}
		mv.Debit = mv.Debit.Add(l.Debit)
		mv.Credit = mv.Credit.Add(l.Credit)
		totals[l.AccountID] = mv
	}
	out := make([]accounting.Movement, 0, len(order))
	for _, id := range order {
		out = append(out, totals[id])
	}
	return out, nil
}

// ListPostedLines implements accounting.LedgerReader.
func (s *Store) ListPostedLines(_ context.Context, filter accounting.LineFilter) ([]accounting.PostedLine, error) {
	want := idSet(filter.AccountIDs)
	return s.postedLines(filter, func(_ accounting.Voucher, line accounting.JournalLine) bool {
		return want == nil || want[line.AccountID]
	}), nil
}

// ListPostedVoucherLines implements accounting.LedgerReader.
func (s *Store) ListPostedVoucherLines(_ context.Context, filter accounting.LineFilter) ([]accounting.PostedLine, error) {
	want := idSet(filter.AccountIDs)
	return s.postedLines(filter, func(v accounting.Voucher, _ accounting.JournalLine) bool {
		if want == nil {
			return true
		}
		for _, line := range v.Lines {
			if want[line.AccountID] {
				return true
			}
		}
		return false
	}), nil
}

func (s *Store) postedLines(filter accounting.LineFilter, keep func(accounting.Voucher, accounting.JournalLine) bool) []accounting.PostedLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []accounting.PostedLine
	for _, v := range s.vouchers {
		if v.WorkspaceID != filter.WorkspaceID || v.Status != accounting.VoucherStatusPosted {
			continue
		}
		if !filter.Range.Contains(v.Date) {
			continue
		}
		for _, line := range v.Lines {
			if !keep(v, line) {
				continue
			}
			out = append(out, accounting.PostedLine{
				LineID:      line.ID,
				VoucherID:   v.ID,
				VoucherNo:   v.Number,
				VoucherDate: v.Date,
				VoucherMemo: v.Memo,
				LineNo:      line.LineNo,
				AccountID:   line.AccountID,
				Debit:       line.Debit,
				Credit:      line.Credit,
				Description: line.Description,
			})
		}
	}
	accounting.SortPostedLines(out)
	return out
}

// Tx is a transaction view over a Store.
type Tx struct {
	store    *Store
	pending  map[uuid.UUID]accounting.Voucher
	statuses []statusChange
}

type statusChange struct {
	id     uuid.UUID
	status accounting.VoucherStatus
}

// Commit applies the buffered writes.
func (tx *Tx) Commit() {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for id, v := range tx.pending {
		tx.store.vouchers[id] = v
	}
	for _, change := range tx.statuses {
		v := tx.store.vouchers[change.id]
		v.Status = change.status
		tx.store.vouchers[change.id] = v
	}
}

// LockWorkspace is a no-op; WithTx already serialises transactions.
func (tx *Tx) LockWorkspace(context.Context, uuid.UUID) error { return nil }

// ListAccounts reads the committed catalog.
func (tx *Tx) ListAccounts(ctx context.Context, workspaceID uuid.UUID) ([]accounting.Account, error) {
	return tx.store.ListAccounts(ctx, workspaceID)
}

// LastVoucherNumber scans committed and pending vouchers.
func (tx *Tx) LastVoucherNumber(_ context.Context, workspaceID uuid.UUID, prefix string) (string, error) {
	last := ""
	consider := func(v accounting.Voucher) {
		if v.WorkspaceID == workspaceID && strings.HasPrefix(v.Number, prefix) &&
			(last == "" || accounting.CompareVoucherNumbers(v.Number, last) > 0) {
			last = v.Number
		}
	}
	tx.store.mu.RLock()
	for _, v := range tx.store.vouchers {
		consider(v)
	}
	tx.store.mu.RUnlock()
	for _, v := range tx.pending {
		consider(v)
	}
	return last, nil
}

// InsertVoucher buffers a voucher until commit.
func (tx *Tx) InsertVoucher(_ context.Context, voucher accounting.Voucher) error {
	if tx.numberTaken(voucher.WorkspaceID, voucher.Number) {
		return accounting.ErrVoucherNumberConflict
	}
	tx.pending[voucher.ID] = voucher
	return nil
}

func (tx *Tx) numberTaken(workspaceID uuid.UUID, number string) bool {
	for _, v := range tx.pending {
		if v.WorkspaceID == workspaceID && v.Number == number {
			return true
		}
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	for _, v := range tx.store.vouchers {
		if v.WorkspaceID == workspaceID && v.Number == number {
			return true
		}
	}
	return false
}

// GetVoucher reads a voucher from pending or committed state.
func (tx *Tx) GetVoucher(_ context.Context, workspaceID, voucherID uuid.UUID) (accounting.Voucher, error) {
	if v, ok := tx.pending[voucherID]; ok && v.WorkspaceID == workspaceID {
		return v, nil
	}
	v, ok := tx.store.Voucher(voucherID)
	if !ok || v.WorkspaceID != workspaceID {
		return accounting.Voucher{}, accounting.ErrVoucherNotFound
	}
	return v, nil
}

// UpdateVoucherStatus buffers a status change until commit.
func (tx *Tx) UpdateVoucherStatus(_ context.Context, voucherID uuid.UUID, status accounting.VoucherStatus) error {
	if v, ok := tx.pending[voucherID]; ok {
		v.Status = status
		tx.pending[voucherID] = v
		return nil
	}
	if _, ok := tx.store.Voucher(voucherID); !ok {
		return accounting.ErrVoucherNotFound
	}
	tx.statuses = append(tx.statuses, statusChange{id: voucherID, status: status})
	return nil
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func amount(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(raw)
}

// Date parses a YYYY-MM-DD literal.
func Date(raw string) time.Time {
	t, err := time.Parse(accounting.DateLayout, raw)
	if err != nil {
		panic(err)
	}
	return t
}

var (
	_ accounting.LedgerReader   = (*Store)(nil)
	_ accounting.RepositoryPort = (*Store)(nil)
	_ accounting.TxRepository   = (*Tx)(nil)
)
