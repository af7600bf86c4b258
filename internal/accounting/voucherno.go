package accounting

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// VoucherPrefix is the journal voucher number prefix.
const VoucherPrefix = "JV"

// voucherSeqWidth is the zero padded width of the monthly sequence.
const voucherSeqWidth = 4

// VoucherNumberPrefix returns the per-month prefix, e.g. JV202403.
func VoucherNumberPrefix(date time.Time) string {
	return VoucherPrefix + date.Format("200601")
}

// NextVoucherNumber returns the number following last within prefix. An empty
// or foreign last starts the sequence at 0001.
func NextVoucherNumber(prefix, last string) (string, error) {
	seq := 0
	if last != "" && strings.HasPrefix(last, prefix) {
		n, err := strconv.Atoi(strings.TrimPrefix(last, prefix))
		if err != nil {
			return "", fmt.Errorf("accounting: malformed voucher number %q: %w", last, err)
		}
		seq = n
	}
	return fmt.Sprintf("%s%0*d", prefix, voucherSeqWidth, seq+1), nil
}

// CompareVoucherNumbers orders voucher numbers by month prefix and then by
// numeric sequence, so JV20240310000 follows JV2024039999. Numbers outside
// the JV layout fall back to plain string order.
func CompareVoucherNumbers(a, b string) int {
	pa, sa, okA := splitVoucherNumber(a)
	pb, sb, okB := splitVoucherNumber(b)
	if !okA || !okB {
		return strings.Compare(a, b)
	}
	if c := strings.Compare(pa, pb); c != 0 {
		return c
	}
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func splitVoucherNumber(number string) (string, int, bool) {
	prefixLen := len(VoucherPrefix) + len("200601")
	if len(number) <= prefixLen || !strings.HasPrefix(number, VoucherPrefix) {
		return "", 0, false
	}
	seq, err := strconv.Atoi(number[prefixLen:])
	if err != nil || seq < 0 {
		return "", 0, false
	}
	return number[:prefixLen], seq, true
}

// AllocateVoucherNumber reserves the next number for date. Callers must hold
// the workspace lock so concurrent writers observe each other.
func AllocateVoucherNumber(ctx context.Context, tx TxRepository, workspaceID uuid.UUID, date time.Time) (string, error) {
	prefix := VoucherNumberPrefix(date)
	last, err := tx.LastVoucherNumber(ctx, workspaceID, prefix)
	if err != nil {
		return "", fmt.Errorf("accounting: last voucher number: %w", err)
	}
	return NextVoucherNumber(prefix, last)
}
