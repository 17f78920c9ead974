package leave

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Ledger is the single gate through which pending and used day counts move.
// Every operation locks the (employee, leave type, year) row for the rest of
// the enclosing transaction, so concurrent reservations against the same row
// serialize and the availability check cannot be raced past.
type Ledger struct{}

// Reserve marks days as pending approval. Fails with ErrInsufficientBalance
// when the remaining balance cannot cover the reservation and the policy
// forbids going negative. First committer wins; the loser of a race may fail
// even though it would have fit before the winner's reservation.
func (Ledger) Reserve(ctx context.Context, tx Tx, employeeID, leaveTypeID string, year int, days decimal.Decimal, allowNegative bool) error {
	b, err := tx.LockBalance(ctx, employeeID, leaveTypeID, year)
	if err != nil {
		return err
	}
	if !allowNegative && b.Available().LessThan(days) {
		return fmt.Errorf("%w: %s available, %s requested", ErrInsufficientBalance, b.Available(), days)
	}
	b.Pending = b.Pending.Add(days)
	return tx.SaveBalance(ctx, b)
}

// Commit moves a previously reserved amount from pending to used. The
// lifecycle guarantees days matches the request's reservation.
func (Ledger) Commit(ctx context.Context, tx Tx, employeeID, leaveTypeID string, year int, days decimal.Decimal) error {
	b, err := tx.LockBalance(ctx, employeeID, leaveTypeID, year)
	if err != nil {
		return err
	}
	b.Pending = b.Pending.Sub(days)
	b.Used = b.Used.Add(days)
	if b.Pending.IsNegative() {
		return fmt.Errorf("ledger commit of %s underflows pending for employee %s", days, employeeID)
	}
	return tx.SaveBalance(ctx, b)
}

// Release drops a reservation without consuming anything, for rejection and
// cancellation before approval.
func (Ledger) Release(ctx context.Context, tx Tx, employeeID, leaveTypeID string, year int, days decimal.Decimal) error {
	b, err := tx.LockBalance(ctx, employeeID, leaveTypeID, year)
	if err != nil {
		return err
	}
	b.Pending = b.Pending.Sub(days)
	if b.Pending.IsNegative() {
		return fmt.Errorf("ledger release of %s underflows pending for employee %s", days, employeeID)
	}
	return tx.SaveBalance(ctx, b)
}

// RefundUsed gives back already-consumed days when an approved request is
// cancelled before its period has elapsed.
func (Ledger) RefundUsed(ctx context.Context, tx Tx, employeeID, leaveTypeID string, year int, days decimal.Decimal) error {
	b, err := tx.LockBalance(ctx, employeeID, leaveTypeID, year)
	if err != nil {
		return err
	}
	b.Used = b.Used.Sub(days)
	if b.Used.IsNegative() {
		return fmt.Errorf("ledger refund of %s underflows used for employee %s", days, employeeID)
	}
	return tx.SaveBalance(ctx, b)
}
