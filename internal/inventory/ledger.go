// Package inventory owns the shared stock counters. Decrements are single
// conditional UPDATEs so concurrent checkouts can never oversell, and a failed
// multi-item attempt compensates everything it already decremented.
package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/shopflow/checkout-core/internal/domain"
)

// Reservation records the quantities a checkout attempt decremented, so a
// later failure can release them. Release is idempotent.
type Reservation struct {
	items    []domain.OrderItem
	released atomic.Bool
}

func (r *Reservation) Items() []domain.OrderItem { return r.items }

type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// ReserveAndDecrement conditionally decrements stock and increments the sold
// counter for every item. Each decrement succeeds only if enough quantity
// remains, in one race-free step. If any item falls short, all decrements
// already made by this attempt are restored before the shortfall is reported,
// so inventory is left exactly as it was.
func (l *Ledger) ReserveAndDecrement(ctx context.Context, items []domain.OrderItem) (*Reservation, error) {
	var decremented []domain.OrderItem

	for i, item := range items {
		result, err := l.db.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - $2, sold = sold + $2
			WHERE id = $1 AND quantity >= $2
		`, item.ProductID, item.Quantity)
		if err != nil {
			l.restore(ctx, decremented)
			return nil, fmt.Errorf("decrement stock for %s: %w", item.ProductID, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			l.restore(ctx, decremented)
			return nil, fmt.Errorf("decrement stock for %s: %w", item.ProductID, err)
		}

		if rowsAffected == 0 {
			short := []string{item.ProductID}
			short = append(short, l.probeShort(ctx, items[i+1:])...)
			l.restore(ctx, decremented)
			return nil, &domain.StockShortfallError{ProductIDs: short}
		}

		decremented = append(decremented, item)
	}

	return &Reservation{items: decremented}, nil
}

// Release restores the reservation's quantities and sold counters. Releasing
// an already-released (or nil) reservation is a no-op.
func (l *Ledger) Release(ctx context.Context, reservation *Reservation) error {
	if reservation == nil || !reservation.released.CompareAndSwap(false, true) {
		return nil
	}
	return l.restore(ctx, reservation.items)
}

// restore is the compensating half of ReserveAndDecrement. It runs on a
// context detached from cancellation: a checkout that died to a timeout still
// has to give its stock back.
func (l *Ledger) restore(ctx context.Context, items []domain.OrderItem) error {
	ctx = context.WithoutCancel(ctx)

	var firstErr error
	for _, item := range items {
		_, err := l.db.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity + $2, sold = sold - $2
			WHERE id = $1
		`, item.ProductID, item.Quantity)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("restore stock for %s: %w", item.ProductID, err)
		}
	}
	return firstErr
}

// probeShort checks which of the not-yet-decremented items would also have
// failed, so the caller can report every short product at once. Probe errors
// are swallowed: the shortfall already observed stands on its own.
func (l *Ledger) probeShort(ctx context.Context, items []domain.OrderItem) []string {
	var short []string
	for _, item := range items {
		var quantity int
		err := l.db.QueryRowContext(ctx, `
			SELECT quantity FROM products WHERE id = $1
		`, item.ProductID).Scan(&quantity)
		if err == sql.ErrNoRows || (err == nil && quantity < item.Quantity) {
			short = append(short, item.ProductID)
		}
	}
	return short
}
