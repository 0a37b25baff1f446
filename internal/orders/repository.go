package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/shopflow/checkout-core/internal/domain"
)

// ErrDuplicateToken means another request already claimed the idempotency
// token. The caller decides whether that is a benign replay or a Conflict.
var ErrDuplicateToken = errors.New("idempotency token already used")

const uniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the order, its snapshot items, and (when a token is given)
// the idempotency-key row in one transaction, so an order either exists with
// its token or not at all. Generates the order id and tracking number.
func (r *Repository) Create(ctx context.Context, order *domain.Order, token, requestHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()
	order.TrackingNumber = uuid.New().String()
	order.CreatedAt = time.Now().UTC()

	var totalAfterDiscount sql.NullInt64
	if order.TotalAfterDiscount != nil {
		totalAfterDiscount = sql.NullInt64{Int64: *order.TotalAfterDiscount, Valid: true}
	}
	var paymentIntent any
	if len(order.PaymentIntent) > 0 {
		paymentIntent = []byte(order.PaymentIntent)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, shopper_id, order_status, payment_status, payment_method, payment_intent,
			tracking_number, total, total_after_discount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, order.ID, order.ShopperID, order.OrderStatus, order.PaymentStatus, order.PaymentMethod, paymentIntent,
		order.TrackingNumber, order.Total, totalAfterDiscount, order.CreatedAt)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, variant, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, order.ID, item.ProductID, item.Quantity, item.Variant, item.UnitPrice)
		if err != nil {
			return err
		}
	}

	if token != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO idempotency_keys (token, shopper_id, request_hash, order_id, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, token, order.ShopperID, requestHash, order.ID, order.CreatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return fmt.Errorf("token %s: %w", token, ErrDuplicateToken)
			}
			return err
		}
	}

	return tx.Commit()
}

// LookupToken resolves an idempotency token to the order it produced and the
// hash of the request that produced it. Returns sql.ErrNoRows-free nils when
// the token is unknown.
func (r *Repository) LookupToken(ctx context.Context, token string) (orderID, requestHash string, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT order_id, request_hash
		FROM idempotency_keys
		WHERE token = $1
	`, token).Scan(&orderID, &requestHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", "", nil
		}
		return "", "", err
	}
	return orderID, requestHash, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}
	var totalAfterDiscount sql.NullInt64
	var paymentIntent []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT id, shopper_id, order_status, payment_status, payment_method, payment_intent,
			tracking_number, total, total_after_discount, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.ShopperID, &order.OrderStatus, &order.PaymentStatus, &order.PaymentMethod,
		&paymentIntent, &order.TrackingNumber, &order.Total, &totalAfterDiscount, &order.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if totalAfterDiscount.Valid {
		order.TotalAfterDiscount = &totalAfterDiscount.Int64
	}
	order.PaymentIntent = paymentIntent

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, variant, unit_price
		FROM order_items
		WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Variant, &item.UnitPrice); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *Repository) ListByShopper(ctx context.Context, shopperID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, shopper_id, order_status, payment_status, payment_method,
			tracking_number, total, total_after_discount, created_at
		FROM orders
		WHERE shopper_id = $1
		ORDER BY created_at DESC
	`, shopperID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		var order domain.Order
		var totalAfterDiscount sql.NullInt64
		if err := rows.Scan(&order.ID, &order.ShopperID, &order.OrderStatus, &order.PaymentStatus,
			&order.PaymentMethod, &order.TrackingNumber, &order.Total, &totalAfterDiscount, &order.CreatedAt); err != nil {
			return nil, err
		}
		if totalAfterDiscount.Valid {
			order.TotalAfterDiscount = &totalAfterDiscount.Int64
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateStatus moves the order one step through the status state machine.
// The UPDATE is keyed on the status the decision was made against, so a
// concurrent transition cannot be silently overwritten; on interleaving the
// transition is re-evaluated from the fresh status.
func (r *Repository) UpdateStatus(ctx context.Context, id string, next domain.OrderStatus) (*domain.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("unknown order status %q: %w", next, domain.ErrInvalidArgument)
	}

	for attempt := 0; attempt < 3; attempt++ {
		order, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
		}

		if !order.OrderStatus.CanTransitionTo(next) {
			return nil, fmt.Errorf("cannot move order from %s to %s: %w", order.OrderStatus, next, domain.ErrInvalidTransition)
		}

		result, err := r.db.ExecContext(ctx, `
			UPDATE orders SET order_status = $2, updated_at = NOW()
			WHERE id = $1 AND order_status = $3
		`, id, next, order.OrderStatus)
		if err != nil {
			return nil, err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if rowsAffected == 1 {
			order.OrderStatus = next
			return order, nil
		}
	}

	return nil, fmt.Errorf("order %s status kept changing: %w", id, domain.ErrConflict)
}

// UpdatePaymentStatus applies only to pay-on-delivery orders; card orders are
// created already Completed.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (*domain.Order, error) {
	if status != domain.PaymentStatusCompleted && status != domain.PaymentStatusFailed {
		return nil, fmt.Errorf("invalid payment status %q for a COD order: %w", status, domain.ErrInvalidArgument)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = NOW()
		WHERE id = $1 AND payment_method = $3
	`, id, status, domain.PaymentMethodCOD)
	if err != nil {
		return nil, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("COD order %s: %w", id, domain.ErrNotFound)
	}

	return r.GetByID(ctx, id)
}

// Delete removes the order record outright. Administrative use only; orders
// are otherwise retained indefinitely as audit records.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
