package cart

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopflow/checkout-core/internal/domain"
)

// ErrStaleCart means the cart row changed under us between load and save.
// Callers reload and retry.
var ErrStaleCart = errors.New("cart version is stale")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, shopperID string) (*domain.Cart, error) {
	cart := &domain.Cart{}
	var couponCode sql.NullString
	var totalAfterDiscount sql.NullInt64

	err := r.db.QueryRowContext(ctx, `
		SELECT shopper_id, coupon_code, cart_total, total_after_discount, version, created_at, updated_at
		FROM carts
		WHERE shopper_id = $1
	`, shopperID).Scan(&cart.ShopperID, &couponCode, &cart.CartTotal, &totalAfterDiscount, &cart.Version, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if couponCode.Valid {
		cart.CouponCode = couponCode.String
	}
	if totalAfterDiscount.Valid {
		cart.TotalAfterDiscount = &totalAfterDiscount.Int64
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, variant, unit_price
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY position
	`, shopperID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Variant, &item.UnitPrice); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cart, nil
}

// Save writes the cart and its line items in one transaction. New carts
// (version 0) are inserted; existing carts update only if the stored version
// still matches, otherwise ErrStaleCart. On success the in-memory version is
// advanced to the stored one.
func (r *Repository) Save(ctx context.Context, cart *domain.Cart) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	var couponCode sql.NullString
	if cart.CouponCode != "" {
		couponCode = sql.NullString{String: cart.CouponCode, Valid: true}
	}
	var totalAfterDiscount sql.NullInt64
	if cart.TotalAfterDiscount != nil {
		totalAfterDiscount = sql.NullInt64{Int64: *cart.TotalAfterDiscount, Valid: true}
	}

	if cart.Version == 0 {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO carts (shopper_id, coupon_code, cart_total, total_after_discount, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 1, $5, $5)
			ON CONFLICT (shopper_id) DO NOTHING
		`, cart.ShopperID, couponCode, cart.CartTotal, totalAfterDiscount, now)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return ErrStaleCart
		}
		cart.CreatedAt = now
	} else {
		result, err := tx.ExecContext(ctx, `
			UPDATE carts
			SET coupon_code = $2, cart_total = $3, total_after_discount = $4, version = version + 1, updated_at = $5
			WHERE shopper_id = $1 AND version = $6
		`, cart.ShopperID, couponCode, cart.CartTotal, totalAfterDiscount, now, cart.Version)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return ErrStaleCart
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ShopperID); err != nil {
		return err
	}

	for position, item := range cart.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (cart_id, product_id, quantity, variant, unit_price, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, cart.ShopperID, item.ProductID, item.Quantity, item.Variant, item.UnitPrice, position)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	cart.Version++
	cart.UpdatedAt = now
	return nil
}
