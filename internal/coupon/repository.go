package coupon

import (
	"context"
	"database/sql"

	"github.com/shopflow/checkout-core/internal/domain"
)

// Repository reads coupons. Codes are stored uppercased; callers are expected
// to normalize before lookup. The checkout core never writes coupons.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	coupon := &domain.Coupon{}

	err := r.db.QueryRowContext(ctx, `
		SELECT code, discount_percent, expires_on
		FROM coupons
		WHERE code = $1
	`, code).Scan(&coupon.Code, &coupon.DiscountPercent, &coupon.ExpiresOn)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return coupon, nil
}
