// Package catalog is the checkout core's read-only view of the product
// catalog. Catalog CRUD itself belongs to an external collaborator; this
// package only reads the projection the checkout core depends on.
package catalog

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/shopflow/checkout-core/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, brand, price, quantity, sold
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Title, &product.Brand, &product.Price, &product.Quantity, &product.Sold)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return product, nil
}

// GetProducts returns the display projection for a set of product ids,
// keyed by id. Missing ids are simply absent from the result.
func (r *Repository) GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, brand, price, quantity, sold
		FROM products
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ID, &product.Title, &product.Brand, &product.Price, &product.Quantity, &product.Sold); err != nil {
			return nil, err
		}
		products[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}
