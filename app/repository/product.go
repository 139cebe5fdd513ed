package repository

import (
	"context"

	"github.com/Alexyn15/trangsucvn/app/entity"
)

type ProductRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindByIDs returns the products that exist among ids, keyed by id. Missing
// ids are simply absent from the result.
func (r *ProductRepository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]*entity.Product, error) {
	products := make(map[uint64]*entity.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	query := `
		SELECT id, name, price, stock, image_url, active, created_at, updated_at
		FROM products
		WHERE id IN (` + placeholders(len(ids)) + `)
	`
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		product := &entity.Product{}
		if err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.Price,
			&product.Stock,
			&product.ImageURL,
			&product.Active,
			&product.CreatedAt,
			&product.UpdatedAt,
		); err != nil {
			return nil, err
		}
		products[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}
