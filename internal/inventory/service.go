package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUnknownProduct = errors.New("unknown product")

// Record is the staff-facing inventory view for one product.
type Record struct {
	ProductID string    `json:"product_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	OnHand    int       `json:"on_hand"`
	Reserved  int       `json:"reserved"`
	Available int       `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service is the manual stock-correction path. It deliberately bypasses the
// reservation engine: a correction overwrites on_hand and never touches
// reserved, which is how reserved can transiently exceed on_hand until the
// engine's clamped decrements absorb the drift.
type Service struct{ DB *pgxpool.Pool }

func (s *Service) List(ctx context.Context) ([]Record, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT p.id, p.sku, p.name, i.on_hand, i.reserved,
		       GREATEST(i.on_hand - i.reserved, 0) AS available,
		       i.updated_at
		FROM products p
		JOIN inventory i ON i.product_id = p.id
		WHERE p.active
		ORDER BY p.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ProductID, &r.SKU, &r.Name, &r.OnHand, &r.Reserved, &r.Available, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetOnHand upserts the physical stock level for a product.
func (s *Service) SetOnHand(ctx context.Context, productID string, onHand int) (*Record, error) {
	var exists bool
	if err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1)`, productID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUnknownProduct
	}

	// Join products so the response carries the same fields as List.
	var r Record
	err := s.DB.QueryRow(ctx, `
		WITH up AS (
			INSERT INTO inventory (product_id, on_hand, reserved, updated_at)
			VALUES ($1, $2, 0, now())
			ON CONFLICT (product_id)
			DO UPDATE SET on_hand = EXCLUDED.on_hand, updated_at = now()
			RETURNING product_id, on_hand, reserved, updated_at
		)
		SELECT p.id, p.sku, p.name, up.on_hand, up.reserved,
		       GREATEST(up.on_hand - up.reserved, 0) AS available,
		       up.updated_at
		FROM up JOIN products p ON p.id = up.product_id`,
		productID, onHand).
		Scan(&r.ProductID, &r.SKU, &r.Name, &r.OnHand, &r.Reserved, &r.Available, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
