package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on postgres. Row ownership is FOR UPDATE; the
// ledger idempotency guard is a conditional insert on (product, order, type).
type PGStore struct{ DB *pgxpool.Pool }

func (s *PGStore) Begin(ctx context.Context) (StoreTx, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

func (s *PGStore) ExpiredOrderIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id FROM orders
		WHERE status = 'pending_payment'
		  AND payment_method = 'online'
		  AND expires_at IS NOT NULL
		  AND expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const orderColumns = `id, user_id, delivery_type, payment_method, status, address_id,
	subtotal_cents, shipping_cents, total_cents, expires_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.DeliveryType, &o.PaymentMethod, &o.Status,
		&o.AddressID, &o.SubtotalCents, &o.ShippingCents, &o.TotalCents,
		&o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PGStore) GetOrder(ctx context.Context, orderID string) (*Order, []OrderLine, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if err != nil {
		return nil, nil, err
	}
	lines, err := queryLines(ctx, s.DB, orderID)
	if err != nil {
		return nil, nil, err
	}
	return o, lines, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q querier, orderID string) ([]OrderLine, error) {
	rows, err := q.Query(ctx, `
		SELECT order_id, product_id, qty, unit_price_cents, line_total_cents
		FROM order_items WHERE order_id=$1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.OrderID, &l.ProductID, &l.Qty, &l.UnitPriceCents, &l.LineTotalCents); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockProducts(ctx context.Context, productIDs []string) (map[string]LockedProduct, error) {
	// ORDER BY keeps lock acquisition deterministic across requests.
	rows, err := t.tx.Query(ctx, `
		SELECT p.id, p.name, p.price_cents, i.on_hand, i.reserved
		FROM products p
		JOIN inventory i ON i.product_id = p.id
		WHERE p.id = ANY($1) AND p.active
		ORDER BY p.id
		FOR UPDATE OF i`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]LockedProduct, len(productIDs))
	for rows.Next() {
		var p LockedProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.OnHand, &p.Reserved); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (t *pgTx) LockInventory(ctx context.Context, productIDs []string) error {
	rows, err := t.tx.Query(ctx, `
		SELECT product_id FROM inventory
		WHERE product_id = ANY($1)
		ORDER BY product_id
		FOR UPDATE`, productIDs)
	if err != nil {
		return err
	}
	rows.Close()
	return rows.Err()
}

func (t *pgTx) LockOrder(ctx context.Context, orderID string) (*Order, error) {
	return scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders
		(id, user_id, delivery_type, payment_method, status, address_id,
		 subtotal_cents, shipping_cents, total_cents, expires_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.ID, o.UserID, o.DeliveryType, o.PaymentMethod, o.Status, o.AddressID,
		o.SubtotalCents, o.ShippingCents, o.TotalCents, o.ExpiresAt, o.CreatedAt, o.UpdatedAt)
	return err
}

func (t *pgTx) InsertLine(ctx context.Context, l *OrderLine) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_items (order_id, product_id, qty, unit_price_cents, line_total_cents)
		VALUES ($1,$2,$3,$4,$5)`,
		l.OrderID, l.ProductID, l.Qty, l.UnitPriceCents, l.LineTotalCents)
	return err
}

func (t *pgTx) OrderLines(ctx context.Context, orderID string) ([]OrderLine, error) {
	return queryLines(ctx, t.tx, orderID)
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, orderID string, st Status, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`, orderID, st, at)
	return err
}

func (t *pgTx) AddReserved(ctx context.Context, productID string, delta int) error {
	// GREATEST clamps drift from manual stock corrections; never negative.
	_, err := t.tx.Exec(ctx, `
		UPDATE inventory SET reserved = GREATEST(reserved + $2, 0), updated_at = now()
		WHERE product_id = $1`, productID, delta)
	return err
}

func (t *pgTx) AddOnHand(ctx context.Context, productID string, delta int) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE inventory SET on_hand = GREATEST(on_hand + $2, 0), updated_at = now()
		WHERE product_id = $1`, productID, delta)
	return err
}

func (t *pgTx) AppendMovement(ctx context.Context, m StockMovement) (bool, error) {
	if m.Type == MovementReserve {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO stock_movements (product_id, order_id, user_id, movement_type, qty, note, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			m.ProductID, m.OrderID, m.UserID, m.Type, m.Qty, m.Note, m.CreatedAt)
		return err == nil, err
	}
	ct, err := t.tx.Exec(ctx, `
		INSERT INTO stock_movements (product_id, order_id, user_id, movement_type, qty, note, created_at)
		SELECT $1,$2,$3,$4,$5,$6,$7
		WHERE NOT EXISTS (
			SELECT 1 FROM stock_movements
			WHERE product_id = $1 AND order_id = $2 AND movement_type = $4
		)`,
		m.ProductID, m.OrderID, m.UserID, m.Type, m.Qty, m.Note, m.CreatedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p Payment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payments (order_id, provider, status, amount_cents)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (order_id) DO NOTHING`,
		p.OrderID, p.Provider, p.Status, p.AmountCents)
	return err
}

func (t *pgTx) SetPaymentStatus(ctx context.Context, orderID string, from, to PaymentStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE payments SET status=$3 WHERE order_id=$1 AND status=$2`, orderID, from, to)
	return err
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
