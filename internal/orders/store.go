package orders

import (
	"context"
	"time"
)

// Store is the durable backing for the reservation engine and state machine.
// A StoreTx owns every row it locked until Commit or Rollback; callers on a
// contended row block until the holder finishes. The postgres implementation
// maps this onto SELECT ... FOR UPDATE, the in-memory one onto per-row
// mutexes.
type Store interface {
	Begin(ctx context.Context) (StoreTx, error)

	// ExpiredOrderIDs selects sweep candidates: pending_payment, online
	// payment, expires_at at or before now, soonest-expired first.
	ExpiredOrderIDs(ctx context.Context, now time.Time, limit int) ([]string, error)

	// GetOrder reads an order with its lines, without locking.
	GetOrder(ctx context.Context, orderID string) (*Order, []OrderLine, error)
}

type StoreTx interface {
	// LockProducts takes exclusive locks on the inventory rows for the given
	// active products, in deterministic id order, and returns their state.
	// Missing or inactive ids are simply absent from the result.
	LockProducts(ctx context.Context, productIDs []string) (map[string]LockedProduct, error)

	// LockInventory takes the same exclusive locks without reading product
	// data and without the active filter; status transitions use it so a
	// deactivated product can still be released or shipped.
	LockInventory(ctx context.Context, productIDs []string) error

	// LockOrder locks the order row and returns its current state.
	LockOrder(ctx context.Context, orderID string) (*Order, error)

	InsertOrder(ctx context.Context, o *Order) error
	InsertLine(ctx context.Context, l *OrderLine) error
	OrderLines(ctx context.Context, orderID string) ([]OrderLine, error)
	UpdateOrderStatus(ctx context.Context, orderID string, st Status, at time.Time) error

	// AddReserved and AddOnHand apply a delta to the counter, clamping at
	// zero on decrement. Caller must hold the inventory row lock.
	AddReserved(ctx context.Context, productID string, delta int) error
	AddOnHand(ctx context.Context, productID string, delta int) error

	// AppendMovement writes a ledger row. For any type other than reserve, at
	// most one row may exist per (product, order, type); a duplicate is
	// skipped and reported as inserted=false.
	AppendMovement(ctx context.Context, m StockMovement) (inserted bool, err error)

	// InsertPayment ignores a duplicate payment for the same order.
	InsertPayment(ctx context.Context, p Payment) error

	// SetPaymentStatus moves the order's payment from one status to another;
	// a payment not in the from status is left untouched.
	SetPaymentStatus(ctx context.Context, orderID string, from, to PaymentStatus) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
