package orders

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ferretex/ferretex-api/internal/auth"
)

// CacheInvalidator is the catalog cache collaborator; the engine only ever
// signals it, after a committed mutation that changed available stock.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// EventSink receives lifecycle events after commit. Satisfied by the kafka
// producer; nil disables publishing.
type EventSink interface {
	Publish(key, value []byte, headers ...Header)
}

// Engine is the reservation engine, order state machine and expiry sweep over
// a single Store. All inventory mutation in the system funnels through it,
// except the manual stock-correction path.
type Engine struct {
	Store  Store
	Cache  CacheInvalidator
	Events EventSink
	Logger *zap.Logger

	// Service names this process in published event envelopes.
	Service string

	// ReservationTTL is the payment window stamped on online orders.
	ReservationTTL time.Duration

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

type LineRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type CreateOrderInput struct {
	CustomerID    string
	DeliveryType  string
	PaymentMethod string
	AddressID     string
	Lines         []LineRequest
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e *Engine) log() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

func (e *Engine) invalidate(ctx context.Context) {
	if e.Cache != nil {
		e.Cache.Invalidate(ctx)
	}
}

// mergeLines validates each requested line and folds duplicate product ids by
// summing quantities, before any lock is taken.
func mergeLines(reqs []LineRequest) ([]LineRequest, error) {
	if len(reqs) == 0 {
		return nil, ValidationError("items are required")
	}
	qty := make(map[string]int, len(reqs))
	for _, r := range reqs {
		if r.ProductID == "" || r.Qty <= 0 {
			return nil, ValidationError("each item needs a product id and a positive qty")
		}
		qty[r.ProductID] += r.Qty
	}
	merged := make([]LineRequest, 0, len(qty))
	for id, q := range qty {
		merged = append(merged, LineRequest{ProductID: id, Qty: q})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged, nil
}

// CreateOrder reserves stock for every line atomically: either the whole
// order commits with its reservations, ledger rows and payment record, or
// nothing does.
func (e *Engine) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, []OrderLine, error) {
	dt := DeliveryType(in.DeliveryType)
	if dt != DeliveryPickup && dt != DeliveryDelivery {
		return nil, nil, ValidationError("invalid delivery_type")
	}
	pm := PaymentMethod(in.PaymentMethod)
	if pm != PaymentOnline && pm != PaymentInStore {
		return nil, nil, ValidationError("invalid payment_method")
	}
	if dt == DeliveryDelivery && in.AddressID == "" {
		return nil, nil, ValidationError("address_id is required for delivery")
	}
	merged, err := mergeLines(in.Lines)
	if err != nil {
		return nil, nil, err
	}

	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, len(merged))
	for _, l := range merged {
		ids = append(ids, l.ProductID)
	}
	locked, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	for _, l := range merged {
		p, ok := locked[l.ProductID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrProductNotFound, l.ProductID)
		}
		if p.Available() < l.Qty {
			return nil, nil, &StockError{
				ProductID: p.ID, Name: p.Name,
				Available: p.Available(), Requested: l.Qty,
			}
		}
	}

	now := e.now()
	order := &Order{
		ID:            uuid.NewString(),
		UserID:        in.CustomerID,
		DeliveryType:  dt,
		PaymentMethod: pm,
		Status:        StatusPendingPayment,
		AddressID:     in.AddressID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if pm == PaymentOnline {
		exp := now.Add(e.ReservationTTL)
		order.ExpiresAt = &exp
	}

	lines := make([]OrderLine, 0, len(merged))
	for _, l := range merged {
		p := locked[l.ProductID]
		line := OrderLine{
			OrderID:        order.ID,
			ProductID:      l.ProductID,
			Qty:            l.Qty,
			UnitPriceCents: p.PriceCents,
			LineTotalCents: p.PriceCents * int64(l.Qty),
		}
		lines = append(lines, line)
		order.SubtotalCents += line.LineTotalCents
	}
	order.TotalCents = order.SubtotalCents + order.ShippingCents

	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, nil, err
	}
	for i := range lines {
		if err := tx.InsertLine(ctx, &lines[i]); err != nil {
			return nil, nil, err
		}
		if err := tx.AddReserved(ctx, lines[i].ProductID, lines[i].Qty); err != nil {
			return nil, nil, err
		}
		if _, err := tx.AppendMovement(ctx, StockMovement{
			ProductID: lines[i].ProductID,
			OrderID:   order.ID,
			UserID:    in.CustomerID,
			Type:      MovementReserve,
			Qty:       lines[i].Qty,
			Note:      "reserved at order creation",
			CreatedAt: now,
		}); err != nil {
			return nil, nil, err
		}
	}
	if err := tx.InsertPayment(ctx, Payment{
		OrderID:     order.ID,
		Provider:    string(pm),
		Status:      PaymentInitiated,
		AmountCents: order.TotalCents,
	}); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	e.invalidate(ctx)
	e.publishOrderCreated(order, lines)
	e.log().Info("order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int("lines", len(lines)),
		zap.Int64("total_cents", order.TotalCents))
	return order, lines, nil
}

// SetStatus drives one guarded transition of the order state machine. The
// order row stays locked until commit, so concurrent transitions on the same
// order serialize.
func (e *Engine) SetStatus(ctx context.Context, orderID, target string, p auth.Principal) (*Order, error) {
	st, err := ParseStatus(target)
	if err != nil {
		return nil, err
	}
	if st == StatusShipped {
		if p.Role != auth.RoleManager {
			return nil, ErrForbidden
		}
	} else if p.Role != auth.RoleStaff && p.Role != auth.RoleManager {
		return nil, ErrForbidden
	}

	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := tx.LockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == st {
		// re-applying the current status is accepted, with no side effects
		return order, nil
	}
	if !CanTransition(order.Status, st) {
		return nil, &TransitionError{From: order.Status, To: st}
	}

	stockChanged := false
	now := e.now()
	switch st {
	case StatusShipped:
		if err := e.takeStock(ctx, tx, order, p.ID, now); err != nil {
			return nil, err
		}
		stockChanged = true
	case StatusCancelled:
		if err := e.releaseStock(ctx, tx, order, p.ID, now); err != nil {
			return nil, err
		}
		stockChanged = true
	case StatusPaid:
		if err := tx.SetPaymentStatus(ctx, orderID, PaymentInitiated, PaymentPaid); err != nil {
			return nil, err
		}
	}

	if err := tx.UpdateOrderStatus(ctx, orderID, st, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if stockChanged {
		e.invalidate(ctx)
	}
	e.publishStatusChanged(orderID, order.Status, st)
	e.log().Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(st)),
		zap.String("actor", p.ID))

	updated := *order
	updated.Status = st
	updated.UpdatedAt = now
	return &updated, nil
}

// takeStock performs the first-entry side effects of shipping: stock leaves
// on_hand, the matching reservation is consumed, one out ledger row per line.
// The ledger existence check makes a re-run a no-op per line.
func (e *Engine) takeStock(ctx context.Context, tx StoreTx, order *Order, actorID string, now time.Time) error {
	lines, err := tx.OrderLines(ctx, order.ID)
	if err != nil {
		return err
	}
	if err := tx.LockInventory(ctx, lineProductIDs(lines)); err != nil {
		return err
	}
	for _, l := range lines {
		inserted, err := tx.AppendMovement(ctx, StockMovement{
			ProductID: l.ProductID,
			OrderID:   order.ID,
			UserID:    actorID,
			Type:      MovementOut,
			Qty:       l.Qty,
			Note:      "stock out on shipment",
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			continue
		}
		if err := tx.AddOnHand(ctx, l.ProductID, -l.Qty); err != nil {
			return err
		}
		if err := tx.AddReserved(ctx, l.ProductID, -l.Qty); err != nil {
			return err
		}
	}
	return nil
}

// releaseStock performs the first-entry side effects of cancellation: the
// reservation is returned and any initiated payment voided. Shared by the
// state machine and the sweep.
func (e *Engine) releaseStock(ctx context.Context, tx StoreTx, order *Order, actorID string, now time.Time) error {
	lines, err := tx.OrderLines(ctx, order.ID)
	if err != nil {
		return err
	}
	if err := tx.LockInventory(ctx, lineProductIDs(lines)); err != nil {
		return err
	}
	for _, l := range lines {
		inserted, err := tx.AppendMovement(ctx, StockMovement{
			ProductID: l.ProductID,
			OrderID:   order.ID,
			UserID:    actorID,
			Type:      MovementReleaseReserve,
			Qty:       l.Qty,
			Note:      "reservation released on cancellation",
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			continue
		}
		if err := tx.AddReserved(ctx, l.ProductID, -l.Qty); err != nil {
			return err
		}
	}
	return tx.SetPaymentStatus(ctx, order.ID, PaymentInitiated, PaymentVoided)
}

func lineProductIDs(lines []OrderLine) []string {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

// Sweep cancels up to limit expired unpaid online orders. Each candidate runs
// in its own transaction: one failure is logged and never rolls back the
// others. Returns the number actually cancelled.
func (e *Engine) Sweep(ctx context.Context, limit int) (int, error) {
	ids, err := e.Store.ExpiredOrderIDs(ctx, e.now(), limit)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, id := range ids {
		done, err := e.expireOne(ctx, id)
		if err != nil {
			e.log().Error("sweep: cancel failed",
				zap.String("order_id", id), zap.Error(err))
			continue
		}
		if done {
			cancelled++
		}
	}
	if cancelled > 0 {
		e.log().Info("sweep pass", zap.Int("cancelled", cancelled), zap.Int("candidates", len(ids)))
	}
	return cancelled, nil
}

func (e *Engine) expireOne(ctx context.Context, orderID string) (bool, error) {
	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	order, err := tx.LockOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	// Re-check under lock: a payment may have landed between selection and
	// processing. Not an error, just no longer a candidate.
	now := e.now()
	if order.Status != StatusPendingPayment || order.PaymentMethod != PaymentOnline ||
		order.ExpiresAt == nil || order.ExpiresAt.After(now) {
		return false, nil
	}

	if err := e.releaseStock(ctx, tx, order, order.UserID, now); err != nil {
		return false, err
	}
	if err := tx.UpdateOrderStatus(ctx, orderID, StatusCancelled, now); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	e.invalidate(ctx)
	e.publishExpired(orderID)
	return true, nil
}

// GetOrder reads an order with its lines.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (*Order, []OrderLine, error) {
	return e.Store.GetOrder(ctx, orderID)
}
