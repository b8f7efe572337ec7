package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore implements Store with per-row mutexes standing in for postgres row
// locks. A transaction buffers its writes and applies them atomically on
// Commit while still holding the row locks, so a blocked contender observes
// post-commit state, same as the FOR UPDATE implementation. It backs the
// engine tests and local runs without a database.
type MemStore struct {
	mu        sync.Mutex // guards all maps and row data
	products  map[string]*memProduct
	orders    map[string]*memOrder
	lines     map[string][]OrderLine
	movements []StockMovement
	payments  map[string]Payment
}

type memProduct struct {
	row sync.Mutex // exclusive ownership, held across a tx
	LockedProduct
	Active bool
}

type memOrder struct {
	row sync.Mutex
	Order
}

func NewMemStore() *MemStore {
	return &MemStore{
		products: make(map[string]*memProduct),
		orders:   make(map[string]*memOrder),
		lines:    make(map[string][]OrderLine),
		payments: make(map[string]Payment),
	}
}

func (s *MemStore) SeedProduct(id, name string, priceCents int64, onHand int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = &memProduct{
		LockedProduct: LockedProduct{ID: id, Name: name, PriceCents: priceCents, OnHand: onHand},
		Active:        true,
	}
}

func (s *MemStore) SetActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		p.Active = active
	}
}

// SetOnHand is the manual stock-correction path: it bypasses reservation
// logic entirely, which is how reserved can transiently exceed on_hand.
func (s *MemStore) SetOnHand(id string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		p.OnHand = n
	}
}

func (s *MemStore) Level(id string) (onHand, reserved int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		return p.OnHand, p.Reserved
	}
	return 0, 0
}

func (s *MemStore) CountMovements(productID, orderID string, typ MovementType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.movements {
		if m.ProductID == productID && m.OrderID == orderID && m.Type == typ {
			n++
		}
	}
	return n
}

func (s *MemStore) PaymentState(orderID string) (PaymentStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[orderID]
	return p.Status, ok
}

func (s *MemStore) LineCount(orderID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines[orderID])
}

func (s *MemStore) Begin(ctx context.Context) (StoreTx, error) {
	return &memTx{s: s}, nil
}

func (s *MemStore) ExpiredOrderIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type cand struct {
		id  string
		exp time.Time
	}
	var cands []cand
	for id, o := range s.orders {
		if o.Status == StatusPendingPayment && o.PaymentMethod == PaymentOnline &&
			o.ExpiresAt != nil && !o.ExpiresAt.After(now) {
			cands = append(cands, cand{id, *o.ExpiresAt})
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].exp.Before(cands[j].exp) })
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	ids := make([]string, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.id)
	}
	return ids, nil
}

func (s *MemStore) GetOrder(ctx context.Context, orderID string) (*Order, []OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	cp := o.Order
	lines := append([]OrderLine(nil), s.lines[orderID]...)
	return &cp, lines, nil
}

type memTx struct {
	s        *MemStore
	locked   []*sync.Mutex
	pending  []func()
	pendMovs []StockMovement
	finished bool
}

func (t *memTx) lockRows(rows []*sync.Mutex) {
	t.locked = append(t.locked, rows...)
	for _, m := range rows {
		m.Lock()
	}
}

func (t *memTx) LockProducts(ctx context.Context, productIDs []string) (map[string]LockedProduct, error) {
	ids := append([]string(nil), productIDs...)
	sort.Strings(ids)

	t.s.mu.Lock()
	var rows []*sync.Mutex
	var found []*memProduct
	for _, id := range ids {
		if p, ok := t.s.products[id]; ok {
			rows = append(rows, &p.row)
			found = append(found, p)
		}
	}
	t.s.mu.Unlock()

	// Block on row locks outside the map mutex, in sorted id order.
	t.lockRows(rows)

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := make(map[string]LockedProduct, len(found))
	for _, p := range found {
		if p.Active {
			out[p.ID] = p.LockedProduct
		}
	}
	return out, nil
}

func (t *memTx) LockInventory(ctx context.Context, productIDs []string) error {
	ids := append([]string(nil), productIDs...)
	sort.Strings(ids)

	t.s.mu.Lock()
	var rows []*sync.Mutex
	for _, id := range ids {
		if p, ok := t.s.products[id]; ok {
			rows = append(rows, &p.row)
		}
	}
	t.s.mu.Unlock()

	t.lockRows(rows)
	return nil
}

func (t *memTx) LockOrder(ctx context.Context, orderID string) (*Order, error) {
	t.s.mu.Lock()
	o, ok := t.s.orders[orderID]
	t.s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	t.lockRows([]*sync.Mutex{&o.row})

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	cp := o.Order
	return &cp, nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *Order) error {
	cp := *o
	t.pending = append(t.pending, func() {
		t.s.orders[cp.ID] = &memOrder{Order: cp}
	})
	return nil
}

func (t *memTx) InsertLine(ctx context.Context, l *OrderLine) error {
	cp := *l
	t.pending = append(t.pending, func() {
		t.s.lines[cp.OrderID] = append(t.s.lines[cp.OrderID], cp)
	})
	return nil
}

func (t *memTx) OrderLines(ctx context.Context, orderID string) ([]OrderLine, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return append([]OrderLine(nil), t.s.lines[orderID]...), nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, orderID string, st Status, at time.Time) error {
	t.pending = append(t.pending, func() {
		if o, ok := t.s.orders[orderID]; ok {
			o.Status = st
			o.UpdatedAt = at
		}
	})
	return nil
}

func clampAdd(cur, delta int) int {
	if v := cur + delta; v > 0 {
		return v
	}
	return 0
}

func (t *memTx) AddReserved(ctx context.Context, productID string, delta int) error {
	t.pending = append(t.pending, func() {
		if p, ok := t.s.products[productID]; ok {
			p.Reserved = clampAdd(p.Reserved, delta)
		}
	})
	return nil
}

func (t *memTx) AddOnHand(ctx context.Context, productID string, delta int) error {
	t.pending = append(t.pending, func() {
		if p, ok := t.s.products[productID]; ok {
			p.OnHand = clampAdd(p.OnHand, delta)
		}
	})
	return nil
}

func (t *memTx) AppendMovement(ctx context.Context, m StockMovement) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if m.Type != MovementReserve {
		for _, ex := range t.s.movements {
			if ex.ProductID == m.ProductID && ex.OrderID == m.OrderID && ex.Type == m.Type {
				return false, nil
			}
		}
		for _, ex := range t.pendMovs {
			if ex.ProductID == m.ProductID && ex.OrderID == m.OrderID && ex.Type == m.Type {
				return false, nil
			}
		}
	}
	t.pendMovs = append(t.pendMovs, m)
	t.pending = append(t.pending, func() {
		t.s.movements = append(t.s.movements, m)
	})
	return true, nil
}

func (t *memTx) InsertPayment(ctx context.Context, p Payment) error {
	t.pending = append(t.pending, func() {
		if _, exists := t.s.payments[p.OrderID]; !exists {
			t.s.payments[p.OrderID] = p
		}
	})
	return nil
}

func (t *memTx) SetPaymentStatus(ctx context.Context, orderID string, from, to PaymentStatus) error {
	t.pending = append(t.pending, func() {
		if p, ok := t.s.payments[orderID]; ok && p.Status == from {
			p.Status = to
			t.s.payments[orderID] = p
		}
	})
	return nil
}

func (t *memTx) finish(apply bool) {
	if t.finished {
		return
	}
	t.finished = true
	if apply {
		t.s.mu.Lock()
		for _, fn := range t.pending {
			fn()
		}
		t.s.mu.Unlock()
	}
	t.pending = nil
	for _, m := range t.locked {
		m.Unlock()
	}
	t.locked = nil
}

func (t *memTx) Commit(ctx context.Context) error {
	t.finish(true)
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.finish(false)
	return nil
}
