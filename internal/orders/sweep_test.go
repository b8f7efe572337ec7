package orders_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferretex/ferretex-api/internal/orders"
)

// staleCandidates wraps a MemStore and serves a canned candidate list, the way
// a sweep pass can pick up ids that stop qualifying before they are locked.
type staleCandidates struct {
	*orders.MemStore
	ids []string
}

func (s *staleCandidates) ExpiredOrderIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit > 0 && len(s.ids) > limit {
		return s.ids[:limit], nil
	}
	return s.ids, nil
}

func expiredOrder(t *testing.T, e *orders.Engine, qty int) *orders.Order {
	t.Helper()
	o, _, err := e.CreateOrder(context.Background(), orders.CreateOrderInput{
		CustomerID:    customer.ID,
		DeliveryType:  "pickup",
		PaymentMethod: "online",
		Lines:         []orders.LineRequest{{ProductID: "p1", Qty: qty}},
	})
	require.NoError(t, err)
	return o
}

func TestSweepCancelsExpiredOnlineOrder(t *testing.T) {
	store := orders.NewMemStore()
	store.SeedProduct("p1", "Hammer", 1500, 10)
	e, fc := newEngine(store)
	sink := &fakeSink{}
	e.Events = sink

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return now }
	o := expiredOrder(t, e, 2)

	// inside the window: nothing to do
	n, err := e.Sweep(context.Background(), 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	now = now.Add(16 * time.Minute)
	n, err = e.Sweep(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _, err := e.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)

	onHand, reserved := store.Level("p1")
	assert.Equal(t, 10, onHand)
	assert.Zero(t, reserved)
	assert.Equal(t, 1, store.CountMovements("p1", o.ID, orders.MovementReleaseReserve))

	st, _ := store.PaymentState(o.ID)
	assert.Equal(t, orders.PaymentVoided, st)

	assert.Equal(t, 2, fc.calls()) // create + sweep
	assert.Contains(t, sink.events, orders.EventOrderExpired)
}

func TestSweepIsIdempotent(t *testing.T) {
	store := orders.NewMemStore()
	store.SeedProduct("p1", "Hammer", 1500, 10)
	e, _ := newEngine(store)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return now }
	o := expiredOrder(t, e, 3)

	now = now.Add(time.Hour)
	n, err := e.Sweep(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = e.Sweep(context.Background(), 100)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, store.CountMovements("p1", o.ID, orders.MovementReleaseReserve))

	_, reserved := store.Level("p1")
	assert.Zero(t, reserved)
}

func TestSweepHonorsLimit(t *testing.T) {
	store := orders.NewMemStore()
	store.SeedProduct("p1", "Hammer", 1500, 100)
	e, _ := newEngine(store)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return now }
	for i := 0; i < 5; i++ {
		expiredOrder(t, e, 1)
	}

	now = now.Add(time.Hour)
	n, err := e.Sweep(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// next passes pick up the remainder
	n, err = e.Sweep(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = e.Sweep(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, reserved := store.Level("p1")
	assert.Zero(t, reserved)
}

func TestSweepSkipsOrderPaidAfterSelection(t *testing.T) {
	mem := orders.NewMemStore()
	mem.SeedProduct("p1", "Hammer", 1500, 10)
	e, _ := newEngine(mem)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return now }
	o := expiredOrder(t, e, 2)

	// payment lands after the order showed up in the candidate list
	_, err := e.SetStatus(context.Background(), o.ID, "paid", staff)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	e.Store = &staleCandidates{MemStore: mem, ids: []string{o.ID}}
	n, err := e.Sweep(context.Background(), 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, _, err := e.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)

	_, reserved := mem.Level("p1")
	assert.Equal(t, 2, reserved, "paid order keeps its reservation")
}

func TestSweepIsolatesFailures(t *testing.T) {
	mem := orders.NewMemStore()
	mem.SeedProduct("p1", "Hammer", 1500, 10)
	e, _ := newEngine(mem)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return now }
	a := expiredOrder(t, e, 1)
	b := expiredOrder(t, e, 1)

	now = now.Add(time.Hour)
	// a vanished candidate errors; the rest still get cancelled
	e.Store = &staleCandidates{MemStore: mem, ids: []string{a.ID, "gone", b.ID}}
	n, err := e.Sweep(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{a.ID, b.ID} {
		got, _, err := e.GetOrder(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, orders.StatusCancelled, got.Status)
	}
}
