package orders_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferretex/ferretex-api/internal/orders"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in   string
		want orders.Status
	}{
		{"pending_payment", orders.StatusPendingPayment},
		{"PAID", orders.StatusPaid},
		{"  preparing ", orders.StatusPreparing},
		{"ready-for-pickup", orders.StatusReadyForPickup},
		{"shipped", orders.StatusShipped},
		{"Sent", orders.StatusShipped},
		{"DISPATCHED", orders.StatusShipped},
		{"enviado", orders.StatusShipped},
		{"delivered", orders.StatusDelivered},
		{"cancelled", orders.StatusCancelled},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := orders.ParseStatus(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestParseStatusRejectsUnknown(t *testing.T) {
	for _, in := range []string{"", "shiped", "canceled!", "refunded"} {
		_, err := orders.ParseStatus(in)
		var ve orders.ValidationError
		assert.ErrorAs(t, err, &ve, "input %q", in)
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, orders.CanTransition(orders.StatusPendingPayment, orders.StatusPaid))
	assert.True(t, orders.CanTransition(orders.StatusPaid, orders.StatusShipped))
	assert.True(t, orders.CanTransition(orders.StatusReadyForPickup, orders.StatusCancelled))

	// consistency guards
	assert.False(t, orders.CanTransition(orders.StatusShipped, orders.StatusCancelled))
	assert.False(t, orders.CanTransition(orders.StatusCancelled, orders.StatusShipped))

	// terminal states accept nothing
	assert.False(t, orders.CanTransition(orders.StatusDelivered, orders.StatusPaid))
	assert.False(t, orders.CanTransition(orders.StatusCancelled, orders.StatusPendingPayment))
}
