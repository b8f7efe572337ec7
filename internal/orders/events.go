package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ferretex/ferretex-api/internal/kafka"
)

// Header aliases the kafka header type so EventSink implementations outside
// this package line up with the producer signature.
type Header = kafkago.Header

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderExpired       = "OrderExpired"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID       string      `json:"order_id"`
	UserID        string      `json:"user_id"`
	Status        Status      `json:"status"`
	PaymentMethod string      `json:"payment_method"`
	Lines         []OrderLine `json:"lines"`
	TotalCents    int64       `json:"total_cents"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
}

type StatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

type OrderExpiredPayload struct {
	OrderID string `json:"order_id"`
}

func (e *Engine) publish(eventType, orderID string, payload any) {
	if e.Events == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    e.now(),
		Producer:      e.Service,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	e.Events.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		Header{Key: "x-event-type", Value: []byte(eventType)},
		Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (e *Engine) publishOrderCreated(o *Order, lines []OrderLine) {
	e.publish(EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentMethod: string(o.PaymentMethod),
		Lines:         lines,
		TotalCents:    o.TotalCents,
		ExpiresAt:     o.ExpiresAt,
	})
}

func (e *Engine) publishStatusChanged(orderID string, from, to Status) {
	e.publish(EventOrderStatusChanged, orderID, StatusChangedPayload{OrderID: orderID, From: from, To: to})
}

func (e *Engine) publishExpired(orderID string) {
	e.publish(EventOrderExpired, orderID, OrderExpiredPayload{OrderID: orderID})
}
