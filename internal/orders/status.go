package orders

import "strings"

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusShipped        Status = "shipped"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// shippedAliases are accepted on input and normalize to StatusShipped.
// "enviado" is the label the storefront sends.
var shippedAliases = map[string]bool{
	"sent":       true,
	"dispatched": true,
	"enviado":    true,
}

var allStatuses = map[Status]bool{
	StatusPendingPayment: true,
	StatusPaid:           true,
	StatusPreparing:      true,
	StatusReadyForPickup: true,
	StatusShipped:        true,
	StatusDelivered:      true,
	StatusCancelled:      true,
}

// ParseStatus normalizes a raw target status: case-insensitive, trimmed,
// shipped synonyms folded in. Unknown values are a validation failure.
func ParseStatus(raw string) (Status, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	if shippedAliases[s] {
		return StatusShipped, nil
	}
	st := Status(s)
	if !allStatuses[st] {
		return "", ValidationError("unknown status: " + raw)
	}
	return st, nil
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition enforces the consistency guards. Same-status re-application
// is accepted upstream as a no-op and never reaches this check.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if from == StatusShipped && to == StatusCancelled {
		// stock already left the building
		return false
	}
	return true
}
