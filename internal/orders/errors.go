package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrProductNotFound = errors.New("product missing or inactive")
	ErrForbidden       = errors.New("role not allowed for this transition")
)

// ValidationError rejects malformed input before any lock is taken.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// StockError reports an availability conflict for a single line. The first
// failing line aborts the whole reservation.
type StockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available=%d requested=%d",
		e.ProductID, e.Available, e.Requested)
}

// TransitionError reports an illegal state-machine transition.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}
