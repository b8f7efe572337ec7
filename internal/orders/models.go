package orders

import "time"

type DeliveryType string

const (
	DeliveryPickup   DeliveryType = "pickup"
	DeliveryDelivery DeliveryType = "delivery"
)

type PaymentMethod string

const (
	PaymentOnline  PaymentMethod = "online"
	PaymentInStore PaymentMethod = "in_store"
)

type MovementType string

const (
	MovementReserve        MovementType = "reserve"
	MovementReleaseReserve MovementType = "release_reserve"
	MovementOut            MovementType = "out"
)

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentPaid      PaymentStatus = "paid"
	PaymentVoided    PaymentStatus = "voided"
)

type Order struct {
	ID            string
	UserID        string
	DeliveryType  DeliveryType
	PaymentMethod PaymentMethod
	Status        Status // see status.go
	AddressID     string
	SubtotalCents int64
	ShippingCents int64
	TotalCents    int64
	ExpiresAt     *time.Time // set only for online payment
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderLine struct {
	OrderID        string
	ProductID      string
	Qty            int
	UnitPriceCents int64
	LineTotalCents int64
}

// StockMovement is one row of the append-only inventory ledger.
type StockMovement struct {
	ProductID string
	OrderID   string
	UserID    string
	Type      MovementType
	Qty       int
	Note      string
	CreatedAt time.Time
}

type Payment struct {
	OrderID     string
	Provider    string
	Status      PaymentStatus
	AmountCents int64
}

// LockedProduct is the inventory view read under an exclusive row lock.
type LockedProduct struct {
	ID         string
	Name       string
	PriceCents int64
	OnHand     int
	Reserved   int
}

func (p LockedProduct) Available() int {
	if a := p.OnHand - p.Reserved; a > 0 {
		return a
	}
	return 0
}
