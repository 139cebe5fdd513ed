package entity

import "time"

const (
	OrderEventSourceCheckout = "checkout"
	OrderEventSourceGateway  = "gateway"
	OrderEventSourceQuery    = "query"
	OrderEventSourceManual   = "manual"
	OrderEventSourceAdmin    = "admin"
)

type OrderEvent struct {
	ID uint64

	OrderID uint64

	EventType string
	Source    string

	OldPaymentStatus *PaymentStatus
	NewPaymentStatus PaymentStatus

	OldFulfillmentStatus *FulfillmentStatus
	NewFulfillmentStatus FulfillmentStatus

	PayloadJSON *string

	CreatedAt time.Time
}
