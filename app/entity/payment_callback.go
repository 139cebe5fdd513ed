package entity

import "time"

const (
	CallbackChannelReturn = "return"
	CallbackChannelIPN    = "ipn"
)

const (
	PaymentCallbackStatusProcessed int32 = 10
	PaymentCallbackStatusIgnored   int32 = 15
	PaymentCallbackStatusRejected  int32 = 20
)

// PaymentCallback is the audit record of one inbound gateway callback,
// whether or not it changed an order.
type PaymentCallback struct {
	ID uint64

	OrderID *uint64

	Channel          string
	PaymentReference string
	ResponseCode     string
	TransactionNo    string
	ReceivedHash     string
	Status           int32
	Error            *string
	DiagnosticsJSON  *string
	PayloadJSON      string

	CreatedAt time.Time
}
