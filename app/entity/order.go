package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

type FulfillmentStatus string

const (
	FulfillmentStatusCreated    FulfillmentStatus = "created"
	FulfillmentStatusPending    FulfillmentStatus = "pending"
	FulfillmentStatusProcessing FulfillmentStatus = "processing"
	FulfillmentStatusShipped    FulfillmentStatus = "shipped"
	FulfillmentStatusDelivered  FulfillmentStatus = "delivered"
	FulfillmentStatusCancelled  FulfillmentStatus = "cancelled"
)

func (s FulfillmentStatus) Valid() bool {
	switch s {
	case FulfillmentStatusCreated,
		FulfillmentStatusPending,
		FulfillmentStatusProcessing,
		FulfillmentStatusShipped,
		FulfillmentStatusDelivered,
		FulfillmentStatusCancelled:
		return true
	default:
		return false
	}
}

const PaymentMethodVNPay = "vnpay"

// OrderItem is a snapshot taken at checkout; it does not follow later catalog
// price changes.
type OrderItem struct {
	ProductID uint64          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int32           `json:"quantity"`
	ImageRef  string          `json:"image_ref,omitempty"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

type ShippingAddress struct {
	Name    string
	Phone   string
	Address string
}

type Order struct {
	ID uint64

	UserID           uint64
	PaymentReference string

	Items       []OrderItem
	TotalAmount decimal.Decimal
	Currency    string

	Shipping ShippingAddress

	PaymentMethod     string
	PaymentStatus     PaymentStatus
	FulfillmentStatus FulfillmentStatus

	GatewayResponseCode  *string
	GatewayTransactionID *string
	GatewayBankCode      *string
	GatewayPayDate       *time.Time

	PaymentRequestedAt *time.Time
	PaidAt             *time.Time
	LastReconciledAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
