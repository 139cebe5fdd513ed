package types

// Request and response messages shared by the HTTP controllers, the gRPC
// server and the service layer. Services consume them through Get accessors
// so either transport can feed the same code path.

type OrderItemInput struct {
	ProductId uint64 `json:"product_id" validate:"required"`
	Quantity  int32  `json:"quantity" validate:"required,min=1,max=100"`
}

func (x *OrderItemInput) GetProductId() uint64 {
	if x == nil {
		return 0
	}
	return x.ProductId
}

func (x *OrderItemInput) GetQuantity() int32 {
	if x == nil {
		return 0
	}
	return x.Quantity
}

type ShippingAddress struct {
	Name    string `json:"name" validate:"required,max=255"`
	Phone   string `json:"phone" validate:"required,max=32"`
	Address string `json:"address" validate:"required,max=1024"`
}

func (x *ShippingAddress) GetName() string {
	if x == nil {
		return ""
	}
	return x.Name
}

func (x *ShippingAddress) GetPhone() string {
	if x == nil {
		return ""
	}
	return x.Phone
}

func (x *ShippingAddress) GetAddress() string {
	if x == nil {
		return ""
	}
	return x.Address
}

type CreateOrderRequest struct {
	UserId          uint64            `json:"-"`
	CallerIp        string            `json:"-"`
	Items           []*OrderItemInput `json:"items" validate:"required,min=1,max=50,dive,required"`
	ShippingAddress *ShippingAddress  `json:"shipping_address" validate:"required"`
	Locale          string            `json:"locale" validate:"omitempty,oneof=vn en"`
}

func (x *CreateOrderRequest) GetUserId() uint64 {
	if x == nil {
		return 0
	}
	return x.UserId
}

func (x *CreateOrderRequest) GetCallerIp() string {
	if x == nil {
		return ""
	}
	return x.CallerIp
}

func (x *CreateOrderRequest) GetItems() []*OrderItemInput {
	if x == nil {
		return nil
	}
	return x.Items
}

func (x *CreateOrderRequest) GetShippingAddress() *ShippingAddress {
	if x == nil {
		return nil
	}
	return x.ShippingAddress
}

func (x *CreateOrderRequest) GetLocale() string {
	if x == nil {
		return ""
	}
	return x.Locale
}

type GetOrderRequest struct {
	Id uint64 `json:"id"`
}

func (x *GetOrderRequest) GetId() uint64 {
	if x == nil {
		return 0
	}
	return x.Id
}

type ListMyOrdersRequest struct {
	UserId uint64 `json:"-"`
	Limit  int32  `json:"limit"`
	Offset int32  `json:"offset"`
}

func (x *ListMyOrdersRequest) GetUserId() uint64 {
	if x == nil {
		return 0
	}
	return x.UserId
}

func (x *ListMyOrdersRequest) GetLimit() int32 {
	if x == nil {
		return 0
	}
	return x.Limit
}

func (x *ListMyOrdersRequest) GetOffset() int32 {
	if x == nil {
		return 0
	}
	return x.Offset
}

type ListOrdersRequest struct {
	PaymentStatus     string `json:"payment_status" validate:"omitempty,oneof=pending paid failed"`
	FulfillmentStatus string `json:"fulfillment_status" validate:"omitempty,oneof=created pending processing shipped delivered cancelled"`
	Limit             int32  `json:"limit"`
	Offset            int32  `json:"offset"`
}

func (x *ListOrdersRequest) GetPaymentStatus() string {
	if x == nil {
		return ""
	}
	return x.PaymentStatus
}

func (x *ListOrdersRequest) GetFulfillmentStatus() string {
	if x == nil {
		return ""
	}
	return x.FulfillmentStatus
}

func (x *ListOrdersRequest) GetLimit() int32 {
	if x == nil {
		return 0
	}
	return x.Limit
}

func (x *ListOrdersRequest) GetOffset() int32 {
	if x == nil {
		return 0
	}
	return x.Offset
}

type UpdateFulfillmentStatusRequest struct {
	Id                uint64 `json:"-"`
	FulfillmentStatus string `json:"fulfillment_status" validate:"required,oneof=created pending processing shipped delivered cancelled"`
}

func (x *UpdateFulfillmentStatusRequest) GetId() uint64 {
	if x == nil {
		return 0
	}
	return x.Id
}

func (x *UpdateFulfillmentStatusRequest) GetFulfillmentStatus() string {
	if x == nil {
		return ""
	}
	return x.FulfillmentStatus
}

type OrderReferenceRequest struct {
	Reference string `json:"reference" validate:"required,max=64"`
}

func (x *OrderReferenceRequest) GetReference() string {
	if x == nil {
		return ""
	}
	return x.Reference
}

type ListPaymentCallbacksRequest struct {
	Reference string `json:"reference" validate:"required,max=64"`
	Limit     int32  `json:"limit"`
}

func (x *ListPaymentCallbacksRequest) GetReference() string {
	if x == nil {
		return ""
	}
	return x.Reference
}

func (x *ListPaymentCallbacksRequest) GetLimit() int32 {
	if x == nil {
		return 0
	}
	return x.Limit
}

type GatewayCallbackRequest struct {
	Channel   string
	RequestId string
	Params    map[string]string
}

func (x *GatewayCallbackRequest) GetChannel() string {
	if x == nil {
		return ""
	}
	return x.Channel
}

func (x *GatewayCallbackRequest) GetRequestId() string {
	if x == nil {
		return ""
	}
	return x.RequestId
}

func (x *GatewayCallbackRequest) GetParams() map[string]string {
	if x == nil {
		return nil
	}
	return x.Params
}

type OrderItem struct {
	ProductId uint64 `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int32  `json:"quantity"`
	Subtotal  string `json:"subtotal"`
	ImageRef  string `json:"image_ref,omitempty"`
}

type Order struct {
	Id                   uint64           `json:"id"`
	UserId               uint64           `json:"user_id"`
	PaymentReference     string           `json:"payment_reference"`
	Items                []*OrderItem     `json:"items"`
	TotalAmount          string           `json:"total_amount"`
	Currency             string           `json:"currency"`
	ShippingAddress      *ShippingAddress `json:"shipping_address"`
	PaymentMethod        string           `json:"payment_method"`
	PaymentStatus        string           `json:"payment_status"`
	FulfillmentStatus    string           `json:"fulfillment_status"`
	GatewayResponseCode  string           `json:"gateway_response_code,omitempty"`
	GatewayTransactionId string           `json:"gateway_transaction_id,omitempty"`
	GatewayBankCode      string           `json:"gateway_bank_code,omitempty"`
	GatewayPayDate       string           `json:"gateway_pay_date,omitempty"`
	PaidAt               string           `json:"paid_at,omitempty"`
	CreatedAt            string           `json:"created_at"`
	UpdatedAt            string           `json:"updated_at"`
}

type CreateOrderResponse struct {
	Order      *Order `json:"order"`
	PaymentUrl string `json:"payment_url"`
}

type OrderEnvelopeResponse struct {
	Order *Order `json:"order"`
}

type ListOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

type OrderEvent struct {
	Id                   uint64 `json:"id"`
	OrderId              uint64 `json:"order_id"`
	EventType            string `json:"event_type"`
	Source               string `json:"source"`
	OldPaymentStatus     string `json:"old_payment_status,omitempty"`
	NewPaymentStatus     string `json:"new_payment_status"`
	OldFulfillmentStatus string `json:"old_fulfillment_status,omitempty"`
	NewFulfillmentStatus string `json:"new_fulfillment_status"`
	Payload              string `json:"payload,omitempty"`
	CreatedAt            string `json:"created_at"`
}

type ListOrderEventsResponse struct {
	Events []*OrderEvent `json:"events"`
}

// PaymentCallback is the admin view of one stored gateway callback. Payload
// holds the raw vnp_ parameters as received.
type PaymentCallback struct {
	Id               uint64 `json:"id"`
	OrderId          uint64 `json:"order_id,omitempty"`
	Channel          string `json:"channel"`
	PaymentReference string `json:"payment_reference"`
	ResponseCode     string `json:"response_code"`
	TransactionNo    string `json:"transaction_no,omitempty"`
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
	Diagnostics      string `json:"diagnostics,omitempty"`
	Payload          string `json:"payload"`
	CreatedAt        string `json:"created_at"`
}

type ListPaymentCallbacksResponse struct {
	Callbacks []*PaymentCallback `json:"callbacks"`
}

// GatewayAckResponse is the body the gateway expects from the IPN endpoint.
type GatewayAckResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
