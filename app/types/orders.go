package types

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500

	gatewayParamPrefix = "vnp_"
)

func NewCreateOrderRequestFromContext(ctx echo.Context) (*CreateOrderRequest, error) {
	var body CreateOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	if body.ShippingAddress != nil {
		body.ShippingAddress.Name = strings.TrimSpace(body.ShippingAddress.Name)
		body.ShippingAddress.Phone = strings.TrimSpace(body.ShippingAddress.Phone)
		body.ShippingAddress.Address = strings.TrimSpace(body.ShippingAddress.Address)
	}
	body.Locale = strings.ToLower(strings.TrimSpace(body.Locale))
	body.CallerIp = ctx.RealIP()

	return &body, nil
}

func (r *CreateOrderRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}

	seen := make(map[uint64]struct{}, len(r.GetItems()))
	for _, item := range r.GetItems() {
		if _, ok := seen[item.GetProductId()]; ok {
			return errors.New("items must not repeat a product_id")
		}
		seen[item.GetProductId()] = struct{}{}
	}
	return nil
}

func NewGetOrderRequestFromContext(ctx echo.Context) (*GetOrderRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &GetOrderRequest{Id: id}, nil
}

func (r *GetOrderRequest) Validate() error {
	if r.GetId() == 0 {
		return errors.New("invalid order id")
	}
	return nil
}

func NewListMyOrdersRequestFromContext(ctx echo.Context) (*ListMyOrdersRequest, error) {
	limit, offset, err := parsePaging(ctx)
	if err != nil {
		return nil, err
	}
	return &ListMyOrdersRequest{Limit: limit, Offset: offset}, nil
}

func (r *ListMyOrdersRequest) Validate() error {
	if r.GetUserId() == 0 {
		return errors.New("user is required")
	}
	return validatePaging(r.GetLimit(), r.GetOffset())
}

func NewListOrdersRequestFromContext(ctx echo.Context) (*ListOrdersRequest, error) {
	limit, offset, err := parsePaging(ctx)
	if err != nil {
		return nil, err
	}
	return &ListOrdersRequest{
		PaymentStatus:     strings.ToLower(strings.TrimSpace(ctx.QueryParam("payment_status"))),
		FulfillmentStatus: strings.ToLower(strings.TrimSpace(ctx.QueryParam("fulfillment_status"))),
		Limit:             limit,
		Offset:            offset,
	}, nil
}

func (r *ListOrdersRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	return validatePaging(r.GetLimit(), r.GetOffset())
}

func NewUpdateFulfillmentStatusRequestFromContext(ctx echo.Context) (*UpdateFulfillmentStatusRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	var body UpdateFulfillmentStatusRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	body.Id = id
	body.FulfillmentStatus = strings.ToLower(strings.TrimSpace(body.FulfillmentStatus))

	return &body, nil
}

func (r *UpdateFulfillmentStatusRequest) Validate() error {
	if r.GetId() == 0 {
		return errors.New("invalid order id")
	}
	return validateStruct(r)
}

func NewOrderReferenceRequestFromContext(ctx echo.Context) (*OrderReferenceRequest, error) {
	return &OrderReferenceRequest{Reference: strings.TrimSpace(ctx.Param("reference"))}, nil
}

func (r *OrderReferenceRequest) Validate() error {
	return validateStruct(r)
}

func NewListPaymentCallbacksRequestFromContext(ctx echo.Context) (*ListPaymentCallbacksRequest, error) {
	limit, _, err := parsePaging(ctx)
	if err != nil {
		return nil, err
	}
	return &ListPaymentCallbacksRequest{
		Reference: strings.TrimSpace(ctx.QueryParam("reference")),
		Limit:     limit,
	}, nil
}

func (r *ListPaymentCallbacksRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	return validatePaging(r.GetLimit(), 0)
}

// NewGatewayCallbackRequestFromContext keeps only the gateway's own
// parameters; anything else on the query string is not part of the signed
// set.
func NewGatewayCallbackRequestFromContext(ctx echo.Context, channel string) (*GatewayCallbackRequest, error) {
	params := make(map[string]string)
	for key, values := range ctx.QueryParams() {
		if !strings.HasPrefix(key, gatewayParamPrefix) || len(values) == 0 {
			continue
		}
		params[key] = values[0]
	}

	requestID := strings.TrimSpace(ctx.Response().Header().Get(echo.HeaderXRequestID))
	if requestID == "" {
		requestID = strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
	}

	return &GatewayCallbackRequest{
		Channel:   channel,
		RequestId: requestID,
		Params:    params,
	}, nil
}

func (r *GatewayCallbackRequest) Validate() error {
	if strings.TrimSpace(r.GetChannel()) == "" {
		return errors.New("channel is required")
	}
	if len(r.GetParams()) == 0 {
		return errors.New("gateway parameters are required")
	}
	return nil
}

func parsePaging(ctx echo.Context) (int32, int32, error) {
	limit := int32(defaultListLimit)
	offset := int32(0)

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		parsed, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return 0, 0, err
		}
		limit = int32(parsed)
	}
	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		parsed, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return 0, 0, err
		}
		offset = int32(parsed)
	}

	return limit, offset, nil
}

func validatePaging(limit, offset int32) error {
	if limit <= 0 || limit > maxListLimit {
		return errors.New("limit must be between 1 and 500")
	}
	if offset < 0 {
		return errors.New("offset must be >= 0")
	}
	return nil
}
