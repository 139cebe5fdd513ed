package types

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func validCreateOrderRequest() *CreateOrderRequest {
	return &CreateOrderRequest{
		UserId: 1,
		Items: []*OrderItemInput{
			{ProductId: 1, Quantity: 2},
		},
		ShippingAddress: &ShippingAddress{Name: "Lan", Phone: "0900000000", Address: "1 Le Loi"},
	}
}

func TestNewCreateOrderRequestFromContextTrimsInput(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(`{"items":[{"product_id":3,"quantity":1}],"shipping_address":{"name":"  Lan ","phone":" 0900 ","address":" 1 Le Loi "},"locale":" EN "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRealIP, "203.0.113.7")
	ctx := e.NewContext(req, httptest.NewRecorder())

	parsed, err := NewCreateOrderRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetShippingAddress().GetName() != "Lan" || parsed.GetShippingAddress().GetAddress() != "1 Le Loi" {
		t.Fatalf("expected trimmed shipping address, got %+v", parsed.GetShippingAddress())
	}
	if parsed.GetLocale() != "en" {
		t.Fatalf("expected lower-cased locale, got %q", parsed.GetLocale())
	}
	if parsed.GetCallerIp() != "203.0.113.7" {
		t.Fatalf("expected caller ip from header, got %q", parsed.GetCallerIp())
	}
	if len(parsed.GetItems()) != 1 || parsed.GetItems()[0].GetProductId() != 3 {
		t.Fatalf("unexpected items: %+v", parsed.GetItems())
	}
}

func TestCreateOrderValidate(t *testing.T) {
	if err := validCreateOrderRequest().Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	req := validCreateOrderRequest()
	req.Items = nil
	if err := req.Validate(); err == nil || !strings.Contains(err.Error(), "items") {
		t.Fatalf("expected items error, got %v", err)
	}

	req = validCreateOrderRequest()
	req.Items[0].Quantity = 0
	if err := req.Validate(); err == nil || !strings.Contains(err.Error(), "items[0].quantity") {
		t.Fatalf("expected quantity error, got %v", err)
	}

	req = validCreateOrderRequest()
	req.ShippingAddress = nil
	if err := req.Validate(); err == nil || !strings.Contains(err.Error(), "shipping_address") {
		t.Fatalf("expected shipping address error, got %v", err)
	}

	req = validCreateOrderRequest()
	req.ShippingAddress.Phone = ""
	if err := req.Validate(); err == nil || !strings.Contains(err.Error(), "phone") {
		t.Fatalf("expected phone error, got %v", err)
	}

	req = validCreateOrderRequest()
	req.Items = append(req.Items, &OrderItemInput{ProductId: 1, Quantity: 1})
	if err := req.Validate(); err == nil {
		t.Fatal("expected duplicate product error")
	}

	req = validCreateOrderRequest()
	req.Locale = "fr"
	if err := req.Validate(); err == nil {
		t.Fatal("expected locale error")
	}
}

func TestNewListOrdersRequestFromContextAndValidate(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders?payment_status=PAID&limit=20&offset=5", nil)
	ctx := e.NewContext(req, httptest.NewRecorder())

	parsed, err := NewListOrdersRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetPaymentStatus() != "paid" || parsed.GetLimit() != 20 || parsed.GetOffset() != 5 {
		t.Fatalf("unexpected parsed request: %+v", parsed)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	parsed.FulfillmentStatus = "lost"
	if err := parsed.Validate(); err == nil {
		t.Fatal("expected invalid fulfillment status error")
	}

	parsed.FulfillmentStatus = ""
	parsed.Limit = 501
	if err := parsed.Validate(); err == nil {
		t.Fatal("expected limit error")
	}
}

func TestNewListOrdersRequestFromContextRejectsBadLimit(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders?limit=abc", nil)
	ctx := e.NewContext(req, httptest.NewRecorder())

	if _, err := NewListOrdersRequestFromContext(ctx); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestUpdateFulfillmentStatusValidate(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/admin/orders/9", bytes.NewBufferString(`{"fulfillment_status":"Shipped"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("id")
	ctx.SetParamValues("9")

	parsed, err := NewUpdateFulfillmentStatusRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetId() != 9 || parsed.GetFulfillmentStatus() != "shipped" {
		t.Fatalf("unexpected parsed request: %+v", parsed)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	parsed.FulfillmentStatus = "teleported"
	if err := parsed.Validate(); err == nil {
		t.Fatal("expected invalid status error")
	}
}

func TestNewGatewayCallbackRequestKeepsGatewayParams(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/vnpay-return?vnp_TxnRef=abc&vnp_OrderInfo=Thanh+toan&utm_source=mail", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	rec.Header().Set(echo.HeaderXRequestID, "req-1")

	parsed, err := NewGatewayCallbackRequestFromContext(ctx, "return")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := parsed.GetParams()["utm_source"]; ok {
		t.Fatal("expected non-gateway params to be dropped")
	}
	if parsed.GetParams()["vnp_OrderInfo"] != "Thanh toan" {
		t.Fatalf("expected decoded order info, got %q", parsed.GetParams()["vnp_OrderInfo"])
	}
	if parsed.GetRequestId() != "req-1" {
		t.Fatalf("expected request id from response header, got %q", parsed.GetRequestId())
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	empty := &GatewayCallbackRequest{Channel: "return"}
	if err := empty.Validate(); err == nil {
		t.Fatal("expected error without params")
	}
}

func TestMarkPaidValidate(t *testing.T) {
	if err := (&OrderReferenceRequest{}).Validate(); err == nil {
		t.Fatal("expected reference error")
	}
	if err := (&OrderReferenceRequest{Reference: "abc"}).Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}
