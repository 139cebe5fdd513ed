package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexyn15/trangsucvn/config"
)

func newTestVNPay(queryURL string) *VNPayProvider {
	p := NewVNPayProvider(VNPayConfig{
		BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		QueryURL:   queryURL,
		TmnCode:    "DEMO1234",
		HashSecret: "mysecret",
		ReturnURL:  "http://localhost:5000/api/orders/vnpay-return",
		PaymentTTL: 15 * time.Minute,
	})
	p.now = func() time.Time {
		return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	}
	p.newRequestID = func() string { return "req-1" }
	return p
}

func flatten(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

func TestBuildPaymentURL(t *testing.T) {
	p := newTestVNPay("")

	raw, err := p.BuildPaymentURL(&PaymentInput{
		Reference:   "ref123",
		TotalAmount: decimal.NewFromInt(150000),
		CallerIP:    "10.0.0.1",
	})
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "sandbox.vnpayment.vn", parsed.Host)

	params := flatten(parsed.Query())
	assert.Equal(t, "15000000", params["vnp_Amount"])
	assert.Equal(t, "2.1.0", params["vnp_Version"])
	assert.Equal(t, "pay", params["vnp_Command"])
	assert.Equal(t, "VND", params["vnp_CurrCode"])
	assert.Equal(t, "vn", params["vnp_Locale"])
	assert.Equal(t, "other", params["vnp_OrderType"])
	assert.Equal(t, "ref123", params["vnp_TxnRef"])
	assert.Equal(t, "10.0.0.1", params["vnp_IpAddr"])
	assert.Equal(t, "Thanh toan don hang ref123", params["vnp_OrderInfo"])
	assert.Equal(t, "20250102100405", params["vnp_CreateDate"])
	assert.Equal(t, "20250102101905", params["vnp_ExpireDate"])

	assert.True(t, strings.HasSuffix(raw, "&vnp_SecureHash="+params[ParamSecureHash]))
	assert.True(t, Verify(params, "mysecret").Valid)
}

func TestBuildPaymentURLRoundsAmount(t *testing.T) {
	p := newTestVNPay("")

	raw, err := p.BuildPaymentURL(&PaymentInput{
		Reference:   "ref",
		TotalAmount: decimal.RequireFromString("1999.5"),
	})
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "200000", parsed.Query().Get("vnp_Amount"))
	assert.Equal(t, "127.0.0.1", parsed.Query().Get("vnp_IpAddr"))
}

func TestBuildPaymentURLRejectsNonPositiveAmount(t *testing.T) {
	p := newTestVNPay("")

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5), decimal.RequireFromString("0.2")} {
		_, err := p.BuildPaymentURL(&PaymentInput{Reference: "ref", TotalAmount: amount})
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %s", amount)
	}
}

func TestBuildPaymentURLRequiresConfig(t *testing.T) {
	p := NewVNPayProvider(VNPayConfig{BaseURL: "https://pay.example"})

	_, err := p.BuildPaymentURL(&PaymentInput{Reference: "ref", TotalAmount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Contains(t, err.Error(), "VNPAY_TMN_CODE")
	assert.Contains(t, err.Error(), "VNPAY_HASH_SECRET")
	assert.Contains(t, err.Error(), "VNPAY_RETURN_URL")
}

func TestVerifyCallbackUsesConfiguredSecret(t *testing.T) {
	p := newTestVNPay("")
	params := map[string]string{"vnp_TxnRef": "ref", "vnp_ResponseCode": "00"}
	params[ParamSecureHash] = SignParams(params, "mysecret")

	assert.True(t, p.VerifyCallback(params).Valid)

	params[ParamSecureHash] = SignParams(params, `"mysecret"`)
	assert.Equal(t, ReasonMismatch, p.VerifyCallback(params).Reason)
}

func TestParseCallback(t *testing.T) {
	data, err := ParseCallback(map[string]string{
		"vnp_TxnRef":            "ref",
		"vnp_ResponseCode":      "00",
		"vnp_TransactionStatus": "00",
		"vnp_TransactionNo":     "14000001",
		"vnp_BankCode":          "NCB",
		"vnp_Amount":            "15000000",
		"vnp_PayDate":           "20250102100405",
	})
	require.NoError(t, err)
	assert.Equal(t, "ref", data.Reference)
	assert.Equal(t, int64(15000000), data.Amount)
	assert.Equal(t, "NCB", data.BankCode)
	require.NotNil(t, data.PayDate)
	assert.True(t, data.PayDate.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestParseCallbackRejectsIncompletePayload(t *testing.T) {
	_, err := ParseCallback(map[string]string{"vnp_ResponseCode": "00"})
	assert.ErrorIs(t, err, ErrInvalidCallbackPayload)

	_, err = ParseCallback(map[string]string{"vnp_TxnRef": "ref"})
	assert.ErrorIs(t, err, ErrInvalidCallbackPayload)

	_, err = ParseCallback(map[string]string{"vnp_TxnRef": "ref", "vnp_ResponseCode": "00", "vnp_Amount": "abc"})
	assert.ErrorIs(t, err, ErrInvalidCallbackPayload)
}

func signedQueryResponse(fields map[string]interface{}) map[string]interface{} {
	values := make([]string, 0, len(queryResponseHashFields))
	for _, key := range queryResponseHashFields {
		switch v := fields[key].(type) {
		case string:
			values = append(values, v)
		case json.Number:
			values = append(values, v.String())
		default:
			values = append(values, "")
		}
	}
	fields[ParamSecureHash] = Sign(strings.Join(values, "|"), "mysecret")
	return fields
}

func TestQueryTransaction(t *testing.T) {
	var received queryRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(signedQueryResponse(map[string]interface{}{
			"vnp_ResponseId":        "resp-1",
			"vnp_Command":           "querydr",
			"vnp_ResponseCode":      "00",
			"vnp_Message":           "QueryDR Success",
			"vnp_TmnCode":           "DEMO1234",
			"vnp_TxnRef":            "ref123",
			"vnp_Amount":            json.Number("15000000"),
			"vnp_BankCode":          "NCB",
			"vnp_PayDate":           "20250102100405",
			"vnp_TransactionNo":     "14000001",
			"vnp_TransactionType":   "01",
			"vnp_TransactionStatus": "00",
			"vnp_OrderInfo":         "Thanh toan don hang ref123",
		}))
	}))
	defer server.Close()

	p := newTestVNPay(server.URL)
	result, err := p.QueryTransaction(context.Background(), &QueryInput{
		Reference:       "ref123",
		TransactionDate: time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "querydr", received.Command)
	assert.Equal(t, "req-1", received.RequestID)
	assert.Equal(t, "20250102100000", received.TransactionDate)
	expectedHash := Sign(strings.Join([]string{
		"req-1", "2.1.0", "querydr", "DEMO1234", "ref123",
		"20250102100000", "20250102100405", "127.0.0.1", "Thanh toan don hang ref123",
	}, "|"), "mysecret")
	assert.Equal(t, expectedHash, received.SecureHash)

	assert.Equal(t, "00", result.TransactionStatus)
	assert.Equal(t, int64(15000000), result.Amount)
	assert.Equal(t, "14000001", result.TransactionNo)
	require.NotNil(t, result.PayDate)
}

func TestQueryTransactionRejectsForgedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := signedQueryResponse(map[string]interface{}{
			"vnp_ResponseCode":      "00",
			"vnp_TxnRef":            "ref123",
			"vnp_TransactionStatus": "02",
		})
		body["vnp_TransactionStatus"] = "00"
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	_, err := newTestVNPay(server.URL).QueryTransaction(context.Background(), &QueryInput{Reference: "ref123"})
	assert.ErrorIs(t, err, ErrQuerySignatureInvalid)
}

func TestQueryTransactionNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(signedQueryResponse(map[string]interface{}{
			"vnp_ResponseCode": "91",
			"vnp_TxnRef":       "ref123",
		}))
	}))
	defer server.Close()

	_, err := newTestVNPay(server.URL).QueryTransaction(context.Background(), &QueryInput{Reference: "ref123"})
	assert.True(t, errors.Is(err, ErrTransactionNotFound))
}

func TestQueryTransactionHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestVNPay(server.URL).QueryTransaction(context.Background(), &QueryInput{Reference: "ref123"})
	assert.ErrorIs(t, err, ErrQueryFailed)
}

func TestAmountFromGateway(t *testing.T) {
	assert.True(t, AmountFromGateway(15000000).Equal(decimal.NewFromInt(150000)))
	assert.Equal(t, int64(15000000), GatewayAmount(decimal.NewFromInt(150000)))
}

func TestProviderFromConfigVerifiesWithQuotedSecret(t *testing.T) {
	t.Setenv("DB_DSN", "orders:orders@tcp(localhost:3306)/orders")
	t.Setenv("JWT_ACCESS_SECRET", "jwt-secret")
	t.Setenv("VNPAY_TMN_CODE", "DEMO1234")
	t.Setenv("VNPAY_HASH_SECRET", "\"mysecret\"")

	cfg, err := config.Load()
	require.NoError(t, err)

	p := NewVNPayProviderFromConfig(cfg.VNPay)
	params := map[string]string{
		"vnp_TxnRef":       "ref1",
		"vnp_ResponseCode": "00",
		"vnp_Amount":       "15000000",
		"vnp_TmnCode":      "DEMO1234",
	}
	params[ParamSecureHash] = SignParams(params, "mysecret")

	result := p.VerifyCallback(params)
	assert.True(t, result.Valid, "reason: %s", result.Reason)

	params[ParamSecureHash] = SignParams(params, "\"mysecret\"")
	assert.False(t, p.VerifyCallback(params).Valid)
}
