package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	vnpCommandQuery = "querydr"

	queryCodeSuccess = "00"

	// QueryCodeNotFound is the gateway's answer when it never saw the
	// transaction, e.g. the customer abandoned the payment page.
	QueryCodeNotFound = "91"
)

var queryResponseHashFields = []string{
	"vnp_ResponseId",
	"vnp_Command",
	"vnp_ResponseCode",
	"vnp_Message",
	"vnp_TmnCode",
	"vnp_TxnRef",
	"vnp_Amount",
	"vnp_BankCode",
	"vnp_PayDate",
	"vnp_TransactionNo",
	"vnp_TransactionType",
	"vnp_TransactionStatus",
	"vnp_OrderInfo",
	"vnp_PromotionCode",
	"vnp_PromotionAmount",
}

type queryRequest struct {
	RequestID       string `json:"vnp_RequestId"`
	Version         string `json:"vnp_Version"`
	Command         string `json:"vnp_Command"`
	TmnCode         string `json:"vnp_TmnCode"`
	TxnRef          string `json:"vnp_TxnRef"`
	OrderInfo       string `json:"vnp_OrderInfo"`
	TransactionDate string `json:"vnp_TransactionDate"`
	CreateDate      string `json:"vnp_CreateDate"`
	IPAddr          string `json:"vnp_IpAddr"`
	SecureHash      string `json:"vnp_SecureHash"`
}

// QueryTransaction asks the gateway for the authoritative state of a
// transaction. The response digest is verified before any field is trusted.
func (p *VNPayProvider) QueryTransaction(ctx context.Context, input *QueryInput) (*QueryResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.cfg.QueryURL) == "" {
		return nil, fmt.Errorf("%w: missing VNPAY_QUERY_URL", ErrNotConfigured)
	}
	if input == nil || strings.TrimSpace(input.Reference) == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrQueryFailed)
	}

	ip := strings.TrimSpace(input.CallerIP)
	if ip == "" {
		ip = defaultIP
	}
	orderInfo := strings.TrimSpace(input.OrderInfo)
	if orderInfo == "" {
		orderInfo = DefaultOrderInfo(input.Reference)
	}

	req := queryRequest{
		RequestID:       p.newRequestID(),
		Version:         vnpVersion,
		Command:         vnpCommandQuery,
		TmnCode:         p.cfg.TmnCode,
		TxnRef:          input.Reference,
		OrderInfo:       orderInfo,
		TransactionDate: FormatGatewayTime(input.TransactionDate),
		CreateDate:      FormatGatewayTime(p.now()),
		IPAddr:          ip,
	}
	req.SecureHash = Sign(strings.Join([]string{
		req.RequestID,
		req.Version,
		req.Command,
		req.TmnCode,
		req.TxnRef,
		req.TransactionDate,
		req.CreateDate,
		req.IPAddr,
		req.OrderInfo,
	}, "|"), p.cfg.HashSecret)

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(p.cfg.QueryURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: http status %d", ErrQueryFailed, resp.StatusCode())
	}

	fields, err := decodeQueryResponse(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	if !p.verifyQueryResponse(fields) {
		return nil, ErrQuerySignatureInvalid
	}

	switch fields["vnp_ResponseCode"] {
	case queryCodeSuccess:
	case QueryCodeNotFound:
		return nil, ErrTransactionNotFound
	default:
		return nil, fmt.Errorf("%w: response code %s", ErrQueryFailed, fields["vnp_ResponseCode"])
	}

	result := &QueryResult{
		ResponseCode:      fields["vnp_ResponseCode"],
		TransactionStatus: fields["vnp_TransactionStatus"],
		TransactionNo:     fields["vnp_TransactionNo"],
		BankCode:          fields["vnp_BankCode"],
	}
	if raw := fields["vnp_Amount"]; raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid amount %q", ErrQueryFailed, raw)
		}
		result.Amount = amount
	}
	if raw := fields["vnp_PayDate"]; raw != "" {
		if payDate, err := ParseGatewayTime(raw); err == nil {
			result.PayDate = &payDate
		}
	}

	return result, nil
}

func (p *VNPayProvider) verifyQueryResponse(fields map[string]string) bool {
	received, err := hex.DecodeString(fields[ParamSecureHash])
	if err != nil || len(received) == 0 {
		return false
	}
	values := make([]string, 0, len(queryResponseHashFields))
	for _, key := range queryResponseHashFields {
		values = append(values, fields[key])
	}
	expected, _ := hex.DecodeString(Sign(strings.Join(values, "|"), p.cfg.HashSecret))
	return hmac.Equal(received, expected)
}

// decodeQueryResponse flattens the JSON body into strings. Numbers are kept
// in their literal form so amounts hash exactly as the gateway sent them.
func decodeQueryResponse(body []byte) (map[string]string, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var raw map[string]interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			fields[key] = ""
		case string:
			fields[key] = v
		case json.Number:
			fields[key] = v.String()
		case bool:
			fields[key] = strconv.FormatBool(v)
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			fields[key] = string(encoded)
		}
	}
	return fields, nil
}

// AmountFromGateway converts a gateway minor-unit amount back to VND.
func AmountFromGateway(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(amountMultiplier))
}
