package provider

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrNotConfigured          = errors.New("payment gateway is not configured")
	ErrQueryFailed            = errors.New("gateway query failed")
	ErrQuerySignatureInvalid  = errors.New("gateway query response signature is invalid")
	ErrTransactionNotFound    = errors.New("gateway transaction not found")
	ErrInvalidCallbackPayload = errors.New("invalid callback payload")
)

type PaymentInput struct {
	Reference   string
	TotalAmount decimal.Decimal
	OrderInfo   string
	CallerIP    string
	Locale      string
	CreatedAt   time.Time
}

// CallbackData holds the fields of a gateway redirect or IPN call that the
// order flow cares about. Params is the full parameter set as received.
type CallbackData struct {
	Reference         string
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	BankCode          string
	Amount            int64
	PayDate           *time.Time
	Params            map[string]string
}

type QueryInput struct {
	Reference       string
	OrderInfo       string
	TransactionDate time.Time
	CallerIP        string
}

type QueryResult struct {
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	BankCode          string
	Amount            int64
	PayDate           *time.Time
}

type Gateway interface {
	Code() string
	Validate() error
	BuildPaymentURL(input *PaymentInput) (string, error)
	VerifyCallback(params map[string]string) VerifyResult
	QueryTransaction(ctx context.Context, input *QueryInput) (*QueryResult, error)
}
