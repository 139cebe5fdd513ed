package provider

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alexyn15/trangsucvn/config"
)

const (
	CodeVNPay = "vnpay"

	vnpVersion    = "2.1.0"
	vnpCommandPay = "pay"
	vnpCurrency   = "VND"
	vnpOrderType  = "other"
	defaultLocale = "vn"
	defaultIP     = "127.0.0.1"

	// amountMultiplier converts whole VND into the gateway's minor units.
	amountMultiplier = 100

	gatewayDateLayout = "20060102150405"
)

// gatewayLocation is the fixed GMT+7 zone used for every gateway timestamp,
// independent of the host time zone.
var gatewayLocation = time.FixedZone("GMT+7", 7*3600)

type VNPayConfig struct {
	BaseURL     string
	QueryURL    string
	TmnCode     string
	HashSecret  string
	ReturnURL   string
	Locale      string
	PaymentTTL  time.Duration
	HTTPTimeout time.Duration
}

type VNPayProvider struct {
	cfg          VNPayConfig
	client       *resty.Client
	now          func() time.Time
	newRequestID func() string
}

// NewVNPayProviderFromConfig builds the provider from the loaded
// environment configuration.
func NewVNPayProviderFromConfig(cfg config.VNPayConfig) *VNPayProvider {
	return NewVNPayProvider(VNPayConfig{
		BaseURL:     cfg.BaseURL,
		QueryURL:    cfg.QueryURL,
		TmnCode:     cfg.TmnCode,
		HashSecret:  cfg.HashSecret,
		ReturnURL:   cfg.ReturnURL,
		Locale:      cfg.Locale,
		PaymentTTL:  cfg.PaymentTTL,
		HTTPTimeout: cfg.HTTPTimeout,
	})
}

func NewVNPayProvider(cfg VNPayConfig) *VNPayProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.Locale) == "" {
		cfg.Locale = defaultLocale
	}

	return &VNPayProvider{
		cfg:    cfg,
		client: resty.New().SetTimeout(timeout),
		now:    time.Now,
		newRequestID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

func (p *VNPayProvider) Code() string {
	return CodeVNPay
}

// Validate reports every missing setting at once so a misconfigured
// deployment fails with one readable message.
func (p *VNPayProvider) Validate() error {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(p.cfg.BaseURL) == "" {
		missing = append(missing, "VNPAY_URL")
	}
	if p.cfg.TmnCode == "" {
		missing = append(missing, "VNPAY_TMN_CODE")
	}
	if p.cfg.HashSecret == "" {
		missing = append(missing, "VNPAY_HASH_SECRET")
	}
	if strings.TrimSpace(p.cfg.ReturnURL) == "" {
		missing = append(missing, "VNPAY_RETURN_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

func (p *VNPayProvider) BuildPaymentURL(input *PaymentInput) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if input == nil || strings.TrimSpace(input.Reference) == "" {
		return "", errors.New("payment reference is required")
	}
	if !input.TotalAmount.IsPositive() {
		return "", ErrInvalidAmount
	}
	amount := GatewayAmount(input.TotalAmount)
	if amount <= 0 {
		return "", ErrInvalidAmount
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = p.now()
	}
	createdAt = createdAt.In(gatewayLocation)

	locale := strings.TrimSpace(input.Locale)
	if locale == "" {
		locale = p.cfg.Locale
	}
	ip := strings.TrimSpace(input.CallerIP)
	if ip == "" {
		ip = defaultIP
	}
	orderInfo := strings.TrimSpace(input.OrderInfo)
	if orderInfo == "" {
		orderInfo = DefaultOrderInfo(input.Reference)
	}

	params := map[string]string{
		"vnp_Version":    vnpVersion,
		"vnp_Command":    vnpCommandPay,
		"vnp_TmnCode":    p.cfg.TmnCode,
		"vnp_Amount":     strconv.FormatInt(amount, 10),
		"vnp_CurrCode":   vnpCurrency,
		"vnp_TxnRef":     input.Reference,
		"vnp_OrderInfo":  orderInfo,
		"vnp_OrderType":  vnpOrderType,
		"vnp_Locale":     locale,
		"vnp_ReturnUrl":  p.cfg.ReturnURL,
		"vnp_IpAddr":     ip,
		"vnp_CreateDate": FormatGatewayTime(createdAt),
	}
	if p.cfg.PaymentTTL > 0 {
		params["vnp_ExpireDate"] = FormatGatewayTime(createdAt.Add(p.cfg.PaymentTTL))
	}

	hash := SignParams(params, p.cfg.HashSecret)
	return p.cfg.BaseURL + "?" + encodeQuery(params) + "&" + ParamSecureHash + "=" + hash, nil
}

func (p *VNPayProvider) VerifyCallback(params map[string]string) VerifyResult {
	return Verify(params, p.cfg.HashSecret)
}

// ParseCallback extracts the order-relevant fields of a redirect or IPN
// parameter set. It does not check the signature.
func ParseCallback(params map[string]string) (*CallbackData, error) {
	reference := strings.TrimSpace(params["vnp_TxnRef"])
	if reference == "" {
		return nil, fmt.Errorf("%w: vnp_TxnRef is required", ErrInvalidCallbackPayload)
	}
	responseCode := strings.TrimSpace(params["vnp_ResponseCode"])
	if responseCode == "" {
		return nil, fmt.Errorf("%w: vnp_ResponseCode is required", ErrInvalidCallbackPayload)
	}

	data := &CallbackData{
		Reference:         reference,
		ResponseCode:      responseCode,
		TransactionStatus: strings.TrimSpace(params["vnp_TransactionStatus"]),
		TransactionNo:     strings.TrimSpace(params["vnp_TransactionNo"]),
		BankCode:          strings.TrimSpace(params["vnp_BankCode"]),
		Params:            params,
	}

	if raw := strings.TrimSpace(params["vnp_Amount"]); raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: vnp_Amount is not an integer", ErrInvalidCallbackPayload)
		}
		data.Amount = amount
	}
	if raw := strings.TrimSpace(params["vnp_PayDate"]); raw != "" {
		if payDate, err := ParseGatewayTime(raw); err == nil {
			data.PayDate = &payDate
		}
	}

	return data, nil
}

// GatewayAmount is the integer amount sent to the gateway: the order total
// rounded to whole VND, times 100.
func GatewayAmount(total decimal.Decimal) int64 {
	return total.Round(0).IntPart() * amountMultiplier
}

func DefaultOrderInfo(reference string) string {
	return "Thanh toan don hang " + reference
}

func FormatGatewayTime(t time.Time) string {
	return t.In(gatewayLocation).Format(gatewayDateLayout)
}

func ParseGatewayTime(value string) (time.Time, error) {
	return time.ParseInLocation(gatewayDateLayout, value, gatewayLocation)
}

// encodeQuery renders params with the same value encoding the signature was
// computed over, so the gateway recomputes an identical digest.
func encodeQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+EncodeValue(params[k]))
	}
	return strings.Join(pairs, "&")
}
