package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Alexyn15/trangsucvn/app/entity"
	"github.com/Alexyn15/trangsucvn/app/factory"
	"github.com/Alexyn15/trangsucvn/app/provider"
	"github.com/Alexyn15/trangsucvn/app/reconcile"
	"github.com/Alexyn15/trangsucvn/app/repository"
)

type CallbackOutcome string

const (
	OutcomeApplied          CallbackOutcome = "applied"
	OutcomeAlreadyFinal     CallbackOutcome = "already_final"
	OutcomeSignatureInvalid CallbackOutcome = "signature_invalid"
	OutcomeInvalidPayload   CallbackOutcome = "invalid_payload"
	OutcomeOrderNotFound    CallbackOutcome = "order_not_found"
	OutcomeAmountMismatch   CallbackOutcome = "amount_mismatch"
	OutcomeServerError      CallbackOutcome = "server_error"
)

// Result page status values for outcomes that carry no gateway code. They are
// non-numeric so they never collide with the gateway's two-digit codes.
const (
	RedirectStatusSignatureInvalid = "sig_invalid"
	RedirectStatusInvalidRequest   = "invalid_request"
	RedirectStatusOrderNotFound    = "order_not_found"
	RedirectStatusAmountMismatch   = "amount_mismatch"
	RedirectStatusServerError      = "server_error"
)

// Column widths of payment_callbacks; untrusted values are cut to fit so the
// audit row is never rejected by the database.
const (
	callbackReferenceMax    = 64
	callbackResponseCodeMax = 8
	callbackTransactionMax  = 64
	callbackHashMax         = 256
	callbackErrorMax        = 1024
)

// IPN acknowledgement codes understood by the gateway.
const (
	IPNCodeConfirmed        = "00"
	IPNCodeOrderNotFound    = "01"
	IPNCodeAlreadyConfirmed = "02"
	IPNCodeInvalidAmount    = "04"
	IPNCodeInvalidChecksum  = "97"
	IPNCodeUnknownError     = "99"
)

type gatewayCallbackRequest interface {
	GetChannel() string
	GetRequestId() string
	GetParams() map[string]string
}

type CallbackResult struct {
	Outcome      CallbackOutcome
	Reference    string
	ResponseCode string
	Order        *entity.Order
	Verification provider.VerifyResult
}

// RedirectStatus is the status query value handed to the storefront result
// page after a browser return.
func (r *CallbackResult) RedirectStatus() string {
	switch r.Outcome {
	case OutcomeApplied, OutcomeAlreadyFinal:
		return r.ResponseCode
	case OutcomeSignatureInvalid:
		return RedirectStatusSignatureInvalid
	case OutcomeInvalidPayload:
		return RedirectStatusInvalidRequest
	case OutcomeOrderNotFound:
		return RedirectStatusOrderNotFound
	case OutcomeAmountMismatch:
		return RedirectStatusAmountMismatch
	default:
		return RedirectStatusServerError
	}
}

// IPNAck returns the RspCode and Message answered to a server-to-server
// notification.
func (r *CallbackResult) IPNAck() (string, string) {
	switch r.Outcome {
	case OutcomeApplied:
		return IPNCodeConfirmed, "Confirm Success"
	case OutcomeAlreadyFinal:
		return IPNCodeAlreadyConfirmed, "Order already confirmed"
	case OutcomeSignatureInvalid:
		return IPNCodeInvalidChecksum, "Invalid Checksum"
	case OutcomeOrderNotFound:
		return IPNCodeOrderNotFound, "Order not found"
	case OutcomeAmountMismatch:
		return IPNCodeInvalidAmount, "Invalid amount"
	default:
		return IPNCodeUnknownError, "Unknown error"
	}
}

// HandleGatewayCallback runs one inbound gateway callback through
// verify, look up, transition and record. Only persistence failures are
// returned as errors; every other outcome is reported in the result.
func (s *OrderService) HandleGatewayCallback(ctx context.Context, req gatewayCallbackRequest) (*CallbackResult, error) {
	params := req.GetParams()
	if params == nil {
		params = map[string]string{}
	}
	channel := strings.TrimSpace(req.GetChannel())
	if channel == "" {
		channel = entity.CallbackChannelReturn
	}
	if requestID := strings.TrimSpace(req.GetRequestId()); requestID != "" {
		ctx = factory.ContextWithRequestID(ctx, requestID)
	}

	logger := factory.LoggerFromContext(ctx, s.logger).WithFields(logrus.Fields{
		"channel":   channel,
		"reference": strings.TrimSpace(params["vnp_TxnRef"]),
	})

	persistCtx, cancel := s.persistContext(ctx)
	defer cancel()

	now := s.now()
	verification := s.gateway.VerifyCallback(params)
	result := &CallbackResult{
		Reference:    strings.TrimSpace(params["vnp_TxnRef"]),
		ResponseCode: strings.TrimSpace(params["vnp_ResponseCode"]),
		Verification: verification,
	}

	if !verification.Valid {
		result.Outcome = OutcomeSignatureInvalid
		logger.WithField("reason", verification.Reason).Warn("Gateway callback signature rejected")
		if s.debugSigning {
			logger.WithFields(logrus.Fields{
				"canonical": verification.Canonical,
				"expected":  verification.Expected,
				"received":  verification.Received,
			}).Debug("Gateway callback signing diagnostics")
		}
		s.recordCallback(persistCtx, channel, nil, params, entity.PaymentCallbackStatusRejected, "signature "+verification.Reason, &verification, now)
		return result, nil
	}

	data, err := provider.ParseCallback(params)
	if err != nil {
		result.Outcome = OutcomeInvalidPayload
		logger.WithError(err).Warn("Gateway callback payload rejected")
		s.recordCallback(persistCtx, channel, nil, params, entity.PaymentCallbackStatusRejected, err.Error(), nil, now)
		return result, nil
	}

	order, err := s.orderRepo.FindByReference(persistCtx, data.Reference)
	if err != nil {
		result.Outcome = OutcomeServerError
		logger.WithError(err).WithField("response_code", data.ResponseCode).Error("Failed to load order for gateway callback")
		return result, err
	}
	if order == nil {
		result.Outcome = OutcomeOrderNotFound
		logger.Warn("Gateway callback for unknown order")
		s.recordCallback(persistCtx, channel, nil, params, entity.PaymentCallbackStatusRejected, "order not found", nil, now)
		return result, nil
	}
	result.Order = order
	orderID := order.ID

	if expected := provider.GatewayAmount(order.TotalAmount); data.Amount != expected {
		result.Outcome = OutcomeAmountMismatch
		logger.WithFields(logrus.Fields{
			"expected_amount": expected,
			"received_amount": data.Amount,
		}).Warn("Gateway callback amount does not match order")
		reason := fmt.Sprintf("amount mismatch: expected %s VND, received %s VND",
			provider.AmountFromGateway(expected).String(), provider.AmountFromGateway(data.Amount).String())
		s.recordCallback(persistCtx, channel, &orderID, params, entity.PaymentCallbackStatusRejected, reason, nil, now)
		return result, nil
	}

	transition := reconcile.Plan(reconcile.Event{ResponseCode: data.ResponseCode, Source: entity.OrderEventSourceGateway})
	applied, err := s.orderRepo.ApplyTransition(persistCtx, order.PaymentReference, transition, gatewayMetadata(data), now)
	if err != nil {
		result.Outcome = OutcomeServerError
		logger.WithError(err).WithField("response_code", data.ResponseCode).Error("Failed to apply gateway callback")
		return result, err
	}

	if !applied {
		result.Outcome = OutcomeAlreadyFinal
		logger.WithFields(logrus.Fields{
			"response_code":  data.ResponseCode,
			"payment_status": order.PaymentStatus,
		}).Info("Gateway callback ignored for settled order")
		s.recordCallback(persistCtx, channel, &orderID, params, entity.PaymentCallbackStatusIgnored, "", nil, now)
		return result, nil
	}

	s.recordTransition(persistCtx, order, transition, params, now)
	transition.Apply(order, now)
	applyGatewayMetadata(order, data)
	s.recordCallback(persistCtx, channel, &orderID, params, entity.PaymentCallbackStatusProcessed, "", nil, now)

	result.Outcome = OutcomeApplied
	logger.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"response_code":  data.ResponseCode,
		"payment_status": order.PaymentStatus,
	}).Info("Gateway callback applied")

	return result, nil
}

func (s *OrderService) recordCallback(
	ctx context.Context,
	channel string,
	orderID *uint64,
	params map[string]string,
	status int32,
	reason string,
	verification *provider.VerifyResult,
	now time.Time,
) {
	payload, _ := json.Marshal(params)

	callback := &entity.PaymentCallback{
		OrderID:          orderID,
		Channel:          channel,
		PaymentReference: truncate(strings.TrimSpace(params["vnp_TxnRef"]), callbackReferenceMax),
		ResponseCode:     truncate(strings.TrimSpace(params["vnp_ResponseCode"]), callbackResponseCodeMax),
		TransactionNo:    truncate(strings.TrimSpace(params["vnp_TransactionNo"]), callbackTransactionMax),
		ReceivedHash:     truncate(strings.TrimSpace(params[provider.ParamSecureHash]), callbackHashMax),
		Status:           status,
		PayloadJSON:      string(payload),
		CreatedAt:        now,
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		trimmed := truncate(reason, callbackErrorMax)
		callback.Error = &trimmed
	}
	if verification != nil && s.debugSigning {
		raw, err := json.Marshal(map[string]string{
			"reason":    verification.Reason,
			"canonical": verification.Canonical,
			"expected":  verification.Expected,
		})
		if err == nil {
			encoded := string(raw)
			callback.DiagnosticsJSON = &encoded
		}
	}

	if err := s.callbackRepo.Create(ctx, callback); err != nil {
		factory.LoggerFromContext(ctx, s.logger).WithError(err).WithField("reference", callback.PaymentReference).
			Warn("Failed to record payment callback")
	}
}

func (s *OrderService) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.ordersCfg.PersistTimeout > 0 {
		return context.WithTimeout(ctx, s.ordersCfg.PersistTimeout)
	}
	return context.WithCancel(ctx)
}

func gatewayMetadata(data *provider.CallbackData) repository.GatewayMetadata {
	return repository.GatewayMetadata{
		ResponseCode:  data.ResponseCode,
		TransactionID: optionalString(data.TransactionNo),
		BankCode:      optionalString(data.BankCode),
		PayDate:       data.PayDate,
	}
}

func applyGatewayMetadata(order *entity.Order, data *provider.CallbackData) {
	meta := gatewayMetadata(data)
	code := meta.ResponseCode
	order.GatewayResponseCode = &code
	if meta.TransactionID != nil {
		order.GatewayTransactionID = meta.TransactionID
	}
	if meta.BankCode != nil {
		order.GatewayBankCode = meta.BankCode
	}
	if meta.PayDate != nil {
		order.GatewayPayDate = meta.PayDate
	}
}
