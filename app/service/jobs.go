package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Alexyn15/trangsucvn/app/entity"
	"github.com/Alexyn15/trangsucvn/app/provider"
	"github.com/Alexyn15/trangsucvn/app/reconcile"
	"github.com/Alexyn15/trangsucvn/app/repository"
)

// queryTransactionPending is the gateway's status for a payment the customer
// has not finished yet.
const queryTransactionPending = "01"

// RunReconcileBatch asks the gateway for the state of pending orders whose
// callback never arrived and feeds the answer through the payment state
// machine. Every listed order is stamped as checked so the next batch moves
// on to other orders. Errors for single orders do not stop the batch; the
// first one is returned.
func (s *OrderService) RunReconcileBatch(ctx context.Context) error {
	now := s.now()
	before := now.Add(-s.ordersCfg.ReconcileStaleAfter)
	items, err := s.orderRepo.ListForReconcile(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, order := range items {
		if order == nil || order.PaymentRequestedAt == nil {
			continue
		}
		if err := s.reconcileOrder(ctx, order); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
		if err := s.orderRepo.MarkReconcileChecked(ctx, order.ID, s.now()); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to stamp reconcile check")
		}
	}

	return firstErr
}

func (s *OrderService) reconcileOrder(ctx context.Context, order *entity.Order) error {
	logger := s.logger.WithFields(logrus.Fields{
		"order_id":  order.ID,
		"reference": order.PaymentReference,
	})

	result, err := s.gateway.QueryTransaction(ctx, &provider.QueryInput{
		Reference:       order.PaymentReference,
		OrderInfo:       provider.DefaultOrderInfo(order.PaymentReference),
		TransactionDate: *order.PaymentRequestedAt,
	})
	if err != nil {
		if errors.Is(err, provider.ErrTransactionNotFound) {
			if s.paymentExpired(order) {
				return s.expireOrder(ctx, order, logger)
			}
			logger.Debug("Gateway has no transaction for pending order")
			return nil
		}
		logger.WithError(err).Warn("Gateway transaction query failed")
		return err
	}

	if result.TransactionStatus == queryTransactionPending {
		return nil
	}
	if expected := provider.GatewayAmount(order.TotalAmount); result.Amount != expected {
		logger.WithFields(logrus.Fields{
			"expected_amount": expected,
			"received_amount": result.Amount,
		}).Warn("Gateway query amount does not match order")
		return fmt.Errorf("%w: reference %s", ErrInvalidAmount, order.PaymentReference)
	}

	code := result.TransactionStatus
	if code == "" {
		code = result.ResponseCode
	}

	now := s.now()
	transition := reconcile.Plan(reconcile.Event{ResponseCode: code, Source: entity.OrderEventSourceQuery})
	applied, err := s.orderRepo.ApplyTransition(ctx, order.PaymentReference, transition, repository.GatewayMetadata{
		ResponseCode:  code,
		TransactionID: optionalString(result.TransactionNo),
		BankCode:      optionalString(result.BankCode),
		PayDate:       result.PayDate,
	}, now)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	s.recordTransition(ctx, order, transition, map[string]string{
		"transaction_status": result.TransactionStatus,
		"transaction_no":     result.TransactionNo,
	}, now)

	logger.WithFields(logrus.Fields{
		"transaction_status": result.TransactionStatus,
		"payment_status":     transition.To,
	}).Info("Order reconciled from gateway query")

	return nil
}

// paymentExpired reports whether the payment page of an order can no longer
// be completed.
func (s *OrderService) paymentExpired(order *entity.Order) bool {
	if s.ordersCfg.PaymentTTL <= 0 || order.PaymentRequestedAt == nil {
		return false
	}
	return !s.now().Before(order.PaymentRequestedAt.Add(s.ordersCfg.PaymentTTL))
}

// expireOrder fails an abandoned checkout through the regular state machine.
// A later "00" callback can still move it to paid.
func (s *OrderService) expireOrder(ctx context.Context, order *entity.Order, logger logrus.FieldLogger) error {
	now := s.now()
	transition := reconcile.Plan(reconcile.Event{ResponseCode: provider.QueryCodeNotFound, Source: entity.OrderEventSourceQuery})
	applied, err := s.orderRepo.ApplyTransition(ctx, order.PaymentReference, transition, repository.GatewayMetadata{
		ResponseCode: provider.QueryCodeNotFound,
	}, now)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	s.recordTransition(ctx, order, transition, map[string]string{
		"reason":        "payment_expired",
		"response_code": provider.QueryCodeNotFound,
	}, now)

	logger.WithField("payment_status", transition.To).Info("Abandoned checkout expired")
	return nil
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
