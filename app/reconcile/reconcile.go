// Package reconcile holds the payment state machine shared by gateway
// callbacks, the gateway query job and manual reconciliation.
//
// The rule is deliberately narrow: "00" moves an order to paid and advances
// fulfillment out of its initial state; any other code marks a pending order
// failed. Paid is terminal for every automatic path.
package reconcile

import (
	"time"

	"github.com/Alexyn15/trangsucvn/app/entity"
)

const SuccessCode = "00"

const (
	EventTypePaymentPaid   = "payment_paid"
	EventTypePaymentFailed = "payment_failed"
)

type Event struct {
	ResponseCode string
	Source       string
}

type Transition struct {
	From               []entity.PaymentStatus
	To                 entity.PaymentStatus
	AdvanceFulfillment bool
	Source             string
	ResponseCode       string
}

func Plan(event Event) Transition {
	if event.ResponseCode == SuccessCode {
		return Transition{
			From:               []entity.PaymentStatus{entity.PaymentStatusPending, entity.PaymentStatusFailed},
			To:                 entity.PaymentStatusPaid,
			AdvanceFulfillment: true,
			Source:             event.Source,
			ResponseCode:       event.ResponseCode,
		}
	}

	return Transition{
		From:         []entity.PaymentStatus{entity.PaymentStatusPending},
		To:           entity.PaymentStatusFailed,
		Source:       event.Source,
		ResponseCode: event.ResponseCode,
	}
}

func (t Transition) EventType() string {
	if t.To == entity.PaymentStatusPaid {
		return EventTypePaymentPaid
	}
	return EventTypePaymentFailed
}

func (t Transition) Applies(status entity.PaymentStatus) bool {
	for _, from := range t.From {
		if from == status {
			return true
		}
	}
	return false
}

// NextFulfillment returns the fulfillment status the order ends up in when
// the transition applies.
func (t Transition) NextFulfillment(current entity.FulfillmentStatus) entity.FulfillmentStatus {
	if t.AdvanceFulfillment && current == entity.FulfillmentStatusCreated {
		return entity.FulfillmentStatusProcessing
	}
	return current
}

// Apply mutates order in place and reports whether anything changed. The SQL
// repositories express the same rule as a conditional UPDATE.
func (t Transition) Apply(order *entity.Order, now time.Time) bool {
	if order == nil || !t.Applies(order.PaymentStatus) {
		return false
	}

	order.PaymentStatus = t.To
	order.FulfillmentStatus = t.NextFulfillment(order.FulfillmentStatus)
	if t.To == entity.PaymentStatusPaid {
		paidAt := now
		order.PaidAt = &paidAt
	}
	order.UpdatedAt = now
	return true
}
