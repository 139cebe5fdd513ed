package repository

import (
	"context"
	"database/sql"

	"github.com/Alexyn15/trangsucvn/app/entity"
)

type OrderEventRepository struct {
	db DBTX
}

func NewOrderEventRepository(db DBTX) *OrderEventRepository {
	return &OrderEventRepository{db: db}
}

func (r *OrderEventRepository) Create(ctx context.Context, event *entity.OrderEvent) error {
	query := `
		INSERT INTO order_events (
			order_id, event_type, source,
			old_payment_status, new_payment_status,
			old_fulfillment_status, new_fulfillment_status,
			payload_json, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var oldPayment, oldFulfillment interface{}
	if event.OldPaymentStatus != nil {
		oldPayment = string(*event.OldPaymentStatus)
	}
	if event.OldFulfillmentStatus != nil {
		oldFulfillment = string(*event.OldFulfillmentStatus)
	}

	result, err := r.db.ExecContext(ctx, query,
		event.OrderID,
		event.EventType,
		event.Source,
		oldPayment,
		string(event.NewPaymentStatus),
		oldFulfillment,
		string(event.NewFulfillmentStatus),
		nullableStringValue(event.PayloadJSON),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}

func (r *OrderEventRepository) ListByOrder(ctx context.Context, orderID uint64) ([]*entity.OrderEvent, error) {
	query := `
		SELECT id, order_id, event_type, source,
			old_payment_status, new_payment_status,
			old_fulfillment_status, new_fulfillment_status,
			payload_json, created_at
		FROM order_events
		WHERE order_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*entity.OrderEvent, 0)
	for rows.Next() {
		event := &entity.OrderEvent{}
		var oldPayment, oldFulfillment, payload sql.NullString
		var newPayment, newFulfillment string
		if err := rows.Scan(
			&event.ID,
			&event.OrderID,
			&event.EventType,
			&event.Source,
			&oldPayment,
			&newPayment,
			&oldFulfillment,
			&newFulfillment,
			&payload,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		if oldPayment.Valid {
			status := entity.PaymentStatus(oldPayment.String)
			event.OldPaymentStatus = &status
		}
		if oldFulfillment.Valid {
			status := entity.FulfillmentStatus(oldFulfillment.String)
			event.OldFulfillmentStatus = &status
		}
		event.NewPaymentStatus = entity.PaymentStatus(newPayment)
		event.NewFulfillmentStatus = entity.FulfillmentStatus(newFulfillment)
		event.PayloadJSON = stringPtrFromNull(payload)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
