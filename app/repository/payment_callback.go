package repository

import (
	"context"
	"database/sql"

	"github.com/Alexyn15/trangsucvn/app/entity"
)

type PaymentCallbackRepository struct {
	db DBTX
}

func NewPaymentCallbackRepository(db DBTX) *PaymentCallbackRepository {
	return &PaymentCallbackRepository{db: db}
}

func (r *PaymentCallbackRepository) Create(ctx context.Context, callback *entity.PaymentCallback) error {
	query := `
		INSERT INTO payment_callbacks (
			order_id, channel, payment_reference, response_code, transaction_no,
			received_hash, status, error, diagnostics_json, payload_json, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableUint64Value(callback.OrderID),
		callback.Channel,
		callback.PaymentReference,
		callback.ResponseCode,
		callback.TransactionNo,
		callback.ReceivedHash,
		callback.Status,
		nullableStringValue(callback.Error),
		nullableStringValue(callback.DiagnosticsJSON),
		callback.PayloadJSON,
		callback.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	callback.ID = uint64(id)

	return nil
}

func (r *PaymentCallbackRepository) ListByReference(ctx context.Context, reference string, limit int32) ([]*entity.PaymentCallback, error) {
	query := `
		SELECT id, order_id, channel, payment_reference, response_code, transaction_no,
			received_hash, status, error, diagnostics_json, payload_json, created_at
		FROM payment_callbacks
		WHERE payment_reference = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, reference, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	callbacks := make([]*entity.PaymentCallback, 0)
	for rows.Next() {
		callback := &entity.PaymentCallback{}
		var orderID sql.NullInt64
		var callbackErr, diagnostics sql.NullString
		if err := rows.Scan(
			&callback.ID,
			&orderID,
			&callback.Channel,
			&callback.PaymentReference,
			&callback.ResponseCode,
			&callback.TransactionNo,
			&callback.ReceivedHash,
			&callback.Status,
			&callbackErr,
			&diagnostics,
			&callback.PayloadJSON,
			&callback.CreatedAt,
		); err != nil {
			return nil, err
		}
		callback.OrderID = uint64PtrFromNull(orderID)
		callback.Error = stringPtrFromNull(callbackErr)
		callback.DiagnosticsJSON = stringPtrFromNull(diagnostics)
		callbacks = append(callbacks, callback)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return callbacks, nil
}
