package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Alexyn15/trangsucvn/app/entity"
	"github.com/Alexyn15/trangsucvn/app/reconcile"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
)

const orderColumns = `
	id, user_id, payment_reference, items_json, total_amount, currency,
	shipping_name, shipping_phone, shipping_address,
	payment_method, payment_status, fulfillment_status,
	gateway_response_code, gateway_transaction_id, gateway_bank_code, gateway_pay_date,
	payment_requested_at, paid_at, last_reconciled_at, created_at, updated_at
`

type OrderFilter struct {
	UserID            uint64
	PaymentStatus     entity.PaymentStatus
	FulfillmentStatus entity.FulfillmentStatus
	Limit             int32
	Offset            int32
}

// GatewayMetadata is written onto an order together with a payment
// transition. Nil fields keep the stored value.
type GatewayMetadata struct {
	ResponseCode  string
	TransactionID *string
	BankCode      *string
	PayDate       *time.Time
}

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	itemsJSON, err := serializeJSON(order.Items)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			user_id, payment_reference, items_json, total_amount, currency,
			shipping_name, shipping_phone, shipping_address,
			payment_method, payment_status, fulfillment_status,
			payment_requested_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		order.UserID,
		order.PaymentReference,
		itemsJSON,
		order.TotalAmount,
		order.Currency,
		order.Shipping.Name,
		order.Shipping.Phone,
		order.Shipping.Address,
		order.PaymentMethod,
		string(order.PaymentStatus),
		string(order.FulfillmentStatus),
		nullableTimeValue(order.PaymentRequestedAt),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = uint64(id)
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint64) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, id), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) FindByReference(ctx context.Context, reference string) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_reference = ? LIMIT 1`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, reference), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) List(ctx context.Context, filter OrderFilter) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`

	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if filter.UserID > 0 {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if strings.TrimSpace(string(filter.PaymentStatus)) != "" {
		conditions = append(conditions, "payment_status = ?")
		args = append(args, string(filter.PaymentStatus))
	}
	if strings.TrimSpace(string(filter.FulfillmentStatus)) != "" {
		conditions = append(conditions, "fulfillment_status = ?")
		args = append(args, string(filter.FulfillmentStatus))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	return r.queryOrders(ctx, query, args...)
}

// ListForReconcile returns pending orders whose payment was requested at or
// before the cutoff. Orders never checked come first, then the ones checked
// longest ago, so orders the gateway keeps reporting as unfinished do not
// starve the rest of the queue.
func (r *OrderRepository) ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE payment_status = ?
		  AND payment_requested_at IS NOT NULL
		  AND payment_requested_at <= ?
		ORDER BY last_reconciled_at IS NOT NULL, last_reconciled_at ASC, payment_requested_at ASC, id ASC
		LIMIT ?
	`

	return r.queryOrders(ctx, query, string(entity.PaymentStatusPending), before, limit)
}

// MarkReconcileChecked stamps the time the reconcile job last asked the
// gateway about an order. It does not touch updated_at.
func (r *OrderRepository) MarkReconcileChecked(ctx context.Context, id uint64, now time.Time) error {
	query := `UPDATE orders SET last_reconciled_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, now, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// ApplyTransition executes a payment transition as a single conditional
// UPDATE keyed by payment reference. It returns false when the order was not
// in one of the transition's source states, which covers replays.
func (r *OrderRepository) ApplyTransition(ctx context.Context, reference string, transition reconcile.Transition, meta GatewayMetadata, now time.Time) (bool, error) {
	if len(transition.From) == 0 {
		return false, nil
	}

	sets := []string{"payment_status = ?"}
	args := []interface{}{string(transition.To)}

	if transition.AdvanceFulfillment {
		sets = append(sets, "fulfillment_status = CASE WHEN fulfillment_status = ? THEN ? ELSE fulfillment_status END")
		args = append(args, string(entity.FulfillmentStatusCreated), string(entity.FulfillmentStatusProcessing))
	}
	if transition.To == entity.PaymentStatusPaid {
		sets = append(sets, "paid_at = ?")
		args = append(args, now)
	}
	if meta.ResponseCode != "" {
		sets = append(sets, "gateway_response_code = ?")
		args = append(args, meta.ResponseCode)
	}
	if meta.TransactionID != nil {
		sets = append(sets, "gateway_transaction_id = ?")
		args = append(args, *meta.TransactionID)
	}
	if meta.BankCode != nil {
		sets = append(sets, "gateway_bank_code = ?")
		args = append(args, *meta.BankCode)
	}
	if meta.PayDate != nil {
		sets = append(sets, "gateway_pay_date = ?")
		args = append(args, *meta.PayDate)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now)

	query := "UPDATE orders SET " + strings.Join(sets, ", ") +
		" WHERE payment_reference = ? AND payment_status IN (" + placeholders(len(transition.From)) + ")"
	args = append(args, reference)
	for _, from := range transition.From {
		args = append(args, string(from))
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *OrderRepository) UpdateFulfillmentStatus(ctx context.Context, id uint64, status entity.FulfillmentStatus, now time.Time) error {
	query := `UPDATE orders SET fulfillment_status = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, string(status), now, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *OrderRepository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*entity.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*entity.Order, 0)
	for rows.Next() {
		order := &entity.Order{}
		if err := scanOrder(rows, order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

func scanOrder(scan rowScanner, order *entity.Order) error {
	var itemsJSON string
	var paymentStatus string
	var fulfillmentStatus string
	var responseCode sql.NullString
	var transactionID sql.NullString
	var bankCode sql.NullString
	var payDate sql.NullTime
	var requestedAt sql.NullTime
	var paidAt sql.NullTime
	var reconciledAt sql.NullTime

	err := scan.Scan(
		&order.ID,
		&order.UserID,
		&order.PaymentReference,
		&itemsJSON,
		&order.TotalAmount,
		&order.Currency,
		&order.Shipping.Name,
		&order.Shipping.Phone,
		&order.Shipping.Address,
		&order.PaymentMethod,
		&paymentStatus,
		&fulfillmentStatus,
		&responseCode,
		&transactionID,
		&bankCode,
		&payDate,
		&requestedAt,
		&paidAt,
		&reconciledAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	order.PaymentStatus = entity.PaymentStatus(paymentStatus)
	order.FulfillmentStatus = entity.FulfillmentStatus(fulfillmentStatus)
	order.GatewayResponseCode = stringPtrFromNull(responseCode)
	order.GatewayTransactionID = stringPtrFromNull(transactionID)
	order.GatewayBankCode = stringPtrFromNull(bankCode)
	order.GatewayPayDate = timePtrFromNull(payDate)
	order.PaymentRequestedAt = timePtrFromNull(requestedAt)
	order.PaidAt = timePtrFromNull(paidAt)
	order.LastReconciledAt = timePtrFromNull(reconciledAt)

	items := make([]entity.OrderItem, 0)
	if itemsJSON != "" {
		if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
			return err
		}
	}
	order.Items = items

	return nil
}
