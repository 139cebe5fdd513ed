package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Alexyn15/trangsucvn/app/entity"
	"github.com/Alexyn15/trangsucvn/app/factory"
	"github.com/Alexyn15/trangsucvn/app/provider"
	"github.com/Alexyn15/trangsucvn/app/reconcile"
	"github.com/Alexyn15/trangsucvn/app/repository"
	"github.com/Alexyn15/trangsucvn/app/types"
	"github.com/Alexyn15/trangsucvn/config"
)

const (
	defaultListLimit  = int32(100)
	defaultBatchSize  = int32(100)
	defaultCurrency   = "VND"
	referenceAttempts = 3
)

const (
	eventTypeOrderCreated       = "order_created"
	eventTypeFulfillmentUpdated = "fulfillment_updated"
)

type createOrderRequest interface {
	GetUserId() uint64
	GetCallerIp() string
	GetItems() []*types.OrderItemInput
	GetShippingAddress() *types.ShippingAddress
	GetLocale() string
}

type listMyOrdersRequest interface {
	GetUserId() uint64
	GetLimit() int32
	GetOffset() int32
}

type listOrdersRequest interface {
	GetPaymentStatus() string
	GetFulfillmentStatus() string
	GetLimit() int32
	GetOffset() int32
}

type updateFulfillmentStatusRequest interface {
	GetId() uint64
	GetFulfillmentStatus() string
}

type orderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id uint64) (*entity.Order, error)
	FindByReference(ctx context.Context, reference string) (*entity.Order, error)
	List(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, error)
	ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Order, error)
	MarkReconcileChecked(ctx context.Context, id uint64, now time.Time) error
	ApplyTransition(ctx context.Context, reference string, transition reconcile.Transition, meta repository.GatewayMetadata, now time.Time) (bool, error)
	UpdateFulfillmentStatus(ctx context.Context, id uint64, status entity.FulfillmentStatus, now time.Time) error
}

type listPaymentCallbacksRequest interface {
	GetReference() string
	GetLimit() int32
}

type orderEventRepository interface {
	Create(ctx context.Context, event *entity.OrderEvent) error
	ListByOrder(ctx context.Context, orderID uint64) ([]*entity.OrderEvent, error)
}

type paymentCallbackRepository interface {
	Create(ctx context.Context, callback *entity.PaymentCallback) error
	ListByReference(ctx context.Context, reference string, limit int32) ([]*entity.PaymentCallback, error)
}

type productRepository interface {
	FindByIDs(ctx context.Context, ids []uint64) (map[uint64]*entity.Product, error)
}

// Actor is the authenticated caller of an order operation.
type Actor struct {
	UserID  uint64
	IsAdmin bool
}

// SystemActor is used by internal callers that are already authorized at the
// transport layer.
var SystemActor = Actor{IsAdmin: true}

func (a Actor) canAccess(order *entity.Order) bool {
	return a.IsAdmin || (a.UserID != 0 && a.UserID == order.UserID)
}

type OrderService struct {
	orderRepo    orderRepository
	eventRepo    orderEventRepository
	callbackRepo paymentCallbackRepository
	productRepo  productRepository
	gateway      provider.Gateway
	ordersCfg    config.OrdersConfig
	debugSigning bool
	logger       logrus.FieldLogger
	now          func() time.Time
	newReference func() string
}

func NewOrderService(
	orderRepo orderRepository,
	eventRepo orderEventRepository,
	callbackRepo paymentCallbackRepository,
	productRepo productRepository,
	gateway provider.Gateway,
	ordersCfg config.OrdersConfig,
	debugSigning bool,
) *OrderService {
	return &OrderService{
		orderRepo:    orderRepo,
		eventRepo:    eventRepo,
		callbackRepo: callbackRepo,
		productRepo:  productRepo,
		gateway:      gateway,
		ordersCfg:    ordersCfg,
		debugSigning: debugSigning,
		logger:       factory.NewModuleLogger("orders-service"),
		now: func() time.Time {
			return time.Now().UTC()
		},
		newReference: newPaymentReference,
	}
}

// CreateOrder snapshots catalog prices, persists a pending order and returns
// it together with the signed gateway URL for the customer's browser.
func (s *OrderService) CreateOrder(ctx context.Context, req createOrderRequest) (*entity.Order, string, error) {
	if req.GetUserId() == 0 || len(req.GetItems()) == 0 || req.GetShippingAddress() == nil {
		return nil, "", ErrInvalidRequest
	}
	if err := s.gateway.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrPaymentNotConfigured, err)
	}

	items, err := s.snapshotItems(ctx, req.GetItems())
	if err != nil {
		return nil, "", err
	}
	total := entity.SumItems(items)
	if !total.IsPositive() || provider.GatewayAmount(total) <= 0 {
		return nil, "", ErrInvalidAmount
	}

	now := s.now()
	shipping := req.GetShippingAddress()
	order := &entity.Order{
		UserID:      req.GetUserId(),
		Items:       items,
		TotalAmount: total,
		Currency:    defaultCurrency,
		Shipping: entity.ShippingAddress{
			Name:    strings.TrimSpace(shipping.GetName()),
			Phone:   strings.TrimSpace(shipping.GetPhone()),
			Address: strings.TrimSpace(shipping.GetAddress()),
		},
		PaymentMethod:      entity.PaymentMethodVNPay,
		PaymentStatus:      entity.PaymentStatusPending,
		FulfillmentStatus:  entity.FulfillmentStatusCreated,
		PaymentRequestedAt: &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.createWithUniqueReference(ctx, order); err != nil {
		return nil, "", err
	}

	paymentURL, err := s.gateway.BuildPaymentURL(&provider.PaymentInput{
		Reference:   order.PaymentReference,
		TotalAmount: order.TotalAmount,
		OrderInfo:   provider.DefaultOrderInfo(order.PaymentReference),
		CallerIP:    req.GetCallerIp(),
		Locale:      req.GetLocale(),
		CreatedAt:   now,
	})
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrInvalidAmount):
			return nil, "", ErrInvalidAmount
		case errors.Is(err, provider.ErrNotConfigured):
			return nil, "", fmt.Errorf("%w: %v", ErrPaymentNotConfigured, err)
		default:
			return nil, "", err
		}
	}

	s.recordEvent(ctx, &entity.OrderEvent{
		OrderID:              order.ID,
		EventType:            eventTypeOrderCreated,
		Source:               entity.OrderEventSourceCheckout,
		NewPaymentStatus:     order.PaymentStatus,
		NewFulfillmentStatus: order.FulfillmentStatus,
		CreatedAt:            now,
	})

	return order, paymentURL, nil
}

func (s *OrderService) GetOrder(ctx context.Context, actor Actor, id uint64) (*entity.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !actor.canAccess(order) {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) GetOrderByReference(ctx context.Context, reference string) (*entity.Order, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrInvalidRequest
	}

	order, err := s.orderRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListMyOrders(ctx context.Context, req listMyOrdersRequest) ([]*entity.Order, error) {
	if req.GetUserId() == 0 {
		return nil, ErrInvalidRequest
	}

	return s.orderRepo.List(ctx, repository.OrderFilter{
		UserID: req.GetUserId(),
		Limit:  normalizeLimit(req.GetLimit()),
		Offset: req.GetOffset(),
	})
}

func (s *OrderService) ListOrders(ctx context.Context, req listOrdersRequest) ([]*entity.Order, error) {
	filter := repository.OrderFilter{
		Limit:  normalizeLimit(req.GetLimit()),
		Offset: req.GetOffset(),
	}

	if raw := strings.TrimSpace(req.GetPaymentStatus()); raw != "" {
		status := entity.PaymentStatus(strings.ToLower(raw))
		if !status.Valid() {
			return nil, fmt.Errorf("%w: payment status %q", ErrInvalidStatus, raw)
		}
		filter.PaymentStatus = status
	}
	if raw := strings.TrimSpace(req.GetFulfillmentStatus()); raw != "" {
		status := entity.FulfillmentStatus(strings.ToLower(raw))
		if !status.Valid() {
			return nil, fmt.Errorf("%w: fulfillment status %q", ErrInvalidStatus, raw)
		}
		filter.FulfillmentStatus = status
	}

	return s.orderRepo.List(ctx, filter)
}

// UpdateFulfillmentStatus is the administrative fulfillment path. It never
// touches payment status.
func (s *OrderService) UpdateFulfillmentStatus(ctx context.Context, req updateFulfillmentStatusRequest) (*entity.Order, error) {
	status := entity.FulfillmentStatus(strings.ToLower(strings.TrimSpace(req.GetFulfillmentStatus())))
	if !status.Valid() {
		return nil, fmt.Errorf("%w: fulfillment status %q", ErrInvalidStatus, req.GetFulfillmentStatus())
	}

	order, err := s.orderRepo.FindByID(ctx, req.GetId())
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.FulfillmentStatus == status {
		return order, nil
	}

	now := s.now()
	oldStatus := order.FulfillmentStatus
	if err := s.orderRepo.UpdateFulfillmentStatus(ctx, order.ID, status, now); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	order.FulfillmentStatus = status
	order.UpdatedAt = now

	s.recordEvent(ctx, &entity.OrderEvent{
		OrderID:              order.ID,
		EventType:            eventTypeFulfillmentUpdated,
		Source:               entity.OrderEventSourceAdmin,
		NewPaymentStatus:     order.PaymentStatus,
		OldFulfillmentStatus: &oldStatus,
		NewFulfillmentStatus: status,
		CreatedAt:            now,
	})

	return order, nil
}

// MarkPaidByReference is the out-of-band reconciliation path. It follows the
// same transition rule as a successful gateway callback and is idempotent.
func (s *OrderService) MarkPaidByReference(ctx context.Context, actor Actor, reference string) (*entity.Order, error) {
	order, err := s.GetOrderByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(order) {
		return nil, ErrForbidden
	}

	transition := reconcile.Plan(reconcile.Event{ResponseCode: reconcile.SuccessCode, Source: entity.OrderEventSourceManual})
	if !transition.Applies(order.PaymentStatus) {
		return order, nil
	}

	now := s.now()
	applied, err := s.orderRepo.ApplyTransition(ctx, order.PaymentReference, transition, repository.GatewayMetadata{}, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		return s.GetOrderByReference(ctx, order.PaymentReference)
	}

	s.recordTransition(ctx, order, transition, map[string]string{"actor_user_id": fmt.Sprintf("%d", actor.UserID)}, now)
	transition.Apply(order, now)

	factory.LoggerFromContext(ctx, s.logger).WithFields(logrus.Fields{
		"order_id":  order.ID,
		"reference": order.PaymentReference,
		"actor":     actor.UserID,
	}).Info("Order marked paid manually")

	return order, nil
}

func (s *OrderService) snapshotItems(ctx context.Context, inputs []*types.OrderItemInput) ([]entity.OrderItem, error) {
	ids := make([]uint64, 0, len(inputs))
	for _, input := range inputs {
		if input == nil || input.GetProductId() == 0 || input.GetQuantity() <= 0 {
			return nil, ErrInvalidRequest
		}
		ids = append(ids, input.GetProductId())
	}

	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]entity.OrderItem, 0, len(inputs))
	for _, input := range inputs {
		product, ok := products[input.GetProductId()]
		if !ok || product == nil {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, input.GetProductId())
		}
		if !product.Active {
			return nil, fmt.Errorf("%w: %d", ErrProductUnavailable, product.ID)
		}
		if product.Stock < input.GetQuantity() {
			return nil, fmt.Errorf("%w: product %d has %d left", ErrInsufficientStock, product.ID, product.Stock)
		}

		items = append(items, entity.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  input.GetQuantity(),
			ImageRef:  product.ImageURL,
		})
	}

	return items, nil
}

func (s *OrderService) createWithUniqueReference(ctx context.Context, order *entity.Order) error {
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		order.PaymentReference = s.newReference()
		err := s.orderRepo.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrOrderAlreadyExists) {
			return err
		}
	}
	return ErrReferenceUnavailable
}

// ListOrderEvents returns the audit trail of an order, oldest first.
func (s *OrderService) ListOrderEvents(ctx context.Context, orderID uint64) ([]*entity.OrderEvent, error) {
	if orderID == 0 {
		return nil, ErrInvalidRequest
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	return s.eventRepo.ListByOrder(ctx, orderID)
}

// ListPaymentCallbacks returns the stored gateway callbacks for a payment
// reference, newest first. Rejected callbacks are included, also for
// references that match no order.
func (s *OrderService) ListPaymentCallbacks(ctx context.Context, req listPaymentCallbacksRequest) ([]*entity.PaymentCallback, error) {
	reference := strings.TrimSpace(req.GetReference())
	if reference == "" {
		return nil, ErrInvalidRequest
	}

	return s.callbackRepo.ListByReference(ctx, reference, normalizeLimit(req.GetLimit()))
}

func (s *OrderService) recordTransition(ctx context.Context, before *entity.Order, transition reconcile.Transition, payload map[string]string, now time.Time) {
	oldPayment := before.PaymentStatus
	oldFulfillment := before.FulfillmentStatus

	var payloadJSON *string
	if len(payload) > 0 {
		if raw, err := json.Marshal(payload); err == nil {
			encoded := string(raw)
			payloadJSON = &encoded
		}
	}

	s.recordEvent(ctx, &entity.OrderEvent{
		OrderID:              before.ID,
		EventType:            transition.EventType(),
		Source:               transition.Source,
		OldPaymentStatus:     &oldPayment,
		NewPaymentStatus:     transition.To,
		OldFulfillmentStatus: &oldFulfillment,
		NewFulfillmentStatus: transition.NextFulfillment(oldFulfillment),
		PayloadJSON:          payloadJSON,
		CreatedAt:            now,
	})
}

// recordEvent writes to the audit trail. The state change it describes is
// already committed, so a failure here is logged and not returned.
func (s *OrderService) recordEvent(ctx context.Context, event *entity.OrderEvent) {
	if err := s.eventRepo.Create(ctx, event); err != nil {
		factory.LoggerFromContext(ctx, s.logger).WithError(err).WithFields(logrus.Fields{
			"order_id":   event.OrderID,
			"event_type": event.EventType,
		}).Warn("Failed to record order event")
	}
}

func (s *OrderService) batchSize() int32 {
	if s.ordersCfg.JobBatchSize > 0 {
		return s.ordersCfg.JobBatchSize
	}
	return defaultBatchSize
}

func normalizeLimit(limit int32) int32 {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func newPaymentReference() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func optionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// truncate drops invalid UTF-8 and cuts value to at most max characters, the
// unit VARCHAR lengths are declared in.
func truncate(value string, max int) string {
	value = strings.ToValidUTF8(value, "")
	if utf8.RuneCountInString(value) <= max {
		return value
	}
	return string([]rune(value)[:max])
}
