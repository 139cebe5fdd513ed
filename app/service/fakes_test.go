package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Alexyn15/trangsucvn/app/entity"
	"github.com/Alexyn15/trangsucvn/app/provider"
	"github.com/Alexyn15/trangsucvn/app/reconcile"
	"github.com/Alexyn15/trangsucvn/app/repository"
	"github.com/Alexyn15/trangsucvn/config"
)

const testHashSecret = "TESTSECRET"

var testNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

type serviceOrderRepo struct {
	orders     map[uint64]*entity.Order
	nextID     uint64
	createErrs []error
	findErr    error
	applyErr   error
	applyCalls int
}

func newServiceOrderRepo() *serviceOrderRepo {
	return &serviceOrderRepo{
		orders: map[uint64]*entity.Order{},
		nextID: 1,
	}
}

func (r *serviceOrderRepo) Create(_ context.Context, order *entity.Order) error {
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, item := range r.orders {
		if item.PaymentReference == order.PaymentReference {
			return repository.ErrOrderAlreadyExists
		}
	}
	id := r.nextID
	r.nextID++
	order.ID = id
	copyItem := *order
	r.orders[id] = &copyItem
	return nil
}

func (r *serviceOrderRepo) FindByID(_ context.Context, id uint64) (*entity.Order, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	item, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *serviceOrderRepo) FindByReference(_ context.Context, reference string) (*entity.Order, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, item := range r.orders {
		if item.PaymentReference == reference {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *serviceOrderRepo) List(_ context.Context, filter repository.OrderFilter) ([]*entity.Order, error) {
	out := make([]*entity.Order, 0)
	for _, item := range r.orders {
		if filter.UserID > 0 && item.UserID != filter.UserID {
			continue
		}
		if filter.PaymentStatus != "" && item.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.FulfillmentStatus != "" && item.FulfillmentStatus != filter.FulfillmentStatus {
			continue
		}
		copyItem := *item
		out = append(out, &copyItem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *serviceOrderRepo) ListForReconcile(_ context.Context, before time.Time, limit int32) ([]*entity.Order, error) {
	out := make([]*entity.Order, 0)
	for _, item := range r.orders {
		if item.PaymentStatus != entity.PaymentStatusPending || item.PaymentRequestedAt == nil {
			continue
		}
		if item.PaymentRequestedAt.After(before) {
			continue
		}
		copyItem := *item
		out = append(out, &copyItem)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastReconciledAt, out[j].LastReconciledAt
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *serviceOrderRepo) ApplyTransition(_ context.Context, reference string, transition reconcile.Transition, meta repository.GatewayMetadata, now time.Time) (bool, error) {
	r.applyCalls++
	if r.applyErr != nil {
		return false, r.applyErr
	}
	for _, item := range r.orders {
		if item.PaymentReference != reference {
			continue
		}
		if !transition.Apply(item, now) {
			return false, nil
		}
		if meta.ResponseCode != "" {
			code := meta.ResponseCode
			item.GatewayResponseCode = &code
		}
		if meta.TransactionID != nil {
			item.GatewayTransactionID = meta.TransactionID
		}
		if meta.BankCode != nil {
			item.GatewayBankCode = meta.BankCode
		}
		if meta.PayDate != nil {
			item.GatewayPayDate = meta.PayDate
		}
		return true, nil
	}
	return false, nil
}

func (r *serviceOrderRepo) MarkReconcileChecked(_ context.Context, id uint64, now time.Time) error {
	item, ok := r.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	checked := now
	item.LastReconciledAt = &checked
	return nil
}

func (r *serviceOrderRepo) UpdateFulfillmentStatus(_ context.Context, id uint64, status entity.FulfillmentStatus, now time.Time) error {
	item, ok := r.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	item.FulfillmentStatus = status
	item.UpdatedAt = now
	return nil
}

func (r *serviceOrderRepo) byReference(reference string) *entity.Order {
	for _, item := range r.orders {
		if item.PaymentReference == reference {
			return item
		}
	}
	return nil
}

type serviceEventRepo struct {
	events []*entity.OrderEvent
}

func (r *serviceEventRepo) Create(_ context.Context, event *entity.OrderEvent) error {
	copyItem := *event
	r.events = append(r.events, &copyItem)
	return nil
}

func (r *serviceEventRepo) ListByOrder(_ context.Context, orderID uint64) ([]*entity.OrderEvent, error) {
	out := make([]*entity.OrderEvent, 0)
	for _, event := range r.events {
		if event.OrderID == orderID {
			out = append(out, event)
		}
	}
	return out, nil
}

type serviceCallbackRepo struct {
	callbacks []*entity.PaymentCallback
}

func (r *serviceCallbackRepo) Create(_ context.Context, callback *entity.PaymentCallback) error {
	copyItem := *callback
	r.callbacks = append(r.callbacks, &copyItem)
	return nil
}

func (r *serviceCallbackRepo) ListByReference(_ context.Context, reference string, limit int32) ([]*entity.PaymentCallback, error) {
	out := make([]*entity.PaymentCallback, 0)
	for i := len(r.callbacks) - 1; i >= 0 && int32(len(out)) < limit; i-- {
		if r.callbacks[i].PaymentReference == reference {
			out = append(out, r.callbacks[i])
		}
	}
	return out, nil
}

func (r *serviceCallbackRepo) last() *entity.PaymentCallback {
	if len(r.callbacks) == 0 {
		return nil
	}
	return r.callbacks[len(r.callbacks)-1]
}

type serviceProductRepo struct {
	products map[uint64]*entity.Product
	err      error
}

func (r *serviceProductRepo) FindByIDs(_ context.Context, ids []uint64) (map[uint64]*entity.Product, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[uint64]*entity.Product, len(ids))
	for _, id := range ids {
		if product, ok := r.products[id]; ok {
			copyItem := *product
			out[id] = &copyItem
		}
	}
	return out, nil
}

type fakeGateway struct {
	validateErr error
	buildErr    error
	queryFn     func(ctx context.Context, input *provider.QueryInput) (*provider.QueryResult, error)
	built       []*provider.PaymentInput
	queried     []string
}

func (g *fakeGateway) Code() string {
	return provider.CodeVNPay
}

func (g *fakeGateway) Validate() error {
	return g.validateErr
}

func (g *fakeGateway) BuildPaymentURL(input *provider.PaymentInput) (string, error) {
	if g.buildErr != nil {
		return "", g.buildErr
	}
	g.built = append(g.built, input)
	return "https://pay.test/vpcpay.html?vnp_TxnRef=" + input.Reference, nil
}

func (g *fakeGateway) VerifyCallback(params map[string]string) provider.VerifyResult {
	return provider.Verify(params, testHashSecret)
}

func (g *fakeGateway) QueryTransaction(ctx context.Context, input *provider.QueryInput) (*provider.QueryResult, error) {
	g.queried = append(g.queried, input.Reference)
	if g.queryFn == nil {
		return nil, errors.New("query not configured")
	}
	return g.queryFn(ctx, input)
}

type serviceFixture struct {
	svc       *OrderService
	orders    *serviceOrderRepo
	events    *serviceEventRepo
	callbacks *serviceCallbackRepo
	products  *serviceProductRepo
	gateway   *fakeGateway
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		orders:    newServiceOrderRepo(),
		events:    &serviceEventRepo{},
		callbacks: &serviceCallbackRepo{},
		products: &serviceProductRepo{products: map[uint64]*entity.Product{
			1: {ID: 1, Name: "Nhan bac", Price: decimal.NewFromInt(150000), Stock: 5, ImageURL: "rings/1.jpg", Active: true},
			2: {ID: 2, Name: "Day chuyen vang", Price: decimal.NewFromInt(2500000), Stock: 1, Active: true},
			3: {ID: 3, Name: "Bong tai cu", Price: decimal.NewFromInt(90000), Stock: 10, Active: false},
		}},
		gateway: &fakeGateway{},
	}

	f.svc = NewOrderService(f.orders, f.events, f.callbacks, f.products, f.gateway, config.OrdersConfig{
		PersistTimeout:      time.Second,
		ReconcileStaleAfter: 20 * time.Minute,
		JobBatchSize:        10,
	}, false)
	f.svc.now = func() time.Time { return testNow }

	seq := 0
	f.svc.newReference = func() string {
		seq++
		return fmt.Sprintf("ref%03d", seq)
	}

	return f
}

func (f *serviceFixture) seedOrder(reference string, userID uint64, total int64, status entity.PaymentStatus) *entity.Order {
	requestedAt := testNow.Add(-time.Hour)
	order := &entity.Order{
		UserID:           userID,
		PaymentReference: reference,
		Items: []entity.OrderItem{
			{ProductID: 1, Name: "Nhan bac", UnitPrice: decimal.NewFromInt(total), Quantity: 1},
		},
		TotalAmount:        decimal.NewFromInt(total),
		Currency:           "VND",
		PaymentMethod:      entity.PaymentMethodVNPay,
		PaymentStatus:      status,
		FulfillmentStatus:  entity.FulfillmentStatusCreated,
		PaymentRequestedAt: &requestedAt,
		CreatedAt:          requestedAt,
		UpdatedAt:          requestedAt,
	}
	_ = f.orders.Create(context.Background(), order)
	return f.orders.orders[order.ID]
}

func signedParams(params map[string]string) map[string]string {
	params[provider.ParamSecureHash] = provider.SignParams(params, testHashSecret)
	return params
}

func callbackParams(reference, responseCode string, amount int64) map[string]string {
	return signedParams(map[string]string{
		"vnp_TxnRef":            reference,
		"vnp_ResponseCode":      responseCode,
		"vnp_TransactionStatus": responseCode,
		"vnp_TransactionNo":     "14422574",
		"vnp_BankCode":          "NCB",
		"vnp_Amount":            fmt.Sprintf("%d", amount),
		"vnp_PayDate":           "20250301150500",
		"vnp_OrderInfo":         "Thanh toan don hang " + reference,
		"vnp_TmnCode":           "TMN00001",
	})
}
