package mapper

import (
	"time"

	"github.com/Alexyn15/trangsucvn/app/entity"
	"github.com/Alexyn15/trangsucvn/app/types"
)

func OrderToProto(item *entity.Order) *types.Order {
	if item == nil {
		return nil
	}

	items := make([]*types.OrderItem, 0, len(item.Items))
	for _, line := range item.Items {
		items = append(items, &types.OrderItem{
			ProductId: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice.StringFixed(0),
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal().StringFixed(0),
			ImageRef:  line.ImageRef,
		})
	}

	return &types.Order{
		Id:               item.ID,
		UserId:           item.UserID,
		PaymentReference: item.PaymentReference,
		Items:            items,
		TotalAmount:      item.TotalAmount.StringFixed(0),
		Currency:         item.Currency,
		ShippingAddress: &types.ShippingAddress{
			Name:    item.Shipping.Name,
			Phone:   item.Shipping.Phone,
			Address: item.Shipping.Address,
		},
		PaymentMethod:        item.PaymentMethod,
		PaymentStatus:        string(item.PaymentStatus),
		FulfillmentStatus:    string(item.FulfillmentStatus),
		GatewayResponseCode:  derefString(item.GatewayResponseCode),
		GatewayTransactionId: derefString(item.GatewayTransactionID),
		GatewayBankCode:      derefString(item.GatewayBankCode),
		GatewayPayDate:       formatTime(item.GatewayPayDate),
		PaidAt:               formatTime(item.PaidAt),
		CreatedAt:            item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:            item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func OrdersToProto(items []*entity.Order) []*types.Order {
	result := make([]*types.Order, 0, len(items))
	for _, item := range items {
		result = append(result, OrderToProto(item))
	}
	return result
}

func OrderEventsToProto(items []*entity.OrderEvent) []*types.OrderEvent {
	result := make([]*types.OrderEvent, 0, len(items))
	for _, item := range items {
		event := &types.OrderEvent{
			Id:                   item.ID,
			OrderId:              item.OrderID,
			EventType:            item.EventType,
			Source:               item.Source,
			NewPaymentStatus:     string(item.NewPaymentStatus),
			NewFulfillmentStatus: string(item.NewFulfillmentStatus),
			Payload:              derefString(item.PayloadJSON),
			CreatedAt:            item.CreatedAt.UTC().Format(time.RFC3339),
		}
		if item.OldPaymentStatus != nil {
			event.OldPaymentStatus = string(*item.OldPaymentStatus)
		}
		if item.OldFulfillmentStatus != nil {
			event.OldFulfillmentStatus = string(*item.OldFulfillmentStatus)
		}
		result = append(result, event)
	}
	return result
}

func PaymentCallbacksToProto(items []*entity.PaymentCallback) []*types.PaymentCallback {
	result := make([]*types.PaymentCallback, 0, len(items))
	for _, item := range items {
		callback := &types.PaymentCallback{
			Id:               item.ID,
			Channel:          item.Channel,
			PaymentReference: item.PaymentReference,
			ResponseCode:     item.ResponseCode,
			TransactionNo:    item.TransactionNo,
			Status:           callbackStatusLabel(item.Status),
			Error:            derefString(item.Error),
			Diagnostics:      derefString(item.DiagnosticsJSON),
			Payload:          item.PayloadJSON,
			CreatedAt:        item.CreatedAt.UTC().Format(time.RFC3339),
		}
		if item.OrderID != nil {
			callback.OrderId = *item.OrderID
		}
		result = append(result, callback)
	}
	return result
}

func callbackStatusLabel(status int32) string {
	switch status {
	case entity.PaymentCallbackStatusProcessed:
		return "processed"
	case entity.PaymentCallbackStatusIgnored:
		return "ignored"
	case entity.PaymentCallbackStatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
