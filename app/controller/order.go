package controller

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/Alexyn15/trangsucvn/app/entity"
	"github.com/Alexyn15/trangsucvn/app/factory"
	"github.com/Alexyn15/trangsucvn/app/mapper"
	"github.com/Alexyn15/trangsucvn/app/middleware"
	"github.com/Alexyn15/trangsucvn/app/service"
	"github.com/Alexyn15/trangsucvn/app/types"
)

type OrderController struct {
	orderService  *service.OrderService
	resultPageURL string
	logger        logrus.FieldLogger
}

func NewOrderController(orderService *service.OrderService, resultPageURL string) *OrderController {
	return &OrderController{
		orderService:  orderService,
		resultPageURL: resultPageURL,
		logger:        factory.NewModuleLogger("orders-controller"),
	}
}

func (c *OrderController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *OrderController) CreateOrder(ctx echo.Context) error {
	actor, ok := actorFromContext(ctx)
	if !ok {
		return c.writeError(ctx, http.StatusUnauthorized, "unauthorized")
	}

	req, err := types.NewCreateOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	req.UserId = actor.UserID
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, paymentURL, err := c.orderService.CreateOrder(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest),
			errors.Is(err, service.ErrProductNotFound),
			errors.Is(err, service.ErrProductUnavailable),
			errors.Is(err, service.ErrInvalidAmount):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInsufficientStock):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrPaymentNotConfigured):
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Payment gateway is not configured")
			return c.writeError(ctx, http.StatusServiceUnavailable, "payment gateway unavailable")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create order failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &types.CreateOrderResponse{
		Order:      mapper.OrderToProto(order),
		PaymentUrl: paymentURL,
	})
}

func (c *OrderController) GetOrder(ctx echo.Context) error {
	actor, ok := actorFromContext(ctx)
	if !ok {
		return c.writeError(ctx, http.StatusUnauthorized, "unauthorized")
	}

	req, err := types.NewGetOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.orderService.GetOrder(ctx.Request().Context(), actor, req.GetId())
	if err != nil {
		return c.writeOrderError(ctx, err, "Get order failed")
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToProto(order)})
}

func (c *OrderController) ListMyOrders(ctx echo.Context) error {
	actor, ok := actorFromContext(ctx)
	if !ok {
		return c.writeError(ctx, http.StatusUnauthorized, "unauthorized")
	}

	req, err := types.NewListMyOrdersRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	req.UserId = actor.UserID
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	orders, err := c.orderService.ListMyOrders(ctx.Request().Context(), req)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List my orders failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListOrdersResponse{Orders: mapper.OrdersToProto(orders)})
}

func (c *OrderController) ListOrders(ctx echo.Context) error {
	req, err := types.NewListOrdersRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	orders, err := c.orderService.ListOrders(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List orders failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListOrdersResponse{Orders: mapper.OrdersToProto(orders)})
}

func (c *OrderController) UpdateFulfillmentStatus(ctx echo.Context) error {
	req, err := types.NewUpdateFulfillmentStatusRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.orderService.UpdateFulfillmentStatus(ctx.Request().Context(), req)
	if err != nil {
		return c.writeOrderError(ctx, err, "Update fulfillment status failed")
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToProto(order)})
}

func (c *OrderController) MarkPaid(ctx echo.Context) error {
	actor, ok := actorFromContext(ctx)
	if !ok {
		return c.writeError(ctx, http.StatusUnauthorized, "unauthorized")
	}

	req, err := types.NewOrderReferenceRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.orderService.MarkPaidByReference(ctx.Request().Context(), actor, req.GetReference())
	if err != nil {
		return c.writeOrderError(ctx, err, "Mark order paid failed")
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToProto(order)})
}

func (c *OrderController) ListOrderEvents(ctx echo.Context) error {
	req, err := types.NewGetOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	events, err := c.orderService.ListOrderEvents(ctx.Request().Context(), req.GetId())
	if err != nil {
		return c.writeOrderError(ctx, err, "List order events failed")
	}

	return ctx.JSON(http.StatusOK, &types.ListOrderEventsResponse{Events: mapper.OrderEventsToProto(events)})
}

// ListPaymentCallbacks returns the stored callbacks for one payment
// reference, including rejected ones that never matched an order.
func (c *OrderController) ListPaymentCallbacks(ctx echo.Context) error {
	req, err := types.NewListPaymentCallbacksRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	callbacks, err := c.orderService.ListPaymentCallbacks(ctx.Request().Context(), req)
	if err != nil {
		return c.writeOrderError(ctx, err, "List payment callbacks failed")
	}

	return ctx.JSON(http.StatusOK, &types.ListPaymentCallbacksResponse{Callbacks: mapper.PaymentCallbacksToProto(callbacks)})
}

// GetOrderByReference serves internal callers that only know the gateway
// reference. Access is enforced by the internal auth middleware.
func (c *OrderController) GetOrderByReference(ctx echo.Context) error {
	req, err := types.NewOrderReferenceRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.orderService.GetOrderByReference(ctx.Request().Context(), req.GetReference())
	if err != nil {
		return c.writeOrderError(ctx, err, "Get order by reference failed")
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToProto(order)})
}

// VNPayReturn handles the customer's browser coming back from the gateway.
// It always redirects to the storefront result page; failures are carried in
// the status query parameter.
func (c *OrderController) VNPayReturn(ctx echo.Context) error {
	req, err := types.NewGatewayCallbackRequestFromContext(ctx, entity.CallbackChannelReturn)
	if err != nil {
		return ctx.Redirect(http.StatusFound, c.resultURL(service.RedirectStatusInvalidRequest))
	}
	if err := req.Validate(); err != nil {
		return ctx.Redirect(http.StatusFound, c.resultURL(service.RedirectStatusInvalidRequest))
	}

	result, err := c.orderService.HandleGatewayCallback(ctx.Request().Context(), req)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Gateway return handling failed")
		return ctx.Redirect(http.StatusFound, c.resultURL(service.RedirectStatusServerError))
	}

	return ctx.Redirect(http.StatusFound, c.resultURL(result.RedirectStatus()))
}

// VNPayIPN answers the gateway's server-to-server notification with the
// acknowledgement body the gateway expects. The HTTP status is always 200.
func (c *OrderController) VNPayIPN(ctx echo.Context) error {
	req, err := types.NewGatewayCallbackRequestFromContext(ctx, entity.CallbackChannelIPN)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		return ctx.JSON(http.StatusOK, &types.GatewayAckResponse{RspCode: service.IPNCodeUnknownError, Message: "Invalid request"})
	}

	result, err := c.orderService.HandleGatewayCallback(ctx.Request().Context(), req)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Gateway notification handling failed")
		return ctx.JSON(http.StatusOK, &types.GatewayAckResponse{RspCode: service.IPNCodeUnknownError, Message: "Unknown error"})
	}

	code, message := result.IPNAck()
	return ctx.JSON(http.StatusOK, &types.GatewayAckResponse{RspCode: code, Message: message})
}

func (c *OrderController) resultURL(status string) string {
	return c.resultPageURL + "?status=" + url.QueryEscape(status)
}

func (c *OrderController) writeOrderError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		return c.writeError(ctx, http.StatusNotFound, "order not found")
	case errors.Is(err, service.ErrForbidden):
		return c.writeError(ctx, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInvalidStatus):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *OrderController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

func actorFromContext(ctx echo.Context) (service.Actor, bool) {
	claims := middleware.ClaimsFromContext(ctx)
	if claims == nil {
		return service.Actor{}, false
	}
	return service.Actor{UserID: claims.UserID, IsAdmin: claims.IsAdmin()}, true
}
