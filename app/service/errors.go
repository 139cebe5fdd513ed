package service

import "errors"

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrOrderNotFound        = errors.New("order not found")
	ErrForbidden            = errors.New("order belongs to another user")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrProductNotFound      = errors.New("product not found")
	ErrProductUnavailable   = errors.New("product is not available")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidAmount        = errors.New("invalid order amount")
	ErrPaymentNotConfigured = errors.New("payment gateway is not configured")
	ErrReferenceUnavailable = errors.New("could not allocate a unique payment reference")
)
