// Package handler maps bus commands to order service calls. It owns request
// shape validation, the JSON wire codec, and the translation of domain
// errors into structured wire errors.
package handler

import (
	"orders-service/internal/domain/order"
)

// Command subjects exposed by the service.
const (
	SubjectCreateOrder       = "create_order"
	SubjectFindAllOrders     = "find_all_orders"
	SubjectFindOneOrder      = "find_one_order"
	SubjectChangeOrderStatus = "change_order_status"
)

// Handler implements the command handlers, delegating business logic to the
// order service.
type Handler struct {
	orders *order.Service
}

// New constructs a Handler.
func New(orders *order.Service) *Handler {
	return &Handler{orders: orders}
}
