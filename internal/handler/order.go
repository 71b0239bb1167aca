package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"orders-service/internal/domain/order"
	"orders-service/internal/domain/product"
)

// CreateOrder handles the create_order command: shape validation, service
// call, reply encoding.
func (h *Handler) CreateOrder(ctx context.Context, data []byte) ([]byte, error) {
	req, err := decodeCreateRequest(data)
	if err != nil {
		return malformed(err), nil
	}
	if verr := validateCreate(req); verr != nil {
		return encodeWireError(http.StatusBadRequest, verr.Error(), verr.Fields), nil
	}

	res, err := h.orders.Create(ctx, req)
	if err != nil {
		return mapDomainError(err)
	}
	return encodeOrder(res.Order, res.Products), nil
}

// FindAllOrders handles the find_all_orders command.
func (h *Handler) FindAllOrders(ctx context.Context, data []byte) ([]byte, error) {
	req, err := decodeFindAllRequest(data)
	if err != nil {
		return malformed(err), nil
	}

	var fields []FieldError
	if req.Page < 1 {
		fields = append(fields, FieldError{Field: "page", Message: "must be a positive integer"})
	}
	if req.Limit < 1 {
		fields = append(fields, FieldError{Field: "limit", Message: "must be a positive integer"})
	}
	var status *order.Status
	if req.Status != "" {
		st, err := order.ParseStatus(req.Status)
		if err != nil {
			fields = append(fields, FieldError{Field: "status", Message: err.Error()})
		} else {
			status = &st
		}
	}
	if len(fields) > 0 {
		verr := &ValidationError{Fields: fields}
		return encodeWireError(http.StatusBadRequest, verr.Error(), fields), nil
	}

	res, err := h.orders.List(ctx, order.ListRequest{
		Page:   req.Page,
		Limit:  req.Limit,
		Status: status,
	})
	if err != nil {
		return mapDomainError(err)
	}
	return encodePage(res), nil
}

// FindOneOrder handles the find_one_order command.
func (h *Handler) FindOneOrder(ctx context.Context, data []byte) ([]byte, error) {
	id, err := decodeIDRequest(data)
	if err != nil {
		return malformed(err), nil
	}
	if verr := validateID(id); verr != nil {
		return encodeWireError(http.StatusBadRequest, verr.Error(), verr.Fields), nil
	}

	res, err := h.orders.Get(ctx, id)
	if err != nil {
		return mapDomainError(err)
	}
	return encodeOrder(res.Order, res.Products), nil
}

// ChangeOrderStatus handles the change_order_status command.
func (h *Handler) ChangeOrderStatus(ctx context.Context, data []byte) ([]byte, error) {
	req, err := decodeChangeStatusRequest(data)
	if err != nil {
		return malformed(err), nil
	}

	verr := validateID(req.ID)
	if verr == nil {
		verr = &ValidationError{}
	}
	status, serr := order.ParseStatus(req.Status)
	if serr != nil {
		verr.Fields = append(verr.Fields, FieldError{Field: "status", Message: serr.Error()})
	}
	if len(verr.Fields) > 0 {
		return encodeWireError(http.StatusBadRequest, verr.Error(), verr.Fields), nil
	}

	res, err := h.orders.ChangeStatus(ctx, req.ID, status)
	if err != nil {
		return mapDomainError(err)
	}
	return encodeOrder(res.Order, res.Products), nil
}

// --- Validation ---

func validateCreate(req order.CreateRequest) *ValidationError {
	var fields []FieldError
	if len(req.Items) == 0 {
		fields = append(fields, FieldError{Field: "items", Message: "must contain at least one item"})
	}
	for i, item := range req.Items {
		if item.ProductID == "" {
			fields = append(fields, FieldError{
				Field:   fmt.Sprintf("items[%d].productId", i),
				Message: "must not be empty",
			})
		}
		if item.Quantity <= 0 {
			fields = append(fields, FieldError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: "must be a positive integer",
			})
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validateID(id string) *ValidationError {
	if _, err := uuid.Parse(id); err != nil {
		return &ValidationError{Fields: []FieldError{
			{Field: "id", Message: "must be a valid UUID"},
		}}
	}
	return nil
}

// --- Error mapping ---

func malformed(err error) []byte {
	return encodeWireError(http.StatusBadRequest, err.Error(), nil)
}

// mapDomainError translates known domain errors into wire errors. Unknown
// errors (storage faults and the like) are returned to the server, which
// logs them and replies with a generic internal error.
func mapDomainError(err error) ([]byte, error) {
	if errors.Is(err, order.ErrEmptyItems) {
		return encodeWireError(http.StatusBadRequest, err.Error(), nil), nil
	}

	var iqErr *order.InvalidQuantityError
	if errors.As(err, &iqErr) {
		return encodeWireError(http.StatusBadRequest, iqErr.Error(), nil), nil
	}

	var nfErr *order.NotFoundError
	if errors.As(err, &nfErr) {
		return encodeWireError(http.StatusNotFound, nfErr.Error(), nil), nil
	}

	var upErr *order.UnknownProductError
	if errors.As(err, &upErr) {
		return encodeWireError(http.StatusUnprocessableEntity, upErr.Error(), nil), nil
	}

	var uaErr *product.UnavailableError
	if errors.As(err, &uaErr) {
		return encodeWireError(http.StatusFailedDependency, uaErr.Error(), nil), nil
	}

	return nil, err
}
