package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"orders-service/internal/domain/order"
	"orders-service/internal/domain/product"
)

// Wire format: every reply is a JSON object. Failures carry a single
// "error" object with a status code, a message, and optional field-level
// detail; successful replies never contain an "error" key.

// FieldError describes a single request field constraint violation.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is the structured result of request shape validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

// --- Request decoding ---

type findAllRequest struct {
	Page   int
	Limit  int
	Status string
}

type changeStatusRequest struct {
	ID     string
	Status string
}

func decodeCreateRequest(data []byte) (order.CreateRequest, error) {
	var req order.CreateRequest
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var item order.NewItem
			if err := d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "productId":
					v, err := d.Str()
					item.ProductID = v
					return err
				case "quantity":
					v, err := d.Int()
					item.Quantity = v
					return err
				default:
					return d.Skip()
				}
			}); err != nil {
				return err
			}
			req.Items = append(req.Items, item)
			return nil
		})
	})
	if err != nil {
		return order.CreateRequest{}, errors.Wrap(err, "decode create_order")
	}
	return req, nil
}

func decodeFindAllRequest(data []byte) (findAllRequest, error) {
	// Pagination defaults match the original surface: first page, ten rows.
	req := findAllRequest{Page: 1, Limit: 10}
	if len(data) == 0 {
		return req, nil
	}
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "page":
			v, err := d.Int()
			req.Page = v
			return err
		case "limit":
			v, err := d.Int()
			req.Limit = v
			return err
		case "status":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			req.Status = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return findAllRequest{}, errors.Wrap(err, "decode find_all_orders")
	}
	return req, nil
}

func decodeIDRequest(data []byte) (string, error) {
	var id string
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "id" {
			return d.Skip()
		}
		v, err := d.Str()
		id = v
		return err
	})
	if err != nil {
		return "", errors.Wrap(err, "decode find_one_order")
	}
	return id, nil
}

func decodeChangeStatusRequest(data []byte) (changeStatusRequest, error) {
	var req changeStatusRequest
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			req.ID = v
			return err
		case "status":
			v, err := d.Str()
			req.Status = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return changeStatusRequest{}, errors.Wrap(err, "decode change_order_status")
	}
	return req, nil
}

// --- Response encoding ---

func encodeOrder(o *order.Order, products []product.Product) []byte {
	e := &jx.Encoder{}
	writeOrder(e, o, products, true)
	return e.Bytes()
}

func encodePage(res *order.PageResult) []byte {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("data")
	e.ArrStart()
	for i := range res.Data {
		writeOrder(e, &res.Data[i], nil, false)
	}
	e.ArrEnd()
	e.FieldStart("meta")
	e.ObjStart()
	e.FieldStart("page")
	e.Int(res.Meta.Page)
	e.FieldStart("limit")
	e.Int(res.Meta.Limit)
	e.FieldStart("total")
	e.Int64(res.Meta.Total)
	e.FieldStart("pages")
	e.Int64(res.Meta.Pages)
	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}

func writeOrder(e *jx.Encoder, o *order.Order, products []product.Product, withItems bool) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("totalAmount")
	e.Num(jx.Num(o.TotalAmount.String()))
	e.FieldStart("totalItems")
	e.Int(o.TotalItems)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("paid")
	e.Bool(o.Paid)
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339Nano))
	e.FieldStart("updatedAt")
	e.Str(o.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if withItems {
		nameByID := make(map[string]string, len(products))
		for _, p := range products {
			nameByID[p.ID] = p.Name
		}
		e.FieldStart("items")
		e.ArrStart()
		for _, item := range o.Items {
			e.ObjStart()
			e.FieldStart("productId")
			e.Str(item.ProductID)
			e.FieldStart("quantity")
			e.Int(item.Quantity)
			e.FieldStart("price")
			e.Num(jx.Num(item.Price.String()))
			e.FieldStart("name")
			e.Str(nameByID[item.ProductID])
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

func encodeWireError(status int, message string, fields []FieldError) []byte {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("error")
	e.ObjStart()
	e.FieldStart("status")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	if len(fields) > 0 {
		e.FieldStart("fields")
		e.ArrStart()
		for _, f := range fields {
			e.ObjStart()
			e.FieldStart("field")
			e.Str(f.Field)
			e.FieldStart("message")
			e.Str(f.Message)
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}
