package bus

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"

	"orders-service/internal/domain/product"
)

var _ product.Validator = (*ProductValidator)(nil)

// ProductValidator resolves product identifiers by sending a validation
// request to the external product service over NATS.
type ProductValidator struct {
	conn    *nats.Conn
	subject string
	timeout time.Duration
}

// NewProductValidator creates a validator client for the given request
// subject. The timeout bounds each round-trip.
func NewProductValidator(conn *nats.Conn, subject string, timeout time.Duration) *ProductValidator {
	return &ProductValidator{
		conn:    conn,
		subject: subject,
		timeout: timeout,
	}
}

// Validate sends the identifier list and decodes the resolved records. Any
// transport or upstream failure is returned as *product.UnavailableError;
// the caller treats it as fatal to the in-flight operation.
func (v *ProductValidator) Validate(ctx context.Context, ids []string) ([]product.Product, error) {
	e := &jx.Encoder{}
	e.ArrStart()
	for _, id := range ids {
		e.Str(id)
	}
	e.ArrEnd()

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	msg, err := v.conn.RequestWithContext(ctx, v.subject, e.Bytes())
	if err != nil {
		return nil, &product.UnavailableError{Err: err}
	}

	products, err := decodeProducts(msg.Data)
	if err != nil {
		return nil, &product.UnavailableError{Err: err}
	}
	return products, nil
}

// decodeProducts parses the validator reply: an array of product records, or
// an object carrying an upstream error payload.
func decodeProducts(data []byte) ([]product.Product, error) {
	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.Array:
		var products []product.Product
		if err := d.Arr(func(d *jx.Decoder) error {
			p, err := decodeProduct(d)
			if err != nil {
				return err
			}
			products = append(products, p)
			return nil
		}); err != nil {
			return nil, errors.Wrap(err, "decode products")
		}
		return products, nil
	case jx.Object:
		return nil, decodeUpstreamError(d)
	default:
		return nil, errors.Errorf("unexpected validator reply: %s", truncate(data, 128))
	}
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			p.ID = v
			return err
		case "name":
			v, err := d.Str()
			p.Name = v
			return err
		case "price":
			num, err := d.Num()
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(num.String())
			if err != nil {
				return errors.Wrapf(err, "price of product %q", p.ID)
			}
			p.Price = price
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return product.Product{}, err
	}
	return p, nil
}

// decodeUpstreamError extracts a message from an error-shaped reply. The
// exact shape depends on the product service; any "message" field found at
// the top level or under "error" is used.
func decodeUpstreamError(d *jx.Decoder) error {
	message := ""
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "message":
			v, err := d.Str()
			message = v
			return err
		case "error":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key == "message" {
					v, err := d.Str()
					message = v
					return err
				}
				return d.Skip()
			})
		default:
			return d.Skip()
		}
	})
	if message == "" {
		message = "validation rejected"
	}
	return errors.Errorf("upstream error: %s", message)
}

func truncate(data []byte, n int) []byte {
	if len(data) > n {
		return data[:n]
	}
	return data
}
