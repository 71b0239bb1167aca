package product

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is a read-only view of a catalog item as resolved by the external
// product service. It is fetched per request and never persisted or cached.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Validator resolves product identifiers to authoritative catalog records.
// Implementations call the remote product service; any failure is fatal to
// the in-flight operation.
type Validator interface {
	Validate(ctx context.Context, ids []string) ([]Product, error)
}

// UnavailableError indicates the product service could not be reached or
// rejected the validation request. It carries the upstream error detail.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("product validator unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
