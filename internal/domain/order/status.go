package order

import "fmt"

// Status is the lifecycle state of an order. Transitions are unconditional:
// any declared status may follow any other.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every declared order status.
var Statuses = []Status{StatusPending, StatusPaid, StatusDelivered, StatusCancelled}

// InvalidStatusError indicates a value outside the declared status set.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid order status %q, valid values are %v", e.Value, Statuses)
}

// ParseStatus validates a raw status value against the declared set.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", &InvalidStatusError{Value: s}
}
