package enums

import "fmt"

// OrderStatus is the union of every order kind's states. Which values are
// reachable for a given kind is decided by the order workflow tables.
type OrderStatus string

const (
	OrderStatusCreated    OrderStatus = "created"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusVerifying  OrderStatus = "verifying"
	OrderStatusImported   OrderStatus = "imported"
	OrderStatusDiscussing OrderStatus = "discussing"
	OrderStatusReproduced OrderStatus = "reproduced"
	OrderStatusClosed     OrderStatus = "closed"
	OrderStatusPaying     OrderStatus = "paying"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCanceled   OrderStatus = "canceled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusConfirmed,
	OrderStatusVerifying,
	OrderStatusImported,
	OrderStatusDiscussing,
	OrderStatusReproduced,
	OrderStatusClosed,
	OrderStatusPaying,
	OrderStatusCompleted,
	OrderStatusCanceled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// OrderStatuses returns every known order status.
func OrderStatuses() []OrderStatus {
	return append([]OrderStatus(nil), validOrderStatuses...)
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
