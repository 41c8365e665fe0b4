package enums

import "fmt"

// OrderKind distinguishes the three order documents that share the orders table.
type OrderKind string

const (
	OrderKindPurchase   OrderKind = "purchase"
	OrderKindProduction OrderKind = "production"
	OrderKindSale       OrderKind = "sale"
)

var validOrderKinds = []OrderKind{
	OrderKindPurchase,
	OrderKindProduction,
	OrderKindSale,
}

// String implements fmt.Stringer.
func (k OrderKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known OrderKind.
func (k OrderKind) IsValid() bool {
	for _, candidate := range validOrderKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// OrderKinds returns every known order kind.
func OrderKinds() []OrderKind {
	return append([]OrderKind(nil), validOrderKinds...)
}

// ParseOrderKind converts raw input into an OrderKind.
func ParseOrderKind(value string) (OrderKind, error) {
	for _, candidate := range validOrderKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order kind %q", value)
}

// LineItemKind is the catalog item kind lines of this order kind refer to.
func (k OrderKind) LineItemKind() ItemKind {
	if k == OrderKindPurchase {
		return ItemKindMaterial
	}
	return ItemKindProduct
}

// AcceptsNewItems reports whether lines may carry items that do not exist yet.
// Sales only move stocked products.
func (k OrderKind) AcceptsNewItems() bool {
	return k == OrderKindPurchase || k == OrderKindProduction
}
