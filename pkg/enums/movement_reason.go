package enums

import "fmt"

// MovementReason explains why a stock movement was journaled.
type MovementReason string

const (
	MovementReasonPurchaseReceipt   MovementReason = "purchase_receipt"
	MovementReasonProductionReceipt MovementReason = "production_receipt"
	MovementReasonSaleConsumption   MovementReason = "sale_consumption"
	MovementReasonManualReceipt     MovementReason = "manual_receipt"
	MovementReasonManualConsumption MovementReason = "manual_consumption"
)

var validMovementReasons = []MovementReason{
	MovementReasonPurchaseReceipt,
	MovementReasonProductionReceipt,
	MovementReasonSaleConsumption,
	MovementReasonManualReceipt,
	MovementReasonManualConsumption,
}

// String implements fmt.Stringer.
func (r MovementReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known MovementReason.
func (r MovementReason) IsValid() bool {
	for _, candidate := range validMovementReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsReceipt reports whether the reason adds stock.
func (r MovementReason) IsReceipt() bool {
	switch r {
	case MovementReasonPurchaseReceipt, MovementReasonProductionReceipt, MovementReasonManualReceipt:
		return true
	default:
		return false
	}
}

// ParseMovementReason converts raw input into a MovementReason.
func ParseMovementReason(value string) (MovementReason, error) {
	for _, candidate := range validMovementReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement reason %q", value)
}
