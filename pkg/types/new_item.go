package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NewItemAttributes describes a catalog item that does not exist yet. It is
// embedded in an order detail line and materialized during reconciliation.
type NewItemAttributes struct {
	Name          string          `json:"name" validate:"required"`
	Specification string          `json:"specification,omitempty"`
	Unit          string          `json:"unit,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

// Normalized trims free-text fields.
func (a NewItemAttributes) Normalized() NewItemAttributes {
	a.Name = strings.TrimSpace(a.Name)
	a.Specification = strings.TrimSpace(a.Specification)
	a.Unit = strings.TrimSpace(a.Unit)
	return a
}
