package details

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// LineInput is one requested detail line. ItemID is omitted when IsNew is
// set; NewItem then carries the attributes of the catalog item to create.
type LineInput struct {
	ItemKind    enums.ItemKind           `json:"item_kind" validate:"required,oneof=material product"`
	ItemID      *uuid.UUID               `json:"item_id,omitempty"`
	IsNew       bool                     `json:"is_new"`
	NewItem     *types.NewItemAttributes `json:"new_item,omitempty"`
	Quantity    int                      `json:"quantity" validate:"gte=0"`
	WarehouseID uuid.UUID                `json:"warehouse_id"`
}

// Normalized returns the line with a canonical item kind and trimmed
// new-item attributes. Lines referencing an existing item lose their attributes.
func (l LineInput) Normalized() LineInput {
	l.ItemKind = enums.ItemKind(strings.ToLower(strings.TrimSpace(string(l.ItemKind))))
	if !l.IsNew {
		l.NewItem = nil
		return l
	}
	if l.NewItem != nil {
		attrs := l.NewItem.Normalized()
		l.NewItem = &attrs
	}
	return l
}

// UpdateQuantityInput carries a quantity edit on one line.
type UpdateQuantityInput struct {
	DetailID uuid.UUID
	Quantity int
	Operator string
}
