package reconciliation

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/internal/stock"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// Receipt is one detail line received into its warehouse.
type Receipt struct {
	DetailID    uuid.UUID `json:"detail_id"`
	ItemID      uuid.UUID `json:"item_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Quantity    int       `json:"quantity"`
	OnHand      int       `json:"on_hand"`
}

// Consumption is one sale line drained across warehouses.
type Consumption struct {
	DetailID  uuid.UUID             `json:"detail_id"`
	ItemID    uuid.UUID             `json:"item_id"`
	Requested int                   `json:"requested"`
	Consumed  int                   `json:"consumed"`
	Draws     []stock.WarehouseDraw `json:"draws"`
}

// CreatedItem is a catalog entry materialized from a line flagged new.
type CreatedItem struct {
	DetailID uuid.UUID      `json:"detail_id"`
	ItemID   uuid.UUID      `json:"item_id"`
	ItemKind enums.ItemKind `json:"item_kind"`
}

// Shortfall reports units a sale line could not take from stock.
type Shortfall struct {
	DetailID uuid.UUID `json:"detail_id"`
	ItemID   uuid.UUID `json:"item_id"`
	Missing  int       `json:"missing"`
}

// Result summarizes the stock effect of one transition.
type Result struct {
	Movement     enums.GoodsMovement `json:"movement"`
	Receipts     []Receipt           `json:"receipts"`
	Consumptions []Consumption       `json:"consumptions"`
	CreatedItems []CreatedItem       `json:"created_items"`
	Shortfalls   []Shortfall         `json:"shortfalls"`
	TouchedItems []uuid.UUID         `json:"touched_items"`
}

func (r *Result) touch(itemID uuid.UUID) {
	for _, id := range r.TouchedItems {
		if id == itemID {
			return
		}
	}
	r.TouchedItems = append(r.TouchedItems, itemID)
}
