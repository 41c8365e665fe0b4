package stock

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// Mutation describes one receive or consume against a single (item, warehouse) key.
// Reason, OrderID and Actor end up on the journal entry.
type Mutation struct {
	ItemID      uuid.UUID
	ItemKind    enums.ItemKind
	WarehouseID uuid.UUID
	Quantity    int
	Reason      enums.MovementReason
	OrderID     *uuid.UUID
	Actor       string
}

// DrainInput describes a consumption spread across every warehouse holding the item.
type DrainInput struct {
	ItemID   uuid.UUID
	Quantity int
	Reason   enums.MovementReason
	OrderID  *uuid.UUID
	Actor    string
}

// RecordDTO is the stock held for one (item, warehouse) key.
type RecordDTO struct {
	ItemID      uuid.UUID      `json:"item_id"`
	WarehouseID uuid.UUID      `json:"warehouse_id"`
	ItemKind    enums.ItemKind `json:"item_kind,omitempty"`
	Quantity    int            `json:"quantity"`
	Version     int            `json:"version"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
}

// ConsumeResult reports a clamped consumption on one key.
type ConsumeResult struct {
	ItemID      uuid.UUID `json:"item_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Requested   int       `json:"requested"`
	Consumed    int       `json:"consumed"`
	Shortfall   int       `json:"shortfall"`
	Remaining   int       `json:"remaining"`
}

// WarehouseDraw is the part of a drain taken from one warehouse.
type WarehouseDraw struct {
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Consumed    int       `json:"consumed"`
	Remaining   int       `json:"remaining"`
}

// DrainResult reports a consumption across warehouses, in visiting order.
type DrainResult struct {
	ItemID    uuid.UUID       `json:"item_id"`
	Requested int             `json:"requested"`
	Consumed  int             `json:"consumed"`
	Shortfall int             `json:"shortfall"`
	Draws     []WarehouseDraw `json:"draws"`
}

// WarehouseStock is one line of an item's per-warehouse breakdown.
type WarehouseStock struct {
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Quantity    int       `json:"quantity"`
}

// ItemStock aggregates an item's stock across warehouses.
type ItemStock struct {
	ItemID     uuid.UUID        `json:"item_id"`
	Total      int              `json:"total"`
	Warehouses []WarehouseStock `json:"warehouses"`
}

// QuantityIn returns the quantity held in warehouseID, or zero.
func (s ItemStock) QuantityIn(warehouseID uuid.UUID) int {
	for _, w := range s.Warehouses {
		if w.WarehouseID == warehouseID {
			return w.Quantity
		}
	}
	return 0
}

func recordDTO(record *models.StockRecord) *RecordDTO {
	updated := record.UpdatedAt
	return &RecordDTO{
		ItemID:      record.ItemID,
		WarehouseID: record.WarehouseID,
		ItemKind:    record.ItemKind,
		Quantity:    record.Quantity,
		Version:     record.Version,
		UpdatedAt:   &updated,
	}
}

func itemStock(itemID uuid.UUID, records []models.StockRecord) *ItemStock {
	out := &ItemStock{ItemID: itemID, Warehouses: make([]WarehouseStock, 0, len(records))}
	for _, record := range records {
		out.Total += record.Quantity
		out.Warehouses = append(out.Warehouses, WarehouseStock{
			WarehouseID: record.WarehouseID,
			Quantity:    record.Quantity,
		})
	}
	return out
}
