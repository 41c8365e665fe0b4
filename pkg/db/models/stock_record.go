package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// StockRecord holds the on-hand quantity for one (item, warehouse) pair.
type StockRecord struct {
	ItemID      uuid.UUID      `gorm:"column:item_id;type:uuid;primaryKey"`
	WarehouseID uuid.UUID      `gorm:"column:warehouse_id;type:uuid;primaryKey"`
	ItemKind    enums.ItemKind `gorm:"column:item_kind;type:text;not null"`
	Quantity    int            `gorm:"column:quantity;not null;default:0;check:chk_stock_records_quantity,quantity >= 0"`
	Version     int            `gorm:"column:version;not null;default:1"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
