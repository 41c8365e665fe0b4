package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// OrderDetail is one line of an order: an item, a quantity and a destination warehouse.
// ItemID stays nil for lines flagged new until reconciliation creates the catalog entry.
type OrderDetail struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID                `gorm:"column:order_id;type:uuid;not null;uniqueIndex:uq_order_details_order_line,priority:1"`
	LineNo      int                      `gorm:"column:line_no;not null;uniqueIndex:uq_order_details_order_line,priority:2"`
	ItemKind    enums.ItemKind           `gorm:"column:item_kind;type:text;not null"`
	ItemID      *uuid.UUID               `gorm:"column:item_id;type:uuid"`
	IsNew       bool                     `gorm:"column:is_new;not null;default:false"`
	NewItem     *types.NewItemAttributes `gorm:"column:new_item;type:jsonb;serializer:json"`
	Quantity    int                      `gorm:"column:quantity;not null;check:chk_order_details_quantity,quantity >= 0"`
	WarehouseID uuid.UUID                `gorm:"column:warehouse_id;type:uuid;not null"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *OrderDetail) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
