package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// StockMovement is an immutable journal entry for one stock delta.
type StockMovement struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     *uuid.UUID           `gorm:"column:order_id;type:uuid;index"`
	ItemID      uuid.UUID            `gorm:"column:item_id;type:uuid;not null;index"`
	WarehouseID uuid.UUID            `gorm:"column:warehouse_id;type:uuid;not null"`
	Delta       int                  `gorm:"column:delta;not null"`
	Reason      enums.MovementReason `gorm:"column:reason;type:text;not null"`
	Actor       string               `gorm:"column:actor;type:text;not null;default:''"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
