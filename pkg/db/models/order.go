package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// Order is the shared row for purchase orders, production demands and sale orders.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Kind           enums.OrderKind   `gorm:"column:kind;type:text;not null;index:idx_orders_kind_status,priority:1"`
	Subject        string            `gorm:"column:subject;type:text;not null"`
	Applicant      string            `gorm:"column:applicant;type:text;not null"`
	Status         enums.OrderStatus `gorm:"column:status;type:text;not null;index:idx_orders_kind_status,priority:2"`
	LastModifiedBy string            `gorm:"column:last_modified_by;type:text;not null;default:''"`
	Version        int               `gorm:"column:version;not null;default:1"`
	Details        []OrderDetail     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
