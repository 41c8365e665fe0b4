package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// OrderSubmittedEvent is emitted once an order and its detail lines are stored.
type OrderSubmittedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	Kind        enums.OrderKind   `json:"kind"`
	Status      enums.OrderStatus `json:"status"`
	Subject     string            `json:"subject"`
	Applicant   string            `json:"applicant"`
	DetailCount int               `json:"detail_count"`
}

// OrderTransitionedEvent is emitted for every committed state change.
type OrderTransitionedEvent struct {
	OrderID      uuid.UUID         `json:"order_id"`
	Kind         enums.OrderKind   `json:"kind"`
	From         enums.OrderStatus `json:"from"`
	To           enums.OrderStatus `json:"to"`
	Version      int               `json:"version"`
	Receipts     int               `json:"receipts,omitempty"`
	Consumptions int               `json:"consumptions,omitempty"`
	CreatedItems []uuid.UUID       `json:"created_items,omitempty"`
	Shortfalls   []Shortfall       `json:"shortfalls,omitempty"`
}

// Shortfall reports units a sale could not take from stock.
type Shortfall struct {
	ItemID   uuid.UUID `json:"item_id"`
	Missing  int       `json:"missing"`
	DetailID uuid.UUID `json:"detail_id"`
}

// OrderDeletedEvent is emitted when an order and its details are removed.
type OrderDeletedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	Kind           enums.OrderKind   `json:"kind"`
	Status         enums.OrderStatus `json:"status"`
	DeletedDetails int64             `json:"deleted_details"`
}
