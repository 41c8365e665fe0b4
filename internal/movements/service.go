package movements

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/pagination"
)

// Service appends to and reads the stock movement journal.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.StockMovement, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error)
	ListByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]models.StockMovement, error)
}

// RecordInput captures the immutable data of one stock delta.
type RecordInput struct {
	OrderID     *uuid.UUID
	ItemID      uuid.UUID
	WarehouseID uuid.UUID
	Delta       int
	Reason      enums.MovementReason
	Actor       string
}

type service struct {
	repo Repository
}

// NewService wires a movement service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("movements repository required")
	}
	return &service{repo: repo}, nil
}

// Record journals a movement on the caller's transaction. Receipts must carry
// a positive delta and consumptions a negative one.
func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.StockMovement, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if input.WarehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id is required")
	}
	if !input.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid movement reason %q", input.Reason))
	}
	if input.Delta == 0 || (input.Delta > 0) != input.Reason.IsReceipt() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement delta does not match reason").
			WithDetails(map[string]any{"delta": input.Delta, "reason": input.Reason})
	}

	movement := &models.StockMovement{
		OrderID:     input.OrderID,
		ItemID:      input.ItemID,
		WarehouseID: input.WarehouseID,
		Delta:       input.Delta,
		Reason:      input.Reason,
		Actor:       input.Actor,
	}
	if err := s.repo.WithTx(tx).Create(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert stock movement")
	}
	return movement, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	rows, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list movements by order")
	}
	return rows, nil
}

func (s *service) ListByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]models.StockMovement, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	rows, err := s.repo.ListByItemID(ctx, itemID, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list movements by item")
	}
	return rows, nil
}
