// Package reconciliation turns an order's goods movement into stock ledger mutations.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/stock"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

type detailLedger interface {
	ListByOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.OrderDetail, error)
	AssignItemTx(ctx context.Context, tx *gorm.DB, detailID, itemID uuid.UUID) error
}

type itemCreator interface {
	CreateFromAttributes(ctx context.Context, tx *gorm.DB, kind enums.ItemKind, attrs types.NewItemAttributes) (uuid.UUID, error)
}

type stockLedger interface {
	ReceiveTx(ctx context.Context, tx *gorm.DB, m stock.Mutation) (*stock.RecordDTO, error)
	ConsumeAcrossWarehousesTx(ctx context.Context, tx *gorm.DB, input stock.DrainInput) (*stock.DrainResult, error)
}

// Input identifies the order whose lines move stock and the direction of the movement.
type Input struct {
	Order    *models.Order
	Movement enums.GoodsMovement
	Operator string
}

// Service applies goods movements inside the caller's transaction.
type Service interface {
	Reconcile(ctx context.Context, tx *gorm.DB, input Input) (*Result, error)
}

// ServiceParams carries the reconciliation dependencies. Metrics and Logger are optional.
type ServiceParams struct {
	Details detailLedger
	Catalog itemCreator
	Stock   stockLedger
	Metrics *metrics.WorkflowMetrics
	Logger  *logger.Logger
}

type service struct {
	details detailLedger
	catalog itemCreator
	stock   stockLedger
	metrics *metrics.WorkflowMetrics
	logg    *logger.Logger
}

// NewService wires the reconciliation service.
func NewService(params ServiceParams) (Service, error) {
	if params.Details == nil {
		return nil, fmt.Errorf("detail ledger required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	return &service{
		details: params.Details,
		catalog: params.Catalog,
		stock:   params.Stock,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Reconcile applies every line of the order. Any failure comes back as a
// RECONCILIATION_ERROR and the caller must roll the transaction back.
// Sale shortfalls are reported in the result, not as errors.
func (s *service) Reconcile(ctx context.Context, tx *gorm.DB, input Input) (*Result, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeReconciliation, "transaction required")
	}
	if input.Order == nil || input.Order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeReconciliation, "order required")
	}
	result := &Result{
		Movement:     input.Movement,
		Receipts:     []Receipt{},
		Consumptions: []Consumption{},
		CreatedItems: []CreatedItem{},
		Shortfalls:   []Shortfall{},
		TouchedItems: []uuid.UUID{},
	}
	if !input.Movement.MovesStock() {
		return result, nil
	}

	started := time.Now()
	defer func() {
		s.metrics.ObserveReconciliation(input.Movement.String(), time.Since(started))
	}()

	lines, err := s.details.ListByOrderTx(ctx, tx, input.Order.ID)
	if err != nil {
		return nil, s.fail(input.Order, nil, err, "load order details")
	}

	for i := range lines {
		line := &lines[i]
		if line.Quantity == 0 {
			continue
		}
		switch input.Movement {
		case enums.GoodsMovementReceipt:
			err = s.receive(ctx, tx, input, line, result)
		case enums.GoodsMovementSale:
			err = s.consume(ctx, tx, input, line, result)
		}
		if err != nil {
			return nil, err
		}
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrder(ctx, input.Order.ID.String(), string(input.Order.Kind))
		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"movement":      input.Movement,
			"receipts":      len(result.Receipts),
			"consumptions":  len(result.Consumptions),
			"created_items": len(result.CreatedItems),
			"shortfalls":    len(result.Shortfalls),
		}), "order reconciled")
	}
	return result, nil
}

func (s *service) receive(ctx context.Context, tx *gorm.DB, input Input, line *models.OrderDetail, result *Result) error {
	itemID, err := s.resolveItem(ctx, tx, input.Order, line, result)
	if err != nil {
		return err
	}
	orderID := input.Order.ID
	record, err := s.stock.ReceiveTx(ctx, tx, stock.Mutation{
		ItemID:      itemID,
		ItemKind:    line.ItemKind,
		WarehouseID: line.WarehouseID,
		Quantity:    line.Quantity,
		Reason:      receiptReason(input.Order.Kind),
		OrderID:     &orderID,
		Actor:       input.Operator,
	})
	if err != nil {
		return s.fail(input.Order, line, err, "receive stock")
	}
	result.Receipts = append(result.Receipts, Receipt{
		DetailID:    line.ID,
		ItemID:      itemID,
		WarehouseID: line.WarehouseID,
		Quantity:    line.Quantity,
		OnHand:      record.Quantity,
	})
	result.touch(itemID)
	return nil
}

// resolveItem returns the line's item, creating and binding the catalog entry
// first when the line was submitted as a new item.
func (s *service) resolveItem(ctx context.Context, tx *gorm.DB, order *models.Order, line *models.OrderDetail, result *Result) (uuid.UUID, error) {
	if line.ItemID != nil && *line.ItemID != uuid.Nil {
		return *line.ItemID, nil
	}
	if !line.IsNew || line.NewItem == nil {
		return uuid.Nil, s.fail(order, line, nil, "detail line has no item")
	}
	itemID, err := s.catalog.CreateFromAttributes(ctx, tx, line.ItemKind, *line.NewItem)
	if err != nil {
		return uuid.Nil, s.fail(order, line, err, "create catalog item")
	}
	if err := s.details.AssignItemTx(ctx, tx, line.ID, itemID); err != nil {
		return uuid.Nil, s.fail(order, line, err, "bind catalog item")
	}
	line.ItemID = &itemID
	result.CreatedItems = append(result.CreatedItems, CreatedItem{
		DetailID: line.ID,
		ItemID:   itemID,
		ItemKind: line.ItemKind,
	})
	return itemID, nil
}

func (s *service) consume(ctx context.Context, tx *gorm.DB, input Input, line *models.OrderDetail, result *Result) error {
	if line.ItemID == nil || *line.ItemID == uuid.Nil {
		return s.fail(input.Order, line, nil, "sale line has no item")
	}
	orderID := input.Order.ID
	drain, err := s.stock.ConsumeAcrossWarehousesTx(ctx, tx, stock.DrainInput{
		ItemID:   *line.ItemID,
		Quantity: line.Quantity,
		Reason:   enums.MovementReasonSaleConsumption,
		OrderID:  &orderID,
		Actor:    input.Operator,
	})
	if err != nil {
		return s.fail(input.Order, line, err, "consume stock")
	}
	result.Consumptions = append(result.Consumptions, Consumption{
		DetailID:  line.ID,
		ItemID:    drain.ItemID,
		Requested: drain.Requested,
		Consumed:  drain.Consumed,
		Draws:     drain.Draws,
	})
	if drain.Shortfall > 0 {
		result.Shortfalls = append(result.Shortfalls, Shortfall{
			DetailID: line.ID,
			ItemID:   drain.ItemID,
			Missing:  drain.Shortfall,
		})
	}
	result.touch(drain.ItemID)
	return nil
}

func (s *service) fail(order *models.Order, line *models.OrderDetail, err error, msg string) error {
	details := map[string]any{"order_id": order.ID.String()}
	if line != nil {
		details["detail_id"] = line.ID.String()
		details["line_no"] = line.LineNo
	}
	if code := pkgerrors.CodeOf(err); err != nil && code != pkgerrors.CodeInternal {
		details["cause_code"] = code
	}
	return pkgerrors.Wrap(pkgerrors.CodeReconciliation, err, msg).WithDetails(details)
}

func receiptReason(kind enums.OrderKind) enums.MovementReason {
	if kind == enums.OrderKindProduction {
		return enums.MovementReasonProductionReceipt
	}
	return enums.MovementReasonPurchaseReceipt
}
