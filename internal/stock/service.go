package stock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/movements"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type movementRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input movements.RecordInput) (*models.StockMovement, error)
}

type referenceChecker interface {
	ItemExists(ctx context.Context, tx *gorm.DB, kind enums.ItemKind, id uuid.UUID) (bool, error)
	WarehouseExists(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
}

// Service is the stock ledger. Plain variants open their own transaction;
// Tx variants join the caller's and leave cache invalidation to it.
type Service interface {
	Receive(ctx context.Context, m Mutation) (*RecordDTO, error)
	ReceiveTx(ctx context.Context, tx *gorm.DB, m Mutation) (*RecordDTO, error)
	Consume(ctx context.Context, m Mutation) (*ConsumeResult, error)
	ConsumeTx(ctx context.Context, tx *gorm.DB, m Mutation) (*ConsumeResult, error)
	ConsumeAcrossWarehouses(ctx context.Context, input DrainInput) (*DrainResult, error)
	ConsumeAcrossWarehousesTx(ctx context.Context, tx *gorm.DB, input DrainInput) (*DrainResult, error)
	QueryItem(ctx context.Context, itemID uuid.UUID) (*ItemStock, error)
	QueryRecord(ctx context.Context, itemID, warehouseID uuid.UUID) (*RecordDTO, error)
	InvalidateItems(ctx context.Context, itemIDs ...uuid.UUID)
}

// ServiceParams carries the stock ledger dependencies. Metrics, Cache and
// Logger are optional.
type ServiceParams struct {
	Repo     Repository
	DB       txRunner
	Journal  movementRecorder
	Catalog  referenceChecker
	Metrics  *metrics.StockMetrics
	Cache    CacheStore
	CacheTTL time.Duration
	Logger   *logger.Logger
}

type service struct {
	repo    Repository
	db      txRunner
	journal movementRecorder
	catalog referenceChecker
	metrics *metrics.StockMetrics
	cache   *itemCache
	logg    *logger.Logger
}

// NewService wires the stock ledger.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Journal == nil {
		return nil, fmt.Errorf("movement journal required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	return &service{
		repo:    params.Repo,
		db:      params.DB,
		journal: params.Journal,
		catalog: params.Catalog,
		metrics: params.Metrics,
		cache:   newItemCache(params.Cache, params.CacheTTL, params.Logger),
		logg:    params.Logger,
	}, nil
}

func (s *service) Receive(ctx context.Context, m Mutation) (*RecordDTO, error) {
	var out *RecordDTO
	if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = s.ReceiveTx(ctx, tx, m)
		return err
	}); err != nil {
		return nil, pkgerrors.Ensure(pkgerrors.CodeDependency, err, "receive stock")
	}
	s.InvalidateItems(ctx, m.ItemID)
	return out, nil
}

// ReceiveTx adds m.Quantity to the (item, warehouse) record, creating it on first receipt.
func (s *service) ReceiveTx(ctx context.Context, tx *gorm.DB, m Mutation) (*RecordDTO, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if m.Reason == "" {
		m.Reason = enums.MovementReasonManualReceipt
	}
	if err := validateMutation(m, true); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, tx, m.ItemKind, m.ItemID, m.WarehouseID); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	if m.Quantity == 0 {
		return s.currentRecord(ctx, repo, m.ItemID, m.WarehouseID)
	}

	if err := repo.UpsertIncrement(ctx, m.ItemID, m.WarehouseID, m.ItemKind, m.Quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: upsert stock record")
	}
	if _, err := s.journal.Record(ctx, tx, movements.RecordInput{
		OrderID:     m.OrderID,
		ItemID:      m.ItemID,
		WarehouseID: m.WarehouseID,
		Delta:       m.Quantity,
		Reason:      m.Reason,
		Actor:       m.Actor,
	}); err != nil {
		return nil, err
	}
	record, err := repo.Find(ctx, m.ItemID, m.WarehouseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload stock record")
	}

	s.metrics.ObserveMutation(metrics.StockOpReceive, m.Quantity)
	s.debug(ctx, "stock received", m.ItemID, m.WarehouseID, m.Quantity)
	return recordDTO(record), nil
}

func (s *service) Consume(ctx context.Context, m Mutation) (*ConsumeResult, error) {
	var out *ConsumeResult
	if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = s.ConsumeTx(ctx, tx, m)
		return err
	}); err != nil {
		return nil, pkgerrors.Ensure(pkgerrors.CodeDependency, err, "consume stock")
	}
	s.InvalidateItems(ctx, m.ItemID)
	return out, nil
}

// ConsumeTx takes up to m.Quantity from one key. Insufficient stock is reported
// as a shortfall; a missing record counts as zero on hand.
func (s *service) ConsumeTx(ctx context.Context, tx *gorm.DB, m Mutation) (*ConsumeResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if m.Reason == "" {
		m.Reason = enums.MovementReasonManualConsumption
	}
	if err := validateMutation(m, false); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, tx, m.ItemKind, m.ItemID, m.WarehouseID); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	record, err := repo.FindForUpdate(ctx, m.ItemID, m.WarehouseID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lock stock record")
	}

	onHand := 0
	if record != nil {
		onHand = record.Quantity
	}
	take := min(onHand, m.Quantity)
	if take > 0 {
		if err := s.decrement(ctx, tx, repo, record, take, m.Reason, m.OrderID, m.Actor); err != nil {
			return nil, err
		}
	}

	result := &ConsumeResult{
		ItemID:      m.ItemID,
		WarehouseID: m.WarehouseID,
		Requested:   m.Quantity,
		Consumed:    take,
		Shortfall:   m.Quantity - take,
		Remaining:   onHand - take,
	}
	if m.Quantity > 0 {
		s.metrics.ObserveMutation(metrics.StockOpConsume, take)
		s.metrics.AddShortfall(result.Shortfall)
		s.debug(ctx, "stock consumed", m.ItemID, m.WarehouseID, take)
	}
	return result, nil
}

func (s *service) ConsumeAcrossWarehouses(ctx context.Context, input DrainInput) (*DrainResult, error) {
	var out *DrainResult
	if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = s.ConsumeAcrossWarehousesTx(ctx, tx, input)
		return err
	}); err != nil {
		return nil, pkgerrors.Ensure(pkgerrors.CodeDependency, err, "consume stock across warehouses")
	}
	s.InvalidateItems(ctx, input.ItemID)
	return out, nil
}

// ConsumeAcrossWarehousesTx drains the item's records in ascending warehouse id
// order until the quantity is satisfied or every record is empty.
func (s *service) ConsumeAcrossWarehousesTx(ctx context.Context, tx *gorm.DB, input DrainInput) (*DrainResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.Reason == "" {
		input.Reason = enums.MovementReasonManualConsumption
	}
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if input.Quantity < 0 {
		return nil, negativeQuantity(input.Quantity)
	}
	if !input.Reason.IsValid() || input.Reason.IsReceipt() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid consumption reason %q", input.Reason))
	}

	result := &DrainResult{ItemID: input.ItemID, Requested: input.Quantity, Draws: []WarehouseDraw{}}
	if input.Quantity == 0 {
		return result, nil
	}

	repo := s.repo.WithTx(tx)
	records, err := repo.ListByItemForUpdate(ctx, input.ItemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lock stock records")
	}
	sort.SliceStable(records, func(i, j int) bool {
		return bytes.Compare(records[i].WarehouseID[:], records[j].WarehouseID[:]) < 0
	})

	remaining := input.Quantity
	for i := range records {
		if remaining == 0 {
			break
		}
		record := &records[i]
		take := min(record.Quantity, remaining)
		if take == 0 {
			continue
		}
		if err := s.decrement(ctx, tx, repo, record, take, input.Reason, input.OrderID, input.Actor); err != nil {
			return nil, err
		}
		remaining -= take
		result.Consumed += take
		result.Draws = append(result.Draws, WarehouseDraw{
			WarehouseID: record.WarehouseID,
			Consumed:    take,
			Remaining:   record.Quantity - take,
		})
	}
	result.Shortfall = remaining

	s.metrics.ObserveMutation(metrics.StockOpConsume, result.Consumed)
	s.metrics.AddShortfall(result.Shortfall)
	return result, nil
}

func (s *service) QueryItem(ctx context.Context, itemID uuid.UUID) (*ItemStock, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	cached, generation, cacheable := s.cache.get(ctx, itemID)
	if cached != nil {
		return cached, nil
	}
	records, err := s.repo.ListByItem(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list stock records")
	}
	out := itemStock(itemID, records)
	if cacheable {
		s.cache.put(ctx, out, generation)
	}
	return out, nil
}

func (s *service) QueryRecord(ctx context.Context, itemID, warehouseID uuid.UUID) (*RecordDTO, error) {
	if itemID == uuid.Nil || warehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id and warehouse id are required")
	}
	return s.currentRecord(ctx, s.repo, itemID, warehouseID)
}

func (s *service) InvalidateItems(ctx context.Context, itemIDs ...uuid.UUID) {
	s.cache.invalidate(ctx, itemIDs...)
}

func (s *service) decrement(ctx context.Context, tx *gorm.DB, repo Repository, record *models.StockRecord, take int, reason enums.MovementReason, orderID *uuid.UUID, actor string) error {
	rows, err := repo.Decrement(ctx, record.ItemID, record.WarehouseID, take, record.Version)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: decrement stock record")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "stock record changed concurrently").WithDetails(map[string]any{
			"item_id":      record.ItemID.String(),
			"warehouse_id": record.WarehouseID.String(),
		})
	}
	_, err = s.journal.Record(ctx, tx, movements.RecordInput{
		OrderID:     orderID,
		ItemID:      record.ItemID,
		WarehouseID: record.WarehouseID,
		Delta:       -take,
		Reason:      reason,
		Actor:       actor,
	})
	return err
}

func (s *service) currentRecord(ctx context.Context, repo Repository, itemID, warehouseID uuid.UUID) (*RecordDTO, error) {
	record, err := repo.Find(ctx, itemID, warehouseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &RecordDTO{ItemID: itemID, WarehouseID: warehouseID}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load stock record")
	}
	return recordDTO(record), nil
}

func (s *service) checkReferences(ctx context.Context, tx *gorm.DB, kind enums.ItemKind, itemID, warehouseID uuid.UUID) error {
	ok, err := s.catalog.WarehouseExists(ctx, tx, warehouseID)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "warehouse not found").
			WithDetails(map[string]any{"warehouse_id": warehouseID.String()})
	}
	if kind == "" {
		return nil
	}
	ok, err = s.catalog.ItemExists(ctx, tx, kind, itemID)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found").
			WithDetails(map[string]any{"item_id": itemID.String(), "item_kind": kind})
	}
	return nil
}

func (s *service) debug(ctx context.Context, msg string, itemID, warehouseID uuid.UUID, qty int) {
	if s.logg == nil {
		return
	}
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"item_id":      itemID.String(),
		"warehouse_id": warehouseID.String(),
		"quantity":     qty,
	}), msg)
}

func validateMutation(m Mutation, receipt bool) error {
	if m.ItemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if m.WarehouseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "warehouse id is required")
	}
	if m.Quantity < 0 {
		return negativeQuantity(m.Quantity)
	}
	if receipt && !m.ItemKind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid item kind %q", m.ItemKind))
	}
	if !receipt && m.ItemKind != "" && !m.ItemKind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid item kind %q", m.ItemKind))
	}
	if !m.Reason.IsValid() || m.Reason.IsReceipt() != receipt {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid movement reason %q", m.Reason))
	}
	return nil
}

func negativeQuantity(qty int) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative").
		WithDetails(map[string]any{"quantity": qty})
}
