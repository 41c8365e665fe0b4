package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// upsertSQL creates the record on first receipt and increments it afterwards
// in a single statement, so concurrent receipts on one key never lose updates.
const upsertSQL = `INSERT INTO stock_records (item_id, warehouse_id, item_kind, quantity, version, updated_at)
VALUES (?, ?, ?, ?, 1, CURRENT_TIMESTAMP)
ON CONFLICT (item_id, warehouse_id) DO UPDATE SET
  quantity = stock_records.quantity + excluded.quantity,
  version = stock_records.version + 1,
  updated_at = CURRENT_TIMESTAMP`

// Repository manages persistence for stock records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertIncrement(ctx context.Context, itemID, warehouseID uuid.UUID, kind enums.ItemKind, qty int) error
	Find(ctx context.Context, itemID, warehouseID uuid.UUID) (*models.StockRecord, error)
	FindForUpdate(ctx context.Context, itemID, warehouseID uuid.UUID) (*models.StockRecord, error)
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.StockRecord, error)
	ListAll(ctx context.Context) ([]models.StockRecord, error)
	ListByItemForUpdate(ctx context.Context, itemID uuid.UUID) ([]models.StockRecord, error)
	Decrement(ctx context.Context, itemID, warehouseID uuid.UUID, qty, observedVersion int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) UpsertIncrement(ctx context.Context, itemID, warehouseID uuid.UUID, kind enums.ItemKind, qty int) error {
	return r.db.WithContext(ctx).Exec(upsertSQL, itemID, warehouseID, kind, qty).Error
}

func (r *repository) Find(ctx context.Context, itemID, warehouseID uuid.UUID) (*models.StockRecord, error) {
	var record models.StockRecord
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND warehouse_id = ?", itemID, warehouseID).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindForUpdate(ctx context.Context, itemID, warehouseID uuid.UUID) (*models.StockRecord, error) {
	var record models.StockRecord
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("item_id = ? AND warehouse_id = ?", itemID, warehouseID).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.StockRecord, error) {
	var rows []models.StockRecord
	if err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("warehouse_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.StockRecord, error) {
	var rows []models.StockRecord
	if err := r.db.WithContext(ctx).
		Order("item_id ASC").
		Order("warehouse_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByItemForUpdate locks every record of the item in ascending warehouse
// order. Callers that lock several rows of one item always take them in this
// order, which keeps concurrent drains from deadlocking.
func (r *repository) ListByItemForUpdate(ctx context.Context, itemID uuid.UUID) ([]models.StockRecord, error) {
	var rows []models.StockRecord
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("item_id = ?", itemID).
		Order("warehouse_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Decrement subtracts qty when the row still holds at least qty at the
// observed version. It returns the affected row count.
func (r *repository) Decrement(ctx context.Context, itemID, warehouseID uuid.UUID, qty, observedVersion int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE stock_records
SET quantity = quantity - ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
WHERE item_id = ? AND warehouse_id = ? AND version = ? AND quantity >= ?`,
		qty, itemID, warehouseID, observedVersion, qty,
	)
	return res.RowsAffected, res.Error
}
