package movements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

// Repository manages persistence for stock movements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, movement *models.StockMovement) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error)
	ListByItemID(ctx context.Context, itemID uuid.UUID, limit int) ([]models.StockMovement, error)
	SumByPosition(ctx context.Context) ([]PositionTotal, error)
}

// PositionTotal is the journal's net delta for one (item, warehouse) pair.
type PositionTotal struct {
	ItemID      uuid.UUID `gorm:"column:item_id"`
	WarehouseID uuid.UUID `gorm:"column:warehouse_id"`
	Total       int       `gorm:"column:total"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a movement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error) {
	var rows []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByItemID(ctx context.Context, itemID uuid.UUID, limit int) ([]models.StockMovement, error) {
	var rows []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) SumByPosition(ctx context.Context) ([]PositionTotal, error) {
	var rows []PositionTotal
	if err := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Select("item_id, warehouse_id, COALESCE(SUM(delta), 0) AS total").
		Group("item_id, warehouse_id").
		Order("item_id ASC").
		Order("warehouse_id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
