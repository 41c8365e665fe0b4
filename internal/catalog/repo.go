package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

// Repository manages persistence for catalog items and warehouses.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateMaterial(ctx context.Context, material *models.Material) error
	CreateProduct(ctx context.Context, product *models.Product) error
	CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) error
	MaterialExists(ctx context.Context, id uuid.UUID) (bool, error)
	ProductExists(ctx context.Context, id uuid.UUID) (bool, error)
	WarehouseExists(ctx context.Context, id uuid.UUID) (bool, error)
	ListWarehouses(ctx context.Context) ([]models.Warehouse, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateMaterial(ctx context.Context, material *models.Material) error {
	return r.db.WithContext(ctx).Create(material).Error
}

func (r *repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *repository) CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) error {
	return r.db.WithContext(ctx).Create(warehouse).Error
}

func (r *repository) MaterialExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, &models.Material{}, id)
}

func (r *repository) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, &models.Product{}, id)
}

func (r *repository) WarehouseExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, &models.Warehouse{}, id)
}

func (r *repository) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	var rows []models.Warehouse
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) exists(ctx context.Context, model any, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
