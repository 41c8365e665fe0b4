package details

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

// Repository manages persistence for order detail lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, lines []models.OrderDetail) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.OrderDetail, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderDetail, error)
	MaxLineNo(ctx context.Context, orderID uuid.UUID) (int, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, qty int) error
	AssignItem(ctx context.Context, id, itemID uuid.UUID) (int64, error)
	DeleteByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	TouchOrder(ctx context.Context, orderID uuid.UUID, operator string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a detail repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBatch(ctx context.Context, lines []models.OrderDetail) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.OrderDetail, error) {
	var detail models.OrderDetail
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&detail).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderDetail, error) {
	var rows []models.OrderDetail
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("line_no ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MaxLineNo(ctx context.Context, orderID uuid.UUID) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&models.OrderDetail{}).
		Where("order_id = ?", orderID).
		Select("COALESCE(MAX(line_no), 0)").
		Scan(&max).Error
	return max, err
}

func (r *repository) UpdateQuantity(ctx context.Context, id uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderDetail{}).
		Where("id = ?", id).
		Update("quantity", qty).Error
}

// AssignItem binds a catalog item to a line that has none yet.
func (r *repository) AssignItem(ctx context.Context, id, itemID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderDetail{}).
		Where("id = ? AND item_id IS NULL", id).
		Update("item_id", itemID)
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.OrderDetail{})
	return res.RowsAffected, res.Error
}

func (r *repository) LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// TouchOrder stamps the parent order after a line edit.
func (r *repository) TouchOrder(ctx context.Context, orderID uuid.UUID, operator string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"last_modified_by": operator,
			"version":          gorm.Expr("version + 1"),
		}).Error
}
