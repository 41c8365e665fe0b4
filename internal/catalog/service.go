package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
	"github.com/angelmondragon/orderflow-backend/pkg/validate"
)

// Service is the narrow catalog surface the order core depends on. Tx-taking
// methods run on the caller's transaction; a nil tx uses the base connection.
type Service interface {
	CreateFromAttributes(ctx context.Context, tx *gorm.DB, kind enums.ItemKind, attrs types.NewItemAttributes) (uuid.UUID, error)
	ItemExists(ctx context.Context, tx *gorm.DB, kind enums.ItemKind, id uuid.UUID) (bool, error)
	WarehouseExists(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	CreateWarehouse(ctx context.Context, input WarehouseInput) (*models.Warehouse, error)
	ListWarehouses(ctx context.Context) ([]models.Warehouse, error)
}

// WarehouseInput holds the fields needed to register a warehouse.
type WarehouseInput struct {
	Name     string `json:"name" validate:"required"`
	Location string `json:"location"`
}

type service struct {
	repo Repository
}

// NewService wires a catalog service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// CreateFromAttributes materializes a new material or product and returns its id.
func (s *service) CreateFromAttributes(ctx context.Context, tx *gorm.DB, kind enums.ItemKind, attrs types.NewItemAttributes) (uuid.UUID, error) {
	attrs = attrs.Normalized()
	if err := validate.Struct(attrs); err != nil {
		return uuid.Nil, err
	}
	if attrs.UnitPrice.LessThan(decimal.Zero) {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative").
			WithDetails(map[string]any{"unit_price": attrs.UnitPrice.String()})
	}

	repo := s.repo.WithTx(tx)
	switch kind {
	case enums.ItemKindMaterial:
		material := &models.Material{
			Name:          attrs.Name,
			Specification: attrs.Specification,
			Unit:          attrs.Unit,
			UnitPrice:     attrs.UnitPrice,
		}
		if err := repo.CreateMaterial(ctx, material); err != nil {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert material")
		}
		return material.ID, nil
	case enums.ItemKindProduct:
		product := &models.Product{
			Name:          attrs.Name,
			Specification: attrs.Specification,
			Unit:          attrs.Unit,
			UnitPrice:     attrs.UnitPrice,
		}
		if err := repo.CreateProduct(ctx, product); err != nil {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		return product.ID, nil
	default:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid item kind %q", kind))
	}
}

func (s *service) ItemExists(ctx context.Context, tx *gorm.DB, kind enums.ItemKind, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	repo := s.repo.WithTx(tx)
	var (
		ok  bool
		err error
	)
	switch kind {
	case enums.ItemKindMaterial:
		ok, err = repo.MaterialExists(ctx, id)
	case enums.ItemKindProduct:
		ok, err = repo.ProductExists(ctx, id)
	default:
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid item kind %q", kind))
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lookup item")
	}
	return ok, nil
}

func (s *service) WarehouseExists(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	ok, err := s.repo.WithTx(tx).WarehouseExists(ctx, id)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lookup warehouse")
	}
	return ok, nil
}

func (s *service) CreateWarehouse(ctx context.Context, input WarehouseInput) (*models.Warehouse, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	warehouse := &models.Warehouse{
		Name:     input.Name,
		Location: strings.TrimSpace(input.Location),
	}
	if err := s.repo.CreateWarehouse(ctx, warehouse); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "warehouse name already exists").
				WithDetails(map[string]any{"name": input.Name})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert warehouse")
	}
	return warehouse, nil
}

func (s *service) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	rows, err := s.repo.ListWarehouses(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list warehouses")
	}
	return rows, nil
}
