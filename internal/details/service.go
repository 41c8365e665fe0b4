package details

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/validate"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type referenceChecker interface {
	ItemExists(ctx context.Context, tx *gorm.DB, kind enums.ItemKind, id uuid.UUID) (bool, error)
	WarehouseExists(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
}

// EditPolicy decides whether an order in the given status still accepts line edits.
type EditPolicy interface {
	DetailsEditable(kind enums.OrderKind, status enums.OrderStatus) bool
}

// Service owns the detail lines of every order.
type Service interface {
	CreateDetails(ctx context.Context, orderID uuid.UUID, lines []LineInput) ([]models.OrderDetail, error)
	CreateDetailsTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []LineInput) ([]models.OrderDetail, error)
	UpdateQuantity(ctx context.Context, input UpdateQuantityInput) (*models.OrderDetail, error)
	DeleteAllForOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	DeleteAllForOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderDetail, error)
	ListByOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.OrderDetail, error)
	AssignItemTx(ctx context.Context, tx *gorm.DB, detailID, itemID uuid.UUID) error
}

// ServiceParams carries the detail ledger dependencies. Logger is optional.
type ServiceParams struct {
	Repo    Repository
	DB      txRunner
	Catalog referenceChecker
	Policy  EditPolicy
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	db      txRunner
	catalog referenceChecker
	policy  EditPolicy
	logg    *logger.Logger
}

// NewService wires the detail ledger.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("details repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Policy == nil {
		return nil, fmt.Errorf("edit policy required")
	}
	return &service{
		repo:    params.Repo,
		db:      params.DB,
		catalog: params.Catalog,
		policy:  params.Policy,
		logg:    params.Logger,
	}, nil
}

func (s *service) CreateDetails(ctx context.Context, orderID uuid.UUID, lines []LineInput) ([]models.OrderDetail, error) {
	var out []models.OrderDetail
	if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = s.CreateDetailsTx(ctx, tx, orderID, lines)
		return err
	}); err != nil {
		return nil, pkgerrors.Ensure(pkgerrors.CodeDependency, err, "create order details")
	}
	return out, nil
}

// CreateDetailsTx validates and appends lines to an order that still accepts edits.
// Validation failures of every line are reported together.
func (s *service) CreateDetailsTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []LineInput) ([]models.OrderDetail, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	normalized := make([]LineInput, len(lines))
	for i, line := range lines {
		normalized[i] = line.Normalized()
	}
	if err := ValidateLines(normalized); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	order, err := s.lockEditableOrder(ctx, repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := CheckLineKinds(order.Kind, normalized); err != nil {
		return nil, err
	}
	if len(normalized) == 0 {
		return []models.OrderDetail{}, nil
	}
	if err := s.checkReferences(ctx, tx, normalized); err != nil {
		return nil, err
	}

	last, err := repo.MaxLineNo(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: read line numbers")
	}
	records := make([]models.OrderDetail, 0, len(normalized))
	for i, line := range normalized {
		records = append(records, models.OrderDetail{
			OrderID:     order.ID,
			LineNo:      last + i + 1,
			ItemKind:    line.ItemKind,
			ItemID:      line.ItemID,
			IsNew:       line.IsNew,
			NewItem:     line.NewItem,
			Quantity:    line.Quantity,
			WarehouseID: line.WarehouseID,
		})
	}
	if err := repo.CreateBatch(ctx, records); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order details")
	}
	return records, nil
}

func (s *service) UpdateQuantity(ctx context.Context, input UpdateQuantityInput) (*models.OrderDetail, error) {
	if input.DetailID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "detail id is required")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative").
			WithDetails(map[string]any{"quantity": input.Quantity})
	}

	var out *models.OrderDetail
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		detail, err := repo.FindByID(ctx, input.DetailID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order detail not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order detail")
		}
		if _, err := s.lockEditableOrder(ctx, repo, detail.OrderID); err != nil {
			return err
		}
		if err := repo.UpdateQuantity(ctx, detail.ID, input.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update detail quantity")
		}
		if err := repo.TouchOrder(ctx, detail.OrderID, input.Operator); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: touch order")
		}
		detail.Quantity = input.Quantity
		out = detail
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Ensure(pkgerrors.CodeDependency, err, "update detail quantity")
	}
	if s.logg != nil {
		logCtx := s.logg.WithOperator(s.logg.WithOrderID(ctx, out.OrderID.String()), input.Operator)
		s.logg.Info(s.logg.WithField(logCtx, "detail_id", out.ID.String()), "order detail quantity updated")
	}
	return out, nil
}

func (s *service) DeleteAllForOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var deleted int64
	if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = s.DeleteAllForOrderTx(ctx, tx, orderID)
		return err
	}); err != nil {
		return 0, pkgerrors.Ensure(pkgerrors.CodeDependency, err, "delete order details")
	}
	return deleted, nil
}

// DeleteAllForOrderTx removes every line of the order. An order without lines is a no-op.
func (s *service) DeleteAllForOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction required")
	}
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	deleted, err := s.repo.WithTx(tx).DeleteByOrder(ctx, orderID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete order details")
	}
	return deleted, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderDetail, error) {
	return s.list(ctx, s.repo, orderID)
}

func (s *service) ListByOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.OrderDetail, error) {
	return s.list(ctx, s.repo.WithTx(tx), orderID)
}

func (s *service) list(ctx context.Context, repo Repository, orderID uuid.UUID) ([]models.OrderDetail, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	rows, err := repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list order details")
	}
	return rows, nil
}

// AssignItemTx binds a freshly created catalog item to its line.
func (s *service) AssignItemTx(ctx context.Context, tx *gorm.DB, detailID, itemID uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if detailID == uuid.Nil || itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "detail id and item id are required")
	}
	rows, err := s.repo.WithTx(tx).AssignItem(ctx, detailID, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: assign detail item")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "order detail already bound to an item").
			WithDetails(map[string]any{"detail_id": detailID.String()})
	}
	return nil
}

func (s *service) lockEditableOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.LockOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
				WithDetails(map[string]any{"order_id": orderID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lock order")
	}
	if !s.policy.DetailsEditable(order.Kind, order.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order details can no longer be edited").
			WithDetails(map[string]any{
				"order_id": order.ID.String(),
				"kind":     order.Kind,
				"status":   order.Status,
			})
	}
	return order, nil
}

// checkReferences reports every unknown warehouse or item at once.
func (s *service) checkReferences(ctx context.Context, tx *gorm.DB, lines []LineInput) error {
	missing := map[string]any{}
	warehouses := map[uuid.UUID]bool{}
	for i, line := range lines {
		prefix := fmt.Sprintf("lines[%d]", i)
		ok, seen := warehouses[line.WarehouseID]
		if !seen {
			var err error
			ok, err = s.catalog.WarehouseExists(ctx, tx, line.WarehouseID)
			if err != nil {
				return err
			}
			warehouses[line.WarehouseID] = ok
		}
		if !ok {
			missing[prefix+".warehouse_id"] = line.WarehouseID.String()
		}
		if line.IsNew {
			continue
		}
		exists, err := s.catalog.ItemExists(ctx, tx, line.ItemKind, *line.ItemID)
		if err != nil {
			return err
		}
		if !exists {
			missing[prefix+".item_id"] = line.ItemID.String()
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "referenced warehouse or item not found").WithDetails(missing)
	}
	return nil
}

// CheckLineKinds enforces the item kind each order kind trades in. Sale lines
// must reference stocked products.
func CheckLineKinds(kind enums.OrderKind, lines []LineInput) error {
	want := kind.LineItemKind()
	problems := map[string]string{}
	for i, line := range lines {
		prefix := fmt.Sprintf("lines[%d]", i)
		if line.ItemKind != want {
			problems[prefix+".item_kind"] = fmt.Sprintf("must be %s for %s orders", want, kind)
		}
		if line.IsNew && !kind.AcceptsNewItems() {
			problems[prefix+".is_new"] = fmt.Sprintf("%s lines must reference an existing item", kind)
		}
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order details").WithDetails(problems)
	}
	return nil
}

// ValidateLines checks the shape of every line and merges the failures into
// one VALIDATION_ERROR keyed by line index.
func ValidateLines(lines []LineInput) error {
	var errs error
	for i, line := range lines {
		errs = multierr.Append(errs, validateLine(i, line))
	}
	if errs == nil {
		return nil
	}
	merged := map[string]string{}
	for _, err := range multierr.Errors(errs) {
		typed := pkgerrors.As(err)
		if typed == nil {
			return err
		}
		if details, ok := typed.Details().(map[string]string); ok {
			for k, v := range details {
				merged[k] = v
			}
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid order details").WithDetails(merged)
}

func validateLine(idx int, line LineInput) error {
	prefix := fmt.Sprintf("lines[%d]", idx)
	details := validate.Fields(line, prefix)
	if details == nil {
		details = map[string]string{}
	}
	if line.WarehouseID == uuid.Nil {
		details[prefix+".warehouse_id"] = "is required"
	}
	if line.IsNew {
		if line.ItemID != nil {
			details[prefix+".item_id"] = "must be empty for new items"
		}
		if line.NewItem == nil {
			details[prefix+".new_item"] = "is required for new items"
		}
	} else if line.ItemID == nil || *line.ItemID == uuid.Nil {
		details[prefix+".item_id"] = "is required"
	}
	if len(details) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid detail line").WithDetails(details)
}
