package movements

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

type fakeRepository struct {
	createFn func(ctx context.Context, movement *models.StockMovement) error
	created  []*models.StockMovement
	limit    int
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, movement *models.StockMovement) error {
	if f.createFn != nil {
		return f.createFn(ctx, movement)
	}
	f.created = append(f.created, movement)
	return nil
}

func (f *fakeRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error) {
	return nil, nil
}

func (f *fakeRepository) ListByItemID(ctx context.Context, itemID uuid.UUID, limit int) ([]models.StockMovement, error) {
	f.limit = limit
	return nil, nil
}

func (f *fakeRepository) SumByPosition(ctx context.Context) ([]PositionTotal, error) {
	return nil, nil
}

func TestService_Record(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	orderID := uuid.New()
	input := RecordInput{
		OrderID:     &orderID,
		ItemID:      uuid.New(),
		WarehouseID: uuid.New(),
		Delta:       10,
		Reason:      enums.MovementReasonPurchaseReceipt,
		Actor:       "alice",
	}
	got, err := svc.Record(context.Background(), &gorm.DB{}, input)
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if len(repo.created) != 1 || repo.created[0] != got {
		t.Fatalf("expected movement to be created and returned")
	}
	if got.Delta != 10 || got.Reason != enums.MovementReasonPurchaseReceipt || *got.OrderID != orderID || got.Actor != "alice" {
		t.Fatalf("unexpected movement data: %+v", got)
	}
}

func TestService_RecordValidation(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)
	tx := &gorm.DB{}
	base := RecordInput{ItemID: uuid.New(), WarehouseID: uuid.New(), Delta: -3, Reason: enums.MovementReasonSaleConsumption}

	cases := map[string]func(in RecordInput) RecordInput{
		"missing item":      func(in RecordInput) RecordInput { in.ItemID = uuid.Nil; return in },
		"missing warehouse": func(in RecordInput) RecordInput { in.WarehouseID = uuid.Nil; return in },
		"unknown reason":    func(in RecordInput) RecordInput { in.Reason = "gift"; return in },
		"zero delta":        func(in RecordInput) RecordInput { in.Delta = 0; return in },
		"positive consume":  func(in RecordInput) RecordInput { in.Delta = 3; return in },
		"negative receipt": func(in RecordInput) RecordInput {
			in.Reason = enums.MovementReasonManualReceipt
			return in
		},
	}
	for name, mutate := range cases {
		if _, err := svc.Record(context.Background(), tx, mutate(base)); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if _, err := svc.Record(context.Background(), nil, base); err == nil {
		t.Fatal("expected missing transaction to fail")
	}
	if len(repo.created) != 0 {
		t.Fatalf("nothing should be written on validation failure")
	}
}

func TestService_RecordWrapsStorageErrors(t *testing.T) {
	repo := &fakeRepository{createFn: func(ctx context.Context, movement *models.StockMovement) error {
		return errors.New("disk full")
	}}
	svc, _ := NewService(repo)
	_, err := svc.Record(context.Background(), &gorm.DB{}, RecordInput{
		ItemID: uuid.New(), WarehouseID: uuid.New(), Delta: 1, Reason: enums.MovementReasonManualReceipt,
	})
	if !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestService_ListByItemNormalizesLimit(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)
	if _, err := svc.ListByItem(context.Background(), uuid.New(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.limit != 25 {
		t.Fatalf("expected default limit 25, got %d", repo.limit)
	}
	if _, err := svc.ListByOrder(context.Background(), uuid.Nil); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil order id, got %v", err)
	}
}
