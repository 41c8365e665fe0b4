package stock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

var (
	warehouseOne = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	warehouseTwo = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

func receive(item, warehouse uuid.UUID, qty int) Mutation {
	return Mutation{ItemID: item, ItemKind: enums.ItemKindMaterial, WarehouseID: warehouse, Quantity: qty}
}

func TestReceiveCreatesThenIncrements(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	wh := f.warehouse(t, warehouseOne, "W1")
	split := f.material(t, "bolt")
	single := f.material(t, "nut")

	first, err := f.svc.Receive(ctx, receive(split, wh, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, first.Quantity)
	assert.Equal(t, 1, first.Version)

	second, err := f.svc.Receive(ctx, receive(split, wh, 4))
	require.NoError(t, err)
	assert.Equal(t, 7, second.Quantity)
	assert.Equal(t, 2, second.Version)

	_, err = f.svc.Receive(ctx, receive(single, wh, 7))
	require.NoError(t, err)

	a, err := f.svc.QueryRecord(ctx, split, wh)
	require.NoError(t, err)
	b, err := f.svc.QueryRecord(ctx, single, wh)
	require.NoError(t, err)
	assert.Equal(t, b.Quantity, a.Quantity, "two receipts must equal one receipt of the sum")
	assert.EqualValues(t, 2, f.movementCount(t, split))
}

func TestReceiveValidation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	wh := f.warehouse(t, warehouseOne, "W1")
	item := f.material(t, "bolt")

	_, err := f.svc.Receive(ctx, receive(item, wh, -1))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = f.svc.Receive(ctx, receive(uuid.Nil, wh, 1))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Receive(ctx, receive(item, uuid.New(), 1))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "unknown warehouse, got %v", err)

	_, err = f.svc.Receive(ctx, receive(uuid.New(), wh, 1))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "unknown item, got %v", err)

	m := receive(item, wh, 1)
	m.Reason = enums.MovementReasonSaleConsumption
	_, err = f.svc.Receive(ctx, m)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	rec, err := f.svc.QueryRecord(ctx, item, wh)
	require.NoError(t, err)
	assert.Zero(t, rec.Quantity)
	assert.Zero(t, f.movementCount(t, item))
}

func TestReceiveZeroIsNoop(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	wh := f.warehouse(t, warehouseOne, "W1")
	item := f.material(t, "bolt")

	rec, err := f.svc.Receive(ctx, receive(item, wh, 0))
	require.NoError(t, err)
	assert.Zero(t, rec.Quantity)

	var count int64
	require.NoError(t, f.conn.Model(&models.StockRecord{}).Count(&count).Error)
	assert.Zero(t, count, "zero receipt must not create a record")
	assert.Zero(t, f.movementCount(t, item))
}

func TestConsumeClampsAtZero(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	wh := f.warehouse(t, warehouseOne, "W1")
	item := f.material(t, "bolt")
	_, err := f.svc.Receive(ctx, receive(item, wh, 10))
	require.NoError(t, err)

	consume := func(qty int) *ConsumeResult {
		res, err := f.svc.Consume(ctx, Mutation{ItemID: item, WarehouseID: wh, Quantity: qty})
		require.NoError(t, err)
		return res
	}

	res := consume(4)
	assert.Equal(t, 4, res.Consumed)
	assert.Equal(t, 6, res.Remaining)

	res = consume(3)
	assert.Equal(t, 3, res.Remaining)

	res = consume(5)
	assert.Equal(t, 3, res.Consumed)
	assert.Equal(t, 2, res.Shortfall)
	assert.Equal(t, 0, res.Remaining)

	res = consume(1)
	assert.Equal(t, 0, res.Consumed)
	assert.Equal(t, 1, res.Shortfall)

	rec, err := f.svc.QueryRecord(ctx, item, wh)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Quantity)

	var deltas []int
	require.NoError(t, f.conn.Model(&models.StockMovement{}).Where("item_id = ?", item).Order("created_at ASC").Pluck("delta", &deltas).Error)
	sum := 0
	for _, d := range deltas {
		sum += d
	}
	assert.Equal(t, 0, sum, "journal must net to the on-hand quantity")
	assert.Len(t, deltas, 4, "a fully short consume writes no journal row")
}

func TestConsumeMissingRecordReportsShortfall(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	wh := f.warehouse(t, warehouseOne, "W1")
	item := f.material(t, "bolt")

	res, err := f.svc.Consume(ctx, Mutation{ItemID: item, WarehouseID: wh, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Consumed)
	assert.Equal(t, 5, res.Shortfall)

	_, err = f.svc.Consume(ctx, Mutation{ItemID: item, WarehouseID: wh, Quantity: -2})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

// dbtest pins SQLite to one connection, so callers here run their
// transactions one after another. This checks that concurrent callers all
// land in the record and the journal. Lost updates between live connections
// are exercised against Postgres in postgres_integration_test.go.
func TestConcurrentReceivesAccumulateAndJournal(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	wh := f.warehouse(t, warehouseOne, "W1")
	item := f.material(t, "bolt")

	const workers = 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Receive(ctx, receive(item, wh, 5)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rec, err := f.svc.QueryRecord(ctx, item, wh)
	require.NoError(t, err)
	assert.Equal(t, 5*workers, rec.Quantity)
	assert.Equal(t, workers, rec.Version)

	var journaled int
	require.NoError(t, f.conn.Model(&models.StockMovement{}).
		Select("COALESCE(SUM(delta), 0)").
		Where("item_id = ? AND warehouse_id = ?", item, wh).
		Scan(&journaled).Error)
	assert.Equal(t, rec.Quantity, journaled)
	assert.Equal(t, int64(workers), f.movementCount(t, item))
}

func TestConsumeAcrossWarehousesDrainsInWarehouseOrder(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	w2 := f.warehouse(t, warehouseTwo, "W2")
	w1 := f.warehouse(t, warehouseOne, "W1")
	product := f.product(t, "chair")

	for _, m := range []Mutation{
		{ItemID: product, ItemKind: enums.ItemKindProduct, WarehouseID: w2, Quantity: 4},
		{ItemID: product, ItemKind: enums.ItemKindProduct, WarehouseID: w1, Quantity: 3},
	} {
		_, err := f.svc.Receive(ctx, m)
		require.NoError(t, err)
	}

	orderID := uuid.New()
	res, err := f.svc.ConsumeAcrossWarehouses(ctx, DrainInput{
		ItemID:   product,
		Quantity: 5,
		Reason:   enums.MovementReasonSaleConsumption,
		OrderID:  &orderID,
		Actor:    "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Consumed)
	assert.Zero(t, res.Shortfall)
	require.Len(t, res.Draws, 2)
	assert.Equal(t, WarehouseDraw{WarehouseID: w1, Consumed: 3, Remaining: 0}, res.Draws[0])
	assert.Equal(t, WarehouseDraw{WarehouseID: w2, Consumed: 2, Remaining: 2}, res.Draws[1])

	agg, err := f.svc.QueryItem(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Total)
	assert.Equal(t, 0, agg.QuantityIn(w1))
	assert.Equal(t, 2, agg.QuantityIn(w2))

	journal, err := f.journal.ListByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, journal, 2)
	for _, entry := range journal {
		assert.Equal(t, enums.MovementReasonSaleConsumption, entry.Reason)
		assert.Equal(t, "bob", entry.Actor)
		assert.Negative(t, entry.Delta)
	}
}

func TestConsumeAcrossWarehousesReportsShortfall(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	w1 := f.warehouse(t, warehouseOne, "W1")
	product := f.product(t, "chair")
	_, err := f.svc.Receive(ctx, Mutation{ItemID: product, ItemKind: enums.ItemKindProduct, WarehouseID: w1, Quantity: 2})
	require.NoError(t, err)

	res, err := f.svc.ConsumeAcrossWarehouses(ctx, DrainInput{ItemID: product, Quantity: 6})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Consumed)
	assert.Equal(t, 4, res.Shortfall)

	res, err = f.svc.ConsumeAcrossWarehouses(ctx, DrainInput{ItemID: uuid.New(), Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Shortfall)
	assert.Empty(t, res.Draws)

	res, err = f.svc.ConsumeAcrossWarehouses(ctx, DrainInput{ItemID: product, Quantity: 0})
	require.NoError(t, err)
	assert.Zero(t, res.Consumed)
}

func TestTxVariantsRollBackWithEnclosingTransaction(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	wh := f.warehouse(t, warehouseOne, "W1")
	item := f.material(t, "bolt")

	boom := errors.New("boom")
	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := f.svc.ReceiveTx(ctx, tx, receive(item, wh, 9)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rec, err := f.svc.QueryRecord(ctx, item, wh)
	require.NoError(t, err)
	assert.Zero(t, rec.Quantity)
	assert.Zero(t, f.movementCount(t, item))

	_, err = f.svc.ReceiveTx(ctx, nil, receive(item, wh, 1))
	require.Error(t, err)
}

func TestQueryItemUsesCacheAndInvalidatesOnMutation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	wh := f.warehouse(t, warehouseOne, "W1")
	item := f.material(t, "bolt")

	_, err := f.svc.Receive(ctx, receive(item, wh, 2))
	require.NoError(t, err)

	first, err := f.svc.QueryItem(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Total)
	require.Contains(t, f.cache.data, f.cache.StockItemKey(item.String()))

	require.NoError(t, f.conn.Model(&models.StockRecord{}).Where("item_id = ?", item).Update("quantity", 50).Error)
	cached, err := f.svc.QueryItem(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 2, cached.Total, "second read is served from cache")

	_, err = f.svc.Receive(ctx, receive(item, wh, 1))
	require.NoError(t, err)
	assert.NotContains(t, f.cache.data, f.cache.StockItemKey(item.String()))

	fresh, err := f.svc.QueryItem(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 51, fresh.Total)
}

func TestQueryItemDoesNotPinTotalsReadBeforeConcurrentMutation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	wh := f.warehouse(t, warehouseOne, "W1")
	item := f.material(t, "bolt")
	_, err := f.svc.Receive(ctx, receive(item, wh, 1))
	require.NoError(t, err)

	var once sync.Once
	f.cache.beforeSet = func() {
		once.Do(func() {
			_, err := f.svc.Receive(ctx, receive(item, wh, 10))
			require.NoError(t, err)
		})
	}

	raced, err := f.svc.QueryItem(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 1, raced.Total, "the racing read saw the pre-commit total")
	require.Contains(t, f.cache.data, f.cache.StockItemKey(item.String()), "the stale entry was written back")

	after, err := f.svc.QueryItem(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 11, after.Total)
	rec, err := f.svc.QueryRecord(ctx, item, wh)
	require.NoError(t, err)
	assert.Equal(t, rec.Quantity, after.Total)

	f.cache.beforeSet = nil
	cached, err := f.svc.QueryItem(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 11, cached.Total)
}

func TestQueryItemSkipsCacheWhenGenerationUnreadable(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	wh := f.warehouse(t, warehouseOne, "W1")
	item := f.material(t, "bolt")
	_, err := f.svc.Receive(ctx, receive(item, wh, 3))
	require.NoError(t, err)

	f.cache.data[f.cache.StockItemGenerationKey(item.String())] = "garbage"
	got, err := f.svc.QueryItem(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Total)
	assert.NotContains(t, f.cache.data, f.cache.StockItemKey(item.String()))
}

func TestStockMetricsRecorded(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	wh := f.warehouse(t, warehouseOne, "W1")
	item := f.material(t, "bolt")
	_, err := f.svc.Receive(ctx, receive(item, wh, 3))
	require.NoError(t, err)
	_, err = f.svc.Consume(ctx, Mutation{ItemID: item, WarehouseID: wh, Quantity: 5})
	require.NoError(t, err)

	mfs, err := f.reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				values[mf.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), values["stock_mutations_total"])
	assert.Equal(t, float64(6), values["stock_units_total"])
	assert.Equal(t, float64(2), values["stock_shortfall_units_total"])
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
