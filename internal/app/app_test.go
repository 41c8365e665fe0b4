package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/internal/catalog"
	"github.com/angelmondragon/orderflow-backend/internal/details"
	"github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

func TestBuildWiresPurchaseImportEndToEnd(t *testing.T) {
	ctx := context.Background()
	c, err := Build(Params{DB: dbtest.Client(t, "app")})
	require.NoError(t, err)
	require.Nil(t, c.Redis)

	wh, err := c.Catalog.CreateWarehouse(ctx, catalog.WarehouseInput{Name: "Main"})
	require.NoError(t, err)

	order, err := c.Orders.Submit(ctx, orders.SubmitInput{
		Kind:      enums.OrderKindPurchase,
		Subject:   "bolts",
		Applicant: "alice",
		Lines: []details.LineInput{{
			ItemKind:    enums.ItemKindMaterial,
			IsNew:       true,
			NewItem:     &types.NewItemAttributes{Name: "M6 bolt"},
			Quantity:    10,
			WarehouseID: wh.ID,
		}},
	})
	require.NoError(t, err)

	var result *orders.TransitionResult
	for _, to := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusVerifying, enums.OrderStatusImported} {
		result, err = c.Orders.Transition(ctx, orders.TransitionInput{OrderID: order.ID, Target: to, Operator: "bob"})
		require.NoError(t, err)
	}
	require.NotNil(t, result.Reconciliation)
	require.Len(t, result.Reconciliation.CreatedItems, 1)
	itemID := result.Reconciliation.CreatedItems[0].ItemID

	agg, err := c.Stock.QueryItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 10, agg.Total)
	assert.Equal(t, 10, agg.QuantityIn(wh.ID))

	journal, err := c.Movements.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, journal, 1)

	mfs, err := c.Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["order_transitions_total"])
	assert.True(t, names["stock_mutations_total"])

	require.NoError(t, c.Close())
}

func TestBuildRequiresDB(t *testing.T) {
	_, err := Build(Params{})
	require.Error(t, err)
}

func TestNewOpensSQLiteWithoutRedis(t *testing.T) {
	cfg := &config.Config{
		DB: config.DBConfig{
			Driver: config.DriverSQLite,
			DSN:    "file:app_new_" + uuid.NewString() + "?mode=memory&cache=shared",
		},
		FeatureFlags: config.FeatureFlagsConfig{StockCache: true},
	}
	c, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, c.Redis, "stock cache needs a redis endpoint")
	require.NoError(t, c.DB.Ping(context.Background()))
	require.NoError(t, c.Close())
}

func TestNewRejectsMissingConfig(t *testing.T) {
	_, err := New(context.Background(), nil, nil)
	require.Error(t, err)
}
