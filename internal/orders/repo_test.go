package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

func TestUpdateStatusGuardsObservedState(t *testing.T) {
	conn := dbtest.Open(t, "orders_repo")
	repo := NewRepository(conn)
	ctx := context.Background()

	order := &models.Order{Kind: enums.OrderKindSale, Subject: "s", Applicant: "a", Status: enums.OrderStatusCreated}
	require.NoError(t, repo.Create(ctx, order))
	require.Equal(t, 1, order.Version)

	rows, err := repo.UpdateStatus(ctx, StatusUpdate{OrderID: order.ID, From: enums.OrderStatusPaying, To: enums.OrderStatusCompleted, Version: 1})
	require.NoError(t, err)
	assert.Zero(t, rows, "stale status must not match")

	rows, err = repo.UpdateStatus(ctx, StatusUpdate{OrderID: order.ID, From: enums.OrderStatusCreated, To: enums.OrderStatusPaying, Version: 7})
	require.NoError(t, err)
	assert.Zero(t, rows, "stale version must not match")

	rows, err = repo.UpdateStatus(ctx, StatusUpdate{OrderID: order.ID, From: enums.OrderStatusCreated, To: enums.OrderStatusPaying, Version: 1, Operator: "eve"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	reloaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaying, reloaded.Status)
	assert.Equal(t, 2, reloaded.Version)
	assert.Equal(t, "eve", reloaded.LastModifiedBy)
	assert.Empty(t, reloaded.Details)
}

func TestDeleteCascadesToDetails(t *testing.T) {
	conn := dbtest.Open(t, "orders_cascade")
	repo := NewRepository(conn)
	ctx := context.Background()

	wh := &models.Warehouse{Name: "W1"}
	require.NoError(t, conn.Create(wh).Error)
	order := &models.Order{Kind: enums.OrderKindPurchase, Subject: "s", Applicant: "a", Status: enums.OrderStatusCreated}
	require.NoError(t, repo.Create(ctx, order))
	require.NoError(t, conn.Create(&models.OrderDetail{
		OrderID: order.ID, LineNo: 1, ItemKind: enums.ItemKindMaterial, Quantity: 1, WarehouseID: wh.ID,
	}).Error)

	rows, err := repo.Delete(ctx, order.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	var remaining int64
	require.NoError(t, conn.Model(&models.OrderDetail{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
}
