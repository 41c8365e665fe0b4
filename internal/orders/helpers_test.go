package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/catalog"
	"github.com/angelmondragon/orderflow-backend/internal/details"
	"github.com/angelmondragon/orderflow-backend/internal/movements"
	"github.com/angelmondragon/orderflow-backend/internal/reconciliation"
	"github.com/angelmondragon/orderflow-backend/internal/stock"
	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
)

var (
	warehouseOne = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	warehouseTwo = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

type recordingCache struct {
	mu    sync.Mutex
	items []uuid.UUID
}

func (c *recordingCache) InvalidateItems(ctx context.Context, itemIDs ...uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, itemIDs...)
}

type fixture struct {
	conn    *gorm.DB
	client  *db.Client
	svc     Service
	details details.Service
	stock   stock.Service
	journal movements.Service
	cache   *recordingCache
	reg     *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t, "orders")
	client := db.NewFromConn(conn)
	reg := prometheus.NewRegistry()
	workflowMetrics := metrics.NewWorkflowMetrics(reg)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn))
	require.NoError(t, err)
	journal, err := movements.NewService(movements.NewRepository(conn))
	require.NoError(t, err)
	stockSvc, err := stock.NewService(stock.ServiceParams{
		Repo:    stock.NewRepository(conn),
		DB:      client,
		Journal: journal,
		Catalog: catalogSvc,
		Metrics: metrics.NewStockMetrics(reg),
	})
	require.NoError(t, err)
	detailSvc, err := details.NewService(details.ServiceParams{
		Repo:    details.NewRepository(conn),
		DB:      client,
		Catalog: catalogSvc,
		Policy:  EditPolicy(),
	})
	require.NoError(t, err)
	reconciler, err := reconciliation.NewService(reconciliation.ServiceParams{
		Details: detailSvc,
		Catalog: catalogSvc,
		Stock:   stockSvc,
		Metrics: workflowMetrics,
	})
	require.NoError(t, err)

	cache := &recordingCache{}
	svc, err := NewService(ServiceParams{
		Repo:       NewRepository(conn),
		DB:         client,
		Details:    detailSvc,
		Reconciler: reconciler,
		Outbox:     outbox.NewService(nil, nil),
		Stock:      cache,
		Metrics:    workflowMetrics,
	})
	require.NoError(t, err)

	require.NoError(t, conn.Create(&models.Warehouse{ID: warehouseOne, Name: "W1"}).Error)
	require.NoError(t, conn.Create(&models.Warehouse{ID: warehouseTwo, Name: "W2"}).Error)

	return &fixture{
		conn:    conn,
		client:  client,
		svc:     svc,
		details: detailSvc,
		stock:   stockSvc,
		journal: journal,
		cache:   cache,
		reg:     reg,
	}
}

// seedOrder inserts an order directly in the given status, bypassing the workflow.
func (f *fixture) seedOrder(t *testing.T, kind enums.OrderKind, status enums.OrderStatus, lines ...models.OrderDetail) *models.Order {
	t.Helper()
	order := &models.Order{Kind: kind, Subject: "seed", Applicant: "alice", Status: status}
	require.NoError(t, f.conn.Create(order).Error)
	for i := range lines {
		lines[i].OrderID = order.ID
		lines[i].LineNo = i + 1
		require.NoError(t, f.conn.Create(&lines[i]).Error)
	}
	return order
}

func (f *fixture) product(t *testing.T, name string) uuid.UUID {
	t.Helper()
	p := &models.Product{Name: name}
	require.NoError(t, f.conn.Create(p).Error)
	return p.ID
}

func (f *fixture) material(t *testing.T, name string) uuid.UUID {
	t.Helper()
	m := &models.Material{Name: name}
	require.NoError(t, f.conn.Create(m).Error)
	return m.ID
}

func stockReceipt(itemID, warehouseID uuid.UUID, qty int) stock.Mutation {
	return stock.Mutation{ItemID: itemID, ItemKind: enums.ItemKindProduct, WarehouseID: warehouseID, Quantity: qty}
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", id).Error)
	return order
}

func (f *fixture) events(t *testing.T, orderID uuid.UUID) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.conn.Where("aggregate_id = ?", orderID).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func (f *fixture) transitionCount(t *testing.T, labels map[string]string) float64 {
	t.Helper()
	mfs, err := f.reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range mfs {
		if mf.GetName() != "order_transitions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := true
			for _, pair := range m.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					match = false
				}
			}
			if match {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}
