package stock

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/catalog"
	"github.com/angelmondragon/orderflow-backend/internal/movements"
	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/redis"
)

type fixture struct {
	conn    *gorm.DB
	client  *db.Client
	svc     Service
	reg     *prometheus.Registry
	cache   *fakeCache
	journal movements.Service
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	conn := dbtest.Open(t, "stock")
	client := db.NewFromConn(conn)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn))
	require.NoError(t, err)
	journal, err := movements.NewService(movements.NewRepository(conn))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	params := ServiceParams{
		Repo:    NewRepository(conn),
		DB:      client,
		Journal: journal,
		Catalog: catalogSvc,
		Metrics: metrics.NewStockMetrics(reg),
	}
	var cache *fakeCache
	if withCache {
		cache = newFakeCache()
		params.Cache = cache
		params.CacheTTL = time.Minute
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	return &fixture{conn: conn, client: client, svc: svc, reg: reg, cache: cache, journal: journal}
}

func (f *fixture) warehouse(t *testing.T, id uuid.UUID, name string) uuid.UUID {
	t.Helper()
	require.NoError(t, f.conn.Create(&models.Warehouse{ID: id, Name: name}).Error)
	return id
}

func (f *fixture) material(t *testing.T, name string) uuid.UUID {
	t.Helper()
	m := &models.Material{Name: name}
	require.NoError(t, f.conn.Create(m).Error)
	return m.ID
}

func (f *fixture) product(t *testing.T, name string) uuid.UUID {
	t.Helper()
	p := &models.Product{Name: name}
	require.NoError(t, f.conn.Create(p).Error)
	return p.ID
}

func (f *fixture) movementCount(t *testing.T, itemID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.StockMovement{}).Where("item_id = ?", itemID).Count(&count).Error)
	return count
}

type fakeCache struct {
	mu      sync.Mutex
	data    map[string]string
	gets    int
	deleted []string
	// beforeSet runs ahead of every Set, outside the lock.
	beforeSet func()
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.data[key]
	if !ok {
		return "", redis.ErrCacheMiss
	}
	return v, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.beforeSet != nil {
		c.beforeSet()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value.(string)
	return nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.data, key)
		c.deleted = append(c.deleted, key)
	}
	return nil
}

func (c *fakeCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := strconv.ParseInt(c.data[key], 10, 64)
	n++
	c.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (c *fakeCache) StockItemKey(itemID string) string {
	return "test:stock:" + itemID
}

func (c *fakeCache) StockItemGenerationKey(itemID string) string {
	return "test:stock-gen:" + itemID
}
