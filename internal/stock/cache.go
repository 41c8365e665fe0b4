package stock

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/redis"
)

// CacheStore is the key/value surface used to cache aggregate item stock.
// *redis.Client satisfies it.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
	StockItemKey(itemID string) string
	StockItemGenerationKey(itemID string) string
}

// itemCache is a read-through cache for QueryItem. Failures degrade to a
// cache miss and never fail the caller.
//
// Every invalidation bumps a per-item generation counter. Entries are stamped
// with the generation observed before the database read and only served while
// it is still current, so a read that raced a commit cannot pin a stale total.
type itemCache struct {
	store CacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

type cachedItem struct {
	Generation int64      `json:"generation"`
	Stock      *ItemStock `json:"stock"`
}

func newItemCache(store CacheStore, ttl time.Duration, logg *logger.Logger) *itemCache {
	if store == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &itemCache{store: store, ttl: ttl, logg: logg}
}

// get returns the cached aggregate when it is current. On a miss it still
// returns the generation to stamp the refill with; usable is false when the
// generation could not be read and the result must not be cached.
func (c *itemCache) get(ctx context.Context, itemID uuid.UUID) (stock *ItemStock, generation int64, usable bool) {
	if c == nil {
		return nil, 0, false
	}
	generation, err := c.generation(ctx, itemID)
	if err != nil {
		c.warn(ctx, "stock cache generation unreadable", itemID, err)
		return nil, 0, false
	}
	raw, err := c.store.Get(ctx, c.store.StockItemKey(itemID.String()))
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			c.warn(ctx, "stock cache read failed", itemID, err)
		}
		return nil, generation, true
	}
	var entry cachedItem
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.warn(ctx, "stock cache entry unreadable", itemID, err)
		return nil, generation, true
	}
	if entry.Stock == nil || entry.Generation != generation {
		return nil, generation, true
	}
	return entry.Stock, generation, true
}

func (c *itemCache) generation(ctx context.Context, itemID uuid.UUID) (int64, error) {
	raw, err := c.store.Get(ctx, c.store.StockItemGenerationKey(itemID.String()))
	if errors.Is(err, redis.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (c *itemCache) put(ctx context.Context, stock *ItemStock, generation int64) {
	if c == nil || stock == nil {
		return
	}
	payload, err := json.Marshal(cachedItem{Generation: generation, Stock: stock})
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.store.StockItemKey(stock.ItemID.String()), string(payload), c.ttl); err != nil {
		c.warn(ctx, "stock cache write failed", stock.ItemID, err)
	}
}

func (c *itemCache) invalidate(ctx context.Context, itemIDs ...uuid.UUID) {
	if c == nil || len(itemIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(itemIDs))
	seen := make(map[uuid.UUID]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		if _, err := c.store.Incr(ctx, c.store.StockItemGenerationKey(id.String())); err != nil {
			c.warn(ctx, "stock cache generation bump failed", id, err)
		}
		keys = append(keys, c.store.StockItemKey(id.String()))
	}
	if len(keys) == 0 {
		return
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		c.warn(ctx, "stock cache invalidation failed", uuid.Nil, err)
	}
}

func (c *itemCache) warn(ctx context.Context, msg string, itemID uuid.UUID, err error) {
	if c.logg == nil {
		return
	}
	fields := map[string]any{"error": err.Error()}
	if itemID != uuid.Nil {
		fields["item_id"] = itemID.String()
	}
	c.logg.Warn(c.logg.WithFields(ctx, fields), msg)
}
