package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/orderflow-backend/internal/catalog"
	"github.com/angelmondragon/orderflow-backend/internal/details"
	"github.com/angelmondragon/orderflow-backend/internal/movements"
	"github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/internal/reconciliation"
	"github.com/angelmondragon/orderflow-backend/internal/stock"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/redis"
)

// Container owns the process-wide singletons and the services built on them.
type Container struct {
	DB       *db.Client
	Redis    *redis.Client
	Registry *prometheus.Registry

	Catalog        catalog.Service
	Movements      movements.Service
	Stock          stock.Service
	Details        details.Service
	Reconciliation reconciliation.Service
	Orders         orders.Service

	logg *logger.Logger
}

// New opens the database (and Redis when the stock cache is enabled) and wires
// every service.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logg == nil {
		logg = logger.Nop()
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}

	var redisClient *redis.Client
	if cfg.FeatureFlags.StockCache && cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("bootstrap redis: %w", err), dbClient.Close())
		}
	}

	c, err := Build(Params{
		DB:       dbClient,
		Redis:    redisClient,
		Registry: newRegistry(),
		Stock:    cfg.Stock,
		Logger:   logg,
	})
	if err != nil {
		closeErr := dbClient.Close()
		if redisClient != nil {
			closeErr = multierr.Append(closeErr, redisClient.Close())
		}
		return nil, multierr.Append(err, closeErr)
	}
	return c, nil
}

// Params carries already opened resources into Build.
type Params struct {
	DB       *db.Client
	Redis    *redis.Client
	Registry *prometheus.Registry
	Stock    config.StockConfig
	Logger   *logger.Logger
}

// Build wires the services on top of opened resources. Redis is optional.
func Build(p Params) (*Container, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if p.Registry == nil {
		p.Registry = prometheus.NewRegistry()
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	conn := p.DB.DB()

	workflowMetrics := metrics.NewWorkflowMetrics(p.Registry)
	stockMetrics := metrics.NewStockMetrics(p.Registry)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	journal, err := movements.NewService(movements.NewRepository(conn))
	if err != nil {
		return nil, err
	}

	stockParams := stock.ServiceParams{
		Repo:     stock.NewRepository(conn),
		DB:       p.DB,
		Journal:  journal,
		Catalog:  catalogSvc,
		Metrics:  stockMetrics,
		CacheTTL: p.Stock.CacheTTL,
		Logger:   p.Logger,
	}
	if p.Redis != nil {
		stockParams.Cache = p.Redis
	}
	stockSvc, err := stock.NewService(stockParams)
	if err != nil {
		return nil, err
	}

	detailSvc, err := details.NewService(details.ServiceParams{
		Repo:    details.NewRepository(conn),
		DB:      p.DB,
		Catalog: catalogSvc,
		Policy:  orders.EditPolicy(),
		Logger:  p.Logger,
	})
	if err != nil {
		return nil, err
	}

	reconciler, err := reconciliation.NewService(reconciliation.ServiceParams{
		Details: detailSvc,
		Catalog: catalogSvc,
		Stock:   stockSvc,
		Metrics: workflowMetrics,
		Logger:  p.Logger,
	})
	if err != nil {
		return nil, err
	}

	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:       orders.NewRepository(conn),
		DB:         p.DB,
		Details:    detailSvc,
		Reconciler: reconciler,
		Outbox:     outbox.NewService(outbox.NewRepository(), p.Logger),
		Stock:      stockSvc,
		Metrics:    workflowMetrics,
		Logger:     p.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Container{
		DB:             p.DB,
		Redis:          p.Redis,
		Registry:       p.Registry,
		Catalog:        catalogSvc,
		Movements:      journal,
		Stock:          stockSvc,
		Details:        detailSvc,
		Reconciliation: reconciler,
		Orders:         orderSvc,
		logg:           p.Logger,
	}, nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Close releases Redis and the database pool, reporting every failure.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var err error
	if c.Redis != nil {
		err = multierr.Append(err, c.Redis.Close())
	}
	if c.DB != nil {
		err = multierr.Append(err, c.DB.Close())
	}
	if err != nil {
		c.logg.Error(context.Background(), "container shutdown incomplete", err)
	}
	return err
}
