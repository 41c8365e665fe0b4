//go:build integration

package stock

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/catalog"
	"github.com/angelmondragon/orderflow-backend/internal/movements"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/migrate"
)

// PostgresLedgerSuite runs the ledger against real row locks and the goose
// schema, which SQLite cannot reproduce.
type PostgresLedgerSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	conn      *gorm.DB
	svc       Service
}

func TestPostgresLedgerSuite(t *testing.T) {
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("orderflow"),
		postgres.WithUsername("orderflow"),
		postgres.WithPassword("orderflow"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2)),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
	conn, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{})
	s.Require().NoError(err)
	s.conn = conn

	sqlDB, err := conn.DB()
	s.Require().NoError(err)
	s.Require().NoError(migrate.Run(ctx, sqlDB, migrate.DialectFor(config.DriverPostgres), "../../pkg/migrate/migrations", "up"))

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn))
	s.Require().NoError(err)
	journal, err := movements.NewService(movements.NewRepository(conn))
	s.Require().NoError(err)
	s.svc, err = NewService(ServiceParams{
		Repo:    NewRepository(conn),
		DB:      db.NewFromConn(conn),
		Journal: journal,
		Catalog: catalogSvc,
	})
	s.Require().NoError(err)
}

func (s *PostgresLedgerSuite) SetupTest() {
	s.Require().NoError(s.conn.Exec("TRUNCATE TABLE stock_movements, stock_records, materials, products, warehouses CASCADE").Error)
}

func (s *PostgresLedgerSuite) TearDownSuite() {
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *PostgresLedgerSuite) seed() (item, warehouse uuid.UUID) {
	wh := &models.Warehouse{ID: uuid.New(), Name: "main"}
	s.Require().NoError(s.conn.Create(wh).Error)
	m := &models.Material{Name: "bolt"}
	s.Require().NoError(s.conn.Create(m).Error)
	return m.ID, wh.ID
}

func (s *PostgresLedgerSuite) TestConcurrentReceivesAndConsumesStayConsistent() {
	ctx := context.Background()
	item, wh := s.seed()
	_, err := s.svc.Receive(ctx, receive(item, wh, 50))
	s.Require().NoError(err)

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		consumed int
	)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.svc.Receive(ctx, receive(item, wh, 1))
			s.NoError(err)
		}()
		go func() {
			defer wg.Done()
			res, err := s.svc.Consume(ctx, Mutation{ItemID: item, WarehouseID: wh, Quantity: 4, Reason: enums.MovementReasonManualConsumption})
			if s.NoError(err) {
				mu.Lock()
				consumed += res.Consumed
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	rec, err := s.svc.QueryRecord(ctx, item, wh)
	s.Require().NoError(err)
	s.Equal(50+workers-consumed, rec.Quantity)
	s.GreaterOrEqual(rec.Quantity, 0)

	var net int
	s.Require().NoError(s.conn.Model(&models.StockMovement{}).
		Where("item_id = ? AND warehouse_id = ?", item, wh).
		Select("COALESCE(SUM(delta), 0)").Scan(&net).Error)
	s.Equal(rec.Quantity, net, "journal must net to the on-hand quantity")
}

func (s *PostgresLedgerSuite) TestSchemaRejectsNegativeQuantity() {
	item, wh := s.seed()
	err := s.conn.Exec(
		"INSERT INTO stock_records (item_id, warehouse_id, item_kind, quantity) VALUES (?, ?, 'material', -1)",
		item, wh,
	).Error
	s.Error(err)
}
