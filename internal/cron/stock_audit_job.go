package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/movements"
	"github.com/angelmondragon/orderflow-backend/internal/stock"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

// maxReportedDrift bounds how many mismatches one failing run lists.
const maxReportedDrift = 20

// StockAuditJobParams configure the stock journal audit.
type StockAuditJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Stock     stock.Repository
	Movements movements.Repository
}

// Drift is one (item, warehouse) pair whose stock record disagrees with the
// sum of its journal deltas.
type Drift struct {
	ItemID      uuid.UUID `json:"item_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Recorded    int       `json:"recorded"`
	Journaled   int       `json:"journaled"`
}

type stockAuditJob struct {
	logg      *logger.Logger
	db        txRunner
	stock     stock.Repository
	movements movements.Repository
}

// NewStockAuditJob checks that every stock record equals the net journal
// delta for its position. Any drift fails the run with a RECONCILIATION_ERROR.
func NewStockAuditJob(params StockAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Stock == nil || params.Movements == nil {
		return nil, fmt.Errorf("stock and movement repositories required")
	}
	return &stockAuditJob{
		logg:      params.Logger,
		db:        params.DB,
		stock:     params.Stock,
		movements: params.Movements,
	}, nil
}

func (j *stockAuditJob) Name() string { return "stock-journal-audit" }

func (j *stockAuditJob) Run(ctx context.Context) error {
	drift, checked, err := j.audit(ctx)
	if err != nil {
		return fmt.Errorf("stock audit: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"positions_checked": checked,
		"drift_count":       len(drift),
	})
	if len(drift) == 0 {
		j.logg.Info(logCtx, "stock.audit_clean")
		return nil
	}
	reported := drift
	if len(reported) > maxReportedDrift {
		reported = reported[:maxReportedDrift]
	}
	return pkgerrors.New(pkgerrors.CodeReconciliation, "stock records disagree with the movement journal").
		WithDetails(map[string]any{
			"drift_count": len(drift),
			"drift":       reported,
		})
}

func (j *stockAuditJob) audit(ctx context.Context) ([]Drift, int, error) {
	var (
		records []stockPosition
		totals  []movements.PositionTotal
	)
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.stock.WithTx(tx).ListAll(ctx)
		if err != nil {
			return fmt.Errorf("list stock records: %w", err)
		}
		for _, r := range rows {
			records = append(records, stockPosition{key: positionKey{r.ItemID, r.WarehouseID}, qty: r.Quantity})
		}
		totals, err = j.movements.WithTx(tx).SumByPosition(ctx)
		if err != nil {
			return fmt.Errorf("sum movements: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return compareJournal(records, totals), len(records), nil
}

type positionKey struct {
	item      uuid.UUID
	warehouse uuid.UUID
}

type stockPosition struct {
	key positionKey
	qty int
}

// compareJournal reports records whose quantity differs from the journal and
// journal positions with a non-zero net delta but no record.
func compareJournal(records []stockPosition, totals []movements.PositionTotal) []Drift {
	journaled := make(map[positionKey]int, len(totals))
	order := make([]positionKey, 0, len(totals))
	for _, t := range totals {
		k := positionKey{t.ItemID, t.WarehouseID}
		journaled[k] = t.Total
		order = append(order, k)
	}

	var drift []Drift
	seen := make(map[positionKey]struct{}, len(records))
	for _, r := range records {
		seen[r.key] = struct{}{}
		if sum := journaled[r.key]; sum != r.qty {
			drift = append(drift, Drift{ItemID: r.key.item, WarehouseID: r.key.warehouse, Recorded: r.qty, Journaled: sum})
		}
	}
	for _, k := range order {
		if _, ok := seen[k]; ok {
			continue
		}
		if sum := journaled[k]; sum != 0 {
			drift = append(drift, Drift{ItemID: k.item, WarehouseID: k.warehouse, Journaled: sum})
		}
	}
	return drift
}
