package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/details"
	"github.com/angelmondragon/orderflow-backend/internal/reconciliation"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/orderflow-backend/pkg/pagination"
	"github.com/angelmondragon/orderflow-backend/pkg/validate"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type detailLedger interface {
	CreateDetailsTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []details.LineInput) ([]models.OrderDetail, error)
	DeleteAllForOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, tx *gorm.DB, input reconciliation.Input) (*reconciliation.Result, error)
}

// StockCache drops cached aggregates of items whose stock changed.
type StockCache interface {
	InvalidateItems(ctx context.Context, itemIDs ...uuid.UUID)
}

// Service runs the order lifecycle.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*pagination.Page[models.Order], error)
	AvailableTransitions(ctx context.Context, id uuid.UUID) ([]enums.OrderStatus, error)
	Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error)
	Delete(ctx context.Context, input DeleteInput) error
}

// ServiceParams carries the order service dependencies. Stock, Metrics and
// Logger are optional.
type ServiceParams struct {
	Repo       Repository
	DB         txRunner
	Details    detailLedger
	Reconciler reconciler
	Outbox     outboxPublisher
	Stock      StockCache
	Metrics    *metrics.WorkflowMetrics
	Logger     *logger.Logger
}

type service struct {
	repo       Repository
	db         txRunner
	details    detailLedger
	reconciler reconciler
	outbox     outboxPublisher
	stock      StockCache
	metrics    *metrics.WorkflowMetrics
	logg       *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Details == nil {
		return nil, fmt.Errorf("detail ledger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:       params.Repo,
		db:         params.DB,
		details:    params.Details,
		reconciler: params.Reconciler,
		outbox:     params.Outbox,
		stock:      params.Stock,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

// Submit stores the order in its kind's initial status together with its lines.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.Order, error) {
	input = input.normalized()
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	wf, err := WorkflowFor(input.Kind)
	if err != nil {
		return nil, err
	}
	if err := details.ValidateLines(input.Lines); err != nil {
		return nil, err
	}
	if err := details.CheckLineKinds(input.Kind, input.Lines); err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		order = &models.Order{
			Kind:           input.Kind,
			Subject:        input.Subject,
			Applicant:      input.Applicant,
			Status:         wf.Initial(),
			LastModifiedBy: input.Operator,
		}
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order")
		}
		lines, err := s.details.CreateDetailsTx(ctx, tx, order.ID, input.Lines)
		if err != nil {
			return err
		}
		order.Details = lines

		return s.emit(ctx, tx, order.ID, enums.EventOrderSubmitted, input.Operator, payloads.OrderSubmittedEvent{
			OrderID:     order.ID,
			Kind:        order.Kind,
			Status:      order.Status,
			Subject:     order.Subject,
			Applicant:   order.Applicant,
			DetailCount: len(lines),
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(pkgerrors.CodeDependency, err, "submit order")
	}

	s.metrics.IncSubmission(string(order.Kind))
	if s.logg != nil {
		logCtx := s.logg.WithOperator(s.logg.WithOrder(ctx, order.ID.String(), string(order.Kind)), input.Operator)
		s.logg.Info(s.logg.WithField(logCtx, "detail_count", len(order.Details)), "order submitted")
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrDependency(err, id, "db: load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*pagination.Page[models.Order], error) {
	if filters.Kind != nil && !filters.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order kind %q", *filters.Kind))
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", *filters.Status))
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list orders")
	}
	page := pagination.BuildPage(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &page, nil
}

// AvailableTransitions lists the statuses the order may move to next.
func (s *service) AvailableTransitions(ctx context.Context, id uuid.UUID) ([]enums.OrderStatus, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	wf, err := WorkflowFor(order.Kind)
	if err != nil {
		return nil, err
	}
	return wf.Targets(order.Status), nil
}

// Transition moves the order to input.Target. The order row stays locked for
// the whole transaction and goods movements run inside it, so a failed
// reconciliation leaves status and stock untouched.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid target status %q", input.Target))
	}

	var (
		kind   enums.OrderKind
		result *TransitionResult
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, input.OrderID)
		if err != nil {
			return notFoundOrDependency(err, input.OrderID, "db: lock order")
		}
		kind = order.Kind

		wf, err := WorkflowFor(order.Kind)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order has unknown kind")
		}
		from := order.Status
		if !wf.Allows(from, input.Target) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move %s order from %s to %s", order.Kind, from, input.Target)).
				WithDetails(map[string]any{
					"order_id": order.ID.String(),
					"kind":     order.Kind,
					"from":     from,
					"to":       input.Target,
					"allowed":  wf.Targets(from),
				})
		}

		movement := wf.Movement(input.Target)
		var recon *reconciliation.Result
		if movement.MovesStock() {
			recon, err = s.reconciler.Reconcile(ctx, tx, reconciliation.Input{
				Order:    order,
				Movement: movement,
				Operator: input.Operator,
			})
			if err != nil {
				return err
			}
		}

		rows, err := repo.UpdateStatus(ctx, StatusUpdate{
			OrderID:  order.ID,
			From:     from,
			To:       input.Target,
			Version:  order.Version,
			Operator: input.Operator,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order status")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}

		updated, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload order")
		}
		if err := s.emit(ctx, tx, order.ID, enums.EventOrderTransitioned, input.Operator, transitionedEvent(updated, from, recon)); err != nil {
			return err
		}
		result = &TransitionResult{
			Order:          updated,
			From:           from,
			To:             input.Target,
			Movement:       movement,
			Reconciliation: recon,
		}
		return nil
	})
	if err != nil {
		s.metrics.IncTransition(string(kind), string(input.Target), transitionOutcome(err))
		err = pkgerrors.Ensure(pkgerrors.CodeDependency, err, "transition order")
		if s.logg != nil && !pkgerrors.Is(err, pkgerrors.CodeInvalidTransition) && !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			logCtx := s.logg.WithOperator(s.logg.WithOrder(ctx, input.OrderID.String(), string(kind)), input.Operator)
			s.logg.Error(s.logg.WithField(logCtx, "target", input.Target), "order transition failed", err)
		}
		return nil, err
	}

	s.metrics.IncTransition(string(kind), string(input.Target), metrics.OutcomeApplied)
	if result.Reconciliation != nil && s.stock != nil {
		s.stock.InvalidateItems(ctx, result.Reconciliation.TouchedItems...)
	}
	if s.logg != nil {
		logCtx := s.logg.WithOperator(s.logg.WithOrder(ctx, input.OrderID.String(), string(kind)), input.Operator)
		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"from":     result.From,
			"to":       result.To,
			"movement": result.Movement,
		}), "order transitioned")
	}
	return result, nil
}

// Delete removes the order and its lines in one transaction. Stock already
// moved by the order is not reverted.
func (s *service) Delete(ctx context.Context, input DeleteInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	var order *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = repo.FindForUpdate(ctx, input.OrderID)
		if err != nil {
			return notFoundOrDependency(err, input.OrderID, "db: lock order")
		}
		deleted, err := s.details.DeleteAllForOrderTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if _, err := repo.Delete(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete order")
		}
		return s.emit(ctx, tx, order.ID, enums.EventOrderDeleted, input.Operator, payloads.OrderDeletedEvent{
			OrderID:        order.ID,
			Kind:           order.Kind,
			Status:         order.Status,
			DeletedDetails: deleted,
		})
	})
	if err != nil {
		return pkgerrors.Ensure(pkgerrors.CodeDependency, err, "delete order")
	}
	if s.logg != nil {
		logCtx := s.logg.WithOperator(s.logg.WithOrder(ctx, order.ID.String(), string(order.Kind)), input.Operator)
		s.logg.Info(logCtx, "order deleted")
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, eventType enums.OutboxEventType, operator string, data any) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data:          data,
	}
	if operator != "" {
		event.Actor = &outbox.ActorRef{Operator: operator}
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit outbox event")
	}
	return nil
}

func transitionedEvent(order *models.Order, from enums.OrderStatus, recon *reconciliation.Result) payloads.OrderTransitionedEvent {
	event := payloads.OrderTransitionedEvent{
		OrderID: order.ID,
		Kind:    order.Kind,
		From:    from,
		To:      order.Status,
		Version: order.Version,
	}
	if recon == nil {
		return event
	}
	event.Receipts = len(recon.Receipts)
	event.Consumptions = len(recon.Consumptions)
	for _, created := range recon.CreatedItems {
		event.CreatedItems = append(event.CreatedItems, created.ItemID)
	}
	for _, short := range recon.Shortfalls {
		event.Shortfalls = append(event.Shortfalls, payloads.Shortfall{
			ItemID:   short.ItemID,
			Missing:  short.Missing,
			DetailID: short.DetailID,
		})
	}
	return event
}

func transitionOutcome(err error) string {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeInvalidTransition, pkgerrors.CodeValidation, pkgerrors.CodeNotFound:
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeFailed
}

func notFoundOrDependency(err error, id uuid.UUID, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"order_id": id.String()})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
