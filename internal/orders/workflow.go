package orders

import (
	"fmt"

	"github.com/angelmondragon/orderflow-backend/internal/details"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

// Workflow is the state machine of one order kind. Transition tables are data;
// statuses absent from the table are unknown to the kind.
type Workflow struct {
	kind        enums.OrderKind
	initial     enums.OrderStatus
	transitions map[enums.OrderStatus][]enums.OrderStatus
	movements   map[enums.OrderStatus]enums.GoodsMovement
	editable    map[enums.OrderStatus]bool
}

var workflows = map[enums.OrderKind]*Workflow{
	enums.OrderKindPurchase: {
		kind:    enums.OrderKindPurchase,
		initial: enums.OrderStatusCreated,
		transitions: map[enums.OrderStatus][]enums.OrderStatus{
			enums.OrderStatusCreated:    {enums.OrderStatusConfirmed, enums.OrderStatusClosed},
			enums.OrderStatusConfirmed:  {enums.OrderStatusVerifying},
			enums.OrderStatusVerifying:  {enums.OrderStatusImported, enums.OrderStatusDiscussing},
			enums.OrderStatusDiscussing: {enums.OrderStatusVerifying, enums.OrderStatusClosed},
			enums.OrderStatusImported:   {enums.OrderStatusClosed},
			enums.OrderStatusClosed:     {},
		},
		movements: map[enums.OrderStatus]enums.GoodsMovement{
			enums.OrderStatusImported: enums.GoodsMovementReceipt,
		},
		editable: map[enums.OrderStatus]bool{
			enums.OrderStatusCreated:    true,
			enums.OrderStatusConfirmed:  true,
			enums.OrderStatusVerifying:  true,
			enums.OrderStatusDiscussing: true,
		},
	},
	enums.OrderKindProduction: {
		kind:    enums.OrderKindProduction,
		initial: enums.OrderStatusCreated,
		transitions: map[enums.OrderStatus][]enums.OrderStatus{
			enums.OrderStatusCreated:    {enums.OrderStatusConfirmed, enums.OrderStatusClosed},
			enums.OrderStatusConfirmed:  {enums.OrderStatusVerifying},
			enums.OrderStatusVerifying:  {enums.OrderStatusImported, enums.OrderStatusReproduced},
			enums.OrderStatusReproduced: {enums.OrderStatusVerifying},
			enums.OrderStatusImported:   {enums.OrderStatusClosed},
			enums.OrderStatusClosed:     {},
		},
		movements: map[enums.OrderStatus]enums.GoodsMovement{
			enums.OrderStatusImported: enums.GoodsMovementReceipt,
		},
		editable: map[enums.OrderStatus]bool{
			enums.OrderStatusCreated:    true,
			enums.OrderStatusConfirmed:  true,
			enums.OrderStatusVerifying:  true,
			enums.OrderStatusReproduced: true,
		},
	},
	enums.OrderKindSale: {
		kind:    enums.OrderKindSale,
		initial: enums.OrderStatusCreated,
		transitions: map[enums.OrderStatus][]enums.OrderStatus{
			enums.OrderStatusCreated:   {enums.OrderStatusPaying, enums.OrderStatusCanceled},
			enums.OrderStatusPaying:    {enums.OrderStatusCompleted, enums.OrderStatusCanceled},
			enums.OrderStatusCompleted: {},
			enums.OrderStatusCanceled:  {},
		},
		movements: map[enums.OrderStatus]enums.GoodsMovement{
			enums.OrderStatusCompleted: enums.GoodsMovementSale,
		},
		editable: map[enums.OrderStatus]bool{
			enums.OrderStatusCreated: true,
		},
	},
}

// WorkflowFor returns the state machine of the given order kind.
func WorkflowFor(kind enums.OrderKind) (*Workflow, error) {
	wf, ok := workflows[kind]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order kind %q", kind))
	}
	return wf, nil
}

func (w *Workflow) Kind() enums.OrderKind {
	return w.kind
}

// Initial is the status every order of this kind is submitted in.
func (w *Workflow) Initial() enums.OrderStatus {
	return w.initial
}

// Knows reports whether status belongs to this kind.
func (w *Workflow) Knows(status enums.OrderStatus) bool {
	_, ok := w.transitions[status]
	return ok
}

// Allows reports whether from -> to is an edge of the table. Self-loops never are.
func (w *Workflow) Allows(from, to enums.OrderStatus) bool {
	for _, target := range w.transitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Targets lists the statuses reachable from from in one step.
func (w *Workflow) Targets(from enums.OrderStatus) []enums.OrderStatus {
	targets := w.transitions[from]
	out := make([]enums.OrderStatus, len(targets))
	copy(out, targets)
	return out
}

// Movement is the stock effect of entering status to.
func (w *Workflow) Movement(to enums.OrderStatus) enums.GoodsMovement {
	if m, ok := w.movements[to]; ok {
		return m
	}
	return enums.GoodsMovementNone
}

func (w *Workflow) IsTerminal(status enums.OrderStatus) bool {
	return w.Knows(status) && len(w.transitions[status]) == 0
}

// DetailsEditable reports whether lines may still change. Lines freeze once
// goods moved or the order reached a terminal status.
func (w *Workflow) DetailsEditable(status enums.OrderStatus) bool {
	return w.editable[status]
}

// Statuses lists every status of the kind.
func (w *Workflow) Statuses() []enums.OrderStatus {
	out := make([]enums.OrderStatus, 0, len(w.transitions))
	for _, status := range enums.OrderStatuses() {
		if w.Knows(status) {
			out = append(out, status)
		}
	}
	return out
}

type editPolicy struct{}

// EditPolicy exposes the per-kind line edit rules to the detail ledger.
func EditPolicy() details.EditPolicy {
	return editPolicy{}
}

func (editPolicy) DetailsEditable(kind enums.OrderKind, status enums.OrderStatus) bool {
	wf, err := WorkflowFor(kind)
	if err != nil {
		return false
	}
	return wf.DetailsEditable(status)
}
