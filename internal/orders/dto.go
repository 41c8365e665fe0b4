package orders

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/internal/details"
	"github.com/angelmondragon/orderflow-backend/internal/reconciliation"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// SubmitInput creates an order together with its lines. Operator is the
// opaque identity supplied by the presentation layer.
type SubmitInput struct {
	Kind      enums.OrderKind     `json:"kind" validate:"required,oneof=purchase production sale"`
	Subject   string              `json:"subject" validate:"required,max=255"`
	Applicant string              `json:"applicant" validate:"required,max=255"`
	Lines     []details.LineInput `json:"lines"`
	Operator  string              `json:"-"`
}

func (in SubmitInput) normalized() SubmitInput {
	in.Kind = enums.OrderKind(strings.ToLower(strings.TrimSpace(string(in.Kind))))
	in.Subject = strings.TrimSpace(in.Subject)
	in.Applicant = strings.TrimSpace(in.Applicant)
	lines := make([]details.LineInput, len(in.Lines))
	for i, line := range in.Lines {
		lines[i] = line.Normalized()
	}
	in.Lines = lines
	return in
}

// TransitionInput requests a move of one order to Target.
type TransitionInput struct {
	OrderID  uuid.UUID
	Target   enums.OrderStatus
	Operator string
}

// TransitionResult is the committed outcome of a transition. Reconciliation
// is nil when the target status moves no goods.
type TransitionResult struct {
	Order          *models.Order          `json:"order"`
	From           enums.OrderStatus      `json:"from"`
	To             enums.OrderStatus      `json:"to"`
	Movement       enums.GoodsMovement    `json:"movement"`
	Reconciliation *reconciliation.Result `json:"reconciliation,omitempty"`
}

// DeleteInput removes an order and every line it owns.
type DeleteInput struct {
	OrderID  uuid.UUID
	Operator string
}

// ListFilters narrows order listings.
type ListFilters struct {
	Kind      *enums.OrderKind
	Status    *enums.OrderStatus
	Applicant string
}
