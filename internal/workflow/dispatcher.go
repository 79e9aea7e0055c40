package workflow

import (
	"context"

	"asset-tracker/internal/models"
	"asset-tracker/internal/store"
)

type ApprovalInput struct {
	RequestID uint               `json:"request_id" binding:"required"`
	Kind      models.RequestKind `json:"request_type" binding:"required"`
	Approved  bool               `json:"approved"`
	Comment   string             `json:"comment"`
}

// Dispatcher routes an admin decision to the workflow owning the request.
// Each Resolve is its own transaction; nothing spans workflows.
type Dispatcher struct {
	transfers *Transfers
	returns   *Returns
	edits     *Edits
}

func NewDispatcher(t *Transfers, r *Returns, e *Edits) *Dispatcher {
	return &Dispatcher{transfers: t, returns: r, edits: e}
}

// Approve returns the resolved request of the matching kind.
func (d *Dispatcher) Approve(ctx context.Context, in ApprovalInput, admin Actor) (any, error) {
	if !admin.IsAdmin() {
		return nil, forbidden("only admins can approve requests")
	}
	switch in.Kind {
	case models.KindTransfer:
		return d.transfers.Resolve(ctx, in.RequestID, in.Approved, in.Comment, admin)
	case models.KindReturn:
		return d.returns.Resolve(ctx, in.RequestID, in.Approved, in.Comment, admin)
	case models.KindEdit:
		return d.edits.Resolve(ctx, in.RequestID, in.Approved, in.Comment, admin)
	default:
		return nil, invalid("unknown request type %q", in.Kind)
	}
}

type PendingRequests struct {
	Transfers []models.TransferRequest `json:"transfers"`
	Returns   []models.ReturnRequest   `json:"returns"`
	Edits     []models.EditRequest     `json:"edits"`
}

// Pending lists every request awaiting an admin decision.
func (d *Dispatcher) Pending(ctx context.Context, admin Actor) (*PendingRequests, error) {
	if !admin.IsAdmin() {
		return nil, forbidden("only admins can list pending approvals")
	}
	transfers, err := d.transfers.List(ctx, admin, store.RequestFilter{Status: string(models.TransferPending)})
	if err != nil {
		return nil, err
	}
	returns, err := d.returns.List(ctx, admin, store.RequestFilter{Status: string(models.StatusPending)})
	if err != nil {
		return nil, err
	}
	edits, err := d.edits.List(ctx, admin, store.RequestFilter{Status: string(models.StatusPending)})
	if err != nil {
		return nil, err
	}
	return &PendingRequests{Transfers: transfers, Returns: returns, Edits: edits}, nil
}
