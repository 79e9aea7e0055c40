package workflow

import (
	"context"
	"fmt"

	"asset-tracker/internal/history"
	"asset-tracker/internal/logger"
	"asset-tracker/internal/models"
	"asset-tracker/internal/store"
)

type TransferInput struct {
	AssetID  uint   `json:"asset_id" binding:"required"`
	ToUserID uint   `json:"to_user_id" binding:"required"`
	Reason   string `json:"reason"`
}

// Transfers moves an asset between employees: the recipient confirms, then
// an admin approves.
type Transfers struct {
	d   Deps
	log *logger.Logger
}

func NewTransfers(d Deps) *Transfers {
	return &Transfers{d: d, log: d.Log.With("workflow", models.KindTransfer)}
}

func (w *Transfers) Create(ctx context.Context, in TransferInput, actor Actor) (*models.TransferRequest, error) {
	var req *models.TransferRequest
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		asset, err := tx.LockAsset(ctx, in.AssetID)
		if err != nil {
			return lookupErr(err, "asset", in.AssetID)
		}
		if asset.Status != models.AssetInUse {
			return conflict("asset %s is not in use", asset.AssetNumber)
		}
		toUser, err := tx.UserByID(ctx, in.ToUserID)
		if err != nil {
			return lookupErr(err, "user", in.ToUserID)
		}
		if w.d.Warehouse.Is(toUser) {
			return forbidden("the warehouse cannot receive transfers")
		}

		fromID := actor.ID
		if asset.HolderID != nil {
			fromID = *asset.HolderID
		}
		if fromID == toUser.ID {
			return conflict("asset is already held by the recipient")
		}
		if !actor.IsAdmin() && (asset.HolderID == nil || *asset.HolderID != actor.ID) {
			return forbidden("only the holder can transfer this asset")
		}

		req = &models.TransferRequest{
			AssetID:    asset.ID,
			FromUserID: fromID,
			ToUserID:   toUser.ID,
			Reason:     in.Reason,
			Status:     models.TransferWaitingConfirmation,
		}
		if actor.ID != fromID {
			req.CreatedByID = actor.idPtr()
		}
		if err := tx.CreateTransfer(ctx, req); err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}

		from := userRef(ctx, tx, &fromID)
		w.d.History.Record(ctx, tx, history.Entry{
			AssetID:     asset.ID,
			Action:      models.ActionTransfer,
			Description: fmt.Sprintf("transfer requested from %v to %s", from["user_name"], toUser.RealName),
			OperatorID:  actor.idPtr(),
			Old:         from,
			New:         toUser.Ref(),
			RequestID:   &req.ID,
			RequestKind: models.KindTransfer,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.transitioned(req, actor, "created")
	return w.reload(ctx, req.ID)
}

// Confirm records the recipient's answer. Declining is terminal.
func (w *Transfers) Confirm(ctx context.Context, id uint, accepted bool, comment string, actor Actor) (*models.TransferRequest, error) {
	var req *models.TransferRequest
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		req, err = tx.LockTransfer(ctx, id)
		if err != nil {
			return lookupErr(err, "transfer request", id)
		}
		if req.ToUserID != actor.ID {
			return forbidden("only the recipient can confirm this transfer")
		}
		if req.Status != models.TransferWaitingConfirmation {
			return invalidState("transfer is not awaiting confirmation")
		}

		next := models.TransferPending
		if !accepted {
			next = models.TransferConfirmationRejected
		}
		now := w.d.now()
		moved, err := tx.FinalizeTransfer(ctx, id, models.TransferWaitingConfirmation, map[string]any{
			"status":                  next,
			"to_user_confirmed":       accepted,
			"to_user_confirm_comment": comment,
			"to_user_confirmed_at":    now,
		})
		if err != nil {
			return fmt.Errorf("confirm transfer %d: %w", id, err)
		}
		if !moved {
			return errAlreadyProcessed
		}
		req.Status = next

		desc := "recipient accepted transfer"
		if !accepted {
			desc = "recipient declined transfer"
		}
		w.d.History.Record(ctx, tx, history.Entry{
			AssetID:     req.AssetID,
			Action:      models.ActionTransfer,
			Description: desc,
			OperatorID:  actor.idPtr(),
			Old:         map[string]any{"status": models.TransferWaitingConfirmation},
			New:         map[string]any{"status": next, "comment": comment},
			RequestID:   &req.ID,
			RequestKind: models.KindTransfer,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if accepted {
		w.transitioned(req, actor, "confirmed")
	} else {
		w.transitioned(req, actor, "declined")
	}
	return w.reload(ctx, id)
}

// Cancel removes a request that has not reached a terminal state.
func (w *Transfers) Cancel(ctx context.Context, id uint, actor Actor) error {
	var req *models.TransferRequest
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		req, err = tx.LockTransfer(ctx, id)
		if err != nil {
			return lookupErr(err, "transfer request", id)
		}
		if !actor.IsAdmin() && actor.ID != req.Filer() {
			return forbidden("only the filer or an admin can cancel this transfer")
		}
		if req.Status != models.TransferWaitingConfirmation && req.Status != models.TransferPending {
			return invalidState("transfer in status %s cannot be cancelled", req.Status)
		}

		w.d.History.Record(ctx, tx, history.Entry{
			AssetID:     req.AssetID,
			Action:      models.ActionTransfer,
			Description: "transfer request cancelled",
			OperatorID:  actor.idPtr(),
			RequestID:   &req.ID,
			RequestKind: models.KindTransfer,
		})
		if err := tx.DeleteTransfer(ctx, id); err != nil {
			return fmt.Errorf("delete transfer %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.transitioned(req, actor, "cancelled")
	return nil
}

// Resolve is the admin decision on a confirmed transfer. The status write
// and the holder change commit together.
func (w *Transfers) Resolve(ctx context.Context, id uint, approved bool, comment string, admin Actor) (*models.TransferRequest, error) {
	if !admin.IsAdmin() {
		return nil, forbidden("only admins can resolve requests")
	}
	var req *models.TransferRequest
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		req, err = tx.LockTransfer(ctx, id)
		if err != nil {
			return lookupErr(err, "transfer request", id)
		}
		switch req.Status {
		case models.TransferPending:
		case models.TransferWaitingConfirmation:
			return invalidState("transfer is awaiting recipient confirmation")
		default:
			return errAlreadyProcessed
		}

		next := models.TransferRejected
		if approved {
			next = models.TransferApproved
		}
		moved, err := tx.FinalizeTransfer(ctx, id, models.TransferPending, map[string]any{
			"status":           next,
			"approver_id":      admin.ID,
			"approval_comment": comment,
			"approved_at":      w.d.now(),
		})
		if err != nil {
			return fmt.Errorf("resolve transfer %d: %w", id, err)
		}
		if !moved {
			return errAlreadyProcessed
		}
		req.Status = next

		entry := history.Entry{
			AssetID:     req.AssetID,
			Action:      models.ActionApprove,
			OperatorID:  uintPtr(req.Filer()),
			ApproverID:  admin.idPtr(),
			RequestID:   &req.ID,
			RequestKind: models.KindTransfer,
		}
		if !approved {
			entry.Description = "transfer rejected"
			w.d.History.Record(ctx, tx, entry)
			return nil
		}
		return w.applyApproval(ctx, tx, req, entry)
	})
	if err != nil {
		return nil, err
	}
	w.transitioned(req, admin, string(req.Status))
	return w.reload(ctx, id)
}

func (w *Transfers) applyApproval(ctx context.Context, tx *store.Store, req *models.TransferRequest, entry history.Entry) error {
	asset, err := tx.LockAssetUnscoped(ctx, req.AssetID)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("load asset %d: %w", req.AssetID, err)
	}
	if err != nil || asset.IsDeleted() {
		w.skipped(req.ID, req.AssetID)
		entry.Description = "transfer approved; asset was deleted, holder unchanged"
		w.d.History.Record(ctx, tx, entry)
		return nil
	}

	toUser, err := tx.UserByIDUnscoped(ctx, req.ToUserID)
	if err != nil {
		return lookupErr(err, "user", req.ToUserID)
	}
	entry.Old = holderView(ctx, tx, asset)
	asset.AssignHolder(toUser)
	if err := tx.SaveAsset(ctx, asset); err != nil {
		return fmt.Errorf("save asset %d: %w", asset.ID, err)
	}
	if err := followAsset(ctx, tx, w.d, asset); err != nil {
		return err
	}
	entry.New = holderView(ctx, tx, asset)
	entry.Description = fmt.Sprintf("transfer approved; holder is now %s", toUser.RealName)
	w.d.History.Record(ctx, tx, entry)
	return nil
}

func (w *Transfers) Get(ctx context.Context, id uint, actor Actor) (*models.TransferRequest, error) {
	req, err := w.d.Store.TransferByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "transfer request", id)
	}
	if !actor.IsAdmin() && actor.ID != req.FromUserID && actor.ID != req.ToUserID && actor.ID != req.Filer() {
		return nil, forbidden("transfer request %d is not visible to you", id)
	}
	return req, nil
}

func (w *Transfers) List(ctx context.Context, actor Actor, f store.RequestFilter) ([]models.TransferRequest, error) {
	if !actor.IsAdmin() {
		f.VisibleTo = actor.ID
	}
	rows, err := w.d.Store.ListTransfers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return rows, nil
}

func (w *Transfers) reload(ctx context.Context, id uint) (*models.TransferRequest, error) {
	req, err := w.d.Store.TransferByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "transfer request", id)
	}
	return req, nil
}

func (w *Transfers) transitioned(req *models.TransferRequest, actor Actor, transition string) {
	w.d.Metrics.Transition(string(models.KindTransfer), transition)
	w.log.Info("transfer "+transition,
		"request_id", req.ID,
		"asset_id", req.AssetID,
		"actor_id", actor.ID,
		"status", req.Status,
	)
}

func (w *Transfers) skipped(requestID, assetID uint) {
	w.d.Metrics.SkippedAsset(string(models.KindTransfer))
	w.log.Warn("asset deleted before approval, mutation skipped",
		"request_id", requestID,
		"asset_id", assetID,
	)
}

// holderView is the holder part of an asset for history snapshots.
func holderView(ctx context.Context, tx *store.Store, a *models.Asset) map[string]any {
	ref := userRef(ctx, tx, a.HolderID)
	return map[string]any{
		"holder_id":    ref["user_id"],
		"holder_name":  ref["user_name"],
		"holder_group": deref(a.HolderGroup),
	}
}
