package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"asset-tracker/internal/history"
	"asset-tracker/internal/logger"
	"asset-tracker/internal/models"
	"asset-tracker/internal/store"

	"gorm.io/gorm"
)

// Edits carries field changes proposed by holders through admin approval.
type Edits struct {
	d   Deps
	log *logger.Logger
}

func NewEdits(d Deps) *Edits {
	return &Edits{d: d, log: d.Log.With("workflow", models.KindEdit)}
}

func (w *Edits) Create(ctx context.Context, assetID uint, set models.EditSet, actor Actor) (*models.EditRequest, error) {
	if !actor.IsAdmin() && (set.Has(models.FieldHolder) || set.Has(models.FieldStatus)) {
		return nil, forbidden("holder and status can only be changed by an admin")
	}

	var req *models.EditRequest
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		// the asset row lock serializes pending checks per asset
		asset, err := tx.LockAsset(ctx, assetID)
		if err != nil {
			return lookupErr(err, "asset", assetID)
		}
		if !actor.IsAdmin() && (asset.HolderID == nil || *asset.HolderID != actor.ID) {
			return forbidden("only the holder can request edits to this asset")
		}
		if err := checkRefs(ctx, tx, set); err != nil {
			return err
		}
		pending, err := tx.HasPendingEdit(ctx, asset.ID)
		if err != nil {
			return fmt.Errorf("check pending edits: %w", err)
		}
		if pending {
			return conflict("asset %s already has a pending edit request", asset.AssetNumber)
		}

		changes := set.Diff(asset)
		if len(changes) == 0 {
			return newErr(KindNoOp, "no fields differ from the current asset")
		}

		req = &models.EditRequest{
			AssetID: asset.ID,
			UserID:  actor.ID,
			Status:  models.StatusPending,
		}
		if err := req.SetChanges(changes); err != nil {
			return fmt.Errorf("encode edit data: %w", err)
		}
		if err := tx.CreateEdit(ctx, req); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return conflict("asset %s already has a pending edit request", asset.AssetNumber)
			}
			return fmt.Errorf("create edit: %w", err)
		}

		w.d.History.Record(ctx, tx, history.Entry{
			AssetID:     asset.ID,
			Action:      models.ActionEdit,
			Description: "edit requested: " + strings.Join(changes.Labels(), ", "),
			OperatorID:  actor.idPtr(),
			Old:         asset.Snapshot(changes.Fields()...),
			New:         changes.Values(),
			RequestID:   &req.ID,
			RequestKind: models.KindEdit,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.transitioned(req, actor, "created")
	return w.reload(ctx, req.ID)
}

func (w *Edits) Cancel(ctx context.Context, id uint, actor Actor) error {
	var req *models.EditRequest
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		req, err = tx.LockEdit(ctx, id)
		if err != nil {
			return lookupErr(err, "edit request", id)
		}
		if !actor.IsAdmin() && actor.ID != req.UserID {
			return forbidden("only the requester or an admin can cancel this edit")
		}
		if req.Status != models.StatusPending {
			return invalidState("edit in status %s cannot be cancelled", req.Status)
		}

		w.d.History.Record(ctx, tx, history.Entry{
			AssetID:     req.AssetID,
			Action:      models.ActionEdit,
			Description: "edit request cancelled",
			OperatorID:  actor.idPtr(),
			RequestID:   &req.ID,
			RequestKind: models.KindEdit,
		})
		if err := tx.DeleteEdit(ctx, id); err != nil {
			return fmt.Errorf("delete edit %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.transitioned(req, actor, "cancelled")
	return nil
}

func (w *Edits) Resolve(ctx context.Context, id uint, approved bool, comment string, admin Actor) (*models.EditRequest, error) {
	if !admin.IsAdmin() {
		return nil, forbidden("only admins can resolve requests")
	}
	var req *models.EditRequest
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		req, err = tx.LockEdit(ctx, id)
		if err != nil {
			return lookupErr(err, "edit request", id)
		}
		if req.Status != models.StatusPending {
			return errAlreadyProcessed
		}

		next := models.StatusRejected
		if approved {
			next = models.StatusApproved
		}
		moved, err := tx.FinalizeEdit(ctx, id, models.StatusPending, map[string]any{
			"status":           next,
			"approver_id":      admin.ID,
			"approval_comment": comment,
			"approved_at":      w.d.now(),
		})
		if err != nil {
			return fmt.Errorf("resolve edit %d: %w", id, err)
		}
		if !moved {
			return errAlreadyProcessed
		}
		req.Status = next

		entry := history.Entry{
			AssetID:     req.AssetID,
			Action:      models.ActionEditApprove,
			OperatorID:  uintPtr(req.UserID),
			ApproverID:  admin.idPtr(),
			RequestID:   &req.ID,
			RequestKind: models.KindEdit,
		}
		if !approved {
			entry.Description = "edit rejected"
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

func (w *Edits) applyApproval(ctx context.Context, tx *store.Store, req *models.EditRequest, entry history.Entry) error {
	asset, err := tx.LockAssetUnscoped(ctx, req.AssetID)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("load asset %d: %w", req.AssetID, err)
	}
	if err != nil || asset.IsDeleted() {
		w.d.Metrics.SkippedAsset(string(models.KindEdit))
		w.log.Warn("asset deleted before approval, mutation skipped",
			"request_id", req.ID,
			"asset_id", req.AssetID,
		)
		entry.Description = "edit approved; asset was deleted, nothing applied"
		w.d.History.Record(ctx, tx, entry)
		return nil
	}

	proposed, err := req.Changes()
	if err != nil {
		return fmt.Errorf("decode edit data of request %d: %w", req.ID, err)
	}
	// recompute: the asset may have changed since the request was filed
	applied := proposed.Diff(asset)
	if len(applied) == 0 {
		entry.Description = "edit approved; asset already matches, nothing applied"
		w.d.History.Record(ctx, tx, entry)
		return nil
	}

	fields := applied.Fields()
	entry.Old = holderSnapshot(asset, fields...)
	if err := applyEdits(ctx, tx, w.d, asset, applied); err != nil {
		return err
	}
	entry.New = holderSnapshot(asset, fields...)
	entry.Description = "edit approved: " + strings.Join(applied.Labels(), ", ")
	w.d.History.Record(ctx, tx, entry)
	return nil
}

func (w *Edits) Get(ctx context.Context, id uint, actor Actor) (*models.EditRequest, error) {
	req, err := w.d.Store.EditByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "edit request", id)
	}
	if !actor.IsAdmin() && actor.ID != req.UserID {
		return nil, forbidden("edit request %d is not visible to you", id)
	}
	return req, nil
}

func (w *Edits) List(ctx context.Context, actor Actor, f store.RequestFilter) ([]models.EditRequest, error) {
	if !actor.IsAdmin() {
		f.VisibleTo = actor.ID
	}
	rows, err := w.d.Store.ListEdits(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list edits: %w", err)
	}
	return rows, nil
}

func (w *Edits) reload(ctx context.Context, id uint) (*models.EditRequest, error) {
	req, err := w.d.Store.EditByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "edit request", id)
	}
	return req, nil
}

func (w *Edits) transitioned(req *models.EditRequest, actor Actor, transition string) {
	w.d.Metrics.Transition(string(models.KindEdit), transition)
	w.log.Info("edit "+transition,
		"request_id", req.ID,
		"asset_id", req.AssetID,
		"actor_id", actor.ID,
		"status", req.Status,
	)
}

// checkRefs verifies that holder and category references in set exist.
func checkRefs(ctx context.Context, tx *store.Store, set models.EditSet) error {
	if v := set[models.FieldHolder]; v != nil {
		id, err := refID(v)
		if err != nil {
			return err
		}
		if _, err := tx.UserByID(ctx, id); err != nil {
			return lookupErr(err, "user", id)
		}
	}
	if v := set[models.FieldCategory]; v != nil {
		id, err := refID(v)
		if err != nil {
			return err
		}
		if _, err := tx.CategoryByID(ctx, id); err != nil {
			return lookupErr(err, "category", id)
		}
	}
	return nil
}

// applyEdits writes set onto asset and saves it. A holder change refreshes
// holder_group from the new holder, or clears it with the holder.
func applyEdits(ctx context.Context, tx *store.Store, d Deps, asset *models.Asset, set models.EditSet) error {
	for _, f := range set.Fields() {
		v := set[f]
		if f == models.FieldHolder {
			if v == nil {
				asset.AssignHolder(nil)
				continue
			}
			id, err := refID(v)
			if err != nil {
				return err
			}
			// live references were checked when the set was filed
			holder, err := tx.UserByIDUnscoped(ctx, id)
			if err != nil {
				return lookupErr(err, "user", id)
			}
			asset.AssignHolder(holder)
			continue
		}
		if err := asset.SetField(f, v); err != nil {
			return invalid("%s", err.Error())
		}
	}
	if err := tx.SaveAsset(ctx, asset); err != nil {
		return fmt.Errorf("save asset %d: %w", asset.ID, err)
	}
	return followAsset(ctx, tx, d, asset)
}

func refID(v *string) (uint, error) {
	n, err := strconv.ParseUint(*v, 10, 64)
	if err != nil || n == 0 {
		return 0, invalid("invalid reference %q", *v)
	}
	return uint(n), nil
}
