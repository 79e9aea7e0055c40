package workflow

import (
	"context"
	"fmt"
	"strings"

	"asset-tracker/internal/history"
	"asset-tracker/internal/logger"
	"asset-tracker/internal/models"
	"asset-tracker/internal/store"
)

type ReturnInput struct {
	AssetID     uint
	Reason      string
	Overrides   models.EditSet
	NewHolderID *uint
}

// returnBranch is how an approved return reassigns the asset.
type returnBranch int

const (
	// new holder supplied: hand over directly, apply overrides
	branchNewHolder returnBranch = iota + 1
	// back to the warehouse with the supplied overrides
	branchWarehouseOverrides
	// back to the warehouse, location untouched
	branchWarehouse
)

func selectBranch(hasNewHolder, hasOverrides bool) returnBranch {
	switch {
	case hasNewHolder:
		return branchNewHolder
	case hasOverrides:
		return branchWarehouseOverrides
	default:
		return branchWarehouse
	}
}

// Returns sends assets back to the pool, or on to a named user, after
// admin approval.
type Returns struct {
	d   Deps
	log *logger.Logger
}

func NewReturns(d Deps) *Returns {
	return &Returns{d: d, log: d.Log.With("workflow", models.KindReturn)}
}

func (w *Returns) Create(ctx context.Context, in ReturnInput, actor Actor) (*models.ReturnRequest, error) {
	overrides := in.Overrides
	if overrides == nil {
		overrides = models.EditSet{}
	}
	if err := overrides.Restrict(models.ReturnOverrideFields...); err != nil {
		return nil, invalid("%s", err.Error())
	}

	var req *models.ReturnRequest
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		asset, err := tx.LockAsset(ctx, in.AssetID)
		if err != nil {
			return lookupErr(err, "asset", in.AssetID)
		}
		if asset.Status != models.AssetInUse {
			return conflict("asset %s is not in use", asset.AssetNumber)
		}
		if !actor.IsAdmin() && (asset.HolderID == nil || *asset.HolderID != actor.ID) {
			return forbidden("only the holder can return this asset")
		}
		if in.NewHolderID != nil {
			if _, err := tx.UserByID(ctx, *in.NewHolderID); err != nil {
				return lookupErr(err, "user", *in.NewHolderID)
			}
		}

		userID := actor.ID
		if asset.HolderID != nil {
			userID = *asset.HolderID
		}
		req = &models.ReturnRequest{
			AssetID:     asset.ID,
			UserID:      userID,
			CreatedByID: actor.idPtr(),
			Reason:      in.Reason,
			Status:      models.StatusPending,
			NewHolderID: in.NewHolderID,
		}
		if err := req.SetOverrides(overrides); err != nil {
			return fmt.Errorf("encode overrides: %w", err)
		}
		if err := tx.CreateReturn(ctx, req); err != nil {
			return fmt.Errorf("create return: %w", err)
		}

		fields := append(overrides.Fields(), models.FieldStatus)
		if in.NewHolderID != nil {
			fields = append(fields, models.FieldHolder)
		}
		newValue := overrides.Values()
		newValue[string(models.FieldStatus)] = models.AssetInStock
		if in.NewHolderID != nil {
			newValue[string(models.FieldHolder)] = *in.NewHolderID
		}
		w.d.History.Record(ctx, tx, history.Entry{
			AssetID:     asset.ID,
			Action:      models.ActionReturn,
			Description: returnDescription("return requested", overrides, in.NewHolderID != nil),
			OperatorID:  actor.idPtr(),
			Old:         asset.Snapshot(fields...),
			New:         newValue,
			RequestID:   &req.ID,
			RequestKind: models.KindReturn,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.transitioned(req, actor, "created")
	return w.reload(ctx, req.ID)
}

// Cancel withdraws a pending return. The requesting user, the filer and
// admins may cancel.
func (w *Returns) Cancel(ctx context.Context, id uint, actor Actor) error {
	var req *models.ReturnRequest
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		req, err = tx.LockReturn(ctx, id)
		if err != nil {
			return lookupErr(err, "return request", id)
		}
		filedBy := req.CreatedByID != nil && *req.CreatedByID == actor.ID
		if !actor.IsAdmin() && actor.ID != req.UserID && !filedBy {
			return forbidden("only the requester or an admin can cancel this return")
		}
		if req.Status != models.StatusPending {
			return invalidState("return in status %s cannot be cancelled", req.Status)
		}

		w.d.History.Record(ctx, tx, history.Entry{
			AssetID:     req.AssetID,
			Action:      models.ActionReturn,
			Description: "return request cancelled",
			OperatorID:  actor.idPtr(),
			RequestID:   &req.ID,
			RequestKind: models.KindReturn,
		})
		if err := tx.DeleteReturn(ctx, id); err != nil {
			return fmt.Errorf("delete return %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.transitioned(req, actor, "cancelled")
	return nil
}

func (w *Returns) Resolve(ctx context.Context, id uint, approved bool, comment string, admin Actor) (*models.ReturnRequest, error) {
	if !admin.IsAdmin() {
		return nil, forbidden("only admins can resolve requests")
	}
	var req *models.ReturnRequest
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		req, err = tx.LockReturn(ctx, id)
		if err != nil {
			return lookupErr(err, "return request", id)
		}
		if req.Status != models.StatusPending {
			return errAlreadyProcessed
		}

		next := models.StatusRejected
		if approved {
			next = models.StatusApproved
		}
		moved, err := tx.FinalizeReturn(ctx, id, models.StatusPending, map[string]any{
			"status":           next,
			"approver_id":      admin.ID,
			"approval_comment": comment,
			"approved_at":      w.d.now(),
		})
		if err != nil {
			return fmt.Errorf("resolve return %d: %w", id, err)
		}
		if !moved {
			return errAlreadyProcessed
		}
		req.Status = next

		entry := history.Entry{
			AssetID:     req.AssetID,
			Action:      models.ActionApprove,
			OperatorID:  uintPtr(req.UserID),
			ApproverID:  admin.idPtr(),
			RequestID:   &req.ID,
			RequestKind: models.KindReturn,
		}
		if !approved {
			entry.Description = "return rejected"
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

func (w *Returns) applyApproval(ctx context.Context, tx *store.Store, req *models.ReturnRequest, entry history.Entry) error {
	asset, err := tx.LockAssetUnscoped(ctx, req.AssetID)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("load asset %d: %w", req.AssetID, err)
	}
	if err != nil || asset.IsDeleted() {
		w.d.Metrics.SkippedAsset(string(models.KindReturn))
		w.log.Warn("asset deleted before approval, mutation skipped",
			"request_id", req.ID,
			"asset_id", req.AssetID,
		)
		entry.Description = "return approved; asset was deleted, nothing applied"
		w.d.History.Record(ctx, tx, entry)
		return nil
	}

	overrides, err := req.OverrideSet()
	if err != nil {
		return fmt.Errorf("decode overrides of return %d: %w", req.ID, err)
	}
	branch := selectBranch(req.NewHolderID != nil, len(overrides) > 0)

	var holder *models.User
	if branch == branchNewHolder {
		holder, err = tx.UserByIDUnscoped(ctx, *req.NewHolderID)
		if err != nil {
			return lookupErr(err, "user", *req.NewHolderID)
		}
	} else {
		holder, err = w.d.Warehouse.Resolve(ctx, tx)
		if err != nil {
			return err
		}
	}

	touched := append(overrides.Fields(), models.FieldHolder, models.FieldStatus)
	entry.Old = holderSnapshot(asset, touched...)

	if branch != branchWarehouse {
		for _, f := range overrides.Fields() {
			if err := asset.SetField(f, overrides[f]); err != nil {
				return invalid("return %d: %s", req.ID, err.Error())
			}
		}
	}
	asset.AssignHolder(holder)
	asset.Status = models.AssetInStock
	if err := tx.SaveAsset(ctx, asset); err != nil {
		return fmt.Errorf("save asset %d: %w", asset.ID, err)
	}
	if err := followAsset(ctx, tx, w.d, asset); err != nil {
		return err
	}

	entry.New = holderSnapshot(asset, touched...)
	switch branch {
	case branchNewHolder:
		entry.Description = returnDescription("return approved; handed to "+holder.RealName, overrides, false)
	case branchWarehouseOverrides:
		entry.Description = returnDescription("return approved; back to warehouse", overrides, false)
	default:
		entry.Description = "return approved; back to warehouse, location unchanged"
	}
	w.d.History.Record(ctx, tx, entry)
	return nil
}

func (w *Returns) Get(ctx context.Context, id uint, actor Actor) (*models.ReturnRequest, error) {
	req, err := w.d.Store.ReturnByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "return request", id)
	}
	filedBy := req.CreatedByID != nil && *req.CreatedByID == actor.ID
	if !actor.IsAdmin() && actor.ID != req.UserID && !filedBy {
		return nil, forbidden("return request %d is not visible to you", id)
	}
	return req, nil
}

func (w *Returns) List(ctx context.Context, actor Actor, f store.RequestFilter) ([]models.ReturnRequest, error) {
	if !actor.IsAdmin() {
		f.VisibleTo = actor.ID
	}
	rows, err := w.d.Store.ListReturns(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	return rows, nil
}

func (w *Returns) reload(ctx context.Context, id uint) (*models.ReturnRequest, error) {
	req, err := w.d.Store.ReturnByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "return request", id)
	}
	return req, nil
}

func (w *Returns) transitioned(req *models.ReturnRequest, actor Actor, transition string) {
	w.d.Metrics.Transition(string(models.KindReturn), transition)
	w.log.Info("return "+transition,
		"request_id", req.ID,
		"asset_id", req.AssetID,
		"actor_id", actor.ID,
		"status", req.Status,
	)
}

func returnDescription(prefix string, overrides models.EditSet, newHolder bool) string {
	var b strings.Builder
	b.WriteString(prefix)
	if newHolder {
		b.WriteString(" to a new holder")
	}
	if len(overrides) > 0 {
		b.WriteString(" with ")
		b.WriteString(strings.Join(overrides.Labels(), ", "))
	}
	return b.String()
}
