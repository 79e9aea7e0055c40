package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"asset-tracker/internal/history"
	"asset-tracker/internal/logger"
	"asset-tracker/internal/models"
	"asset-tracker/internal/store"

	"gorm.io/gorm"
)

type AssetInput struct {
	AssetNumber    string             `json:"asset_number"`
	CategoryID     uint               `json:"category_id"`
	Name           string             `json:"name"`
	Specification  *string            `json:"specification"`
	Status         models.AssetStatus `json:"status"`
	MACAddress     *string            `json:"mac_address"`
	IPAddress      *string            `json:"ip_address"`
	OfficeLocation *string            `json:"office_location"`
	Floor          *string            `json:"floor"`
	SeatNumber     *string            `json:"seat_number"`
	HolderID       *uint              `json:"holder_id"`
	Remark         *string            `json:"remark"`
}

// allFields is every editable field, in display order.
var allFields = []models.EditField{
	models.FieldCategory,
	models.FieldName,
	models.FieldSpecification,
	models.FieldStatus,
	models.FieldMACAddress,
	models.FieldIPAddress,
	models.FieldOfficeLocation,
	models.FieldFloor,
	models.FieldSeatNumber,
	models.FieldHolder,
	models.FieldRemark,
}

// Assets covers the direct lifecycle: creation, admin edits and deletion.
type Assets struct {
	d   Deps
	log *logger.Logger
}

func NewAssets(d Deps) *Assets {
	return &Assets{d: d, log: d.Log.With("component", "assets")}
}

func (s *Assets) Create(ctx context.Context, in AssetInput, actor Actor) (*models.Asset, error) {
	number := strings.TrimSpace(in.AssetNumber)
	name := strings.TrimSpace(in.Name)
	if number == "" || name == "" {
		return nil, invalid("asset number and name are required")
	}
	if in.CategoryID == 0 {
		return nil, invalid("category is required")
	}
	// non-admins always register an in-use asset, whatever they sent
	status := models.AssetInUse
	if actor.IsAdmin() && in.Status != "" {
		if !in.Status.Valid() {
			return nil, invalid("invalid status %q", in.Status)
		}
		status = in.Status
	}

	asset := &models.Asset{
		AssetNumber:    number,
		CategoryID:     in.CategoryID,
		Name:           name,
		Specification:  in.Specification,
		Status:         status,
		MACAddress:     in.MACAddress,
		IPAddress:      in.IPAddress,
		OfficeLocation: in.OfficeLocation,
		Floor:          in.Floor,
		SeatNumber:     in.SeatNumber,
		Remark:         in.Remark,
	}
	err := s.d.Store.Transaction(ctx, func(tx *store.Store) error {
		taken, err := tx.AssetNumberTaken(ctx, number)
		if err != nil {
			return fmt.Errorf("check asset number: %w", err)
		}
		if taken {
			return conflict("asset number %s already exists", number)
		}
		if _, err := tx.CategoryByID(ctx, in.CategoryID); err != nil {
			return lookupErr(err, "category", in.CategoryID)
		}

		// non-admins register assets they hold themselves
		holderID := in.HolderID
		if !actor.IsAdmin() {
			holderID = actor.idPtr()
		}
		if holderID != nil {
			holder, err := tx.UserByID(ctx, *holderID)
			if err != nil {
				return lookupErr(err, "user", *holderID)
			}
			asset.AssignHolder(holder)
		}

		if err := tx.CreateAsset(ctx, asset); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return conflict("asset number %s already exists", number)
			}
			return fmt.Errorf("create asset: %w", err)
		}

		snap := holderSnapshot(asset, allFields...)
		snap["asset_number"] = asset.AssetNumber
		s.d.History.Record(ctx, tx, history.Entry{
			AssetID:     asset.ID,
			Action:      models.ActionCreate,
			Description: fmt.Sprintf("asset %s created", asset.AssetNumber),
			OperatorID:  actor.idPtr(),
			New:         snap,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("asset created", "asset_id", asset.ID, "actor_id", actor.ID)
	return s.Get(ctx, asset.ID)
}

// Update applies an admin's direct edit with the same diff rules as an
// approved edit request.
func (s *Assets) Update(ctx context.Context, id uint, set models.EditSet, actor Actor) (*models.Asset, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only admins can edit assets directly")
	}
	err := s.d.Store.Transaction(ctx, func(tx *store.Store) error {
		asset, err := tx.LockAsset(ctx, id)
		if err != nil {
			return lookupErr(err, "asset", id)
		}
		if err := checkRefs(ctx, tx, set); err != nil {
			return err
		}
		changes := set.Diff(asset)
		if len(changes) == 0 {
			return newErr(KindNoOp, "no fields differ from the current asset")
		}

		fields := changes.Fields()
		old := holderSnapshot(asset, fields...)
		if err := applyEdits(ctx, tx, s.d, asset, changes); err != nil {
			return err
		}
		s.d.History.Record(ctx, tx, history.Entry{
			AssetID:     asset.ID,
			Action:      models.ActionEdit,
			Description: "asset edited: " + strings.Join(changes.Labels(), ", "),
			OperatorID:  actor.idPtr(),
			Old:         old,
			New:         holderSnapshot(asset, fields...),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("asset edited", "asset_id", id, "actor_id", actor.ID)
	return s.Get(ctx, id)
}

// Delete soft-deletes an asset. Pending requests against it still resolve.
func (s *Assets) Delete(ctx context.Context, id uint, actor Actor) error {
	if !actor.IsAdmin() {
		return forbidden("only admins can delete assets")
	}
	err := s.d.Store.Transaction(ctx, func(tx *store.Store) error {
		asset, err := tx.LockAssetUnscoped(ctx, id)
		if err != nil {
			return lookupErr(err, "asset", id)
		}
		if asset.IsDeleted() {
			return invalidState("asset %s is already deleted", asset.AssetNumber)
		}
		old := holderSnapshot(asset, allFields...)
		old["asset_number"] = asset.AssetNumber
		if err := tx.SoftDeleteAsset(ctx, asset, actor.ID, s.d.now()); err != nil {
			return fmt.Errorf("delete asset %d: %w", id, err)
		}
		if err := followAsset(ctx, tx, s.d, asset); err != nil {
			return err
		}
		s.d.History.Record(ctx, tx, history.Entry{
			AssetID:     asset.ID,
			Action:      models.ActionDelete,
			Description: fmt.Sprintf("asset %s deleted", asset.AssetNumber),
			OperatorID:  actor.idPtr(),
			Old:         old,
		})
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("asset deleted", "asset_id", id, "actor_id", actor.ID)
	return nil
}

func (s *Assets) Get(ctx context.Context, id uint) (*models.Asset, error) {
	asset, err := s.d.Store.AssetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "asset", id)
	}
	return asset, nil
}

func (s *Assets) List(ctx context.Context, f store.AssetFilter) ([]models.Asset, error) {
	assets, err := s.d.Store.ListAssets(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

// History lists an asset's entries; deleted assets keep theirs.
func (s *Assets) History(ctx context.Context, id uint) ([]models.HistoryEntry, error) {
	if _, err := s.d.Store.AssetByIDUnscoped(ctx, id); err != nil {
		return nil, lookupErr(err, "asset", id)
	}
	rows, err := s.d.Store.ListHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list history of asset %d: %w", id, err)
	}
	return rows, nil
}

func (s *Assets) Categories(ctx context.Context) ([]models.Category, error) {
	cats, err := s.d.Store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}
