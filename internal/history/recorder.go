package history

import (
	"context"
	"encoding/json"

	"asset-tracker/internal/logger"
	"asset-tracker/internal/metrics"
	"asset-tracker/internal/models"
	"asset-tracker/internal/store"

	"gorm.io/datatypes"
)

// Entry is one history row before serialization. Old and New are
// marshalled to JSON; nil leaves the column empty.
type Entry struct {
	AssetID     uint
	Action      models.HistoryAction
	Description string
	OperatorID  *uint
	ApproverID  *uint
	Old         any
	New         any
	RequestID   *uint
	RequestKind models.RequestKind
}

type Recorder struct {
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewRecorder(log *logger.Logger, m *metrics.Metrics) *Recorder {
	return &Recorder{log: log.With("component", "history"), metrics: m}
}

// Record appends e inside a savepoint of tx. A failed write rolls back only
// the savepoint and is logged; it never reaches the caller.
func (r *Recorder) Record(ctx context.Context, tx *store.Store, e Entry) {
	row, err := e.row()
	if err == nil {
		err = tx.Transaction(ctx, func(sp *store.Store) error {
			return sp.AppendHistory(ctx, row)
		})
	}
	if err != nil {
		r.log.Error("history write failed",
			"asset_id", e.AssetID,
			"action", e.Action,
			"error", err,
		)
		r.metrics.HistoryFailure()
	}
}

func (e Entry) row() (*models.HistoryEntry, error) {
	oldValue, err := snapshot(e.Old)
	if err != nil {
		return nil, err
	}
	newValue, err := snapshot(e.New)
	if err != nil {
		return nil, err
	}
	row := &models.HistoryEntry{
		AssetID:          e.AssetID,
		Action:           e.Action,
		Description:      e.Description,
		OperatorID:       e.OperatorID,
		ApproverID:       e.ApproverID,
		OldValue:         oldValue,
		NewValue:         newValue,
		RelatedRequestID: e.RequestID,
	}
	if e.RequestKind != "" {
		kind := e.RequestKind
		row.RelatedRequestType = &kind
	}
	return row, nil
}

func snapshot(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
