package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"asset-tracker/internal/history"
	"asset-tracker/internal/logger"
	"asset-tracker/internal/metrics"
	"asset-tracker/internal/models"
	"asset-tracker/internal/store"
	"asset-tracker/internal/testutil"
	"asset-tracker/internal/workflow"

	"gorm.io/gorm"
)

type env struct {
	t       *testing.T
	ctx     context.Context
	db      *gorm.DB
	svc     *workflow.Services
	metrics *metrics.Metrics

	admin     *models.User
	warehouse *models.User
	alice     *models.User
	bob       *models.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	m := metrics.New()
	log := logger.NewNop()
	svc := workflow.NewServices(workflow.Deps{
		Store:     store.New(db),
		History:   history.NewRecorder(log, m),
		Warehouse: workflow.Warehouse{EHR: testutil.WarehouseEHR},
		Log:       log,
		Metrics:   m,
	})
	return &env{
		t:         t,
		ctx:       context.Background(),
		db:        db,
		svc:       svc,
		metrics:   m,
		admin:     testutil.Admin(t, db),
		warehouse: testutil.Warehouse(t, db),
		alice:     testutil.SeedUser(t, db, "1000001", "Alice", "ops", models.RoleUser),
		bob:       testutil.SeedUser(t, db, "1000002", "Bob", "dev", models.RoleUser),
	}
}

func as(u *models.User) workflow.Actor {
	return workflow.ActorOf(u)
}

func (e *env) asset(number string, holder *models.User, opts ...func(*models.Asset)) *models.Asset {
	e.t.Helper()
	return testutil.SeedAsset(e.t, e.db, number, holder, opts...)
}

func (e *env) reload(a *models.Asset) *models.Asset {
	e.t.Helper()
	return testutil.ReloadAsset(e.t, e.db, a.ID)
}

func (e *env) historyActions(assetID uint) []models.HistoryAction {
	e.t.Helper()
	var rows []models.HistoryEntry
	if err := e.db.Where("asset_id = ?", assetID).Order("id ASC").Find(&rows).Error; err != nil {
		e.t.Fatalf("failed to load history: %v", err)
	}
	out := make([]models.HistoryAction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Action)
	}
	return out
}

func expectKind(t *testing.T, err error, target *workflow.Error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %s error, got %v", target.Kind, err)
	}
}

func str(v *string) string {
	if v == nil {
		return "<nil>"
	}
	return *v
}

func sameActions(got, want []models.HistoryAction) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// raceResolve runs n resolves at once and returns how many succeeded. Every
// loser must see InvalidState.
func raceResolve(t *testing.T, n int, resolve func(i int) error) int {
	t.Helper()
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = resolve(i)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		expectKind(t, err, workflow.ErrInvalidState)
	}
	return succeeded
}
