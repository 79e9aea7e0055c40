package workflow_test

import (
	"testing"

	"asset-tracker/internal/models"
	"asset-tracker/internal/store"
	"asset-tracker/internal/testutil"
	"asset-tracker/internal/workflow"
)

func TestAssetCreateHolderRules(t *testing.T) {
	e := newEnv(t)
	cats, err := e.svc.Assets.Categories(e.ctx)
	if err != nil || len(cats) == 0 {
		t.Fatalf("categories: %v %d", err, len(cats))
	}

	// non-admins hold what they register, always in use
	a, err := e.svc.Assets.Create(e.ctx, workflow.AssetInput{
		AssetNumber: " N-001 ",
		CategoryID:  cats[0].ID,
		Name:        "Laptop",
		Status:      models.AssetInStock,
		HolderID:    &e.bob.ID,
	}, as(e.alice))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.AssetNumber != "N-001" || *a.HolderID != e.alice.ID || str(a.HolderGroup) != "ops" || a.Status != models.AssetInUse {
		t.Fatalf("unexpected asset: %+v", a)
	}

	b, err := e.svc.Assets.Create(e.ctx, workflow.AssetInput{
		AssetNumber: "N-002",
		CategoryID:  cats[0].ID,
		Name:        "Monitor",
		HolderID:    &e.bob.ID,
	}, as(e.admin))
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if *b.HolderID != e.bob.ID || str(b.HolderGroup) != "dev" {
		t.Fatalf("admin holder not honoured: %+v", b)
	}
	testutil.AssertHolderGroup(t, e.db, b)

	_, err = e.svc.Assets.Create(e.ctx, workflow.AssetInput{AssetNumber: "N-002", CategoryID: cats[0].ID, Name: "dup"}, as(e.admin))
	expectKind(t, err, workflow.ErrConflict)
	_, err = e.svc.Assets.Create(e.ctx, workflow.AssetInput{AssetNumber: "N-003", CategoryID: 9999, Name: "x"}, as(e.admin))
	expectKind(t, err, workflow.ErrNotFound)
	missing := uint(9999)
	_, err = e.svc.Assets.Create(e.ctx, workflow.AssetInput{AssetNumber: "N-003", CategoryID: cats[0].ID, Name: "x", HolderID: &missing}, as(e.admin))
	expectKind(t, err, workflow.ErrNotFound)
	_, err = e.svc.Assets.Create(e.ctx, workflow.AssetInput{AssetNumber: "", CategoryID: cats[0].ID, Name: "x"}, as(e.admin))
	expectKind(t, err, workflow.ErrInvalid)

	if acts := e.historyActions(a.ID); !sameActions(acts, []models.HistoryAction{models.ActionCreate}) {
		t.Fatalf("history = %v", acts)
	}
}

func TestAssetCreateStatusOnlyCheckedForAdmins(t *testing.T) {
	e := newEnv(t)
	cats, _ := e.svc.Assets.Categories(e.ctx)

	a, err := e.svc.Assets.Create(e.ctx, workflow.AssetInput{
		AssetNumber: "N-010",
		CategoryID:  cats[0].ID,
		Name:        "Dock",
		Status:      "bogus",
	}, as(e.alice))
	if err != nil {
		t.Fatalf("non-admin status is overridden, create should succeed: %v", err)
	}
	if a.Status != models.AssetInUse {
		t.Fatalf("expected in_use, got %s", a.Status)
	}

	_, err = e.svc.Assets.Create(e.ctx, workflow.AssetInput{
		AssetNumber: "N-011",
		CategoryID:  cats[0].ID,
		Name:        "Dock",
		Status:      "bogus",
	}, as(e.admin))
	expectKind(t, err, workflow.ErrInvalid)

	b, err := e.svc.Assets.Create(e.ctx, workflow.AssetInput{
		AssetNumber: "N-012",
		CategoryID:  cats[0].ID,
		Name:        "Spare dock",
		Status:      models.AssetInStock,
	}, as(e.admin))
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if b.Status != models.AssetInStock {
		t.Fatalf("admin status not honoured: %s", b.Status)
	}
}

func TestAssetDeleteFreesNumber(t *testing.T) {
	e := newEnv(t)
	a := e.asset("N-100", e.alice)

	expectKind(t, e.svc.Assets.Delete(e.ctx, a.ID, as(e.alice)), workflow.ErrForbidden)
	if err := e.svc.Assets.Delete(e.ctx, a.ID, as(e.admin)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	expectKind(t, e.svc.Assets.Delete(e.ctx, a.ID, as(e.admin)), workflow.ErrInvalidState)

	got := e.reload(a)
	if !got.IsDeleted() || got.DeletedByID == nil || *got.DeletedByID != e.admin.ID {
		t.Fatalf("soft delete markers missing: %+v", got)
	}
	_, err := e.svc.Assets.Get(e.ctx, a.ID)
	expectKind(t, err, workflow.ErrNotFound)

	// deleted assets accept no new requests
	_, err = e.svc.Transfers.Create(e.ctx, workflow.TransferInput{AssetID: a.ID, ToUserID: e.bob.ID}, as(e.alice))
	expectKind(t, err, workflow.ErrNotFound)
	_, err = e.svc.Edits.Create(e.ctx, a.ID, models.EditSet{models.FieldFloor: models.Text("1")}, as(e.alice))
	expectKind(t, err, workflow.ErrNotFound)

	rows, err := e.svc.Assets.List(e.ctx, store.AssetFilter{Search: "N-100"})
	if err != nil || len(rows) != 0 {
		t.Fatalf("deleted asset listed: %v %d", err, len(rows))
	}

	cats, _ := e.svc.Assets.Categories(e.ctx)
	if _, err := e.svc.Assets.Create(e.ctx, workflow.AssetInput{AssetNumber: "N-100", CategoryID: cats[0].ID, Name: "reissued"}, as(e.admin)); err != nil {
		t.Fatalf("number of a deleted asset should be reusable: %v", err)
	}

	hist, err := e.svc.Assets.History(e.ctx, a.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].Action != models.ActionDelete || hist[0].Operator == nil || hist[0].Operator.ID != e.admin.ID {
		t.Fatalf("unexpected history: %+v", hist)
	}
}

func TestAssetUpdate(t *testing.T) {
	e := newEnv(t)
	a := e.asset("N-200", e.alice)

	_, err := e.svc.Assets.Update(e.ctx, a.ID, models.EditSet{models.FieldFloor: models.Text("4")}, as(e.alice))
	expectKind(t, err, workflow.ErrForbidden)
	_, err = e.svc.Assets.Update(e.ctx, a.ID, models.EditSet{models.FieldFloor: models.Text("2")}, as(e.admin))
	expectKind(t, err, workflow.ErrNoOp)

	got, err := e.svc.Assets.Update(e.ctx, a.ID, models.EditSet{
		models.FieldHolder: models.Ref(e.bob.ID),
		models.FieldFloor:  models.Text("4"),
	}, as(e.admin))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if *got.HolderID != e.bob.ID || str(got.HolderGroup) != "dev" || str(got.Floor) != "4" {
		t.Fatalf("unexpected asset: %+v", got)
	}
	if got.Holder == nil || got.Holder.ID != e.bob.ID {
		t.Fatal("holder relation not loaded")
	}
}

func TestAssetListFilters(t *testing.T) {
	e := newEnv(t)
	e.asset("L-001", e.alice)
	e.asset("L-002", e.bob)
	e.asset("L-003", nil, func(a *models.Asset) { a.Status = models.AssetInStock })

	tests := []struct {
		name string
		f    store.AssetFilter
		want int
	}{
		{"all", store.AssetFilter{}, 3},
		{"search", store.AssetFilter{Search: "L-00"}, 3},
		{"holder", store.AssetFilter{HolderID: e.bob.ID}, 1},
		{"status", store.AssetFilter{Status: models.AssetInStock}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := e.svc.Assets.List(e.ctx, tt.f)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(rows) != tt.want {
				t.Fatalf("got %d assets, want %d", len(rows), tt.want)
			}
		})
	}
}
