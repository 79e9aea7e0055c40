package workflow_test

import (
	"testing"

	"asset-tracker/internal/models"
	"asset-tracker/internal/testutil"
	"asset-tracker/internal/workflow"
)

func TestUsersAuthenticate(t *testing.T) {
	e := newEnv(t)

	u, err := e.svc.Users.Authenticate(e.ctx, "1000001", testutil.UserPassword)
	if err != nil || u.ID != e.alice.ID {
		t.Fatalf("authenticate: %v", err)
	}
	_, err = e.svc.Users.Authenticate(e.ctx, "1000001", "wrong")
	expectKind(t, err, workflow.ErrUnauthorized)
	_, err = e.svc.Users.Authenticate(e.ctx, "7777777", testutil.UserPassword)
	expectKind(t, err, workflow.ErrUnauthorized)
	_, err = e.svc.Users.Authenticate(e.ctx, testutil.AdminEHR, testutil.AdminPassword)
	if err != nil {
		t.Fatalf("seeded admin cannot log in: %v", err)
	}
}

func TestUsersCreateAndDelete(t *testing.T) {
	e := newEnv(t)
	in := workflow.UserInput{EHRNumber: "2000001", RealName: "Dana", Group: "qa", Password: "s3cret!"}

	_, err := e.svc.Users.Create(e.ctx, in, as(e.alice))
	expectKind(t, err, workflow.ErrForbidden)

	u, err := e.svc.Users.Create(e.ctx, in, as(e.admin))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Role != models.RoleUser || u.PasswordHash == in.Password {
		t.Fatalf("unexpected user: %+v", u)
	}
	_, err = e.svc.Users.Create(e.ctx, in, as(e.admin))
	expectKind(t, err, workflow.ErrConflict)

	bad := in
	bad.EHRNumber = "12ab"
	_, err = e.svc.Users.Create(e.ctx, bad, as(e.admin))
	expectKind(t, err, workflow.ErrInvalid)

	expectKind(t, e.svc.Users.Delete(e.ctx, e.warehouse.ID, as(e.admin)), workflow.ErrForbidden)
	expectKind(t, e.svc.Users.Delete(e.ctx, e.admin.ID, as(e.admin)), workflow.ErrForbidden)
	expectKind(t, e.svc.Users.Delete(e.ctx, u.ID, as(e.bob)), workflow.ErrForbidden)
	if err := e.svc.Users.Delete(e.ctx, u.ID, as(e.admin)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = e.svc.Users.Get(e.ctx, u.ID)
	expectKind(t, err, workflow.ErrNotFound)

	// deleted users can no longer receive transfers
	a := e.asset("U-001", e.alice)
	_, err = e.svc.Transfers.Create(e.ctx, workflow.TransferInput{AssetID: a.ID, ToUserID: u.ID}, as(e.alice))
	expectKind(t, err, workflow.ErrNotFound)
}

func TestUsersUpdate(t *testing.T) {
	e := newEnv(t)
	qa, empty := "qa", "  "

	_, err := e.svc.Users.Update(e.ctx, e.bob.ID, workflow.UserUpdate{Group: &qa}, as(e.alice))
	expectKind(t, err, workflow.ErrForbidden)
	_, err = e.svc.Users.Update(e.ctx, e.bob.ID, workflow.UserUpdate{}, as(e.admin))
	expectKind(t, err, workflow.ErrInvalid)
	_, err = e.svc.Users.Update(e.ctx, e.bob.ID, workflow.UserUpdate{Group: &empty}, as(e.admin))
	expectKind(t, err, workflow.ErrInvalid)
	_, err = e.svc.Users.Update(e.ctx, 9999, workflow.UserUpdate{Group: &qa}, as(e.admin))
	expectKind(t, err, workflow.ErrNotFound)

	role := models.RoleUser
	_, err = e.svc.Users.Update(e.ctx, e.admin.ID, workflow.UserUpdate{Role: &role}, as(e.admin))
	expectKind(t, err, workflow.ErrForbidden)
	pw := "n3w-secret"
	_, err = e.svc.Users.Update(e.ctx, e.warehouse.ID, workflow.UserUpdate{Password: &pw}, as(e.admin))
	expectKind(t, err, workflow.ErrForbidden)
	bogus := models.UserRole("root")
	_, err = e.svc.Users.Update(e.ctx, e.bob.ID, workflow.UserUpdate{Role: &bogus}, as(e.admin))
	expectKind(t, err, workflow.ErrInvalid)

	name := " Robert "
	u, err := e.svc.Users.Update(e.ctx, e.bob.ID, workflow.UserUpdate{RealName: &name, Password: &pw}, as(e.admin))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.RealName != "Robert" || u.Group != "dev" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if _, err := e.svc.Users.Authenticate(e.ctx, "1000002", pw); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
	_, err = e.svc.Users.Authenticate(e.ctx, "1000002", testutil.UserPassword)
	expectKind(t, err, workflow.ErrUnauthorized)
}

func TestUsersGroupChangeResyncsHolderGroup(t *testing.T) {
	e := newEnv(t)
	held := e.asset("G-001", e.bob)
	gone := e.asset("G-002", e.bob)
	other := e.asset("G-003", e.alice)
	if err := e.svc.Assets.Delete(e.ctx, gone.ID, as(e.admin)); err != nil {
		t.Fatalf("delete asset: %v", err)
	}

	qa := " qa "
	u, err := e.svc.Users.Update(e.ctx, e.bob.ID, workflow.UserUpdate{Group: &qa}, as(e.admin))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Group != "qa" {
		t.Fatalf("group = %q", u.Group)
	}

	got := e.reload(held)
	if str(got.HolderGroup) != "qa" {
		t.Fatalf("live asset holder_group = %s", str(got.HolderGroup))
	}
	testutil.AssertHolderGroup(t, e.db, got)
	if g := str(e.reload(gone).HolderGroup); g != "dev" {
		t.Errorf("deleted asset should keep its last group, got %s", g)
	}
	if g := str(e.reload(other).HolderGroup); g != "ops" {
		t.Errorf("other holder's asset touched: %s", g)
	}
}
