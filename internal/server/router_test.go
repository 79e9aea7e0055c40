package server_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"asset-tracker/internal/history"
	"asset-tracker/internal/logger"
	"asset-tracker/internal/metrics"
	"asset-tracker/internal/models"
	"asset-tracker/internal/server"
	"asset-tracker/internal/store"
	"asset-tracker/internal/testutil"
	"asset-tracker/internal/workflow"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type apiEnv struct {
	db     *gorm.DB
	router *gin.Engine

	alice *models.User
	bob   *models.User
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	log := logger.NewNop()
	m := metrics.New()
	st := store.New(db)
	svc := workflow.NewServices(workflow.Deps{
		Store:     st,
		History:   history.NewRecorder(log, m),
		Warehouse: workflow.Warehouse{EHR: testutil.WarehouseEHR},
		Log:       log,
		Metrics:   m,
	})

	return &apiEnv{
		db:     db,
		router: server.NewRouter(testutil.TestConfig(), svc, st, log, m),
		alice:  testutil.SeedUser(t, db, "1000001", "Alice", "ops", models.RoleUser),
		bob:    testutil.SeedUser(t, db, "1000002", "Bob", "dev", models.RoleUser),
	}
}

func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	envelope, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := envelope["code"].(string)
	return code
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupAPI(t)

	w := testutil.DoRequest(env.router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("health: %d %q", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.router, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatal("expected http request counter in /metrics output")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := setupAPI(t)

	w := testutil.DoRequest(env.router, http.MethodGet, "/health", nil)
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected generated request id header")
	}
}

func TestAPIRequiresSession(t *testing.T) {
	env := setupAPI(t)

	w := testutil.DoRequest(env.router, http.MethodGet, "/api/assets", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if code := errorCode(t, testutil.ParseResponse(w)); code != "unauthorized" {
		t.Errorf("unexpected error code %q", code)
	}
}

func TestLogin(t *testing.T) {
	env := setupAPI(t)

	tests := []struct {
		name     string
		ehr      string
		password string
		want     int
	}{
		{"wrong password", "1000001", "nope", http.StatusUnauthorized},
		{"unknown user", "7777777", testutil.UserPassword, http.StatusUnauthorized},
		{"warehouse cannot log in", testutil.WarehouseEHR, testutil.UserPassword, http.StatusUnauthorized},
		{"missing password", "1000001", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.DoRequest(env.router, http.MethodPost, "/api/auth/login", map[string]string{
				"ehr_number": tt.ehr,
				"password":   tt.password,
			})
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	cookies := testutil.Login(t, env.router, "1000001", testutil.UserPassword)
	w := testutil.DoRequest(env.router, http.MethodGet, "/api/auth/me", nil, cookies...)
	if w.Code != http.StatusOK {
		t.Fatalf("me: %d", w.Code)
	}
	body := testutil.ParseResponse(w)
	if body["ehr_number"] != "1000001" {
		t.Errorf("unexpected principal: %v", body)
	}
	if _, leaked := body["password_hash"]; leaked {
		t.Error("password hash must not be serialized")
	}

	w = testutil.DoRequest(env.router, http.MethodPost, "/api/auth/logout", nil, cookies...)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", w.Code)
	}
}

func TestDeletedUserLosesSession(t *testing.T) {
	env := setupAPI(t)
	cookies := testutil.Login(t, env.router, "1000002", testutil.UserPassword)
	admin := testutil.Login(t, env.router, testutil.AdminEHR, testutil.AdminPassword)

	w := testutil.DoRequest(env.router, http.MethodDelete, fmt.Sprintf("/api/users/%d", env.bob.ID), nil, admin...)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete user: %d %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.router, http.MethodGet, "/api/auth/me", nil, cookies...)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected deleted user to be logged out, got %d", w.Code)
	}
}

func TestAdminOnlyRoutes(t *testing.T) {
	env := setupAPI(t)
	cookies := testutil.Login(t, env.router, "1000001", testutil.UserPassword)

	routes := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/users"},
		{http.MethodPut, fmt.Sprintf("/api/users/%d", env.bob.ID)},
		{http.MethodDelete, fmt.Sprintf("/api/users/%d", env.bob.ID)},
		{http.MethodGet, "/api/safety-check-types"},
		{http.MethodPost, "/api/safety-check-types"},
		{http.MethodPost, "/api/safety-check-tasks"},
		{http.MethodDelete, "/api/safety-check-tasks/1"},
		{http.MethodGet, "/api/approvals/pending"},
		{http.MethodPost, "/api/approvals/approve"},
	}
	for _, rt := range routes {
		w := testutil.DoRequest(env.router, rt.method, rt.path, map[string]string{}, cookies...)
		if w.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected 403, got %d", rt.method, rt.path, w.Code)
		}
	}
}

func TestTransferFlowOverHTTP(t *testing.T) {
	env := setupAPI(t)
	asset := testutil.SeedAsset(t, env.db, "PC-100", env.alice)

	alice := testutil.Login(t, env.router, "1000001", testutil.UserPassword)
	bob := testutil.Login(t, env.router, "1000002", testutil.UserPassword)
	admin := testutil.Login(t, env.router, testutil.AdminEHR, testutil.AdminPassword)

	w := testutil.DoRequest(env.router, http.MethodPost, "/api/transfers", map[string]interface{}{
		"asset_id":   asset.ID,
		"to_user_id": env.bob.ID,
		"reason":     "team move",
	}, alice...)
	if w.Code != http.StatusCreated {
		t.Fatalf("create transfer: %d %s", w.Code, w.Body.String())
	}
	created := testutil.ParseResponse(w)
	if created["status"] != string(models.TransferWaitingConfirmation) {
		t.Fatalf("unexpected status %v", created["status"])
	}
	id := uint(created["id"].(float64))

	w = testutil.DoRequest(env.router, http.MethodPost, fmt.Sprintf("/api/transfers/%d/confirm", id), map[string]interface{}{}, bob...)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("confirm without accepted should be 400, got %d", w.Code)
	}
	w = testutil.DoRequest(env.router, http.MethodPost, fmt.Sprintf("/api/transfers/%d/confirm", id), map[string]interface{}{
		"accepted": true,
	}, alice...)
	if w.Code != http.StatusForbidden {
		t.Fatalf("sender confirming should be 403, got %d", w.Code)
	}
	w = testutil.DoRequest(env.router, http.MethodPost, fmt.Sprintf("/api/transfers/%d/confirm", id), map[string]interface{}{
		"accepted": true,
		"comment":  "thanks",
	}, bob...)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.router, http.MethodGet, "/api/approvals/pending", nil, admin...)
	if w.Code != http.StatusOK {
		t.Fatalf("pending: %d", w.Code)
	}
	pending := testutil.ParseResponse(w)
	if transfers, _ := pending["transfers"].([]interface{}); len(transfers) != 1 {
		t.Fatalf("expected one pending transfer, got %v", pending["transfers"])
	}

	approve := map[string]interface{}{
		"request_id":   id,
		"request_type": "transfer",
		"approved":     true,
	}
	w = testutil.DoRequest(env.router, http.MethodPost, "/api/approvals/approve", approve, admin...)
	if w.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", w.Code, w.Body.String())
	}
	if got := testutil.ParseResponse(w)["status"]; got != string(models.TransferApproved) {
		t.Fatalf("unexpected status after approval: %v", got)
	}

	w = testutil.DoRequest(env.router, http.MethodPost, "/api/approvals/approve", approve, admin...)
	if w.Code != http.StatusConflict {
		t.Fatalf("second approval should be 409, got %d", w.Code)
	}
	if code := errorCode(t, testutil.ParseResponse(w)); code != "invalid_state" {
		t.Errorf("unexpected error code %q", code)
	}

	got := testutil.ReloadAsset(t, env.db, asset.ID)
	if got.HolderID == nil || *got.HolderID != env.bob.ID {
		t.Fatalf("asset not moved to bob: %v", got.HolderID)
	}
	testutil.AssertHolderGroup(t, env.db, got)

	w = testutil.DoRequest(env.router, http.MethodGet, fmt.Sprintf("/api/assets/%d/history", asset.ID), nil, alice...)
	if w.Code != http.StatusOK {
		t.Fatalf("history: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"action_type":"approve"`) {
		t.Errorf("expected approve entry in history: %s", w.Body.String())
	}
}

func TestUpdateAssetByRole(t *testing.T) {
	env := setupAPI(t)
	asset := testutil.SeedAsset(t, env.db, "PC-200", env.alice)
	path := fmt.Sprintf("/api/assets/%d", asset.ID)

	alice := testutil.Login(t, env.router, "1000001", testutil.UserPassword)
	admin := testutil.Login(t, env.router, testutil.AdminEHR, testutil.AdminPassword)

	w := testutil.DoRequest(env.router, http.MethodPut, path, map[string]interface{}{"remark": "dent on lid"}, alice...)
	if w.Code != http.StatusAccepted {
		t.Fatalf("holder edit should be queued with 202, got %d %s", w.Code, w.Body.String())
	}
	queued, _ := testutil.ParseResponse(w)["edit_request"].(map[string]interface{})
	if queued == nil || queued["status"] != string(models.StatusPending) {
		t.Fatalf("expected pending edit request, got %v", queued)
	}
	if got := testutil.ReloadAsset(t, env.db, asset.ID); got.Remark != nil {
		t.Fatalf("queued edit must not touch the asset, remark=%q", *got.Remark)
	}

	w = testutil.DoRequest(env.router, http.MethodPut, path, map[string]interface{}{"colour": "red"}, admin...)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field should be 400, got %d", w.Code)
	}
	if code := errorCode(t, testutil.ParseResponse(w)); code != "invalid" {
		t.Errorf("unexpected error code %q", code)
	}

	w = testutil.DoRequest(env.router, http.MethodPut, path, map[string]interface{}{"floor": "5"}, admin...)
	if w.Code != http.StatusOK {
		t.Fatalf("admin edit: %d %s", w.Code, w.Body.String())
	}
	if got := testutil.ReloadAsset(t, env.db, asset.ID); got.Floor == nil || *got.Floor != "5" {
		t.Fatalf("admin edit not applied: %v", got.Floor)
	}

	w = testutil.DoRequest(env.router, http.MethodPut, path, map[string]interface{}{"floor": "5"}, admin...)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("no-op edit should be 400, got %d", w.Code)
	}
	if code := errorCode(t, testutil.ParseResponse(w)); code != "no_op" {
		t.Errorf("unexpected error code %q", code)
	}
}

func TestReturnToWarehouseOverHTTP(t *testing.T) {
	env := setupAPI(t)
	asset := testutil.SeedAsset(t, env.db, "PC-300", env.alice)

	alice := testutil.Login(t, env.router, "1000001", testutil.UserPassword)
	admin := testutil.Login(t, env.router, testutil.AdminEHR, testutil.AdminPassword)

	w := testutil.DoRequest(env.router, http.MethodPost, "/api/returns", map[string]interface{}{
		"asset_id":  asset.ID,
		"overrides": map[string]interface{}{"name": "renamed"},
	}, alice...)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("name override should be rejected, got %d", w.Code)
	}

	w = testutil.DoRequest(env.router, http.MethodPost, "/api/returns", map[string]interface{}{
		"asset_id": asset.ID,
		"reason":   "leaving",
	}, alice...)
	if w.Code != http.StatusCreated {
		t.Fatalf("create return: %d %s", w.Code, w.Body.String())
	}
	id := testutil.ParseResponse(w)["id"]

	w = testutil.DoRequest(env.router, http.MethodGet, "/api/returns?status=pending", nil, alice...)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"pending"`) {
		t.Fatalf("list returns: %d %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.router, http.MethodPost, "/api/approvals/approve", map[string]interface{}{
		"request_id":   id,
		"request_type": "return",
		"approved":     true,
	}, admin...)
	if w.Code != http.StatusOK {
		t.Fatalf("approve return: %d %s", w.Code, w.Body.String())
	}

	got := testutil.ReloadAsset(t, env.db, asset.ID)
	if got.Status != models.AssetInStock {
		t.Fatalf("expected in_stock after return, got %s", got.Status)
	}
	wh := testutil.Warehouse(t, env.db)
	if got.HolderID == nil || *got.HolderID != wh.ID {
		t.Fatalf("expected warehouse holder, got %v", got.HolderID)
	}
}

func TestUnknownApprovalKind(t *testing.T) {
	env := setupAPI(t)
	admin := testutil.Login(t, env.router, testutil.AdminEHR, testutil.AdminPassword)

	w := testutil.DoRequest(env.router, http.MethodPost, "/api/approvals/approve", map[string]interface{}{
		"request_id":   1,
		"request_type": "purchase",
		"approved":     true,
	}, admin...)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUserUpdateAndStatsOverHTTP(t *testing.T) {
	env := setupAPI(t)
	asset := testutil.SeedAsset(t, env.db, "PC-400", env.bob)
	admin := testutil.Login(t, env.router, testutil.AdminEHR, testutil.AdminPassword)
	bob := testutil.Login(t, env.router, "1000002", testutil.UserPassword)

	path := fmt.Sprintf("/api/users/%d", env.bob.ID)
	w := testutil.DoRequest(env.router, http.MethodPut, path, map[string]interface{}{"group": "qa"}, admin...)
	if w.Code != http.StatusOK {
		t.Fatalf("update user: %d %s", w.Code, w.Body.String())
	}
	if got := testutil.ParseResponse(w)["group"]; got != "qa" {
		t.Fatalf("group = %v", got)
	}
	got := testutil.ReloadAsset(t, env.db, asset.ID)
	if got.HolderGroup == nil || *got.HolderGroup != "qa" {
		t.Fatalf("holder_group not resynced: %v", got.HolderGroup)
	}
	testutil.AssertHolderGroup(t, env.db, got)

	w = testutil.DoRequest(env.router, http.MethodPut, path, map[string]interface{}{}, admin...)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty update should be 400, got %d", w.Code)
	}

	w = testutil.DoRequest(env.router, http.MethodGet, "/api/stats", nil, bob...)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d", w.Code)
	}
	stats := testutil.ParseResponse(w)
	if stats["total_assets"] != float64(1) || stats["in_use_assets"] != float64(1) || stats["pending_approvals"] != float64(0) {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestSafetyCheckFlowOverHTTP(t *testing.T) {
	env := setupAPI(t)
	asset := testutil.SeedAsset(t, env.db, "PC-500", env.alice)
	admin := testutil.Login(t, env.router, testutil.AdminEHR, testutil.AdminPassword)
	alice := testutil.Login(t, env.router, "1000001", testutil.UserPassword)
	bob := testutil.Login(t, env.router, "1000002", testutil.UserPassword)

	w := testutil.DoRequest(env.router, http.MethodPost, "/api/safety-check-types", map[string]interface{}{
		"name":        "Fire safety",
		"check_items": []map[string]interface{}{{"item": "Cable intact", "required": true}},
	}, admin...)
	if w.Code != http.StatusCreated {
		t.Fatalf("create type: %d %s", w.Code, w.Body.String())
	}
	typeID := testutil.ParseResponse(w)["id"]

	w = testutil.DoRequest(env.router, http.MethodPost, "/api/safety-check-tasks", map[string]interface{}{
		"check_type_id": typeID,
		"title":         "Q3 check",
		"asset_ids":     []uint{asset.ID},
	}, admin...)
	if w.Code != http.StatusCreated {
		t.Fatalf("create task: %d %s", w.Code, w.Body.String())
	}
	task := testutil.ParseResponse(w)
	taskID := task["id"]
	if !strings.HasPrefix(task["task_number"].(string), "SAFETY-") {
		t.Fatalf("unexpected task number %v", task["task_number"])
	}

	w = testutil.DoRequest(env.router, http.MethodGet, "/api/safety-checks/my-tasks", nil, alice...)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"pending_count":1`) {
		t.Fatalf("my tasks: %d %s", w.Code, w.Body.String())
	}
	w = testutil.DoRequest(env.router, http.MethodGet, fmt.Sprintf("/api/safety-check-tasks/%v", taskID), nil, bob...)
	if w.Code != http.StatusForbidden {
		t.Fatalf("unassigned user should get 403, got %d", w.Code)
	}
	w = testutil.DoRequest(env.router, http.MethodGet, "/api/safety-check-tasks?limit=abc", nil, alice...)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit should be 400, got %d", w.Code)
	}

	w = testutil.DoRequest(env.router, http.MethodGet, fmt.Sprintf("/api/safety-check-tasks/%v/assets", taskID), nil, alice...)
	if w.Code != http.StatusOK {
		t.Fatalf("task assets: %d %s", w.Code, w.Body.String())
	}
	entries, _ := testutil.ParseResponse(w)["assets"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %v", entries)
	}
	entryID := entries[0].(map[string]interface{})["id"]

	w = testutil.DoRequest(env.router, http.MethodPost, "/api/safety-checks/submit", map[string]interface{}{
		"task_asset_id": entryID,
		"check_result":  "yes",
	}, alice...)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing required item should be 400, got %d", w.Code)
	}
	w = testutil.DoRequest(env.router, http.MethodPost, "/api/safety-checks/submit", map[string]interface{}{
		"task_asset_id":      entryID,
		"check_result":       "yes",
		"check_items_result": []map[string]interface{}{{"item": "Cable intact", "result": "yes"}},
	}, alice...)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.router, http.MethodGet, "/api/safety-check-tasks", nil, admin...)
	if w.Code != http.StatusOK {
		t.Fatalf("list tasks: %d", w.Code)
	}
	list := testutil.ParseResponse(w)
	items, _ := list["items"].([]interface{})
	if list["total"] != float64(1) || len(items) != 1 || items[0].(map[string]interface{})["status"] != "completed" {
		t.Fatalf("unexpected listing: %v", list)
	}

	w = testutil.DoRequest(env.router, http.MethodGet, fmt.Sprintf("/api/assets/%d/safety-checks", asset.ID), nil, alice...)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"check_result":"yes"`) {
		t.Fatalf("asset checks: %d %s", w.Code, w.Body.String())
	}
	w = testutil.DoRequest(env.router, http.MethodGet, fmt.Sprintf("/api/assets/%d/safety-checks", asset.ID), nil, bob...)
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-holder should get 403, got %d", w.Code)
	}
}
