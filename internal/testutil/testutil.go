package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"asset-tracker/internal/config"
	"asset-tracker/internal/database"
	"asset-tracker/internal/logger"
	"asset-tracker/internal/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	WarehouseEHR  = "1000000"
	AdminEHR      = "0000001"
	AdminPassword = "Admin123!"
	UserPassword  = "Passw0rd!"
)

var dbSeq atomic.Int64

// TestConfig mirrors the production defaults.
func TestConfig() *config.Config {
	return &config.Config{
		DBDSN:         "sqlite",
		ServerPort:    "0",
		SessionSecret: "test-session-secret",
		LogMode:       "dev",
		WarehouseEHR:  WarehouseEHR,
		AdminEHR:      AdminEHR,
		AdminPassword: AdminPassword,
		CORSOrigins:   []string{"http://localhost:3000"},
	}
}

// SetupTestDB opens an isolated in-memory sqlite database, migrated and
// seeded. A single pooled connection serializes transactions, so concurrent
// tests exercise the status guards rather than row locks.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	if err := database.Seed(db, TestConfig(), logger.NewNop()); err != nil {
		t.Fatalf("failed to seed test database: %v", err)
	}
	return db
}

func Warehouse(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return userByEHR(t, db, WarehouseEHR)
}

func Admin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return userByEHR(t, db, AdminEHR)
}

func userByEHR(t *testing.T, db *gorm.DB, ehr string) *models.User {
	t.Helper()
	var u models.User
	if err := db.Where("ehr_number = ?", ehr).First(&u).Error; err != nil {
		t.Fatalf("failed to load user %s: %v", ehr, err)
	}
	return &u
}

// SeedUser creates a user whose password is UserPassword.
func SeedUser(t *testing.T, db *gorm.DB, ehr, name, group string, role models.UserRole) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(UserPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	u := &models.User{
		EHRNumber:    ehr,
		RealName:     name,
		Group:        group,
		Role:         role,
		PasswordHash: string(hash),
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", ehr, err)
	}
	return u
}

// SeedAsset creates an in-use asset in the first seeded category, held by
// holder (nil for the pool). opts run before insert.
func SeedAsset(t *testing.T, db *gorm.DB, number string, holder *models.User, opts ...func(*models.Asset)) *models.Asset {
	t.Helper()
	var cat models.Category
	if err := db.Order("id ASC").First(&cat).Error; err != nil {
		t.Fatalf("no category seeded: %v", err)
	}
	a := &models.Asset{
		AssetNumber:    number,
		CategoryID:     cat.ID,
		Name:           "Asset " + number,
		Status:         models.AssetInUse,
		OfficeLocation: models.Text("HQ"),
		Floor:          models.Text("2"),
		SeatNumber:     models.Text("B-07"),
	}
	a.AssignHolder(holder)
	for _, opt := range opts {
		opt(a)
	}
	a.Holder = nil
	if err := db.Omit("Holder", "Category").Create(a).Error; err != nil {
		t.Fatalf("failed to seed asset %s: %v", number, err)
	}
	return a
}

// ReloadAsset reads the row back, including soft-deleted assets.
func ReloadAsset(t *testing.T, db *gorm.DB, id uint) *models.Asset {
	t.Helper()
	var a models.Asset
	if err := db.Unscoped().Where("id = ?", id).First(&a).Error; err != nil {
		t.Fatalf("failed to reload asset %d: %v", id, err)
	}
	return &a
}

// AssertHolderGroup checks that a live asset's holder_group matches its holder.
func AssertHolderGroup(t *testing.T, db *gorm.DB, a *models.Asset) {
	t.Helper()
	if a.IsDeleted() {
		return
	}
	if a.HolderID == nil {
		if a.HolderGroup != nil {
			t.Errorf("asset %d has no holder but holder_group %q", a.ID, *a.HolderGroup)
		}
		return
	}
	var holder models.User
	if err := db.Unscoped().Where("id = ?", *a.HolderID).First(&holder).Error; err != nil {
		t.Fatalf("failed to load holder %d: %v", *a.HolderID, err)
	}
	if a.HolderGroup == nil || *a.HolderGroup != holder.Group {
		t.Errorf("asset %d holder_group = %v, want %q", a.ID, a.HolderGroup, holder.Group)
	}
}

// SetupRouter creates a gin test router.
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// DoRequest executes an HTTP request against the test router.
func DoRequest(r http.Handler, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse decodes a JSON object body.
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// Login posts credentials and returns the session cookies.
func Login(t *testing.T, r http.Handler, ehr, password string) []*http.Cookie {
	t.Helper()
	w := DoRequest(r, http.MethodPost, "/api/auth/login", map[string]string{
		"ehr_number": ehr,
		"password":   password,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s failed: %d %s", ehr, w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("login %s returned no session cookie", ehr)
	}
	return cookies
}
