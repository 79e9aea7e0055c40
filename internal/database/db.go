package database

import (
	"errors"
	"fmt"
	"time"

	"asset-tracker/internal/config"
	"asset-tracker/internal/logger"
	"asset-tracker/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	maxAttempts  = 10
	retryBackoff = 2 * time.Second

	WarehouseGroup = "warehouse"
	warehouseName  = "Warehouse"
)

var defaultCategories = []string{"Office supplies", "Electronic accessories", "Furniture", "Other"}

// GormConfig is shared by the postgres connection and the sqlite test database.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
	}
}

// Open connects to postgres, retrying while the database comes up.
func Open(dsn string, log *logger.Logger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	for i := 1; i <= maxAttempts; i++ {
		log.Info("connecting to database", "attempt", i, "max_attempts", maxAttempts)

		db, err = gorm.Open(postgres.Open(dsn), GormConfig())
		if err == nil {
			log.Info("connected to database")
			return db, nil
		}

		log.Warn("database connection failed", "error", err)
		time.Sleep(retryBackoff)
	}
	return nil, fmt.Errorf("connect to database after %d attempts: %w", maxAttempts, err)
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Asset{},
		&models.TransferRequest{},
		&models.ReturnRequest{},
		&models.EditRequest{},
		&models.HistoryEntry{},
		&models.CheckType{},
		&models.CheckTask{},
		&models.CheckEntry{},
		&models.CheckRecord{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return ensureIndexes(db)
}

// Partial unique indexes; both postgres and sqlite accept this syntax.
func ensureIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_assets_number_live
			ON assets (asset_number) WHERE deleted_at IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_edit_requests_one_pending
			ON edit_requests (asset_id) WHERE status = 'pending'`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Seed creates the default admin, the warehouse user and the default
// categories when they are missing.
func Seed(db *gorm.DB, cfg *config.Config, log *logger.Logger) error {
	if err := createDefaultAdmin(db, cfg, log); err != nil {
		return err
	}
	if err := ensureWarehouse(db, cfg.WarehouseEHR, log); err != nil {
		return err
	}
	return seedCategories(db)
}

func createDefaultAdmin(db *gorm.DB, cfg *config.Config, log *logger.Logger) error {
	var count int64
	if err := db.Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := models.User{
		EHRNumber:    cfg.AdminEHR,
		RealName:     "Administrator",
		Group:        "admin",
		Role:         models.RoleAdmin,
		PasswordHash: string(hash),
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create default admin: %w", err)
	}
	log.Info("created default admin", "ehr_number", admin.EHRNumber)
	return nil
}

func ensureWarehouse(db *gorm.DB, ehr string, log *logger.Logger) error {
	var existing models.User
	err := db.Where("ehr_number = ?", ehr).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check warehouse user: %w", err)
	}

	// nobody logs in as the warehouse
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash warehouse password: %w", err)
	}
	warehouse := models.User{
		EHRNumber:    ehr,
		RealName:     warehouseName,
		Group:        WarehouseGroup,
		Role:         models.RoleUser,
		PasswordHash: string(hash),
	}
	if err := db.Create(&warehouse).Error; err != nil {
		return fmt.Errorf("create warehouse user: %w", err)
	}
	log.Info("created warehouse user", "ehr_number", ehr)
	return nil
}

func seedCategories(db *gorm.DB) error {
	for _, name := range defaultCategories {
		cat := models.Category{Name: name}
		if err := db.Where(models.Category{Name: name}).FirstOrCreate(&cat).Error; err != nil {
			return fmt.Errorf("seed category %q: %w", name, err)
		}
	}
	return nil
}
