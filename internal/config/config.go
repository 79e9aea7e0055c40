package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const defaultWarehouseEHR = "1000000"

type Config struct {
	DBDSN         string
	ServerPort    string
	SessionSecret string
	LogMode       string

	// WarehouseEHR identifies the reserved user that stands for the
	// warehouse pool.
	WarehouseEHR string

	AdminEHR      string
	AdminPassword string

	CORSOrigins []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBDSN:         os.Getenv("DB_DSN"),
		ServerPort:    os.Getenv("SERVER_PORT"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		LogMode:       os.Getenv("LOG_MODE"),
		WarehouseEHR:  strings.TrimSpace(os.Getenv("WAREHOUSE_EHR")),
		AdminEHR:      strings.TrimSpace(os.Getenv("ADMIN_EHR")),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		CORSOrigins:   splitList(os.Getenv("CORS_ORIGINS")),
	}

	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is not set")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is not set")
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogMode == "" {
		cfg.LogMode = "dev"
	}
	if cfg.WarehouseEHR == "" {
		cfg.WarehouseEHR = defaultWarehouseEHR
	}
	if cfg.AdminEHR == "" {
		cfg.AdminEHR = "0000001"
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = "Admin123!"
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
