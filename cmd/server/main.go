package main

import (
	"fmt"
	"log"

	"asset-tracker/internal/config"
	"asset-tracker/internal/database"
	"asset-tracker/internal/history"
	"asset-tracker/internal/logger"
	"asset-tracker/internal/metrics"
	"asset-tracker/internal/server"
	"asset-tracker/internal/store"
	"asset-tracker/internal/workflow"

	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer lg.Sync()

	if cfg.LogMode != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.DBDSN, lg)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := database.Seed(db, cfg, lg); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	m := metrics.New()
	st := store.New(db)
	svc := workflow.NewServices(workflow.Deps{
		Store:     st,
		History:   history.NewRecorder(lg, m),
		Warehouse: workflow.Warehouse{EHR: cfg.WarehouseEHR},
		Log:       lg,
		Metrics:   m,
	})

	r := server.NewRouter(cfg, svc, st, lg, m)

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	lg.Info("starting server", "addr", addr)
	return r.Run(addr)
}
