// Command initdb creates or migrates the records table so the api binary can
// run with automigrate disabled.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"crm-backend/internal/core/config"
	"crm-backend/internal/core/database"
	"crm-backend/internal/core/logger"
	"crm-backend/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.New(cfg.Log.Level, cfg.Log.JSON)
	defer cleanup()

	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	})
	if err != nil {
		log.Fatal("db open", zap.Error(err))
	}

	s := store.New(db, nil)
	if err := s.AutoMigrate(); err != nil {
		log.Fatal("migrate records table", zap.Error(err))
	}
	log.Info("records table ready", zap.String("driver", cfg.DB.Driver))
}
