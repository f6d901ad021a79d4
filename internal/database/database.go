// Package database opens the GORM connection and runs migrations.
package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite" // pure Go SQLite driver
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aks-ide/gateway/internal/config"
	"github.com/aks-ide/gateway/internal/model"
)

// DB wraps the GORM DB connection with the detected driver.
type DB struct {
	*gorm.DB
	Driver string
}

// New creates a new database connection based on configuration.
func New(cfg *config.Config) (*DB, error) {
	// Only log slow queries (>1 second)
	slowLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	gormConfig := &gorm.Config{Logger: slowLogger}

	var db *gorm.DB
	var err error

	driver := cfg.DatabaseDriver
	dsn := cfg.CleanDSN()

	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(dsn), gormConfig)
		if err == nil {
			// WAL mode allows concurrent readers while a writer is active.
			db.Exec("PRAGMA journal_mode=WAL")
			db.Exec("PRAGMA busy_timeout = 5000")
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if driver == "sqlite" {
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(4)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	return &DB{DB: db, Driver: driver}, nil
}

// Migrate runs database migrations using GORM's AutoMigrate.
func (db *DB) Migrate() error {
	return db.AutoMigrate(model.AllModels()...)
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
