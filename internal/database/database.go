package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/yourorg/rendercore/internal/config"
	"github.com/yourorg/rendercore/internal/logging"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Type     string // "sqlite" or "postgres"
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	DataDir  string // For SQLite
}

// GetDatabaseConfig reads database configuration from environment variables.
func GetDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Type:     config.Get("DB_TYPE", "postgres"),
		Host:     config.Get("DB_HOST", "localhost"),
		Port:     config.GetInt("DB_PORT", 5432),
		User:     config.Get("DB_USER", "rendercore"),
		Password: config.Get("DB_PASSWORD", ""),
		DBName:   config.Get("DB_NAME", "rendercore"),
		SSLMode:  config.Get("DB_SSLMODE", "disable"),
		DataDir:  config.Get("DATA_DIR", "/data"),
	}
}

// Initialize sets up the database connection, runs migrations, and seeds
// default system settings.
func Initialize() error {
	cfg := GetDatabaseConfig()

	var err error
	switch cfg.Type {
	case "postgres":
		DB, err = initPostgres(cfg)
	case "sqlite":
		DB, err = initSQLite(cfg)
	default:
		return fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := RunAutoMigrations("STARTUP"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := initializeSystemSettings(); err != nil {
		return fmt.Errorf("failed to initialize system settings: %w", err)
	}

	logging.InfoWithComponent(logging.ComponentDatabase, "database initialized", "type", cfg.Type)
	return nil
}

func initPostgres(cfg *DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: getGormLogger(),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func initSQLite(cfg *DatabaseConfig) (*gorm.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "rendercore.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: getGormLogger(),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1) // sqlite doesn't support concurrent writers
	sqlDB.SetMaxIdleConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}

	return db, nil
}

// RunAutoMigrations runs GORM auto-migration for every model in GetAllModels.
func RunAutoMigrations(logPrefix string) error {
	logging.InfoWithComponent(logging.ComponentDatabase, "running auto-migrations", "phase", logPrefix)

	for _, model := range GetAllModels() {
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	logging.InfoWithComponent(logging.ComponentDatabase, "auto-migrations complete", "phase", logPrefix)
	return nil
}

// initializeSystemSettings seeds max_concurrent_jobs; the other setting
// the core reads, default_output_settings, is not seeded.
func initializeSystemSettings() error {
	var existing SystemSetting
	err := DB.First(&existing, "key = ?", "max_concurrent_jobs").Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	raw, err := json.Marshal(config.GetInt("MAX_CONCURRENT_JOBS", 2))
	if err != nil {
		return err
	}

	setting := SystemSetting{
		Key:       "max_concurrent_jobs",
		Value:     datatypes.JSON(raw),
		UpdatedAt: time.Now(),
	}
	return DB.Create(&setting).Error
}

func getGormLogger() logger.Interface {
	logLevel := logger.Warn
	if config.Get("LOG_LEVEL", "") == "DEBUG" {
		logLevel = logger.Info
	}
	return logger.Default.LogMode(logLevel)
}

// GetSystemSetting reads a raw jsonb system setting value by key.
func GetSystemSetting(key string) (datatypes.JSON, error) {
	var setting SystemSetting
	if err := DB.First(&setting, "key = ?", key).Error; err != nil {
		return nil, err
	}
	return setting.Value, nil
}

// SetSystemSetting upserts a system setting.
func SetSystemSetting(key string, value datatypes.JSON) error {
	setting := SystemSetting{Key: key, Value: value, UpdatedAt: time.Now()}
	return DB.Save(&setting).Error
}

// GetDB returns the shared database handle.
func GetDB() *gorm.DB {
	return DB
}

// Close closes the underlying database connection.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
