package database

import (
	"context"
	"testing"
	"time"

	"task-tracker/internal/models"

	"gorm.io/gorm/logger"
)

func TestDefaultPoolConfig(t *testing.T) {
	config := DefaultPoolConfig()

	if config.Driver != DriverPostgres {
		t.Errorf("Expected Driver to be postgres, got %s", config.Driver)
	}

	if config.MaxOpenConns != 25 {
		t.Errorf("Expected MaxOpenConns to be 25, got %d", config.MaxOpenConns)
	}

	if config.MaxIdleConns != 10 {
		t.Errorf("Expected MaxIdleConns to be 10, got %d", config.MaxIdleConns)
	}

	if config.ConnMaxLifetime != time.Hour {
		t.Errorf("Expected ConnMaxLifetime to be 1 hour, got %v", config.ConnMaxLifetime)
	}

	if config.ConnMaxIdleTime != time.Minute*30 {
		t.Errorf("Expected ConnMaxIdleTime to be 30 minutes, got %v", config.ConnMaxIdleTime)
	}

	if config.LogLevel != logger.Info {
		t.Errorf("Expected LogLevel to be Info, got %v", config.LogLevel)
	}
}

func TestNewDatabasePool_WithNilConfig(t *testing.T) {
	_, err := NewDatabasePool(nil)

	if err == nil {
		t.Error("Expected error due to empty DSN, got nil")
	}
}

func TestNewDatabasePool_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config *PoolConfig
	}{
		{
			name:   "empty DSN",
			config: &PoolConfig{Driver: DriverSQLite, LogLevel: logger.Silent},
		},
		{
			name: "negative limits",
			config: &PoolConfig{
				Driver:       DriverSQLite,
				DSN:          ":memory:",
				MaxOpenConns: -1,
				LogLevel:     logger.Silent,
			},
		},
		{
			name: "negative lifetime",
			config: &PoolConfig{
				Driver:          DriverSQLite,
				DSN:             ":memory:",
				ConnMaxLifetime: -time.Hour,
				LogLevel:        logger.Silent,
			},
		},
		{
			name:   "unknown driver",
			config: &PoolConfig{Driver: "oracle", DSN: "x", LogLevel: logger.Silent},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDatabasePool(tt.config); err == nil {
				t.Error("Expected error but pool creation succeeded")
			}
		})
	}
}

func newSQLitePool(t *testing.T) *DatabasePool {
	t.Helper()

	pool, err := NewDatabasePool(&PoolConfig{
		Driver:       DriverSQLite,
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     logger.Silent,
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestDatabasePool_SQLite(t *testing.T) {
	pool := newSQLitePool(t)

	if err := pool.HealthContext(context.Background()); err != nil {
		t.Errorf("Expected healthy pool, got: %v", err)
	}

	if err := pool.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	for _, model := range []interface{}{&models.Employee{}, &models.Task{}} {
		if !pool.DB.Migrator().HasTable(model) {
			t.Errorf("Expected table for %T", model)
		}
	}

	if !pool.DB.Migrator().HasColumn(&models.Task{}, "parent_task_id") {
		t.Error("Expected tasks.parent_task_id column")
	}

	stats := pool.Stats()
	if stats["driver"] != DriverSQLite {
		t.Errorf("Expected driver in stats, got %v", stats["driver"])
	}
	if stats["max_open_connections"] != 1 {
		t.Errorf("Expected max_open_connections 1, got %v", stats["max_open_connections"])
	}
}

func TestDatabasePool_Stats_WithoutConnection(t *testing.T) {
	pool := &DatabasePool{
		DB: nil,
		config: &PoolConfig{
			MaxOpenConns: 10,
		},
	}

	stats := pool.Stats()

	if _, hasError := stats["error"]; !hasError {
		t.Error("Expected error in stats when DB is nil")
	}
}

func TestDatabasePool_Health_WithoutConnection(t *testing.T) {
	pool := &DatabasePool{DB: nil}

	if err := pool.HealthContext(context.Background()); err == nil {
		t.Error("Expected error when checking health with nil DB")
	}

	if err := pool.Migrate(); err == nil {
		t.Error("Expected error when migrating with nil DB")
	}
}

func TestDatabasePool_Close_WithoutConnection(t *testing.T) {
	pool := &DatabasePool{DB: nil}

	if err := pool.Close(); err != nil {
		t.Errorf("Expected no error when closing nil DB, got: %v", err)
	}
}

func BenchmarkDefaultPoolConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultPoolConfig()
	}
}
