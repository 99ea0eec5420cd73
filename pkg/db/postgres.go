// Package db opens the gorm connections backing the SQL record store.
package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSQLiteDSN keeps the database in process memory, shared by every
// connection of the pool.
const DefaultSQLiteDSN = "file:postfeed?mode=memory&cache=shared"

// Open connects to the named driver and pings it with a short timeout.
// An empty dsn falls back to DefaultSQLiteDSN or PostgresDSN.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = DefaultSQLiteDSN
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		if dsn == "" {
			dsn = PostgresDSN()
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// One writer keeps sqlite from reporting "database is locked".
		sqlDB.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return gdb, nil
}

// PostgresDSN builds a DSN from DATABASE_URL or from individual env vars.
func PostgresDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	user := getenvDefault("POSTGRES_USER", "user")
	pass := os.Getenv("POSTGRES_PASSWORD")
	name := getenvDefault("POSTGRES_DB", "postfeed")
	host := getenvDefault("POSTGRES_HOST", "localhost")
	port := getenvDefault("POSTGRES_PORT", "5432")
	if pass == "" {
		// If no password is provided, use a DSN without password (local dev)
		return fmt.Sprintf("postgresql://%s@%s:%s/%s", user, host, port, name)
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

func getenvDefault(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}
