package cmd

import (
	"fmt"

	"github.com/fieldline/fieldline/internal"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// database bundles the ORM handle with an sqlx view over the same pool.
type database struct {
	ORM *gorm.DB
	SQL *sqlx.DB
}

func (d *database) Close() error {
	return d.SQL.Close()
}

// sqlxDriverName picks the driver name sqlx uses to choose its bind style.
func sqlxDriverName(driver string) string {
	if driver == internal.DriverSQLite {
		return "sqlite3"
	}
	return "pgx"
}

// initDB opens the configured database and verifies the connection.
func initDB(cfg internal.DatabaseConfig) (*database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case internal.DriverSQLite:
		dialector = sqlite.Open(cfg.Source)
	default:
		dialector = postgres.Open(cfg.Source)
	}

	orm, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	sqlDB, err := orm.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &database{
		ORM: orm,
		SQL: sqlx.NewDb(sqlDB, sqlxDriverName(cfg.Driver)),
	}, nil
}
