package gormrepo

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Options struct {
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxIdle  time.Duration
	// LogLevel is the gorm SQL log level; zero keeps gorm's default.
	LogLevel logger.LogLevel
}

func OpenPostgres(dsn string, opts ...Options) (*gorm.DB, error) {
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}
	cfg := &gorm.Config{}
	if opt.LogLevel != 0 {
		cfg.Logger = logger.Default.LogMode(opt.LogLevel)
	}
	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if opt.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opt.MaxOpenConns)
	}
	if opt.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opt.MaxIdleConns)
	}
	if opt.ConnMaxIdle > 0 {
		sqlDB.SetConnMaxIdleTime(opt.ConnMaxIdle)
	}
	return db, nil
}
