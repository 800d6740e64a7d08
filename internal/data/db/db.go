package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

type Config struct {
	// Driver is "postgres", "sqlite", or empty to disable persistence.
	Driver      string
	DatabaseURL string
	SQLitePath  string
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Driver) != "" }

type Service struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

// Open connects the configured driver. It returns (nil, nil) when persistence is disabled.
func Open(logg *logger.Logger, cfg Config) (*Service, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	serviceLog := logg.With("service", "GormDB")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "postgres", "postgresql":
		driver = "postgres"
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("db: DATABASE_URL required for postgres")
		}
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		path := strings.TrimSpace(cfg.SQLitePath)
		if path == "" {
			path = "nexusgraph.db"
		}
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	serviceLog.Info("database connected", "driver", driver)
	return &Service{db: db, driver: driver, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Driver() string { return s.driver }

func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db: not connected")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Service) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
