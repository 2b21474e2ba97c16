package db

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/RichardoC/chatline/internal/config"
)

// Open returns the Store selected by cfg.Driver.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store, data will not survive a restart")
		return NewMemoryStore(), nil

	case config.DriverSQLite:
		database, err := New(cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("sqlite store initialized", zap.String("dbPath", cfg.Path))
		return database, nil

	case config.DriverPostgres:
		store, err := NewPostgres(cfg.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("postgres store initialized")
		return store, nil

	case config.DriverMySQL:
		store, err := NewMySQL(cfg.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("mysql store initialized")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
