package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/newsletter-filter/internal/adapters/reputation"
	"github.com/mikey/newsletter-filter/internal/config"
	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// ReputationFactory creates reputation stores based on configuration
type ReputationFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewReputationFactory creates a new reputation factory
func NewReputationFactory(cfg *config.Config, logger *zap.Logger) *ReputationFactory {
	return &ReputationFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateReputationStore creates a reputation store based on the configuration
func (f *ReputationFactory) CreateReputationStore() (core.ReputationStore, error) {
	repCfg := f.cfg.GetReputation()

	switch repCfg.Type {
	case "memory":
		return reputation.NewMemoryStore(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(repCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return reputation.NewSQLiteStore(repCfg.SQLitePath, f.logger)
	case "mysql":
		return reputation.NewMySQLStore(repCfg.MySQLDSN, f.logger)
	case "redis":
		return reputation.NewRedisStore(repCfg.RedisAddr, repCfg.RedisPassword, repCfg.RedisDB, f.logger)
	default:
		return nil, fmt.Errorf("unsupported reputation store type: %s", repCfg.Type)
	}
}
