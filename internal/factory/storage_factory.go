package factory

import (
	"fmt"
	"os"
	"path/filepath"

	feedbackstore "github.com/mikey/newsletter-filter/internal/adapters/feedback"
	verificationstore "github.com/mikey/newsletter-filter/internal/adapters/verification"
	"github.com/mikey/newsletter-filter/internal/config"
	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// StorageFactory creates feedback and verification stores based on configuration
type StorageFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config, logger *zap.Logger) *StorageFactory {
	return &StorageFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateFeedbackStore creates a feedback store based on the configuration
func (f *StorageFactory) CreateFeedbackStore() (core.FeedbackStore, error) {
	storageCfg := f.cfg.GetStorage()

	switch storageCfg.Type {
	case "memory":
		return feedbackstore.NewMemoryStore(f.logger), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(storageCfg.FeedbackPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return feedbackstore.NewSQLiteStore(storageCfg.FeedbackPath, f.logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageCfg.Type)
	}
}

// CreateVerificationStore creates a verification store based on the configuration
func (f *StorageFactory) CreateVerificationStore() (core.VerificationStore, error) {
	storageCfg := f.cfg.GetStorage()

	switch storageCfg.Type {
	case "memory":
		return verificationstore.NewMemoryStore(f.logger), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(storageCfg.VerificationPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return verificationstore.NewSQLiteStore(storageCfg.VerificationPath, f.logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageCfg.Type)
	}
}
