package factory

import (
	"context"
	"fmt"

	"github.com/mikey/newsletter-filter/internal/adapters/delivery"
	"github.com/mikey/newsletter-filter/internal/config"
	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// DeliveryFactory creates email senders based on configuration
type DeliveryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewDeliveryFactory creates a new delivery factory
func NewDeliveryFactory(cfg *config.Config, logger *zap.Logger) *DeliveryFactory {
	return &DeliveryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateEmailSender creates an email sender based on the configuration
func (f *DeliveryFactory) CreateEmailSender() (core.EmailSender, error) {
	deliveryCfg := f.cfg.GetDelivery()

	switch deliveryCfg.Type {
	case "log":
		return delivery.NewLogSender(f.logger), nil
	case "ses":
		return delivery.NewSESSender(
			context.Background(),
			deliveryCfg.SESRegion,
			deliveryCfg.SESAccessKey,
			deliveryCfg.SESSecretKey,
			deliveryCfg.From,
			f.logger,
		)
	default:
		return nil, fmt.Errorf("unsupported delivery type: %s", deliveryCfg.Type)
	}
}
