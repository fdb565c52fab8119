package factory

import (
	"fmt"

	"github.com/mikey/newsletter-filter/internal/adapters/filter"
	"github.com/mikey/newsletter-filter/internal/config"
	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/mikey/newsletter-filter/internal/feedback"
	"github.com/mikey/newsletter-filter/internal/ports"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg             *config.Config
	logger          *zap.Logger
	service         *core.DetectionService
	feedbackService *feedback.Service
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.DetectionService, feedbackService *feedback.Service) *FilterFactory {
	return &FilterFactory{
		cfg:             cfg,
		logger:          logger,
		service:         service,
		feedbackService: feedbackService,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	serverCfg := f.cfg.GetServer()

	switch serverCfg.FilterType {
	case "postfix":
		return filter.NewPostfixFilter(
			f.service,
			f.feedbackService,
			f.logger,
			serverCfg.ListenAddress,
			serverCfg.StatusHeader,
			serverCfg.ScoreHeader,
			serverCfg.ReasonHeader,
			serverCfg.PostfixAddress,
			serverCfg.PostfixPort,
			serverCfg.PostfixEnabled,
			serverCfg.SubjectPrefix,
			serverCfg.ModifySubject,
			serverCfg.VerifyOnAmbiguous,
		), nil
	case "cli":
		return filter.NewCliFilter(
			f.service,
			f.logger,
			f.cfg.GetBool("cli.verbose"),
		)
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", serverCfg.FilterType)
	}
}
