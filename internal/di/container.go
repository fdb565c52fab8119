package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/newsletter-filter/internal/analyzer"
	"github.com/mikey/newsletter-filter/internal/config"
	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/mikey/newsletter-filter/internal/factory"
	"github.com/mikey/newsletter-filter/internal/feedback"
	"github.com/mikey/newsletter-filter/internal/improver"
	"github.com/mikey/newsletter-filter/internal/logging"
	"github.com/mikey/newsletter-filter/internal/ports"
	"github.com/mikey/newsletter-filter/internal/verification"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register clock
	if err := container.Provide(func() core.Clock {
		return core.SystemClock{}
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewReputationFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStorageFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewDeliveryFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}

	// Register stores
	if err := container.Provide(func(f *factory.ReputationFactory) (core.ReputationStore, error) {
		return f.CreateReputationStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StorageFactory) (core.FeedbackStore, error) {
		return f.CreateFeedbackStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StorageFactory) (core.VerificationStore, error) {
		return f.CreateVerificationStore()
	}); err != nil {
		return nil, err
	}

	// Register email sender
	if err := container.Provide(func(f *factory.DeliveryFactory) (core.EmailSender, error) {
		return f.CreateEmailSender()
	}); err != nil {
		return nil, err
	}

	// Register detection pipeline
	if err := provideDetection(container); err != nil {
		return nil, err
	}

	// Register learning and verification services
	if err := provideFeedbackPipeline(container); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideDetection registers the analyzers, the aggregator and the
// detection service
func provideDetection(container *dig.Container) error {
	if err := container.Provide(func(reputation core.ReputationStore, logger *zap.Logger) []core.Analyzer {
		return []core.Analyzer{
			analyzer.NewHeaderAnalyzer(logger),
			analyzer.NewContentAnalyzer(logger),
			analyzer.NewSenderAnalyzer(reputation, logger),
		}
	}); err != nil {
		return err
	}

	if err := container.Provide(func(store core.FeedbackStore, logger *zap.Logger) core.FeedbackModeAnalyzer {
		return analyzer.NewFeedbackAnalyzer(store, logger)
	}); err != nil {
		return err
	}

	if err := container.Provide(func(cfg *config.Config) core.ConfidenceAggregator {
		detectionCfg := cfg.GetDetection()
		return analyzer.NewAggregator(detectionCfg.VerifyLow, detectionCfg.VerifyHigh)
	}); err != nil {
		return err
	}

	return container.Provide(core.NewDetectionService)
}

// provideFeedbackPipeline registers the improver, the verification
// service and the feedback facade
func provideFeedbackPipeline(container *dig.Container) error {
	if err := container.Provide(func(logger *zap.Logger) core.PersonalizationTrainer {
		return improver.NewLogTrainer(logger)
	}); err != nil {
		return err
	}

	if err := container.Provide(func(
		reputation core.ReputationStore,
		feedbackStore core.FeedbackStore,
		trainer core.PersonalizationTrainer,
		cfg *config.Config,
		logger *zap.Logger,
	) *improver.Improver {
		return improver.NewImprover(reputation, feedbackStore, trainer, improverConfig(cfg), logger)
	}); err != nil {
		return err
	}

	if err := container.Provide(func(
		store core.VerificationStore,
		feedbackStore core.FeedbackStore,
		sender core.EmailSender,
		clock core.Clock,
		cfg *config.Config,
		logger *zap.Logger,
	) *verification.Service {
		verificationCfg := cfg.GetVerification()
		return verification.NewService(store, feedbackStore, sender, clock, verification.Config{
			ExpiryDays:     verificationCfg.ExpiryDays,
			MaxResendCount: verificationCfg.MaxResendCount,
			BaseURL:        verificationCfg.BaseURL,
		}, logger)
	}); err != nil {
		return err
	}

	return container.Provide(feedback.NewService)
}

// improverConfig maps the configuration section onto the improver settings
func improverConfig(cfg *config.Config) improver.Config {
	improverCfg := cfg.GetImprover()
	return improver.Config{
		HighConfidence: improverCfg.HighConfidence,
		LowConfidence:  improverCfg.LowConfidence,
		LearningRate:   improverCfg.LearningRate,
		SurpriseBoost:  improverCfg.SurpriseBoost,
		SurpriseDamp:   improverCfg.SurpriseDamp,
		TypeWeights: map[core.FeedbackType]float64{
			core.FeedbackConfirm:   improverCfg.ConfirmWeight,
			core.FeedbackReject:    improverCfg.RejectWeight,
			core.FeedbackVerify:    improverCfg.VerifyWeight,
			core.FeedbackUncertain: improverCfg.UncertainWeight,
			core.FeedbackIgnore:    improverCfg.IgnoreWeight,
		},
		MinTrainingItems: improverCfg.MinTrainingItems,
	}
}
