package di

import (
	"flag"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/newsletter-filter/internal/config"
	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/mikey/newsletter-filter/internal/factory"
	"github.com/mikey/newsletter-filter/internal/logging"
	"github.com/mikey/newsletter-filter/internal/ports"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Detection flags
	VerifyLow  float64
	VerifyHigh float64

	// Input flags
	InputFile  string
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// Detection flags
	flag.Float64Var(&flags.VerifyLow, "verify-low", 0.4, "Lower bound of the ambiguous score band")
	flag.Float64Var(&flags.VerifyHigh, "verify-high", 0.6, "Upper bound of the ambiguous score band")

	// Input flags
	flag.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.New()
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
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

	// Register stores, in-memory for one-shot runs
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

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set some cli specific settings
	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", flags.Verbose)

	// One-shot runs keep everything in memory and log verification emails
	v.Set("reputation.type", "memory")
	v.Set("storage.type", "memory")
	v.Set("delivery.type", "log")

	// Set the ambiguous band
	v.Set("detection.verify_low", flags.VerifyLow)
	v.Set("detection.verify_high", flags.VerifyHigh)

	return config.NewFromViper(v)
}
