package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikey/newsletter-filter/internal/config"
	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/mikey/newsletter-filter/internal/di"
	"github.com/mikey/newsletter-filter/internal/feedback"
	"github.com/mikey/newsletter-filter/internal/improver"
	"github.com/mikey/newsletter-filter/internal/ports"
	"github.com/mikey/newsletter-filter/internal/verification"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	verificationSvc *verification.Service,
	feedbackSvc *feedback.Service,
	imp *improver.Improver,
	reputationStore core.ReputationStore,
	feedbackStore core.FeedbackStore,
	verificationStore core.VerificationStore,
) error {
	defer logger.Sync()

	// Start the filter
	if err := emailFilter.Start(); err != nil {
		logger.Fatal("Failed to start filter", zap.Error(err))
		return err
	}

	// Start the verification expiry sweeper
	verificationCfg := cfg.GetVerification()
	sweepFreq, err := time.ParseDuration(verificationCfg.SweepFrequency)
	if err != nil {
		logger.Warn("Invalid sweep frequency, using 1h",
			zap.String("value", verificationCfg.SweepFrequency),
			zap.Error(err))
		sweepFreq = time.Hour
	}
	verificationSvc.StartSweeper(sweepFreq)

	// Periodically apply pending feedback and queue verification batches
	maintenanceDone := make(chan struct{})
	go runMaintenance(maintenanceDone, sweepFreq, verificationCfg, feedbackSvc, imp, logger)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	close(maintenanceDone)

	// Stop the filter
	if err := emailFilter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}

	verificationSvc.Stop()
	reputationStore.Stop()
	feedbackStore.Stop()
	verificationStore.Stop()

	logger.Info("Shutdown complete")
	return nil
}

// runMaintenance drives the background learning loop: it applies pending
// feedback to the improver and queues verification emails for uncertain
// detections until done is closed
func runMaintenance(
	done <-chan struct{},
	freq time.Duration,
	verificationCfg config.VerificationConfig,
	feedbackSvc *feedback.Service,
	imp *improver.Improver,
	logger *zap.Logger,
) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)

			applied, failed, err := imp.ProcessPending(ctx, 0)
			if err != nil {
				logger.Error("Failed to process pending feedback", zap.Error(err))
			} else if applied > 0 || failed > 0 {
				logger.Info("Applied pending feedback",
					zap.Int("applied", applied),
					zap.Int("failed", failed))
			}

			requests, err := feedbackSvc.GenerateVerificationRequests(ctx,
				verificationCfg.BatchThreshold, verificationCfg.BatchLimit)
			if err != nil {
				logger.Error("Failed to generate verification requests", zap.Error(err))
			} else if len(requests) > 0 {
				logger.Info("Queued verification requests", zap.Int("count", len(requests)))
			}

			cancel()
		}
	}
}
