package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eventhawk-systems/eventhawk-stack/common/logging"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/config"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the outbound delivery and subscription validation workers",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close(context.Background())

	runner, err := startWorkers(ctx, c, cfg, logger)
	if err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("stopping workers")
	runner.Stop()
	return nil
}

func startWorkers(ctx context.Context, c *components, cfg *config.Config, logger *logging.Logger) (*worker.Runner, error) {
	outbound := worker.NewOutbound(c.dispatcher, logger)
	validation := worker.NewValidation(c.dispatcher, c.registry, worker.ValidationConfig{
		BaseURL:   cfg.Events.BaseURL,
		EventType: cfg.Events.ValidationEventType,
	}, logger)

	runner := worker.NewRunner(c.broker, logger)
	if err := runner.Start(ctx, outbound.Job(), validation.Job()); err != nil {
		return nil, err
	}
	return runner, nil
}
