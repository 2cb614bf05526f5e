package main

import (
	"context"
	"errors"
	"os"

	"trezo/internal/cli"
	applog "trezo/internal/log"
	"trezo/internal/notify"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger().WithComponent(applog.ComponentWorker)

	logger.Info("Starting trezo-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the notification worker")
		os.Exit(1)
	}

	amqpClient, err := notify.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	go func() {
		err := amqpClient.ConsumeProvisionComplete(ctx, func(msg *notify.ProvisionCompleteMessage) error {
			logger.Info("Provision fully funded",
				"project_id", msg.ProjectID,
				"budget_id", msg.BudgetID,
				"obligation_id", msg.ObligationID,
				"counterpart", msg.Counterpart,
				"description", msg.Description,
				"amount_cents", msg.AmountCents)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
