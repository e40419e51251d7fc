package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/proxyhq/nudge-engine/internal/notification"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run a dispatch sweep for every trigger message on the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		rmq, err := newRabbitMQ(cfg, a.logger.Logger)
		if err != nil {
			return err
		}
		defer rmq.Close()

		if err := rmq.DeclareQueueWithDLQ(cfg.RabbitMQ.Queue); err != nil {
			return err
		}

		worker := notification.NewWorker(a.dispatcher, a.redis, a.logger.Logger)
		a.logger.Info("consuming dispatch triggers", "queue", cfg.RabbitMQ.Queue)
		return rmq.ConsumeWithContext(ctx, cfg.RabbitMQ.Queue, worker.ProcessTask)
	},
}
