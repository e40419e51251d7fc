package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/proxyhq/nudge-engine/internal/notification"
)

var requestedBy string

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Queue one dispatch request for the consumers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		rmq, err := newRabbitMQ(cfg, nil)
		if err != nil {
			return err
		}
		defer rmq.Close()

		if err := rmq.DeclareQueueWithDLQ(cfg.RabbitMQ.Queue); err != nil {
			return err
		}

		req := notification.NewTriggerRequest(requestedBy)
		body, err := json.Marshal(req)
		if err != nil {
			return err
		}
		if err := rmq.Publish(ctx, cfg.RabbitMQ.Queue, body); err != nil {
			return fmt.Errorf("publish trigger: %w", err)
		}

		fmt.Printf("Queued dispatch request %s on %s\n", req.ID, cfg.RabbitMQ.Queue)
		return nil
	},
}

func init() {
	host, _ := os.Hostname()
	triggerCmd.Flags().StringVar(&requestedBy, "requested-by", host, "recorded on the trigger message")
}
