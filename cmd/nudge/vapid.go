package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/proxyhq/nudge-engine/internal/push"
)

var vapidKeysCmd = &cobra.Command{
	Use:   "vapid-keys",
	Short: "Generate a VAPID key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		publicKey, privateKey, err := push.GenerateVAPIDKeys()
		if err != nil {
			return fmt.Errorf("generate keys: %w", err)
		}
		fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
		fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
		return nil
	},
}
