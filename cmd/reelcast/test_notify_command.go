package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelcast/internal/apiclient"
	"reelcast/internal/config"
	"reelcast/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if client, err := apiclient.New(cfg); err == nil {
				resp, err := client.TestNotification(cmd.Context())
				switch {
				case err == nil:
					if resp.Message != "" {
						fmt.Fprintln(out, resp.Message)
					}
					if resp.Error != "" {
						return errors.New(resp.Error)
					}
					return nil
				case !errors.Is(err, apiclient.ErrUnavailable):
					return err
				}
			}
			message, err := sendLocalNotification(cmd.Context(), cfg)
			fmt.Fprintln(out, message)
			return err
		},
	}
}

func sendLocalNotification(ctx context.Context, cfg *config.Config) (string, error) {
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return "ntfy topic not configured", nil
	}
	if err := notifications.NewService(cfg).Publish(ctx, notifications.EventTest, nil); err != nil {
		return "failed to send notification", err
	}
	return "Test notification sent", nil
}
