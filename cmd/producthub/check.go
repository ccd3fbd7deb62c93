package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/producthub/producthub/internal/hubapi"
)

var checkTimeout time.Duration

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and probe the upload API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}
		cmd.Printf("configuration ok (%s)\n", configPath)

		api, err := hubapi.NewClient(cfg.API.BaseURL, checkTimeout, logger)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
		defer cancel()
		if err := api.Health(ctx); err != nil {
			return fmt.Errorf("upload API at %s is not healthy: %w", cfg.API.BaseURL, err)
		}
		cmd.Printf("upload API ok (%s)\n", cfg.API.BaseURL)
		return nil
	},
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Second, "timeout for the API probe")
}
