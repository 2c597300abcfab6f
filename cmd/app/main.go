package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/wekabeka1996/aurora/internal/di"
	"github.com/wekabeka1996/aurora/pkg/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "aurora",
		Short: "Pre-trade admission control engine",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the decision engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithEnv(configPath)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}

			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}

			log.Printf("env=%s port=%d", cfg.Environment, cfg.Server.Port)
			return app.Run()
		},
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithEnv(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("config ok: env=%s sla_ms=%.0f\n", cfg.Environment, cfg.Pipeline.SLAMs)
			return nil
		},
	}

	root.AddCommand(serve, check)
	if err := root.Execute(); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}
