package main

import (
	"fmt"
	"os"

	"github.com/de-tools/linkmind/pkg/runtime/app"
	"github.com/de-tools/linkmind/pkg/server"
	"github.com/de-tools/linkmind/pkg/services/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the LinkMind web server",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to the LinkMind config file; thresholds and rates have no defaults")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg.Log, os.Stdout)
	ctx := logger.WithContext(cmd.Context())

	a, err := app.New(ctx, cfg, app.Options{ConfigPath: cfgPath})
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer a.Close()

	if cfgPath != "" {
		logger.Info().Msgf("Configuration found at `%s` successfully loaded.", cfgPath)
		if err := a.WatchRates(ctx); err != nil {
			logger.Error().Err(err).Msg("rate table hot reload disabled")
		}
	}

	if err := a.StartScheduler(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	return server.NewWebAPI(logger, a.ServerConfig()).Start(ctx)
}
