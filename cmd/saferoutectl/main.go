package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mr1hm/go-saferoute/internal/config"
	"github.com/mr1hm/go-saferoute/internal/logging"
)

func main() {
	_ = godotenv.Load()

	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:          "saferoutectl",
		Short:        "Query the SafeRoute facility, prediction and routing pipeline",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			// Logs go to stderr so stdout stays valid JSON.
			slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))
			return nil
		},
	}

	rootCmd.AddCommand(nearbyCmd(&cfg))
	rootCmd.AddCommand(routeCmd(&cfg))
	rootCmd.AddCommand(predictCmd(&cfg))
	rootCmd.AddCommand(recommendCmd(&cfg))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
