// Command askctl asks the VinUni assistant questions from a terminal and
// manages its reference directory.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/vinuni-assistant/internal/bootstrap"
	"github.com/kirillkom/vinuni-assistant/internal/config"
	"github.com/kirillkom/vinuni-assistant/internal/observability/logging"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "askctl",
	Short: "Ask the VinUni assistant and manage its reference directory",
	Long: `askctl runs the answer pipeline in-process, or through a worker over NATS
with --nats. Configuration is read from the environment and from the files
given with --env-file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFiles, _ := cmd.Flags().GetStringSlice("env-file")
		if err := config.LoadDotEnv(envFiles...); err != nil {
			return err
		}
		cfg = config.Load()
		logger = logging.NewJSONLoggerTo(os.Stderr, "askctl", cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("env-file", []string{".env"}, "env files to load; missing files are skipped")
}

func newApp(ctx context.Context) (*bootstrap.App, error) {
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "askctl", Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
