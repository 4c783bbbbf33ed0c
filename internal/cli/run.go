// Package cli implements the agent's cobra subcommands.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/readmarkapp/readmark-agent/internal/config"
	"github.com/readmarkapp/readmark-agent/internal/di"
	"github.com/readmarkapp/readmark-agent/internal/di/providers"
	"github.com/readmarkapp/readmark-agent/internal/logger"
)

// RunCmd returns the run command, the agent's long-running mode.
func RunCmd() *cobra.Command {
	var overrides config.Overrides

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent until interrupted",
		Long: `Start the reconciliation engine and the loopback HTTP API, then block
until SIGINT or SIGTERM. The UI shell connects to the listen address and
drives everything else.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			injector := di.NewContainer(overrides)

			if err := di.Bootstrap(injector); err != nil {
				return fmt.Errorf("failed to bootstrap agent: %w", err)
			}

			log := do.MustInvoke[*logger.Logger](injector)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info("Shutting down agent gracefully...")

			if err := injector.Shutdown(); err != nil {
				log.Error("Shutdown error", "error", err)
			}

			// The store wrapper needs explicit cleanup so the snapshot
			// database is flushed before exit.
			if storeHandle, err := do.Invoke[*providers.StoreHandle](injector); err == nil {
				if err := storeHandle.Shutdown(); err != nil {
					log.Error("Failed to close snapshot store", "error", err)
				}
			}

			log.Info("Agent stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&overrides.Environment, "environment", "", "runtime environment (development|production)")
	cmd.Flags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&overrides.DataDir, "data-dir", "", "snapshot database directory")
	cmd.Flags().StringVar(&overrides.StoreDriver, "store-driver", "", "persistence backend (badger|sqlite)")
	cmd.Flags().StringVar(&overrides.ListenAddr, "listen", "", "loopback listen address")
	cmd.Flags().StringVar(&overrides.RemoteURL, "remote-url", "", "ReadMark API base URL")
	cmd.Flags().StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")

	return cmd
}
