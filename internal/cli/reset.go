package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/readmarkapp/readmark-agent/internal/config"
	"github.com/readmarkapp/readmark-agent/internal/store"
	"github.com/readmarkapp/readmark-agent/internal/store/sqlite"
)

// ResetCmd returns the reset command. It clears the cached snapshot so the
// next agent start reconciles from a clean slate.
func ResetCmd() *cobra.Command {
	var overrides config.Overrides

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the locally cached rank snapshot",
		Long: `Remove the persisted rank snapshot from the local store. The device ID
is kept. Stop the agent first; the store is locked while it runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(overrides)
			if err != nil {
				return err
			}

			var st store.Store
			switch cfg.Data.StoreDriver {
			case "sqlite":
				st, err = sqlite.Open(filepath.Join(cfg.Data.Dir, "agent.db"), slog.Default())
			default:
				st, err = store.Open(filepath.Join(cfg.Data.Dir, "db"), slog.Default())
			}
			if err != nil {
				return fmt.Errorf("failed to open snapshot store: %w", err)
			}
			defer st.Close()

			if err := st.ClearSnapshot(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear snapshot: %w", err)
			}

			fmt.Println(color.New(color.FgGreen).Sprint("Snapshot cleared"))
			return nil
		},
	}

	cmd.Flags().StringVar(&overrides.DataDir, "data-dir", "", "snapshot database directory")
	cmd.Flags().StringVar(&overrides.StoreDriver, "store-driver", "", "persistence backend (badger|sqlite)")
	cmd.Flags().StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")

	return cmd
}
