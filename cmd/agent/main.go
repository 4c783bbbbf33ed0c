// Package main provides the entry point for the ReadMark rank agent.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/readmarkapp/readmark-agent/internal/api"
	"github.com/readmarkapp/readmark-agent/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "readmark-agent",
		Short:   "ReadMark rank agent - device-local reading rank reconciliation",
		Version: api.Version,
		Long: `The ReadMark rank agent keeps the device's reading rank in sync with the
ReadMark API. It reconciles the locally cached weekly progress with the
authoritative remote snapshot and serves the result to the UI shell over a
loopback HTTP API.`,
	}

	rootCmd.AddCommand(cli.RunCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.ResetCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
