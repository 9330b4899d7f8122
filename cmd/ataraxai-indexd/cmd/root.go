// Package cmd provides the CLI commands for ataraxai-indexd.
package cmd

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ataraxai/indexd/internal/obslog"
)

var dataDir string

// NewRootCmd creates the root command for ataraxai-indexd.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ataraxai-indexd",
		Short:         "Local file-indexing and retrieval daemon",
		Long:          `ataraxai-indexd watches a set of directories, keeps a vector index and manifest consistent with them, and serves ranked passages for natural-language queries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "directory for the manifest, vector store, config and logs")
	cmd.PersistentPreRunE = setupLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ataraxai"
	}
	return filepath.Join(home, ".ataraxai")
}

func setupLogging(_ *cobra.Command, _ []string) error {
	logger, _, err := obslog.Setup(obslog.DefaultConfig(dataDir))
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
