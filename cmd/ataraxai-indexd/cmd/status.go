package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ataraxai/indexd/internal/app"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the update worker's progress through its backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(dataDir, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			snap := a.Worker.Progress.Snapshot()
			out, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal progress: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
