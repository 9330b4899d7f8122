package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ataraxai/indexd/internal/app"
)

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query [text...]",
		Short: "Run a retrieval query against the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(dataDir, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			text := strings.Join(args, " ")
			results, err := a.Retrieval.QueryKnowledge(cmd.Context(), text, nil)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no results")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "--- result %d ---\n%s\n\n", i+1, r)
			}
			return nil
		},
	}
}
