package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ataraxai/indexd/internal/app"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage watched directories",
	}
	cmd.AddCommand(newIndexAddCmd())
	cmd.AddCommand(newIndexRemoveCmd())
	return cmd
}

func newIndexAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [paths...]",
		Short: "Add directories to the watched set and index their current contents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(dataDir, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			added, err := a.WatchMgr.AddDirectories(args)
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintln(cmd.OutOrStdout(), "no new directories added")
				return nil
			}

			return drainQueue(cmd.Context(), a)
		},
	}
}

func newIndexRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [paths...]",
		Short: "Remove directories from the watched set and drop their indexed chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(dataDir, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			removed, err := a.WatchMgr.RemoveDirectories(args)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "no directories removed")
				return nil
			}

			return drainQueue(cmd.Context(), a)
		},
	}
}

// drainQueue runs the update worker until the queue has had no new work
// for a short quiet period, then stops it. This is the CLI's one-shot
// equivalent of the daemon's always-on worker loop, used after a
// synchronous index add/remove so the command doesn't return before the
// enumeration it just triggered has actually been applied.
func drainQueue(ctx context.Context, a *app.App) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		a.RunWorker(ctx)
		close(done)
	}()

	quiet := 500 * time.Millisecond
	timer := time.NewTimer(quiet)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			cancel()
			<-done
			return nil
		case <-time.After(50 * time.Millisecond):
			if len(a.Queue.Events()) > 0 {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(quiet)
			}
		}
	}
}
