package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ataraxai/indexd/internal/app"
	"github.com/ataraxai/indexd/internal/watcher"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the indexing daemon: watch directories and keep the index up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.Open(dataDir, nil)
			if err != nil {
				return fmt.Errorf("open app: %w", err)
			}
			defer func() { _ = a.Close() }()

			w := watcher.NewDirectoryWatcher(watcher.DefaultOptions())

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				a.RunWorker(ctx)
			}()
			go func() {
				defer wg.Done()
				if err := a.Watch(ctx, w); err != nil {
					a.Logger.Error("watch loop exited", slog.Any("error", err))
				}
			}()

			a.Logger.Info("ataraxai-indexd serving", slog.Any("roots", a.WatchMgr.Roots()))
			wg.Wait()
			return nil
		},
	}
}
