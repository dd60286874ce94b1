package servecmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	common "github.com/cuihairu/arcade/internal/cli/common"
)

// New returns the `arcade serve` command.
func New() *cobra.Command {
	var addr string
	var watchRoots []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API (and library watcher)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			if len(watchRoots) > 0 {
				a.Config.Watch.Enabled = true
				a.Config.Watch.Roots = append(a.Config.Watch.Roots, watchRoots...)
			}

			w, err := a.StartWatcher(ctx)
			if err != nil {
				return err
			}
			if w != nil {
				defer func() { _ = w.Stop() }()
				a.Logger.Info("library watcher started", "roots", a.Config.Watch.Roots)
			}

			srv := a.HTTPServer()
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			a.Logger.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			a.Logger.Info("log summary", "counters", common.GetLogCounters())
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().StringSliceVar(&watchRoots, "watch", nil, "library roots to watch for new games")
	return cmd
}
