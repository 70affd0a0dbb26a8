package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/domkit/pkg/inspect"
)

// shutdownTimeout bounds graceful shutdown of the inspector.
const shutdownTimeout = 5 * time.Second

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		addr     string
		follow   bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve <file> [selector]...",
		Short: "Serve a document's cache statistics over HTTP",
		Long: `Load an HTML document and serve the inspector: JSON statistics,
Prometheus metrics and a websocket stream of engine events.

With --watch the document body is reloaded whenever the file changes.

Routes:
  GET  /stats     cache statistics
  POST /clear     drop every cached lookup
  POST /sweep     run one idle sweep
  GET  /metrics   Prometheus metrics
  GET  /events    websocket event stream`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kit, err := loadKit(cmd, flags, args[0])
			if err != nil {
				return err
			}
			defer kit.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := &syncWriter{w: cmd.OutOrStdout()}
			insp := inspect.New(kit)
			defer insp.Close()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			srv := &http.Server{
				Handler:           insp.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			printBanner(w)
			success(w, "Inspector listening on http://%s", ln.Addr())
			if follow {
				info(w, "Watching %s", args[0])
			}
			info(w, "Press Ctrl+C to stop")
			fmt.Fprintln(w)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				// Stream connections are hijacked; close them before Shutdown waits.
				insp.Close()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if follow {
				fw := followFile(kit, args[0], args[1:], w, debounce, false)
				g.Go(func() error {
					if err := fw.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
						return err
					}
					return nil
				})
			}

			if err := g.Wait(); err != nil {
				errorMsg(w, "Inspector stopped: %v", err)
				return err
			}
			success(w, "Inspector stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:7070", "Listen address")
	cmd.Flags().BoolVarP(&follow, "watch", "w", false, "Reload the document when the file changes")
	cmd.Flags().DurationVar(&debounce, "debounce", 100*time.Millisecond, "Quiet period before a change is reloaded")

	return cmd
}
