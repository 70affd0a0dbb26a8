package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/domkit"
	"github.com/vango-dev/domkit/internal/filewatch"
	"github.com/vango-dev/domkit/pkg/query"
)

// syncWriter serializes writes from engine callbacks and the file watcher.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func watchCmd(flags *globalFlags) *cobra.Command {
	var (
		debounce time.Duration
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "watch <file> [selector]...",
		Short: "Follow cache invalidations while a document changes",
		Long: `Load an HTML document, prime the caches with the given selectors and
reload the document body whenever the file changes on disk. Every engine
event is printed as it happens and the selectors are looked up again
after each reload.

Press Ctrl+C to stop.`,
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
			fw := followFile(kit, args[0], args[1:], w, debounce, all)

			info(w, "Watching %s", args[0])
			info(w, "Press Ctrl+C to stop")
			fmt.Fprintln(w)

			if err := fw.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			success(w, "Stopped")
			return nil
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 100*time.Millisecond, "Quiet period before a change is reloaded")
	cmd.Flags().BoolVar(&all, "all", false, "Print cache hits and misses too")

	return cmd
}

// followFile primes kit with selectors and returns a file watcher that
// reloads path into the kit's document on every change. Engine events are
// printed to w.
func followFile(kit *domkit.Kit, path string, selectors []string, w io.Writer, debounce time.Duration, all bool) *filewatch.Watcher {
	kit.OnEvent(func(ev query.Event) {
		if !all && (ev.Kind == query.EventHit || ev.Kind == query.EventMiss) {
			return
		}
		printEvent(w, ev)
	})
	runLookups(w, kit, selectors)

	fw := filewatch.New(filewatch.Config{Paths: []string{path}, Debounce: debounce})
	fw.OnChange(func(c filewatch.Change) {
		if err := reload(kit.Document(), path); err != nil {
			// A removed file usually comes back with the editor's next write.
			warn(w, "%s %s: %v", c.Type, path, err)
			return
		}
		success(w, "Reloaded %s", path)
		runLookups(w, kit, selectors)
	})
	return fw
}

func runLookups(w io.Writer, kit *domkit.Kit, selectors []string) {
	for _, sel := range selectors {
		n, err := lookup(kit, sel, false)
		switch {
		case err != nil:
			errorMsg(w, "%s: %v", sel, err)
		case n == 0:
			warn(w, "%s: no matches", sel)
		default:
			info(w, "%s: %d match(es)", sel, n)
		}
	}
}

func printEvent(w io.Writer, ev query.Event) {
	line := fmt.Sprintf("%s %-10s %-11s", ev.Time.Format("15:04:05.000"), ev.Helper, ev.Kind)
	if ev.Key != "" {
		line += " " + ev.Key
	}
	if ev.Count > 0 {
		line += fmt.Sprintf(" (%d)", ev.Count)
	}
	info(w, "%s", line)
}
