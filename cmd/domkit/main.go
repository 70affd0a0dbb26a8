package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/domkit"
	"github.com/vango-dev/domkit/pkg/dom"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌┬┐┌─┐┌┬┐┬┌─┬┌┬┐
   │││ ││││├┴┐│ │
  ─┴┘└─┘┴ ┴┴ ┴┴ ┴
`

// globalFlags are shared by every command.
type globalFlags struct {
	config  string
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "domkit",
		Short: "Cached DOM lookups and reactive bindings for HTML documents",
		Long: `domkit loads an HTML document and exercises its lookup caches.

  • Repeat lookups and inspect hit rates
  • Watch a file and follow cache invalidations as it changes
  • Serve live statistics, metrics and engine events over HTTP`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "Options file (JSON or YAML)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log helper warnings to stderr")

	rootCmd.AddCommand(
		queryCmd(&flags),
		watchCmd(&flags),
		serveCmd(&flags),
		versionCmd(),
	)
	return rootCmd
}

// loadKit parses the document at path and builds a kit over it.
func loadKit(cmd *cobra.Command, flags *globalFlags, path string) (*domkit.Kit, error) {
	doc, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	opts := domkit.DefaultOptions()
	if flags.config != "" {
		if opts, err = domkit.LoadOptions(flags.config); err != nil {
			return nil, err
		}
	}
	logger := slog.New(slog.DiscardHandler)
	if flags.verbose {
		opts.EnableLogging = true
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return domkit.New(doc, domkit.Config{Options: opts, Logger: logger}), nil
}

func parseFile(path string) (*dom.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := dom.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// reload replaces the body of doc with the body of the file at path. The
// replacement goes through the document's mutation records, so every cache
// watching doc is invalidated as it would be for a script edit.
func reload(doc *dom.Document, path string) error {
	fresh, err := parseFile(path)
	if err != nil {
		return err
	}
	body, next := doc.Body(), fresh.Body()
	if body == nil || next == nil {
		return fmt.Errorf("reload %s: document has no body", path)
	}
	return body.SetInnerHTML(next.InnerHTML())
}

// printBanner prints the domkit ASCII art banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
