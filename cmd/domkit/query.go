package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/domkit"
	kiterrors "github.com/vango-dev/domkit/internal/errors"
	"github.com/vango-dev/domkit/pkg/query"
)

// selectorResult is the outcome of one repeated lookup.
type selectorResult struct {
	Selector string `json:"selector"`
	Matches  int    `json:"matches"`
	Error    string `json:"error,omitempty"`
}

// queryReport is the JSON output of the query command.
type queryReport struct {
	Results []selectorResult       `json:"results"`
	Stats   map[string]query.Stats `json:"stats"`
}

func queryCmd(flags *globalFlags) *cobra.Command {
	var (
		repeat   int
		asJSON   bool
		useFirst bool
	)

	cmd := &cobra.Command{
		Use:   "query <file> <selector>...",
		Short: "Run cached lookups against a document",
		Long: `Load an HTML document, run each selector repeatedly through the
cached helpers and report match counts and cache statistics.

Selectors starting with # resolve through the id helper. Everything
else runs through the selector helper.

Examples:
  domkit query index.html "#main" ".card" --repeat 100
  domkit query index.html "li.unread" --json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if repeat < 1 {
				return fmt.Errorf("--repeat must be at least 1, got %d", repeat)
			}
			kit, err := loadKit(cmd, flags, args[0])
			if err != nil {
				return err
			}
			defer kit.Close()

			report := queryReport{Results: make([]selectorResult, 0, len(args)-1)}
			for _, sel := range args[1:] {
				res := selectorResult{Selector: sel}
				for range repeat {
					res.Matches, err = lookup(kit, sel, useFirst)
				}
				if err != nil {
					res.Error = err.Error()
				}
				report.Results = append(report.Results, res)
			}
			report.Stats = kit.Stats()

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(w, report)
			return nil
		},
	}

	cmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "Number of times each lookup runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&useFirst, "first", false, "Look up only the first match of each selector")

	return cmd
}

// lookup runs one lookup and returns the number of matches.
func lookup(kit *domkit.Kit, sel string, first bool) (int, error) {
	if first || isIDSelector(sel) {
		switch _, err := kit.Resolve(sel); {
		case errors.Is(err, errNotFound):
			return 0, nil
		case err != nil:
			return 0, err
		}
		return 1, nil
	}
	return kit.QueryAll(sel).Len(), nil
}

var errNotFound = kiterrors.New("E006")

func isIDSelector(sel string) bool {
	if len(sel) < 2 || sel[0] != '#' {
		return false
	}
	for _, r := range sel[1:] {
		if !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func printReport(w io.Writer, report queryReport) {
	for _, res := range report.Results {
		if res.Error != "" {
			errorMsg(w, "%s: %s", res.Selector, res.Error)
			continue
		}
		if res.Matches == 0 {
			warn(w, "%s: no matches", res.Selector)
			continue
		}
		success(w, "%s: %d match(es)", res.Selector, res.Matches)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HELPER\tHITS\tMISSES\tHIT RATE\tSIZE\tEVICTIONS\tINVALIDATIONS")
	for _, name := range slices.Sorted(maps.Keys(report.Stats)) {
		st := report.Stats[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\t%d\t%d\t%d\n",
			name, st.Hits, st.Misses, st.HitRate*100, st.CacheSize, st.Evictions, st.Invalidations)
	}
	tw.Flush()
}
