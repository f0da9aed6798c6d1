package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"statusdeck/internal/check"
	"statusdeck/internal/plugins/status"
	"statusdeck/internal/settings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	failOnMismatch bool
	parallelism    int
)

var checkCmd = &cobra.Command{
	Use:   "check [button...]",
	Short: "Run the checks from buttons.yaml once and print the results",
	Long: `Runs each button in <config-dir>/buttons.yaml once and prints whether it
matched. With arguments, only the named buttons run.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&failOnMismatch, "fail-on-mismatch", false, "Exit non-zero when any button does not match")
	checkCmd.Flags().IntVarP(&parallelism, "jobs", "j", 4, "Checks to run at once")
}

// checkReport is the outcome of one button
type checkReport struct {
	Name    string
	Result  check.Result
	Matched bool
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	loader := settings.NewLoader(filepath.Join(configDir, status.ButtonsFile), logger)
	buttons, err := loader.Load()
	if err != nil {
		return err
	}

	buttons, err = selectButtons(buttons, args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	reports, err := runButtons(ctx, check.NewRunner(logger), buttons, parallelism)
	if err != nil {
		return err
	}

	mismatched := printReports(cmd.OutOrStdout(), reports)
	if failOnMismatch && mismatched > 0 {
		return fmt.Errorf("%d of %d buttons did not match", mismatched, len(reports))
	}
	return nil
}

// selectButtons keeps the buttons named in names, in file order. An empty
// names keeps all of them.
func selectButtons(buttons []settings.Button, names []string) ([]settings.Button, error) {
	if len(names) == 0 {
		return buttons, nil
	}

	byName := make(map[string]settings.Button, len(buttons))
	for _, b := range buttons {
		byName[b.Name] = b
	}

	selected := make([]settings.Button, 0, len(names))
	for _, name := range names {
		b, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("no button named %q", name)
		}
		selected = append(selected, b)
	}
	return selected, nil
}

// runButtons runs each button's check once, at most limit at a time
func runButtons(ctx context.Context, checker status.Checker, buttons []settings.Button, limit int) ([]checkReport, error) {
	reports := make([]checkReport, len(buttons))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, b := range buttons {
		g.Go(func() error {
			cfg := b.Settings.Check
			result := checker.Run(gctx, cfg)
			reports[i] = checkReport{
				Name:    b.Name,
				Result:  result,
				Matched: check.Evaluate(result, cfg.MatchMode, cfg.MatchValue),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// printReports writes a results table and returns how many buttons did not match
func printReports(w io.Writer, reports []checkReport) int {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BUTTON\tSTATUS\tCODE\tOUTPUT")

	mismatched := 0
	for _, r := range reports {
		state := "match"
		if !r.Matched {
			state = "no match"
			mismatched++
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Name, state, r.Result.StatusCode, truncate(r.Result.Output, 60))
	}
	tw.Flush()
	return mismatched
}

func truncate(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}

