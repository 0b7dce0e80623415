package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"drivermgr/internal/manager"
	"drivermgr/internal/tui"
)

// maxParallelBrowsers bounds concurrent managers in one resolve run.
const maxParallelBrowsers = 4

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve, download and report the driver for each browser",
		Long: "Resolve the driver matching each browser given with --browser " +
			"(a comma-separated list resolves in parallel), download it into the " +
			"cache when missing, and report its path.",
		RunE: runResolve,
	}
}

// resolveOutcome is one browser's entry in JSON output.
type resolveOutcome struct {
	manager.Result
	Error string `json:"error,omitempty"`
}

func runResolve(cmd *cobra.Command, _ []string) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Close()) }()

	names, err := s.browsers()
	if err != nil {
		return err
	}

	mgrs := make([]*manager.Manager, len(names))
	rows := make([]tui.Row, len(names))
	for i, name := range names {
		m, err := s.newManager(name)
		if err != nil {
			return err
		}
		mgrs[i] = m
		rows[i] = tui.Row{Browser: m.BrowserName(), Driver: m.DriverName()}
	}

	outcomes := make([]resolveOutcome, len(mgrs))
	out := cmd.OutOrStdout()
	mode := tui.DetectMode(out, noProgress, outputJSON)

	if mode == tui.ModeTUI {
		model := tui.NewModel()
		for _, row := range rows {
			model.AddRow(row)
		}
		var resolveErr error
		if err := tui.RunWithWork(ctx, out, model, func(ctx context.Context, rep tui.Reporter) {
			resolveErr = resolveAll(ctx, mgrs, outcomes, rep)
		}); err != nil {
			return err
		}
		return resolveErr
	}

	table := tui.NewTableReporter(rows)
	resolveErr := resolveAll(ctx, mgrs, outcomes, table)
	if mode == tui.ModeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcomes); err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
		return resolveErr
	}
	if err := table.Write(out); err != nil {
		return err
	}
	return resolveErr
}

// resolveAll runs SetupDriver for every manager in parallel. A failing
// browser does not cancel the others; all failures are joined.
func resolveAll(ctx context.Context, mgrs []*manager.Manager, outcomes []resolveOutcome, rep tui.Reporter) error {
	errs := make([]error, len(mgrs))

	var g errgroup.Group
	g.SetLimit(maxParallelBrowsers)
	for i, m := range mgrs {
		i, m := i, m
		g.Go(func() error {
			rep.Update(tui.Row{Browser: m.BrowserName(), Status: tui.StatusResolving})

			_, err := m.SetupDriver(ctx)
			res := m.Result()
			outcomes[i] = resolveOutcome{Result: res}
			row := resultRow(res)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", m.BrowserName(), err)
				outcomes[i].Error = err.Error()
				row.Status = tui.StatusFailed
			} else {
				row.Status = tui.StatusReady
			}
			rep.Update(row)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func resultRow(res manager.Result) tui.Row {
	return tui.Row{
		Browser:        res.Browser,
		Driver:         res.Driver,
		BrowserVersion: res.BrowserVersion,
		DriverVersion:  res.DriverVersion,
		Path:           res.DriverPath,
	}
}
