package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"drivermgr/internal/manager"
)

func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Report the version of each locally installed browser",
		RunE:  runDiscover,
	}
}

type discovered struct {
	Browser string `json:"browser"`
	Version string `json:"version,omitempty"`
	Found   bool   `json:"found"`
}

func runDiscover(cmd *cobra.Command, _ []string) (err error) {
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

	var (
		found []discovered
		errs  []error
	)
	for _, name := range names {
		m, err := s.newManager(name)
		if err != nil {
			return err
		}
		v, ok := m.DiscoverBrowserVersion(ctx)
		found = append(found, discovered{Browser: m.BrowserName(), Version: v, Found: ok})
		if !ok {
			errs = append(errs, fmt.Errorf("%s: no local installation: %w", m.BrowserName(), manager.ErrNotFound))
		}
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(found); err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
		return errors.Join(errs...)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BROWSER\tVERSION")
	for _, d := range found {
		v := d.Version
		if !d.Found {
			v = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\n", d.Browser, v)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return errors.Join(errs...)
}
