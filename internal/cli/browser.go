package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"drivermgr/internal/manager"
	"drivermgr/internal/tui"
)

func newBrowserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browser",
		Short: "Download the requested browser into the cache and print its path",
		RunE:  runBrowser,
	}
}

func runBrowser(cmd *cobra.Command, _ []string) (err error) {
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
	if len(names) != 1 {
		return fmt.Errorf("browser downloads one browser at a time, got %d", len(names))
	}

	m, err := s.newManager(names[0])
	if err != nil {
		return err
	}

	var status *tui.StatusWriter
	if tui.DetectMode(cmd.ErrOrStderr(), noProgress, outputJSON) == tui.ModeTUI {
		status = tui.NewStatusWriter(cmd.ErrOrStderr(),
			fmt.Sprintf("Provisioning %s %s...", m.BrowserName(), tui.NonEmptyOrDash(s.cfg.BrowserVersion)))
	}

	path, ok, err := m.DownloadBrowser(ctx)
	if status != nil {
		status.Update(fmt.Sprintf("%s %s", m.BrowserName(), tui.NonEmptyOrDash(m.BrowserVersion())))
		status.Finish(err)
	}
	if err != nil {
		return err
	}
	if !ok {
		if s.cfg.AvoidBrowserDownload && s.cfg.BrowserPath == "" {
			return fmt.Errorf("browser download is disabled (avoid_browser_download)")
		}
		return fmt.Errorf("%s: browser not available: %w", m.BrowserName(), manager.ErrNotFound)
	}

	if outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(m.Result())
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
