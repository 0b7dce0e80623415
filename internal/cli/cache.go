package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"drivermgr/internal/metadata"
	"drivermgr/internal/paths"
	"drivermgr/internal/vendors"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the driver and browser cache",
	}

	cmd.AddCommand(newCacheShowCmd())
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

func newCacheShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List cached version resolutions",
		RunE:  runCacheShow,
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the cache root with every downloaded driver and browser",
		RunE:  runCacheClear,
	}
}

type cacheRow struct {
	Kind string `json:"kind"`
	metadata.Entry
	Expired bool `json:"expired"`
}

func runCacheShow(cmd *cobra.Command, _ []string) (err error) {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Close()) }()

	md := metadata.Load(s.paths.MetadataFile, s.log)
	now := time.Now()
	var rows []cacheRow
	for _, e := range md.Drivers {
		rows = append(rows, cacheRow{Kind: "driver", Entry: e, Expired: !e.ExpiresAt.After(now)})
	}
	for _, e := range md.Browsers {
		rows = append(rows, cacheRow{Kind: "browser", Entry: e, Expired: !e.ExpiresAt.After(now)})
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Root    string     `json:"root"`
			Entries []cacheRow `json:"entries"`
		}{Root: s.paths.Root, Entries: rows})
	}

	fmt.Fprintf(out, "Cache: %s\n", s.paths.Root)
	if len(rows) == 0 {
		fmt.Fprintln(out, "No cached resolutions.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tMAJOR\tVERSION\tEXPIRES")
	for _, r := range rows {
		expires := r.ExpiresAt.Local().Format(time.RFC3339)
		if r.Expired {
			expires += " (expired)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Kind, r.Name, r.MajorVersion, r.Version, expires)
	}
	return tw.Flush()
}

func runCacheClear(cmd *cobra.Command, _ []string) (err error) {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Close()) }()

	root := filepath.Clean(s.paths.Root)
	if root == filepath.Dir(root) {
		return fmt.Errorf("refusing to clear filesystem root %s", root)
	}
	exists, err := paths.DirExists(root)
	if err != nil {
		return fmt.Errorf("stat cache root: %w", err)
	}
	if !exists {
		fmt.Fprintf(cmd.OutOrStdout(), "Cache %s is already empty\n", root)
		return nil
	}
	ok, err := looksLikeCache(s.paths)
	if err != nil {
		return fmt.Errorf("inspect cache root: %w", err)
	}
	if !ok {
		return fmt.Errorf("refusing to clear %s: it does not look like a drivermgr cache", root)
	}
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	s.log.WithField("root", root).Info("cache cleared")
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", root)
	return nil
}

// looksLikeCache reports whether root is empty or holds something drivermgr
// writes: the metadata file, the downloads directory or a driver or browser
// tree.
func looksLikeCache(cp paths.CachePaths) (bool, error) {
	entries, err := os.ReadDir(cp.Root)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return true, nil
	}
	known := map[string]bool{
		filepath.Base(cp.MetadataFile): true,
		filepath.Base(cp.DownloadsDir): true,
	}
	for _, name := range vendors.Names() {
		known[name] = true
		if v, err := vendors.ByName(name, vendors.Options{}); err == nil {
			known[v.DriverName()] = true
		}
	}
	for _, e := range entries {
		if known[e.Name()] {
			return true, nil
		}
	}
	return false, nil
}
