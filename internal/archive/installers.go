package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"drivermgr/internal/command"
)

// PkgAppPattern returns the glob, relative to an expanded installer package,
// that locates the application bundle. Packages for browsers newer than 84,
// or of unknown version, carry the bundle directly under Payload.
func PkgAppPattern(major int) string {
	if major == 0 || major > 84 {
		return filepath.Join("*", "Payload", "*.app")
	}
	return filepath.Join("*", "Payload", "Applications", "*.app")
}

func extractPkg(ctx context.Context, runner command.Runner, src, dest string, major int) error {
	expanded := filepath.Join(filepath.Dir(src), "expanded")
	_ = os.RemoveAll(expanded)
	defer func() { _ = os.RemoveAll(expanded) }()

	if _, err := runner.Run(ctx, "pkgutil", []string{"--expand-full", src, expanded}, command.RunOptions{}); err != nil {
		return fmt.Errorf("expand pkg: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(expanded, PkgAppPattern(major)))
	if err != nil {
		return fmt.Errorf("locate app bundle: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no app bundle in %s", filepath.Base(src))
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("prepare extract dir: %w", err)
	}
	app := matches[0]
	target := filepath.Join(dest, filepath.Base(app))
	_ = os.RemoveAll(target)
	if err := os.Rename(app, target); err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(app), err)
	}
	return nil
}

func extractDmg(ctx context.Context, runner command.Runner, src, dest string) error {
	mount := filepath.Join(filepath.Dir(src), "mount")
	if err := os.MkdirAll(mount, 0o755); err != nil {
		return fmt.Errorf("prepare mount point: %w", err)
	}

	if _, err := runner.Run(ctx, "hdiutil", []string{"attach", "-nobrowse", "-readonly", "-mountpoint", mount, src}, command.RunOptions{}); err != nil {
		return fmt.Errorf("attach dmg: %w", err)
	}
	defer func() {
		_, _ = runner.Run(context.WithoutCancel(ctx), "hdiutil", []string{"detach", mount, "-force"}, command.RunOptions{})
	}()

	matches, err := filepath.Glob(filepath.Join(mount, "*.app"))
	if err != nil {
		return fmt.Errorf("locate app bundle: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no app bundle in %s", filepath.Base(src))
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("prepare extract dir: %w", err)
	}
	if _, err := runner.Run(ctx, "cp", []string{"-R", matches[0], dest}, command.RunOptions{}); err != nil {
		return fmt.Errorf("copy app bundle: %w", err)
	}
	return nil
}

func extractMsi(ctx context.Context, runner command.Runner, src, dest string) error {
	args := []string{"/a", src, "/qn", "TARGETDIR=" + dest}
	if _, err := runner.Run(ctx, "msiexec", args, command.RunOptions{}); err != nil {
		return fmt.Errorf("msi administrative install: %w", err)
	}
	return nil
}

func extractDeb(ctx context.Context, runner command.Runner, src, dest string) error {
	if _, err := runner.Run(ctx, "dpkg-deb", []string{"-x", src, dest}, command.RunOptions{}); err != nil {
		return fmt.Errorf("dpkg-deb extract: %w", err)
	}
	return nil
}
