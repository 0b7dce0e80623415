package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"drivermgr/internal/command"
	"drivermgr/internal/platform"
)

// Kind names an artifact packaging format.
type Kind string

const (
	Zip    Kind = "zip"
	TarGz  Kind = "tar.gz"
	TarBz2 Kind = "tar.bz2"
	TarXz  Kind = "tar.xz"
	Pkg    Kind = "pkg"
	Dmg    Kind = "dmg"
	Msi    Kind = "msi"
	Deb    Kind = "deb"
	Exe    Kind = "exe"
	Binary Kind = "binary"
)

// ErrSkipped is returned for installers that are never unpacked into the
// cache. Callers treat it as a soft miss.
var ErrSkipped = errors.New("installer not unpacked")

// Options selects the extraction strategy.
type Options struct {
	// Kind overrides detection from the source file name.
	Kind Kind
	OS   platform.OS
	// MajorVersion of the packaged browser; zero when unknown. It picks the
	// payload layout of macOS installer packages.
	MajorVersion int
	Runner       command.Runner
}

// KindOf infers the format from a file name.
func KindOf(name string) Kind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return TarGz
	case strings.HasSuffix(lower, ".tar.bz2"):
		return TarBz2
	case strings.HasSuffix(lower, ".tar.xz"):
		return TarXz
	case strings.HasSuffix(lower, ".zip"):
		return Zip
	case strings.HasSuffix(lower, ".pkg"):
		return Pkg
	case strings.HasSuffix(lower, ".dmg"):
		return Dmg
	case strings.HasSuffix(lower, ".msi"):
		return Msi
	case strings.HasSuffix(lower, ".deb"):
		return Deb
	case strings.HasSuffix(lower, ".exe"):
		return Exe
	default:
		return Binary
	}
}

// Extract unpacks src into the directory dest.
func Extract(ctx context.Context, src, dest string, opts Options) error {
	kind := opts.Kind
	if kind == "" {
		kind = KindOf(src)
	}
	runner := opts.Runner
	if runner == nil {
		runner = command.CmdRunner{}
	}

	if kind != Pkg && kind != Dmg {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return fmt.Errorf("prepare extract dir: %w", err)
		}
	}

	switch kind {
	case Zip:
		return extractZip(src, dest)
	case TarGz:
		return extractTarGz(src, dest)
	case TarBz2:
		return extractTarBz2(src, dest)
	case TarXz:
		return extractTarXz(ctx, runner, src, dest)
	case Pkg:
		return extractPkg(ctx, runner, src, dest, opts.MajorVersion)
	case Dmg:
		return extractDmg(ctx, runner, src, dest)
	case Msi:
		return extractMsi(ctx, runner, src, dest)
	case Deb:
		return extractDeb(ctx, runner, src, dest)
	case Exe:
		return fmt.Errorf("%s: %w", filepath.Base(src), ErrSkipped)
	case Binary:
		return copyBinary(src, filepath.Join(dest, filepath.Base(src)))
	default:
		return fmt.Errorf("unsupported archive format %q", kind)
	}
}

// safeJoin resolves an archive entry name under dest, rejecting entries that
// would escape it.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if !within(dest, target) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// checkLink rejects a link entry at target whose destination is absolute or
// lies outside dest.
func checkLink(dest, target, linkname string) error {
	if linkname == "" || filepath.IsAbs(linkname) || filepath.VolumeName(linkname) != "" {
		return fmt.Errorf("archive link %s -> %q is not relative", target, linkname)
	}
	if !within(dest, filepath.Join(filepath.Dir(target), filepath.FromSlash(linkname))) {
		return fmt.Errorf("archive link %s -> %q escapes destination", target, linkname)
	}
	return nil
}

// checkResolved verifies that the closest existing ancestor of path, with
// links resolved, is still inside dest.
func checkResolved(dest, path string) error {
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dest, err)
	}
	existing := path
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", existing, err)
	}
	if !within(root, resolved) {
		return fmt.Errorf("archive path %s resolves outside destination", path)
	}
	return nil
}

func copyBinary(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer source.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("prepare %s: %w", dst, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, source); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	return out.Close()
}

// FindFile walks root and returns the first regular file called name.
func FindFile(root, name string) (string, error) {
	var match string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Name() == name {
			match = path
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return match, nil
}
