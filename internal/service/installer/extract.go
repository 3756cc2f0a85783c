package installer

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

var (
	// ErrCorruptArchive is returned when the archive is not a readable gzip-compressed tar.
	ErrCorruptArchive = errors.New("corrupt archive")
	// ErrUnsafeEntry is returned for entries that would land outside the extraction root.
	ErrUnsafeEntry = errors.New("archive entry escapes extraction root")
)

// extractor writes archive entries below one root. Every write goes through
// an os.Root handle, so symbolic links created by earlier entries cannot
// carry later entries outside of it.
type extractor struct {
	root     *os.Root
	realRoot string
}

// ExtractTarGz unpacks the gzip-compressed tar at archivePath into root and
// returns the number of entries written. Directories, regular files, symbolic
// links and hard links are restored; other entry types are skipped.
// A failure leaves whatever was already written in place.
func ExtractTarGz(ctx context.Context, archivePath, root string) (int, error) {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return 0, err
	}

	defer func() {
		_ = file.Close()
	}()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return 0, fmt.Errorf("%w: gzip: %w", ErrCorruptArchive, err)
	}

	defer func() {
		_ = gz.Close()
	}()

	x, err := openExtractor(root)
	if err != nil {
		return 0, err
	}

	defer func() {
		_ = x.root.Close()
	}()

	tarReader := tar.NewReader(gz)
	entries := 0

	for {
		if err = ctx.Err(); err != nil {
			return entries, err
		}

		var header *tar.Header

		header, err = tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return entries, fmt.Errorf("%w: tar: %w", ErrCorruptArchive, err)
		}

		written, entryErr := x.extractEntry(tarReader, header)
		if entryErr != nil {
			return entries, entryErr
		}

		if written {
			entries++
		}
	}

	return entries, nil
}

func openExtractor(root string) (*extractor, error) {
	if err := os.MkdirAll(root, defaultDirMode); err != nil {
		return nil, fmt.Errorf("create root %s: %w", root, err)
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}

	handle, err := os.OpenRoot(realRoot)
	if err != nil {
		return nil, fmt.Errorf("open root %s: %w", root, err)
	}

	return &extractor{root: handle, realRoot: realRoot}, nil
}

// extractEntry restores one tar entry.
func (x *extractor) extractEntry(tarReader *tar.Reader, header *tar.Header) (bool, error) {
	switch header.Typeflag {
	case tar.TypeDir, tar.TypeReg, tar.TypeSymlink, tar.TypeLink:
	default:
		return false, nil
	}

	name, err := entryPath(header.Name)
	if err != nil {
		return false, err
	}

	parent, err := x.prepareParent(name)
	if err != nil {
		return false, err
	}

	mode := header.FileInfo().Mode().Perm()

	switch header.Typeflag {
	case tar.TypeDir:
		if err = x.root.MkdirAll(name, mode|0o700); err != nil {
			return false, fmt.Errorf("create dir %s: %w", name, err)
		}
	case tar.TypeReg:
		if err = x.writeFile(tarReader, name, mode); err != nil {
			return false, err
		}
	case tar.TypeSymlink:
		if err = x.checkLinkTarget(parent, name, header.Linkname); err != nil {
			return false, err
		}

		if err = x.removeLink(name); err != nil {
			return false, err
		}

		if err = x.root.Symlink(header.Linkname, name); err != nil {
			return false, fmt.Errorf("create link %s: %w", name, err)
		}
	case tar.TypeLink:
		source, sourceErr := entryPath(header.Linkname)
		if sourceErr != nil {
			return false, sourceErr
		}

		if sourceErr = x.checkAncestors(source); sourceErr != nil {
			return false, sourceErr
		}

		if err = x.root.Link(source, name); err != nil {
			return false, fmt.Errorf("create hard link %s: %w", name, err)
		}
	}

	return true, nil
}

// writeFile creates name, replacing a symbolic link already at that path
// instead of writing through it.
func (x *extractor) writeFile(src io.Reader, name string, mode os.FileMode) error {
	if err := x.removeLink(name); err != nil {
		return err
	}

	out, err := x.root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", name, err)
	}

	if _, err = io.Copy(out, src); err != nil {
		_ = out.Close()

		return fmt.Errorf("%w: write file %s: %w", ErrCorruptArchive, name, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", name, err)
	}

	return nil
}

// removeLink deletes a symbolic link at name, if any.
func (x *extractor) removeLink(name string) error {
	info, err := x.root.Lstat(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("inspect %s: %w", name, err)
	}

	if info.Mode()&os.ModeSymlink == 0 {
		return nil
	}

	if err = x.root.Remove(name); err != nil {
		return fmt.Errorf("replace link %s: %w", name, err)
	}

	return nil
}

// prepareParent creates the directory holding name and returns its resolved
// absolute path. A parent reached through links that leave the root is unsafe.
func (x *extractor) prepareParent(name string) (string, error) {
	if err := x.checkAncestors(name); err != nil {
		return "", err
	}

	dir := filepath.Dir(name)
	if err := x.root.MkdirAll(dir, defaultDirMode); err != nil {
		return "", fmt.Errorf("prepare %s: %w", name, err)
	}

	resolved, err := filepath.EvalSymlinks(filepath.Join(x.realRoot, dir))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	if !x.contains(resolved) {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafeEntry)
	}

	return resolved, nil
}

// checkAncestors resolves the deepest existing ancestor of name and rejects
// it when it lies outside the root.
func (x *extractor) checkAncestors(name string) error {
	for ancestor := filepath.Dir(name); ; ancestor = filepath.Dir(ancestor) {
		resolved, err := filepath.EvalSymlinks(filepath.Join(x.realRoot, ancestor))
		if err == nil {
			if !x.contains(resolved) {
				return fmt.Errorf("%q: %w", name, ErrUnsafeEntry)
			}

			return nil
		}

		if !errors.Is(err, os.ErrNotExist) || ancestor == "." {
			return fmt.Errorf("resolve %s: %w", ancestor, err)
		}
	}
}

// checkLinkTarget rejects symbolic links that point outside the root, judged
// from the resolved directory the link is created in.
func (x *extractor) checkLinkTarget(parent, name, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("%q -> %q: %w", name, linkname, ErrUnsafeEntry)
	}

	lexical := filepath.Clean(filepath.Join(filepath.Dir(name), filepath.FromSlash(linkname)))
	resolved := filepath.Join(parent, filepath.FromSlash(linkname))

	if escapesRoot(lexical) || !x.contains(resolved) {
		return fmt.Errorf("%q -> %q: %w", name, linkname, ErrUnsafeEntry)
	}

	return nil
}

// contains reports whether the absolute path lies at or below the root.
func (x *extractor) contains(path string) bool {
	rel, err := filepath.Rel(x.realRoot, path)

	return err == nil && !filepath.IsAbs(rel) && !escapesRoot(rel)
}

// entryPath cleans a tar entry name and rejects names that leave the root.
func entryPath(name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || escapesRoot(cleaned) {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafeEntry)
	}

	return cleaned, nil
}

func escapesRoot(cleaned string) bool {
	return cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator))
}

// extractKind separates bad archives from local write failures.
func extractKind(err error) Kind {
	if errors.Is(err, ErrCorruptArchive) || errors.Is(err, ErrUnsafeEntry) {
		return KindIntegrity
	}

	return KindFilesystem
}
