package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var errNotSymlink = errors.New("exists and is not a symbolic link")

// RetargetStableLink points link at target, replacing a previous symbolic link.
// Anything else already at link is left alone and reported.
// A crash between the removal and the creation leaves link absent.
func RetargetStableLink(link, target string) error {
	info, err := os.Lstat(link)

	switch {
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		if err = os.Remove(link); err != nil {
			return fmt.Errorf("remove %s: %w", link, err)
		}
	case err == nil:
		return fmt.Errorf("%s: %w", link, errNotSymlink)
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("inspect %s: %w", link, err)
	}

	if err = os.Symlink(target, link); err != nil {
		return fmt.Errorf("link %s -> %s: %w", link, target, err)
	}

	return nil
}

// EnsureBinaryLink creates link -> target when nothing exists at link.
// An existing entry is never touched. It reports whether a link was created.
func EnsureBinaryLink(link, target string) (bool, error) {
	_, err := os.Lstat(link)
	if err == nil {
		return false, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("inspect %s: %w", link, err)
	}

	if err = os.MkdirAll(filepath.Dir(link), defaultDirMode); err != nil {
		return false, fmt.Errorf("prepare %s: %w", filepath.Dir(link), err)
	}

	if err = os.Symlink(target, link); err != nil {
		return false, fmt.Errorf("link %s -> %s: %w", link, target, err)
	}

	return true, nil
}

// linkedVersionDir returns the base name of the directory link points at, or "" when link is not a symbolic link.
func linkedVersionDir(link string) string {
	target, err := os.Readlink(link)
	if err != nil {
		return ""
	}

	return filepath.Base(target)
}
