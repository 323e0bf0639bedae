// Package fileutil provides file and path utility functions.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for file utility operations.
var (
	ErrDirNotWritable = errors.New("directory is not writable")
	ErrNameInvalid    = errors.New("file name must be a single path element")
)

// Permission bits for staged content. Workspaces hold request data,
// so nothing is group or world readable.
const (
	DirPerm  = 0o700
	FilePerm = 0o600
)

// EnsureWritableDir creates dir (and parents) if absent, then verifies
// a file can be created inside it.
func EnsureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDirNotWritable, dir, err)
	}

	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDirNotWritable, dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}

// WriteExclusive writes content to dir/name, failing if the file already
// exists. Returns the absolute path of the written file.
func WriteExclusive(dir, name string, content []byte) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrNameInvalid, name)
	}

	path, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	// #nosec G304 -- name is validated as a single element above
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FilePerm)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}

	if _, writeErr := f.Write(content); writeErr != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("writing file: %w", writeErr)
	}

	if closeErr := f.Close(); closeErr != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("closing file: %w", closeErr)
	}

	return path, nil
}

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// FileURI converts an absolute path to a file:// URI.
func FileURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}
