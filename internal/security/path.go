// Package security confines tool file arguments to the configured directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator resolves user supplied paths against a root directory and
// rejects anything that escapes it, including through symlinks.
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator rooted at dir. The directory does not
// need to exist yet; paths are rejected until it does.
func NewPathValidator(dir string) (*PathValidator, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute configured directory
func (v *PathValidator) Root() string {
	return v.root
}

// Resolve returns the absolute form of path, which may be relative to the
// root. The path itself need not exist, but its nearest existing ancestor
// must lie inside the root once symlinks are evaluated.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	clean := filepath.Clean(path)

	if !within(clean, v.root) {
		return "", fmt.Errorf("path is outside configured directory: %s", path)
	}

	realRoot, err := filepath.EvalSymlinks(v.root)
	if err != nil {
		return "", fmt.Errorf("configured directory is not accessible: %w", err)
	}

	realPath, err := evalExisting(clean)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !within(realPath, realRoot) {
		return "", fmt.Errorf("path is outside configured directory: %s", path)
	}

	return clean, nil
}

// ResolveFile is Resolve for an existing regular file
func (v *PathValidator) ResolveFile(path string) (string, error) {
	resolved, err := v.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return "", fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", path)
	}
	return resolved, nil
}

// ResolveOutput resolves a path that is about to be written, giving it ext
// when it has no extension. Existing directories are rejected.
func (v *PathValidator) ResolveOutput(path, ext string) (string, error) {
	if ext != "" && filepath.Ext(path) == "" {
		path += ext
	}
	resolved, err := v.Resolve(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(resolved); err == nil && info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", path)
	}
	return resolved, nil
}

// evalExisting evaluates symlinks of the longest existing prefix of path and
// re-appends the missing tail.
func evalExisting(path string) (string, error) {
	var tail []string
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		tail = append(tail, filepath.Base(current))
		current = parent
	}
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
