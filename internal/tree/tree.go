// Package tree resolves and lists the searchable trees under the code root.
// A tree is a visible directory directly under the root.
package tree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/jxr/internal/sanitize"
)

var (
	// ErrInvalidName indicates a tree name that could escape the code root.
	ErrInvalidName = errors.New("invalid tree name")

	// ErrNotFound indicates the tree does not exist.
	ErrNotFound = errors.New("tree not found")
)

// Resolve returns the absolute directory of tree name under codeRoot.
func Resolve(codeRoot, name string) (string, error) {
	if err := sanitize.ValidateName(name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}

	dir, err := sanitize.ValidatePath(name, codeRoot)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("stat tree %s: %w", name, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrNotFound, name)
	}
	return dir, nil
}

// List returns the names of all visible directories directly under
// codeRoot, sorted. Symlinks to directories count as trees.
func List(codeRoot string) ([]string, error) {
	entries, err := os.ReadDir(codeRoot)
	if err != nil {
		return nil, fmt.Errorf("reading code dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !isDir(codeRoot, e) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func isDir(root string, e os.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(root, e.Name()))
	return err == nil && info.IsDir()
}
