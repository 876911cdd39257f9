// Package sanitize validates client-supplied names and paths before they are
// joined onto the code root.
package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validation errors for security checks.
var (
	// ErrPathTraversal indicates a path contains directory traversal sequences.
	ErrPathTraversal = errors.New("path contains directory traversal")

	// ErrAbsolutePath indicates an absolute path was provided where relative was expected.
	ErrAbsolutePath = errors.New("absolute path not allowed")

	// ErrEmptyPath indicates an empty path was provided.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrInvalidName indicates a name is not a single visible path component.
	ErrInvalidName = errors.New("invalid name")
)

// ValidateName checks that name is exactly one path component that is
// neither hidden nor a traversal. Tree names go through here.
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyPath
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q contains path characters", ErrInvalidName, name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q is hidden", ErrInvalidName, name)
	}
	return nil
}

// ValidatePath resolves a client-supplied relative path under root and
// returns the cleaned absolute result. Absolute paths and any ".." segment
// are rejected. An empty path resolves to root itself.
func ValidatePath(path, root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root: %w", err)
	}
	if path == "" {
		return absRoot, nil
	}

	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("%w: contains NUL", ErrPathTraversal)
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return "", ErrAbsolutePath
	}

	// Check segments before cleaning so "a/../b" is refused, not rewritten.
	for _, seg := range strings.FieldsFunc(path, isSeparator) {
		if seg == ".." {
			return "", fmt.Errorf("%w: contains '..'", ErrPathTraversal)
		}
	}

	abs := filepath.Join(absRoot, filepath.Clean(path))

	rel, err := filepath.Rel(absRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes root", ErrPathTraversal)
	}
	return abs, nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}
