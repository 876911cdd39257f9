// Package repo locates git repositories under the code root and reads
// their metadata with go-git.
package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/jxr/internal/sanitize"
	"github.com/go-git/go-git/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const instrumentationName = "github.com/fyrsmithlabs/jxr/internal/repo"

var (
	// ErrNotFound indicates no directory on the path holds a .git directory.
	ErrNotFound = errors.New("no git repository found")

	// ErrInvalidPath indicates the requested path could escape the code root.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNoRemote indicates the repository has no usable origin remote.
	ErrNoRemote = errors.New("no origin remote")
)

// Locator finds repositories below Root.
type Locator struct {
	Root string
}

// Find resolves rel under the code root and walks it from the root toward
// the leaf, returning the absolute path of the first (shallowest) directory
// that contains a .git directory. The code root itself is never a candidate.
func (l Locator) Find(rel string) (string, error) {
	abs, err := sanitize.ValidatePath(rel, l.Root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	root, err := filepath.Abs(l.Root)
	if err != nil {
		return "", fmt.Errorf("resolving code root: %w", err)
	}

	inside, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if inside == "." {
		return "", fmt.Errorf("%w: %s", ErrNotFound, rel)
	}

	dir := root
	for _, part := range strings.Split(inside, string(filepath.Separator)) {
		dir = filepath.Join(dir, part)
		if hasGitDir(dir) {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, rel)
}

// Relative renders a directory returned by Find relative to the code root,
// with a trailing slash.
func (l Locator) Relative(abs string) (string, error) {
	root, err := filepath.Abs(l.Root)
	if err != nil {
		return "", fmt.Errorf("resolving code root: %w", err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside the code root", ErrInvalidPath, abs)
	}
	return filepath.ToSlash(rel) + "/", nil
}

func hasGitDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, git.GitDirName))
	return err == nil && info.IsDir()
}

// Head returns the commit hash HEAD points to in the repository at dir.
func Head(ctx context.Context, dir string) (string, error) {
	_, span := otel.Tracer(instrumentationName).Start(ctx, "repo.Head")
	defer span.End()
	span.SetAttributes(attribute.String("repo.dir", dir))

	r, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("opening repository %s: %w", dir, err)
	}
	ref, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// RemoteURL returns the first URL of the origin remote of the repository at dir.
func RemoteURL(ctx context.Context, dir string) (string, error) {
	_, span := otel.Tracer(instrumentationName).Start(ctx, "repo.RemoteURL")
	defer span.End()
	span.SetAttributes(attribute.String("repo.dir", dir))

	r, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("opening repository %s: %w", dir, err)
	}
	remote, err := r.Remote("origin")
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return "", ErrNoRemote
		}
		return "", fmt.Errorf("reading origin remote: %w", err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("%w: origin has no URL", ErrNoRemote)
	}
	return urls[0], nil
}

// TrimRemote turns a GitHub remote URL into "owner/repo".
func TrimRemote(url string) string {
	url = strings.TrimSpace(url)
	url = strings.TrimPrefix(url, "git@github.com:")
	url = strings.TrimPrefix(url, "https://github.com/")
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, ".git")
	return strings.TrimSpace(url)
}
