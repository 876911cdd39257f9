package tree

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, n), 0755))
	}
}

func TestList(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "beta", ".hidden", "alpha")

	got, err := List(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, got)
}

func TestList_SkipsFilesAndFollowsDirSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	mkdirs(t, root, "zeta")
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), []byte("hi"), 0644))

	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "linked")))
	require.NoError(t, os.Symlink(filepath.Join(root, "README"), filepath.Join(root, "filelink")))

	got, err := List(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"linked", "zeta"}, got)
}

func TestList_Empty(t *testing.T) {
	got, err := List(t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestList_MissingRoot(t *testing.T) {
	_, err := List(filepath.Join(t.TempDir(), "gone"))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "linux", ".secret")
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0644))

	tests := []struct {
		name    string
		tree    string
		want    string
		wantErr error
	}{
		{name: "existing tree", tree: "linux", want: filepath.Join(root, "linux")},
		{name: "empty", tree: "", wantErr: ErrInvalidName},
		{name: "parent", tree: "..", wantErr: ErrInvalidName},
		{name: "traversal", tree: "../etc", wantErr: ErrInvalidName},
		{name: "nested", tree: "linux/mm", wantErr: ErrInvalidName},
		{name: "absolute", tree: "/etc", wantErr: ErrInvalidName},
		{name: "hidden", tree: ".secret", wantErr: ErrInvalidName},
		{name: "missing", tree: "bsd", wantErr: ErrNotFound},
		{name: "file", tree: "notes.txt", wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(root, tt.tree)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
