package util

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestCopyFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/src", 0o755))
	require.NoError(t, fs.MkdirAll("/dst", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/src/a.pkg", []byte("content"), 0o644))

	require.NoError(t, CopyFile(fs, "/src/a.pkg", "/dst/a.pkg"))

	data, err := afero.ReadFile(fs, "/dst/a.pkg")
	require.NoError(t, err)
	require.Equal(t, "content", string(data))
	require.False(t, FileExists(fs, "/dst/a.pkg"+CopySuffix))
}

func TestCopyFileOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a.pkg", []byte("new"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/dst/a.pkg", []byte("old content"), 0o644))

	require.NoError(t, CopyFile(fs, "/src/a.pkg", "/dst/a.pkg"))

	data, err := afero.ReadFile(fs, "/dst/a.pkg")
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
}

func TestCopyFileErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.Error(t, CopyFile(fs, "/missing", "/dst/a.pkg"))

	require.NoError(t, afero.WriteFile(fs, "/src/a.pkg", []byte("content"), 0o644))
	ro := afero.NewReadOnlyFs(fs)
	require.Error(t, CopyFile(ro, "/src/a.pkg", "/dst/a.pkg"))
}

func TestFileExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/dir", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/dir/file", nil, 0o644))

	require.True(t, FileExists(fs, "/dir/file"))
	require.False(t, FileExists(fs, "/dir"))
	require.False(t, FileExists(fs, "/dir/none"))
	require.False(t, FileExists(fs, ""))
}
