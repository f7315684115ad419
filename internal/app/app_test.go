package app

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jgivc/pkgfetch/internal/common"
	"github.com/jgivc/pkgfetch/internal/config"
	"github.com/jgivc/pkgfetch/internal/entity"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	body := []byte("linux package payload")
	sum := md5.Sum(body)

	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/linux.pkg" {
			http.NotFound(w, r)

			return
		}

		w.Write(body)
	}))
	defer mirror.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/pkgfetch/manifest.yml", []byte(fmt.Sprintf(`
packages:
  - identity: linux
    version: "6.1-1"
    filename: linux.pkg
    hash: %s
    urls: [%s/missing.pkg, %s/linux.pkg]
`, hex.EncodeToString(sum[:]), mirror.URL, mirror.URL)), 0o644))

	cfg := config.Default()
	cfg.Manifest = "/etc/pkgfetch/manifest.yml"
	cfg.Cache.Primary = "/var/cache/pkg"
	cfg.Cache.Secondary = []string{"/mnt/xz"}
	require.NoError(t, fs.MkdirAll("/mnt/xz", 0o755))

	var bar bytes.Buffer
	a, err := New(cfg, Options{Progress: &bar, LogOutput: io.Discard, Fs: fs})
	require.NoError(t, err)

	res, err := a.Fetch(context.Background())
	require.NoError(t, err)
	a.Close()

	require.Equal(t, entity.BatchSuccess, res.Status)
	require.Equal(t, 1, res.Count(entity.OutcomeFetched))

	for _, path := range []string{"/var/cache/pkg/linux.pkg", "/mnt/xz/linux.pkg"} {
		data, err := afero.ReadFile(fs, path)
		require.NoError(t, err)
		require.Equal(t, body, data)
	}

	require.NotEmpty(t, bar.String())
}

func TestFetchWithoutManifest(t *testing.T) {
	cfg := config.Default()

	a, err := New(cfg, Options{LogOutput: io.Discard, Fs: afero.NewMemMapFs()})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Fetch(context.Background())
	require.ErrorIs(t, err, common.ErrInvalidManifest)
}

func TestServeRequiresLedger(t *testing.T) {
	a, err := New(config.Default(), Options{LogOutput: io.Discard, Fs: afero.NewMemMapFs()})
	require.NoError(t, err)
	defer a.Close()

	require.ErrorIs(t, a.Serve(), ErrNoLedger)
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarn, config.LogLevelError} {
		_, err := NewLogger(io.Discard, level)
		require.NoError(t, err, level)
	}

	_, err := NewLogger(io.Discard, "trace")
	require.Error(t, err)
}
