package hasher

import (
	"bytes"
	"testing"

	"github.com/jgivc/pkgfetch/internal/common"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestDigest(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cache/hello", []byte("hello"), 0o644))

	testCases := []struct {
		name     string
		algo     string
		expected string
	}{
		{
			name:     "md5",
			algo:     AlgoMD5,
			expected: "5d41402abc4b2a76b9719d911017c592",
		},
		{
			name:     "default is md5",
			algo:     "",
			expected: "5d41402abc4b2a76b9719d911017c592",
		},
		{
			name:     "sha256",
			algo:     AlgoSHA256,
			expected: "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := NewHasher(fs, tc.algo)
			require.NoError(t, err)

			digest, err := h.Digest("/cache/hello")
			require.NoError(t, err)
			require.Equal(t, tc.expected, digest)
		})
	}
}

func TestDigestIndependentOfBufferSize(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := bytes.Repeat([]byte("0123456789abcdef"), 10_000)
	require.NoError(t, afero.WriteFile(fs, "/cache/big", content, 0o644))

	var digests []string
	for _, size := range []int{1, 7, 4096, 1 << 20} {
		h, err := NewHasherWithBuffer(fs, AlgoSHA256, size)
		require.NoError(t, err)

		digest, err := h.Digest("/cache/big")
		require.NoError(t, err)
		digests = append(digests, digest)
	}

	for _, d := range digests[1:] {
		require.Equal(t, digests[0], d)
	}
}

func TestDigestErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	h, err := NewHasher(fs, AlgoMD5)
	require.NoError(t, err)

	_, err = h.Digest("/cache/missing")
	require.ErrorIs(t, err, common.ErrFilesystem)

	_, err = NewHasher(fs, "crc32")
	require.Error(t, err)
}
