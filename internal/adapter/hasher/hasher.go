package hasher

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/jgivc/pkgfetch/internal/common"
	"github.com/spf13/afero"
)

const (
	AlgoMD5    = "md5"
	AlgoSHA256 = "sha256"

	defaultBufferSize = 32 * 1024
)

type hasher struct {
	fs      afero.Fs
	newHash func() hash.Hash
	bufSize int
}

func NewHasher(fs afero.Fs, algo string) (*hasher, error) {
	return NewHasherWithBuffer(fs, algo, defaultBufferSize)
}

func NewHasherWithBuffer(fs afero.Fs, algo string, bufSize int) (*hasher, error) {
	var newHash func() hash.Hash

	switch algo {
	case AlgoMD5, "":
		newHash = md5.New
	case AlgoSHA256:
		newHash = sha256.New
	default:
		return nil, fmt.Errorf("unknown hash algorithm: %s", algo)
	}

	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}

	return &hasher{
		fs:      fs,
		newHash: newHash,
		bufSize: bufSize,
	}, nil
}

// Digest returns the hex encoded digest of the file content.
func (h *hasher) Digest(path string) (string, error) {
	f, err := h.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w: %w", path, common.ErrFilesystem, err)
	}
	defer f.Close()

	sum := h.newHash()
	buf := make([]byte, h.bufSize)
	if _, err := io.CopyBuffer(sum, f, buf); err != nil {
		return "", fmt.Errorf("cannot read %s: %w: %w", path, common.ErrFilesystem, err)
	}

	return hex.EncodeToString(sum.Sum(nil)), nil
}
