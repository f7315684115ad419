package cache

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jgivc/pkgfetch/internal/entity"
	"github.com/jgivc/pkgfetch/internal/util"
	"github.com/spf13/afero"
)

type Hasher interface {
	Digest(path string) (string, error)
}

type probe struct {
	fs     afero.Fs
	hasher Hasher
	log    *slog.Logger
}

func NewProbe(fs afero.Fs, hasher Hasher, log *slog.Logger) *probe {
	return &probe{
		fs:     fs,
		hasher: hasher,
		log:    log.With(slog.String("item", "CacheProbe")),
	}
}

func (p *probe) Validate(pkg *entity.PackageDescriptor, path string) (entity.Validity, error) {
	if !pkg.HasHash() {
		if _, err := p.fs.Stat(path); err != nil {
			return entity.Invalid, fmt.Errorf("cannot stat %s: %w", path, err)
		}

		return entity.Unverifiable, nil
	}

	digest, err := p.hasher.Digest(path)
	if err != nil {
		return entity.Invalid, fmt.Errorf("cannot get digest: %w", err)
	}

	if !strings.EqualFold(digest, pkg.Hash) {
		return entity.Invalid, nil
	}

	return entity.Valid, nil
}

/*
Locate looks for a usable copy of pkg.
 1. primary/filename, if it is not Invalid, is returned as is.
 2. Otherwise secondaries are scanned in order. The first usable copy is copied into primary.
 3. Copy failures are not fatal, the scan goes on.

It returns nil when no usable copy exists.
*/
func (p *probe) Locate(pkg *entity.PackageDescriptor, primary string, secondaries []string) *entity.CacheHit {
	log := p.log.With(slog.String("package", pkg.Identity))
	dst := filepath.Join(primary, pkg.Filename)

	if util.FileExists(p.fs, dst) {
		v, err := p.Validate(pkg, dst)
		switch {
		case err != nil:
			log.Warn("Cannot validate cached file", slog.String("path", dst), slog.Any("error", err))
		case v.Usable():
			log.Debug("File already exists in primary cache", slog.String("path", dst), slog.String("validity", v.String()))

			return &entity.CacheHit{Path: dst, Dir: primary, Validity: v}
		default:
			log.Debug("Hash of cached file does not match", slog.String("path", dst))
		}
	}

	for _, dir := range secondaries {
		src := filepath.Join(dir, pkg.Filename)
		if !util.FileExists(p.fs, src) {
			continue
		}

		v, err := p.Validate(pkg, src)
		if err != nil {
			log.Debug("Cannot validate secondary copy", slog.String("path", src), slog.Any("error", err))

			continue
		}

		if !v.Usable() {
			log.Debug("Hash of secondary copy does not match", slog.String("path", src))

			continue
		}

		log.Debug("Found in secondary cache. Copying", slog.String("path", src))

		if err := util.CopyFile(p.fs, src, dst); err != nil {
			log.Debug("Cannot copy secondary copy", slog.String("src", src), slog.String("dst", dst), slog.Any("error", err))

			continue
		}

		return &entity.CacheHit{Path: dst, Dir: dir, Validity: v}
	}

	return nil
}
