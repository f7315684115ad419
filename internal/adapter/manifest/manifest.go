package manifest

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jgivc/pkgfetch/internal/common"
	"github.com/jgivc/pkgfetch/internal/entity"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

type Manifest struct {
	Packages []Package `yaml:"packages"`
}

type Package struct {
	Identity string   `yaml:"identity"`
	Version  string   `yaml:"version"`
	Filename string   `yaml:"filename"`
	Size     int64    `yaml:"size"`
	Hash     string   `yaml:"hash"`
	URLs     []string `yaml:"urls"`
}

type reader struct {
	fs  afero.Fs
	log *slog.Logger
}

func NewReader(fs afero.Fs, log *slog.Logger) *reader {
	return &reader{
		fs:  fs,
		log: log.With(slog.String("item", "ManifestReader")),
	}
}

// Load reads the manifest at path and returns its packages as a pending set.
func (r *reader) Load(path string) (*entity.PendingSet, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest %s: %w", path, err)
	}

	pending, err := Parse(data)
	if err != nil {
		r.log.Error("Cannot parse manifest", slog.String("path", path), slog.Any("error", err))

		return nil, err
	}

	r.log.Info("Manifest loaded", slog.String("path", path), slog.Int("packages", pending.Len()))

	return pending, nil
}

func Parse(data []byte) (*entity.PendingSet, error) {
	var m Manifest
	if err := yaml.UnmarshalStrict(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidManifest, err)
	}

	pending, err := entity.NewPendingSet()
	if err != nil {
		return nil, err
	}

	for i, p := range m.Packages {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("%w: package #%d: %w", common.ErrInvalidManifest, i+1, err)
		}

		if err := pending.Add(p.toDescriptor()); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidManifest, err)
		}
	}

	return pending, nil
}

func (p *Package) validate() error {
	if strings.TrimSpace(p.Identity) == "" {
		return fmt.Errorf("identity is empty")
	}

	if !IsBareName(p.Filename) {
		return fmt.Errorf("%s: filename %q must be a bare file name", p.Identity, p.Filename)
	}

	if p.Size < 0 {
		return fmt.Errorf("%s: negative size", p.Identity)
	}

	return nil
}

func (p *Package) toDescriptor() *entity.PackageDescriptor {
	return &entity.PackageDescriptor{
		Identity: p.Identity,
		Version:  p.Version,
		Filename: p.Filename,
		Size:     p.Size,
		Hash:     strings.TrimSpace(p.Hash),
		URLs:     append([]string(nil), p.URLs...),
	}
}

// IsBareName reports whether name can be joined to a cache directory without leaving it.
func IsBareName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}

	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}
