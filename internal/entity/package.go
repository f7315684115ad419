package entity

import (
	"fmt"

	"github.com/jgivc/pkgfetch/internal/common"
)

// PackageDescriptor describes one package the batch must place in the primary cache.
type PackageDescriptor struct {
	Identity string   // Unique package name, the PendingSet key
	Version  string   // Informational, used in status text
	Filename string   // Bare file name inside every cache directory
	Size     int64    // Declared size in bytes, 0 when unknown
	Hash     string   // Expected hex digest, empty means the package cannot be verified
	URLs     []string // Mirrors, tried in order
}

// HasHash reports whether the descriptor carries an expected digest.
func (p *PackageDescriptor) HasHash() bool {
	return p.Hash != ""
}

// PendingSet holds descriptors waiting to be processed. Drain order is unspecified.
type PendingSet struct {
	items   map[string]*PackageDescriptor
	drained map[string]struct{}
}

func NewPendingSet(pkgs ...*PackageDescriptor) (*PendingSet, error) {
	s := &PendingSet{
		items:   make(map[string]*PackageDescriptor, len(pkgs)),
		drained: make(map[string]struct{}),
	}

	for _, pkg := range pkgs {
		if err := s.Add(pkg); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *PendingSet) Add(pkg *PackageDescriptor) error {
	if _, exists := s.items[pkg.Identity]; exists {
		return fmt.Errorf("cannot add %s: %w", pkg.Identity, common.ErrDuplicatePackage)
	}

	if _, exists := s.drained[pkg.Identity]; exists {
		return fmt.Errorf("cannot add %s: %w", pkg.Identity, common.ErrPackageDrained)
	}

	s.items[pkg.Identity] = pkg

	return nil
}

// Pop removes and returns an arbitrary descriptor, or false when the set is empty.
func (s *PendingSet) Pop() (*PackageDescriptor, bool) {
	for id, pkg := range s.items {
		delete(s.items, id)
		s.drained[id] = struct{}{}

		return pkg, true
	}

	return nil, false
}

func (s *PendingSet) Len() int {
	return len(s.items)
}

func (s *PendingSet) Contains(identity string) bool {
	_, exists := s.items[identity]

	return exists
}

// Caches groups the primary cache with the secondary caches in scan order.
type Caches struct {
	Primary   string
	Secondary []string
}
