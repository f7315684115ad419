package entity

type Validity int

const (
	Invalid Validity = iota
	Valid
	Unverifiable
)

func (v Validity) String() string {
	return [...]string{"Invalid", "Valid", "Unverifiable"}[v]
}

// Usable reports whether a copy with this validity may be reused.
func (v Validity) Usable() bool {
	return v == Valid || v == Unverifiable
}

// CacheHit is a usable copy of a package, always located in the primary cache.
type CacheHit struct {
	Path     string
	Dir      string // Directory the copy was found in
	Validity Validity
}
