package common

import "fmt"

var (
	ErrIntegrity  = fmt.Errorf("integrity check failed")
	ErrTransport  = fmt.Errorf("transport error")
	ErrBadStatus  = fmt.Errorf("%w: unexpected http status", ErrTransport)
	ErrConnection = fmt.Errorf("%w: connection failed", ErrTransport)
	ErrTimeout    = fmt.Errorf("%w: timeout", ErrTransport)
	ErrFilesystem = fmt.Errorf("filesystem error")

	ErrEmptyURL            = fmt.Errorf("empty mirror url")
	ErrMirrorsExhausted    = fmt.Errorf("all mirrors exhausted")
	ErrBatchAlreadyRunning = fmt.Errorf("batch has already started")

	ErrDuplicatePackage = fmt.Errorf("package already enqueued")
	ErrPackageDrained   = fmt.Errorf("package already drained")
	ErrPackageNotFound  = fmt.Errorf("package not found")
	ErrInvalidManifest  = fmt.Errorf("invalid manifest")
)

// PackageError reports the package that stopped a batch.
type PackageError struct {
	Identity string
	Err      error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("package %s: %v", e.Identity, e.Err)
}

func (e *PackageError) Unwrap() error {
	return e.Err
}
