package simpleblob

import (
	"context"
	"io"
	"time"
)

// Provider maps abstract blob operations onto a remote CDN-backed container.
// All operations address objects through the provider's Namer, so a blob's
// identity fully determines where it lives.
type Provider interface {
	// Name returns the provider name used in errors and metrics
	Name() string

	// State returns the lifecycle state of the remote resource chain
	State() ChainState

	// Initialize reads the settings map, authenticates and resolves the
	// container. It must succeed before any other operation. The
	// on_missing_url setting is required unless WithMissingURLPolicy was
	// given.
	Initialize(ctx context.Context, settings map[string]string) error

	// Upload writes the whole stream as the blob's object and returns the
	// number of bytes written. Remote failures are returned.
	Upload(ctx context.Context, location Location, source io.Reader) (int64, error)

	// GetUploadStream is not supported; use Upload.
	GetUploadStream(ctx context.Context, location Location) (io.WriteCloser, error)

	// GetDownloadStream opens the blob for reading. It reports false, after
	// emitting a failure event, when the object is missing or unreadable.
	GetDownloadStream(ctx context.Context, location Location) (io.ReadCloser, bool)

	// Delete removes the blob. Deleting a missing blob succeeds.
	Delete(ctx context.Context, location Location) error

	// Exists reports whether the blob is present. Lookup failures count as absent.
	Exists(ctx context.Context, location Location) bool

	// GetURL returns the absolute CDN URI of the blob. When the lookup fails
	// the provider's MissingURLPolicy decides the result.
	GetURL(ctx context.Context, location Location) (string, error)

	// Copy copies source to destination inside the container
	Copy(ctx context.Context, source, destination Location) error

	// Move copies source to destination and then deletes source. The source
	// is only deleted once the copy succeeded.
	Move(ctx context.Context, source, destination Location) error

	// GetProperties returns the blob's properties
	GetProperties(ctx context.Context, location Location) (BlobProperties, error)

	// SetProperties is a no-op: the remote store offers no mutable properties
	SetProperties(ctx context.Context, location Location, properties BlobProperties) error
}

// Outcome labels reported to an OperationObserver
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// OperationObserver is notified after every provider operation
type OperationObserver interface {
	ObserveOperation(op, outcome string, duration time.Duration)
}
