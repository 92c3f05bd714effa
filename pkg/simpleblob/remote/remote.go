// Package remote defines the boundary between the blob provider and an
// object-storage SDK. A store is reached through four handles built in
// order: credentials, an authenticated Connection, the Account bound to that
// connection, and a named Container holding the objects.
//
// Implementations live in subpackages (memory, s3, minio). All of them
// address objects by a single flat key and report a missing object with
// ErrObjectNotFound so callers can tell it apart from transport failures.
package remote

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrObjectNotFound indicates no object exists at the requested key
	ErrObjectNotFound = errors.New("object not found")

	// ErrContainerNotFound indicates the named container does not exist
	ErrContainerNotFound = errors.New("container not found")

	// ErrAuthenticationFailed indicates the store rejected the credentials
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// Credentials identify the account owner to the remote store
type Credentials struct {
	Username string
	APIKey   string
}

// Driver creates connections to one kind of object store
type Driver interface {
	// Name returns the driver name ("memory", "s3", "minio")
	Name() string

	// Connect builds a connection for the given credentials. It does not
	// contact the store; Authenticate does.
	Connect(ctx context.Context, creds Credentials) (Connection, error)
}

// Connection is a session with the remote store
type Connection interface {
	// Authenticate verifies the credentials against the store
	Authenticate(ctx context.Context) error

	// Account returns the account bound to this connection
	Account(ctx context.Context) (Account, error)
}

// Account resolves containers owned by the authenticated user
type Account interface {
	// Container looks up a container by name. Returns ErrContainerNotFound
	// when it does not exist.
	Container(ctx context.Context, name string) (Container, error)
}

// Container holds objects addressed by flat keys
type Container interface {
	// Name returns the container name
	Name() string

	// CDNEnabled reports whether objects are published through a CDN
	CDNEnabled() bool

	// CDNURI returns the CDN base URI of the container, empty when disabled
	CDNURI() string

	// Object returns metadata for the object at key
	Object(ctx context.Context, key string) (ObjectInfo, error)

	// Read opens the object at key for reading from its start
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Write stores the full contents of reader at key and returns the
	// number of bytes written
	Write(ctx context.Context, key string, reader io.Reader, contentType string) (int64, error)

	// Delete removes the object at key
	Delete(ctx context.Context, key string) error

	// Copy copies the object at srcKey to dstKey inside the container
	Copy(ctx context.Context, srcKey, dstKey string) error
}

// ObjectInfo contains metadata about an object in a container
type ObjectInfo struct {
	Key           string
	ContentLength int64
	ContentType   string
	ETag          string
	LastModified  time.Time
	CDNURI        string
}
