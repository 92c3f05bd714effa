package simpleblob

import (
	"errors"
	"fmt"

	"github.com/tendant/simple-blob/pkg/simpleblob/objectkey"
	"github.com/tendant/simple-blob/pkg/simpleblob/remote"
)

// Error types
var (
	// ErrMissingConfigField indicates a required setting is absent or blank
	ErrMissingConfigField = errors.New("missing required config field")

	// ErrContainerNotFound indicates the configured container does not exist
	ErrContainerNotFound = remote.ErrContainerNotFound

	// ErrCDNNotEnabled indicates the configured container is not published through a CDN
	ErrCDNNotEnabled = errors.New("CDN not enabled on container")

	// ErrObjectNotFound indicates no object exists for a blob
	ErrObjectNotFound = remote.ErrObjectNotFound

	// ErrUnsupportedOperation indicates the operation is not offered by this provider
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrNotInitialized indicates the provider was used before Initialize succeeded
	ErrNotInitialized = errors.New("provider not initialized")

	// ErrInvalidIdentity indicates a blob identity that cannot be named
	ErrInvalidIdentity = objectkey.ErrInvalidIdentity

	// ErrInvalidMissingURLPolicy indicates an unknown missing-URL policy name
	ErrInvalidMissingURLPolicy = errors.New("invalid missing URL policy")
)

// MissingConfigFieldError identifies the setting that failed validation
type MissingConfigFieldError struct {
	Field string
}

func (e *MissingConfigFieldError) Error() string {
	return fmt.Sprintf("'%s' is required", e.Field)
}

func (e *MissingConfigFieldError) Is(target error) bool {
	return target == ErrMissingConfigField
}

// ContainerError represents a container that cannot serve the provider
type ContainerError struct {
	Name string
	Err  error
}

func (e *ContainerError) Error() string {
	if errors.Is(e.Err, ErrCDNNotEnabled) {
		return fmt.Sprintf("container %s: %v: enable CDN support on this container", e.Name, e.Err)
	}
	return fmt.Sprintf("container %s: %v", e.Name, e.Err)
}

func (e *ContainerError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
