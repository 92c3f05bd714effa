package objectkey

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidIdentity is returned when a blob identity cannot be turned into a key
var ErrInvalidIdentity = errors.New("invalid blob identity")

// Namer defines the interface for object key naming strategies
type Namer interface {
	// Key derives the object key for a blob. It must be a pure function of its inputs.
	Key(id uuid.UUID, extension string) (string, error)
}

// IdentityNamer produces the flat wire key {lower(id)}{lower(extension)}.
// The extension is expected to carry its own leading separator (".png").
type IdentityNamer struct{}

func NewIdentityNamer() *IdentityNamer {
	return &IdentityNamer{}
}

func (n *IdentityNamer) Key(id uuid.UUID, extension string) (string, error) {
	if err := validateExtension(extension); err != nil {
		return "", err
	}
	return strings.ToLower(id.String()) + strings.ToLower(extension), nil
}

// PrefixedNamer places keys from a base namer under a fixed path prefix.
// Structure: {prefix}/{base key}
type PrefixedNamer struct {
	Base   Namer
	Prefix string
}

func NewPrefixedNamer(prefix string) *PrefixedNamer {
	return &PrefixedNamer{
		Base:   NewIdentityNamer(),
		Prefix: prefix,
	}
}

func (n *PrefixedNamer) Key(id uuid.UUID, extension string) (string, error) {
	key, err := n.Base.Key(id, extension)
	if err != nil {
		return "", err
	}

	prefix := strings.Trim(sanitizePathComponent(n.Prefix), "/")
	if prefix == "" {
		return key, nil
	}
	return fmt.Sprintf("%s/%s", prefix, key), nil
}

// ShardedNamer spreads keys across Git-style shard directories derived from a
// hash of the identity, so the layout stays deterministic.
// Structure: ab/{base key}
type ShardedNamer struct {
	Base Namer
	// ShardLength controls how many hex characters name the shard (default: 2)
	ShardLength int
}

func NewShardedNamer() *ShardedNamer {
	return &ShardedNamer{
		Base:        NewIdentityNamer(),
		ShardLength: 2,
	}
}

func (n *ShardedNamer) Key(id uuid.UUID, extension string) (string, error) {
	key, err := n.Base.Key(id, extension)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256([]byte(key))
	hashStr := fmt.Sprintf("%x", hash)

	length := n.ShardLength
	if length <= 0 {
		length = 2
	}
	if length > len(hashStr) {
		length = len(hashStr)
	}

	return fmt.Sprintf("%s/%s", hashStr[:length], key), nil
}

// FuncNamer allows users to provide their own naming function
type FuncNamer struct {
	KeyFunc func(id uuid.UUID, extension string) (string, error)
}

func NewFuncNamer(fn func(id uuid.UUID, extension string) (string, error)) *FuncNamer {
	return &FuncNamer{
		KeyFunc: fn,
	}
}

func (n *FuncNamer) Key(id uuid.UUID, extension string) (string, error) {
	if err := validateExtension(extension); err != nil {
		return "", err
	}
	return n.KeyFunc(id, extension)
}

func validateExtension(extension string) error {
	if strings.TrimSpace(extension) == "" {
		return fmt.Errorf("%w: extension is required", ErrInvalidIdentity)
	}
	return nil
}

func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return strings.ToLower(replacer.Replace(component))
}

// NewDefaultNamer returns the namer that matches the established wire format
func NewDefaultNamer() Namer {
	return NewIdentityNamer()
}
