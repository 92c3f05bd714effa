package simpleblob

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Setting keys recognised in the provider settings map
const (
	SettingUsername           = "username"
	SettingAPIKey             = "apikey"
	SettingContainer          = "container"
	SettingOnMissingURL       = "on_missing_url"
	SettingPlaceholderBaseURL = "placeholder_base_url"
)

// BlobIdentity identifies a blob by its content ID and file extension.
// The extension includes its leading separator (".png").
type BlobIdentity struct {
	ID        uuid.UUID
	Extension string
}

// Location addresses a blob on behalf of the host. FilePath is the host's
// own path for the blob and is only used for reporting.
type Location struct {
	BlobIdentity
	FilePath string
}

// NewLocation creates a Location for a blob
func NewLocation(id uuid.UUID, extension, filePath string) Location {
	return Location{
		BlobIdentity: BlobIdentity{ID: id, Extension: extension},
		FilePath:     filePath,
	}
}

// BlobProperties is the read-only projection of an object's properties
type BlobProperties struct {
	ContentType string `json:"content_type"`
}

// ProviderConfig holds the settings needed to reach the remote container
type ProviderConfig struct {
	Username      string
	APIKey        string
	ContainerName string
}

// ConfigFromSettings reads a ProviderConfig from a string-keyed settings map.
// Values are trimmed; each required field must be non-empty.
func ConfigFromSettings(settings map[string]string) (ProviderConfig, error) {
	cfg := configFromSettings(settings)
	if err := cfg.Validate(); err != nil {
		return ProviderConfig{}, err
	}
	return cfg, nil
}

func configFromSettings(settings map[string]string) ProviderConfig {
	return ProviderConfig{
		Username:      strings.TrimSpace(settings[SettingUsername]),
		APIKey:        strings.TrimSpace(settings[SettingAPIKey]),
		ContainerName: strings.TrimSpace(settings[SettingContainer]),
	}
}

// Validate checks that every required field is present
func (c ProviderConfig) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return &MissingConfigFieldError{Field: SettingUsername}
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return &MissingConfigFieldError{Field: SettingAPIKey}
	}
	if strings.TrimSpace(c.ContainerName) == "" {
		return &MissingConfigFieldError{Field: SettingContainer}
	}
	return nil
}

// MissingURLPolicy decides what GetURL returns when the object lookup fails
type MissingURLPolicy string

const (
	// MissingURLFail returns the lookup error
	MissingURLFail MissingURLPolicy = "fail"
	// MissingURLEmpty returns an empty URL
	MissingURLEmpty MissingURLPolicy = "empty"
	// MissingURLPlaceholder returns {placeholder base}/{file path}
	MissingURLPlaceholder MissingURLPolicy = "placeholder"
)

// DefaultPlaceholderBaseURL is the loopback base used by MissingURLPlaceholder
const DefaultPlaceholderBaseURL = "http://127.0.0.1"

// ParseMissingURLPolicy converts a setting value into a MissingURLPolicy
func ParseMissingURLPolicy(value string) (MissingURLPolicy, error) {
	switch MissingURLPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case MissingURLFail:
		return MissingURLFail, nil
	case MissingURLEmpty, "empty_string", "emptystring":
		return MissingURLEmpty, nil
	case MissingURLPlaceholder:
		return MissingURLPlaceholder, nil
	default:
		return "", fmt.Errorf("%w: %q (use fail, empty or placeholder)", ErrInvalidMissingURLPolicy, value)
	}
}
