package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tendant/simple-blob/pkg/simpleblob"
	"github.com/tendant/simple-blob/pkg/simpleblob/remote"
	"github.com/tendant/simple-blob/pkg/simpleblob/remote/memory"
	miniodriver "github.com/tendant/simple-blob/pkg/simpleblob/remote/minio"
	s3driver "github.com/tendant/simple-blob/pkg/simpleblob/remote/s3"
)

// Supported driver names
const (
	DriverMemory = "memory"
	DriverS3     = "s3"
	DriverMinIO  = "minio"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDriverDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDriverDefaults fills the credentials of the in-memory driver, which
// accepts any non-empty pair.
func (c *ServerConfig) applyDriverDefaults() {
	if c.Driver != DriverMemory {
		return
	}
	for _, key := range []string{simpleblob.SettingUsername, simpleblob.SettingAPIKey} {
		if strings.TrimSpace(c.Settings[key]) == "" {
			c.set(key, DriverMemory)
		}
	}
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:        "8080",
		Environment: "development",
		Driver:      DriverMemory,
		Settings: map[string]string{
			simpleblob.SettingContainer:    "media",
			simpleblob.SettingOnMissingURL: string(simpleblob.MissingURLEmpty),
		},
		EnableMetrics: true,
	}
}

// ServerConfig represents configuration for a blob provider and the server exposing it
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Driver selects the remote store: "memory", "s3" or "minio"
	Driver string

	// Settings is the provider settings map handed to Provider.Initialize.
	// It carries the credentials, the container and driver-specific keys.
	Settings map[string]string

	EnableMetrics bool
}

// Validate validates the configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.Driver {
	case DriverMemory, DriverS3, DriverMinIO:
	default:
		return fmt.Errorf("driver must be 'memory', 's3' or 'minio', got: %s", c.Driver)
	}

	if _, err := simpleblob.ConfigFromSettings(c.Settings); err != nil {
		return err
	}

	if raw := strings.TrimSpace(c.Settings[simpleblob.SettingOnMissingURL]); raw != "" {
		if _, err := simpleblob.ParseMissingURLPolicy(raw); err != nil {
			return err
		}
	}

	if c.Driver == DriverMinIO && strings.TrimSpace(c.Settings[miniodriver.SettingEndpoint]) == "" {
		return errors.New("endpoint is required when using minio")
	}

	return nil
}

// ContainerName returns the configured container
func (c *ServerConfig) ContainerName() string {
	return strings.TrimSpace(c.Settings[simpleblob.SettingContainer])
}

// BuildDriver creates the remote driver selected by the configuration
func (c *ServerConfig) BuildDriver() (remote.Driver, error) {
	switch c.Driver {
	case DriverMemory:
		opts := []memory.Option{memory.WithContainer(c.ContainerName(), true)}
		if base := strings.TrimSpace(c.Settings[s3driver.SettingCDNBaseURL]); base != "" {
			opts = append(opts, memory.WithCDNBaseURL(strings.TrimSuffix(base, "/")))
		}
		return memory.New(opts...), nil
	case DriverS3:
		return s3driver.New(s3driver.ConfigFromSettings(c.Settings)), nil
	case DriverMinIO:
		return miniodriver.New(miniodriver.ConfigFromSettings(c.Settings)), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", c.Driver)
	}
}

// BuildProvider creates a Provider from the configuration and initializes it.
// Extra options are applied after the driver is set.
func (c *ServerConfig) BuildProvider(ctx context.Context, opts ...simpleblob.Option) (simpleblob.Provider, error) {
	driver, err := c.BuildDriver()
	if err != nil {
		return nil, fmt.Errorf("failed to build driver: %w", err)
	}

	options := append([]simpleblob.Option{simpleblob.WithDriver(driver)}, opts...)
	provider, err := simpleblob.New(options...)
	if err != nil {
		return nil, err
	}

	if err := provider.Initialize(ctx, c.Settings); err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider: %w", provider.Name(), err)
	}
	return provider, nil
}
