package config

import (
	"fmt"
	"strconv"

	"github.com/tendant/simple-blob/pkg/simpleblob"
	miniodriver "github.com/tendant/simple-blob/pkg/simpleblob/remote/minio"
	s3driver "github.com/tendant/simple-blob/pkg/simpleblob/remote/s3"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithCredentials sets the username and API key used to authenticate
func WithCredentials(username, apiKey string) Option {
	return func(c *ServerConfig) error {
		c.set(simpleblob.SettingUsername, username)
		c.set(simpleblob.SettingAPIKey, apiKey)
		return nil
	}
}

// WithContainer sets the container holding the blobs
func WithContainer(name string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			return fmt.Errorf("container name cannot be empty")
		}
		c.set(simpleblob.SettingContainer, name)
		return nil
	}
}

// WithMemoryDriver selects the in-memory driver
func WithMemoryDriver() Option {
	return func(c *ServerConfig) error {
		c.Driver = DriverMemory
		return nil
	}
}

// WithS3Driver selects the S3 driver
func WithS3Driver(region, endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		c.Driver = DriverS3
		c.set(s3driver.SettingRegion, region)
		c.set(s3driver.SettingEndpoint, endpoint)
		c.set(s3driver.SettingUsePathStyle, strconv.FormatBool(usePathStyle))
		return nil
	}
}

// WithMinIODriver selects the MinIO driver
func WithMinIODriver(endpoint string, secure bool) Option {
	return func(c *ServerConfig) error {
		if endpoint == "" {
			return fmt.Errorf("minio endpoint cannot be empty")
		}
		c.Driver = DriverMinIO
		c.set(miniodriver.SettingEndpoint, endpoint)
		c.set(miniodriver.SettingSecure, strconv.FormatBool(secure))
		return nil
	}
}

// WithCDNBaseURL sets the CDN base URI used for every container
func WithCDNBaseURL(url string) Option {
	return func(c *ServerConfig) error {
		c.set(s3driver.SettingCDNBaseURL, url)
		return nil
	}
}

// WithMissingURLPolicy sets what GetURL returns for a missing object
func WithMissingURLPolicy(policy string) Option {
	return func(c *ServerConfig) error {
		parsed, err := simpleblob.ParseMissingURLPolicy(policy)
		if err != nil {
			return err
		}
		c.set(simpleblob.SettingOnMissingURL, string(parsed))
		return nil
	}
}

// WithPlaceholderBaseURL sets the base of placeholder URLs
func WithPlaceholderBaseURL(url string) Option {
	return func(c *ServerConfig) error {
		c.set(simpleblob.SettingPlaceholderBaseURL, url)
		return nil
	}
}

// WithSetting sets a raw provider setting
func WithSetting(key, value string) Option {
	return func(c *ServerConfig) error {
		if key == "" {
			return fmt.Errorf("setting key cannot be empty")
		}
		c.set(key, value)
		return nil
	}
}

// WithMetrics enables or disables Prometheus metrics
func WithMetrics(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		return nil
	}
}

// set stores a setting; an empty value removes it
func (c *ServerConfig) set(key, value string) {
	if c.Settings == nil {
		c.Settings = map[string]string{}
	}
	if value == "" {
		delete(c.Settings, key)
		return
	}
	c.Settings[key] = value
}
