package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/tendant/simple-blob/pkg/simpleblob"
	miniodriver "github.com/tendant/simple-blob/pkg/simpleblob/remote/minio"
	s3driver "github.com/tendant/simple-blob/pkg/simpleblob/remote/s3"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Server:
//   PORT - Server port (default: "8080")
//   ENVIRONMENT - Runtime environment (default: "development")
//   ENABLE_METRICS - Expose Prometheus metrics (default: true)
//
// Blob store:
//   BLOB_URL - Connection string (one of):
//              - "memory://container" - In-memory store (default)
//              - "s3://container?region=us-east-1&endpoint=http://localhost:9000&use_path_style=true"
//              - "minio://host:9000/container?secure=false"
//   BLOB_USERNAME, BLOB_APIKEY - Credentials (S3 falls back to AWS_ACCESS_KEY_ID
//                                and AWS_SECRET_ACCESS_KEY)
//   BLOB_ON_MISSING_URL - fail, empty or placeholder
//   BLOB_PLACEHOLDER_BASE_URL - Base of placeholder URLs
//   BLOB_CDN_BASE_URL - CDN base URI of the container
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}
		if v, ok, err := parseBoolEnv(prefix, "ENABLE_METRICS"); err != nil {
			return err
		} else if ok {
			c.EnableMetrics = v
		}

		if err := applyBlobURL(prefix, c); err != nil {
			return err
		}

		stringSettings := []struct {
			env     string
			setting string
		}{
			{"BLOB_USERNAME", simpleblob.SettingUsername},
			{"BLOB_APIKEY", simpleblob.SettingAPIKey},
			{"BLOB_ON_MISSING_URL", simpleblob.SettingOnMissingURL},
			{"BLOB_PLACEHOLDER_BASE_URL", simpleblob.SettingPlaceholderBaseURL},
			{"BLOB_CDN_BASE_URL", s3driver.SettingCDNBaseURL},
		}
		for _, s := range stringSettings {
			if v, ok := lookupEnv(prefix, s.env); ok && v != "" {
				c.set(s.setting, v)
			}
		}

		return nil
	}
}

// applyBlobURL selects the driver and container from BLOB_URL
func applyBlobURL(prefix string, c *ServerConfig) error {
	raw, ok := lookupEnv(prefix, "BLOB_URL")
	if !ok || raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid BLOB_URL: %w", err)
	}
	query := u.Query()

	switch u.Scheme {
	case DriverMemory:
		c.Driver = DriverMemory
		if u.Host != "" {
			c.set(simpleblob.SettingContainer, u.Host)
		}
		return nil

	case DriverS3:
		if u.Host == "" {
			return fmt.Errorf("S3 container name cannot be empty in BLOB_URL")
		}
		c.Driver = DriverS3
		c.set(simpleblob.SettingContainer, u.Host)
		c.set(s3driver.SettingRegion, query.Get("region"))
		c.set(s3driver.SettingEndpoint, query.Get("endpoint"))
		c.set(s3driver.SettingUsePathStyle, query.Get("use_path_style"))
		if query.Get("cdn_base_url") != "" {
			c.set(s3driver.SettingCDNBaseURL, query.Get("cdn_base_url"))
		}

		if accessKey, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && accessKey != "" {
			c.set(simpleblob.SettingUsername, accessKey)
		}
		if secretKey, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && secretKey != "" {
			c.set(simpleblob.SettingAPIKey, secretKey)
		}
		if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" && query.Get("region") == "" {
			c.set(s3driver.SettingRegion, region)
		}
		return nil

	case DriverMinIO:
		container := strings.Trim(u.Path, "/")
		if u.Host == "" || container == "" {
			return fmt.Errorf("BLOB_URL must look like minio://host:port/container, got: %s", raw)
		}
		c.Driver = DriverMinIO
		c.set(miniodriver.SettingEndpoint, u.Host)
		c.set(simpleblob.SettingContainer, container)
		c.set(miniodriver.SettingSecure, query.Get("secure"))
		c.set(miniodriver.SettingRegion, query.Get("region"))
		c.set(miniodriver.SettingPartSize, query.Get("part_size"))
		if query.Get("cdn_base_url") != "" {
			c.set(miniodriver.SettingCDNBaseURL, query.Get("cdn_base_url"))
		}
		return nil
	}

	return fmt.Errorf("unsupported BLOB_URL format: %s (use 'memory://', 's3://...' or 'minio://...')", raw)
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseBoolEnv(prefix, key string) (bool, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("invalid boolean for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}
