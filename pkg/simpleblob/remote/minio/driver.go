// Package minio implements remote.Driver on a MinIO server through
// minio-go. Buckets play the role of containers.
//
// Usage:
//
//	driver := minio.New(minio.Config{Endpoint: "localhost:9000", CDNBaseURL: "http://localhost:9000/media"})
//	provider, err := simpleblob.New(simpleblob.WithDriver(driver))
package minio

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"
	"github.com/tendant/simple-blob/pkg/simpleblob/remote"
)

// Setting keys read by ConfigFromSettings
const (
	SettingEndpoint   = "endpoint"
	SettingSecure     = "secure"
	SettingRegion     = "region"
	SettingCDNBaseURL = "cdn_base_url"
	SettingCDNTag     = "cdn_tag"
	SettingPartSize   = "part_size"
)

// DefaultCDNTag is the bucket tag holding the bucket's CDN base URI
const DefaultCDNTag = "cdn-uri"

// Part sizes for uploads of unknown length. Without an explicit part size
// the SDK buffers 5 TiB / 10000 parts (about 550 MiB) per upload.
const (
	DefaultPartSize uint64 = 16 << 20
	MinPartSize     uint64 = 5 << 20
)

// Config options for the MinIO driver
type Config struct {
	Endpoint string // host:port of the MinIO server
	Secure   bool   // Use TLS
	Region   string

	// CDNBaseURL, when set, marks every bucket CDN-enabled and is used as
	// the base of object URIs. Otherwise the CDNTag bucket tag is consulted.
	CDNBaseURL string
	CDNTag     string

	// PartSize is the multipart chunk size in bytes (default: DefaultPartSize,
	// at least MinPartSize)
	PartSize uint64
}

// ConfigFromSettings reads the driver keys of a provider settings map.
// TLS is on unless "secure" parses as false.
func ConfigFromSettings(settings map[string]string) Config {
	secure := true
	if raw := strings.TrimSpace(settings[SettingSecure]); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			secure = v
		}
	}
	var partSize uint64
	if raw := strings.TrimSpace(settings[SettingPartSize]); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			partSize = v
		}
	}
	return Config{
		Endpoint:   strings.TrimSpace(settings[SettingEndpoint]),
		Secure:     secure,
		Region:     strings.TrimSpace(settings[SettingRegion]),
		CDNBaseURL: strings.TrimSpace(settings[SettingCDNBaseURL]),
		CDNTag:     strings.TrimSpace(settings[SettingCDNTag]),
		PartSize:   partSize,
	}
}

// API is the subset of the MinIO client used by the driver
type API interface {
	ListBuckets(ctx context.Context) ([]miniogo.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	GetBucketTagging(ctx context.Context, bucketName string) (*tags.Tags, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts miniogo.StatObjectOptions) (miniogo.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts miniogo.RemoveObjectOptions) error
	CopyObject(ctx context.Context, dst miniogo.CopyDestOptions, src miniogo.CopySrcOptions) (miniogo.UploadInfo, error)

	// Open returns a reader for the object, failing early when it is missing
	Open(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error)
}

// client adds Open to the SDK client
type client struct {
	*miniogo.Client
}

func (c client) Open(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	obj, err := c.GetObject(ctx, bucketName, objectName, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces a missing object before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

// Driver is a MinIO implementation of remote.Driver. The username is used as
// the access key and the API key as the secret key.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	config Config
	newAPI func(Config, remote.Credentials) (API, error)
}

// New creates a new MinIO driver
func New(config Config) *Driver {
	if config.CDNTag == "" {
		config.CDNTag = DefaultCDNTag
	}
	switch {
	case config.PartSize == 0:
		config.PartSize = DefaultPartSize
	case config.PartSize < MinPartSize:
		config.PartSize = MinPartSize
	}
	return &Driver{
		config: config,
		newAPI: newClient,
	}
}

func newClient(config Config, creds remote.Credentials) (API, error) {
	c, err := miniogo.New(config.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(creds.Username, creds.APIKey, ""),
		Secure: config.Secure,
		Region: config.Region,
	})
	if err != nil {
		return nil, err
	}
	return client{Client: c}, nil
}

// Name returns the driver name
func (d *Driver) Name() string {
	return "minio"
}

// Connect creates a MinIO client for the credentials
func (d *Driver) Connect(ctx context.Context, creds remote.Credentials) (remote.Connection, error) {
	if d.config.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	api, err := d.newAPI(d.config, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &connection{driver: d, api: api}, nil
}

type connection struct {
	driver        *Driver
	api           API
	authenticated atomic.Bool
}

// Authenticate verifies the credentials by listing buckets
func (c *connection) Authenticate(ctx context.Context) error {
	if _, err := c.api.ListBuckets(ctx); err != nil {
		if isAuthError(err) {
			return fmt.Errorf("%w: %w", remote.ErrAuthenticationFailed, err)
		}
		return fmt.Errorf("failed to reach minio: %w", err)
	}
	c.authenticated.Store(true)
	return nil
}

func (c *connection) Account(ctx context.Context) (remote.Account, error) {
	if !c.authenticated.Load() {
		return nil, fmt.Errorf("%w: connection is not authenticated", remote.ErrAuthenticationFailed)
	}
	return &account{api: c.api, config: c.driver.config}, nil
}

type account struct {
	api    API
	config Config
}

func (a *account) Container(ctx context.Context, name string) (remote.Container, error) {
	exists, err := a.api.BucketExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", remote.ErrContainerNotFound, name)
	}

	cdnURI, err := a.cdnURI(ctx, name)
	if err != nil {
		return nil, err
	}

	return &Container{api: a.api, name: name, cdnURI: cdnURI, partSize: a.config.PartSize}, nil
}

func (a *account) cdnURI(ctx context.Context, bucket string) (string, error) {
	if a.config.CDNBaseURL != "" {
		return strings.TrimSuffix(a.config.CDNBaseURL, "/"), nil
	}

	bucketTags, err := a.api.GetBucketTagging(ctx, bucket)
	if err != nil {
		if isTagSetMissing(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read tags of bucket %s: %w", bucket, err)
	}
	if bucketTags == nil {
		return "", nil
	}
	return strings.TrimSuffix(bucketTags.ToMap()[a.config.CDNTag], "/"), nil
}

// Container is a MinIO bucket implementing remote.Container
type Container struct {
	api      API
	name     string
	cdnURI   string
	partSize uint64
}

func (c *Container) Name() string {
	return c.name
}

func (c *Container) CDNEnabled() bool {
	return c.cdnURI != ""
}

func (c *Container) CDNURI() string {
	return c.cdnURI
}

func (c *Container) Object(ctx context.Context, key string) (remote.ObjectInfo, error) {
	stat, err := c.api.StatObject(ctx, c.name, key, miniogo.StatObjectOptions{})
	if err != nil {
		return remote.ObjectInfo{}, mapError("stat", key, err)
	}
	return remote.ObjectInfo{
		Key:           key,
		ContentLength: stat.Size,
		ContentType:   stat.ContentType,
		ETag:          stat.ETag,
		LastModified:  stat.LastModified,
		CDNURI:        remote.ObjectCDNURI(c.cdnURI, key),
	}, nil
}

func (c *Container) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := c.api.Open(ctx, c.name, key)
	if err != nil {
		return nil, mapError("download", key, err)
	}
	return reader, nil
}

// Write streams reader to the object; the size is unknown so the SDK uploads
// in parts of the configured part size.
func (c *Container) Write(ctx context.Context, key string, reader io.Reader, contentType string) (int64, error) {
	info, err := c.api.PutObject(ctx, c.name, key, reader, -1, miniogo.PutObjectOptions{
		ContentType: contentType,
		PartSize:    c.partSize,
	})
	if err != nil {
		return 0, mapError("upload", key, err)
	}
	return info.Size, nil
}

// Delete removes the object. MinIO reports success for a missing key.
func (c *Container) Delete(ctx context.Context, key string) error {
	if err := c.api.RemoveObject(ctx, c.name, key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError("delete", key, err)
	}
	return nil
}

func (c *Container) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := c.api.CopyObject(ctx,
		miniogo.CopyDestOptions{Bucket: c.name, Object: dstKey},
		miniogo.CopySrcOptions{Bucket: c.name, Object: srcKey},
	)
	if err != nil {
		return mapError("copy", srcKey, err)
	}
	return nil
}
