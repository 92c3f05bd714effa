// Package s3 implements remote.Driver on Amazon S3 and S3-compatible
// services through aws-sdk-go-v2. Buckets play the role of containers; a
// bucket is CDN-enabled when a CDN base URL is configured for it or when it
// carries the CDN tag.
package s3

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7/pkg/s3utils"
	"github.com/tendant/simple-blob/pkg/simpleblob/remote"
)

// Setting keys read by ConfigFromSettings
const (
	SettingRegion       = "region"
	SettingEndpoint     = "endpoint"
	SettingUsePathStyle = "use_path_style"
	SettingCDNBaseURL   = "cdn_base_url"
	SettingCDNTag       = "cdn_tag"
)

// DefaultCDNTag is the bucket tag holding the bucket's CDN base URI
const DefaultCDNTag = "cdn-uri"

// Config options for the S3 driver
type Config struct {
	Region       string // AWS region (default: us-east-1)
	Endpoint     string // Optional custom endpoint for S3-compatible services
	UsePathStyle bool   // Use path-style addressing (default: false)

	// CDNBaseURL, when set, marks every bucket CDN-enabled and is used as
	// the base of object URIs. Otherwise the CDNTag bucket tag is consulted.
	CDNBaseURL string
	CDNTag     string
}

// ConfigFromSettings reads the driver keys of a provider settings map
func ConfigFromSettings(settings map[string]string) Config {
	usePathStyle, _ := strconv.ParseBool(strings.TrimSpace(settings[SettingUsePathStyle]))
	return Config{
		Region:       strings.TrimSpace(settings[SettingRegion]),
		Endpoint:     strings.TrimSpace(settings[SettingEndpoint]),
		UsePathStyle: usePathStyle,
		CDNBaseURL:   strings.TrimSpace(settings[SettingCDNBaseURL]),
		CDNTag:       strings.TrimSpace(settings[SettingCDNTag]),
	}
}

// API is the subset of the S3 client used by the driver
type API interface {
	manager.UploadAPIClient
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	GetBucketTagging(ctx context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// Driver is an S3 implementation of remote.Driver. The username is used as
// the access key ID and the API key as the secret access key.
type Driver struct {
	config Config
	newAPI func(aws.Config, Config) API
}

// New creates a new S3 driver
func New(config Config) *Driver {
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.CDNTag == "" {
		config.CDNTag = DefaultCDNTag
	}
	return &Driver{
		config: config,
		newAPI: newClient,
	}
}

func newClient(awsCfg aws.Config, config Config) API {
	var s3Options []func(*s3.Options)

	// Custom endpoint for S3-compatible services (MinIO, etc.)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	return s3.NewFromConfig(awsCfg, s3Options...)
}

// Name returns the driver name
func (d *Driver) Name() string {
	return "s3"
}

// Connect builds an AWS config with static credentials and an S3 client
func (d *Driver) Connect(ctx context.Context, creds remote.Credentials) (remote.Connection, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(d.config.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.Username,
			creds.APIKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &connection{
		driver: d,
		awsCfg: awsCfg,
		api:    d.newAPI(awsCfg, d.config),
	}, nil
}

type connection struct {
	driver        *Driver
	awsCfg        aws.Config
	api           API
	authenticated atomic.Bool
}

// Authenticate resolves the static credentials. S3 has no session to open;
// requests are signed with these credentials from here on.
func (c *connection) Authenticate(ctx context.Context) error {
	if c.awsCfg.Credentials == nil {
		return fmt.Errorf("%w: no credentials provider", remote.ErrAuthenticationFailed)
	}
	creds, err := c.awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", remote.ErrAuthenticationFailed, err)
	}
	if !creds.HasKeys() {
		return fmt.Errorf("%w: access key and secret are required", remote.ErrAuthenticationFailed)
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

// Container resolves a bucket and its CDN base URI
func (a *account) Container(ctx context.Context, name string) (remote.Container, error) {
	_, err := a.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		if isBucketMissing(err) || isObjectMissing(err) {
			return nil, fmt.Errorf("%w: %s", remote.ErrContainerNotFound, name)
		}
		return nil, fmt.Errorf("failed to check bucket %s: %w", name, err)
	}

	cdnURI, err := a.cdnURI(ctx, name)
	if err != nil {
		return nil, err
	}

	return &Container{
		api:    a.api,
		name:   name,
		cdnURI: cdnURI,
	}, nil
}

func (a *account) cdnURI(ctx context.Context, bucket string) (string, error) {
	if a.config.CDNBaseURL != "" {
		return strings.TrimSuffix(a.config.CDNBaseURL, "/"), nil
	}

	result, err := a.api.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		if isTagSetMissing(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read tags of bucket %s: %w", bucket, err)
	}

	for _, tag := range result.TagSet {
		if aws.ToString(tag.Key) == a.config.CDNTag {
			return strings.TrimSuffix(aws.ToString(tag.Value), "/"), nil
		}
	}
	return "", nil
}

// Container is an S3 bucket implementing remote.Container
type Container struct {
	api    API
	name   string
	cdnURI string
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
	result, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return remote.ObjectInfo{}, mapObjectError("head", key, err)
	}

	contentType := aws.ToString(result.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return remote.ObjectInfo{
		Key:           key,
		ContentLength: aws.ToInt64(result.ContentLength),
		ContentType:   contentType,
		ETag:          strings.Trim(aws.ToString(result.ETag), "\""),
		LastModified:  aws.ToTime(result.LastModified),
		CDNURI:        remote.ObjectCDNURI(c.cdnURI, key),
	}, nil
}

func (c *Container) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapObjectError("download", key, err)
	}
	return result.Body, nil
}

func (c *Container) Write(ctx context.Context, key string, reader io.Reader, contentType string) (int64, error) {
	uploader := manager.NewUploader(c.api)
	counter := &countingReader{r: reader}

	input := &s3.PutObjectInput{
		Bucket: aws.String(c.name),
		Key:    aws.String(key),
		Body:   counter,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := uploader.Upload(ctx, input); err != nil {
		return 0, mapObjectError("upload", key, err)
	}
	return counter.n, nil
}

// Delete removes the object. S3 reports success for a missing key.
func (c *Container) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapObjectError("delete", key, err)
	}
	return nil
}

func (c *Container) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := c.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.name),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(c.name, srcKey)),
	})
	if err != nil {
		return mapObjectError("copy", srcKey, err)
	}
	return nil
}

// copySource builds the x-amz-copy-source value, which S3 expects URL-encoded
func copySource(bucket, key string) string {
	return bucket + "/" + s3utils.EncodePath(key)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
