package simpleblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-blob/pkg/simpleblob/objectkey"
	"github.com/tendant/simple-blob/pkg/simpleblob/remote"
)

// Operation names used in failure events, errors and metrics
const (
	OpInitialize      = "initialize"
	OpUpload          = "upload"
	OpGetUploadStream = "get_upload_stream"
	OpDownload        = "download"
	OpDelete          = "delete"
	OpExists          = "exists"
	OpGetURL          = "get_url"
	OpCopy            = "copy"
	OpMove            = "move"
	OpGetProperties   = "get_properties"
	OpSetProperties   = "set_properties"
)

const defaultContentType = "application/octet-stream"

// provider implements the Provider interface
type provider struct {
	name     string
	driver   remote.Driver
	chain    *ResourceChain
	namer    objectkey.Namer
	failures FailureSink
	observer OperationObserver

	mu              sync.RWMutex
	missingURL      MissingURLPolicy
	missingURLSet   bool
	placeholderBase string
}

// Option represents a functional option for configuring the provider
type Option func(*provider)

// WithDriver sets the remote driver used to reach the object store
func WithDriver(driver remote.Driver) Option {
	return func(p *provider) {
		p.driver = driver
	}
}

// WithName sets the provider name reported in errors and metrics
func WithName(name string) Option {
	return func(p *provider) {
		p.name = name
	}
}

// WithNamer sets the object key naming strategy
func WithNamer(namer objectkey.Namer) Option {
	return func(p *provider) {
		p.namer = namer
	}
}

// WithFailureSink sets the sink receiving failure events
func WithFailureSink(sink FailureSink) Option {
	return func(p *provider) {
		p.failures = sink
	}
}

// WithLogger reports failure events to logger through a SlogFailureSink
func WithLogger(logger *slog.Logger) Option {
	return func(p *provider) {
		p.failures = NewSlogFailureSink(logger)
	}
}

// WithObserver sets the observer notified after every operation
func WithObserver(observer OperationObserver) Option {
	return func(p *provider) {
		p.observer = observer
	}
}

// WithMissingURLPolicy sets what GetURL returns when the object lookup fails.
// A policy must come from this option or from the on_missing_url setting.
func WithMissingURLPolicy(policy MissingURLPolicy) Option {
	return func(p *provider) {
		p.missingURL = policy
		p.missingURLSet = true
	}
}

// WithPlaceholderBaseURL sets the base URL used by MissingURLPlaceholder
func WithPlaceholderBaseURL(base string) Option {
	return func(p *provider) {
		p.placeholderBase = base
	}
}

// New creates a new provider with the given options
func New(options ...Option) (Provider, error) {
	p := &provider{
		namer:           objectkey.NewDefaultNamer(),
		missingURL:      MissingURLFail,
		placeholderBase: DefaultPlaceholderBaseURL,
	}

	for _, option := range options {
		option(p)
	}

	if p.driver == nil {
		return nil, fmt.Errorf("remote driver is required")
	}
	if p.namer == nil {
		return nil, fmt.Errorf("namer is required")
	}
	if _, err := ParseMissingURLPolicy(string(p.missingURL)); err != nil {
		return nil, err
	}
	if p.name == "" {
		p.name = p.driver.Name()
	}
	if p.failures == nil {
		p.failures = NewSlogFailureSink(nil)
	}

	p.chain = NewResourceChain(p.driver)
	return p, nil
}

func (p *provider) Name() string {
	return p.name
}

func (p *provider) State() ChainState {
	return p.chain.State()
}

func (p *provider) Initialize(ctx context.Context, settings map[string]string) (err error) {
	start := time.Now()
	defer func() { p.observe(OpInitialize, start, err) }()

	if raw := strings.TrimSpace(settings[SettingOnMissingURL]); raw != "" {
		policy, err := ParseMissingURLPolicy(raw)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.missingURL = policy
		p.missingURLSet = true
		p.mu.Unlock()
	} else {
		p.mu.RLock()
		set := p.missingURLSet
		p.mu.RUnlock()
		if !set {
			return &MissingConfigFieldError{Field: SettingOnMissingURL}
		}
	}
	if base := strings.TrimSpace(settings[SettingPlaceholderBaseURL]); base != "" {
		p.mu.Lock()
		p.placeholderBase = base
		p.mu.Unlock()
	}

	return p.chain.Initialize(ctx, configFromSettings(settings))
}

func (p *provider) Upload(ctx context.Context, location Location, source io.Reader) (n int64, err error) {
	start := time.Now()
	defer func() { p.observe(OpUpload, start, err) }()

	container, key, err := p.resolve(ctx, location)
	if err != nil {
		return 0, err
	}

	n, err = container.Write(ctx, key, source, contentTypeFor(location.Extension))
	if err != nil {
		return 0, &StorageError{Backend: p.name, Key: key, Op: OpUpload, Err: err}
	}
	return n, nil
}

func (p *provider) GetUploadStream(ctx context.Context, location Location) (io.WriteCloser, error) {
	err := fmt.Errorf("%w: GetUploadStream is not supported, use Upload", ErrUnsupportedOperation)
	p.observe(OpGetUploadStream, time.Now(), err)
	return nil, err
}

func (p *provider) GetDownloadStream(ctx context.Context, location Location) (io.ReadCloser, bool) {
	start := time.Now()

	container, key, err := p.resolve(ctx, location)
	if err == nil {
		var reader io.ReadCloser
		reader, err = container.Read(ctx, key)
		if err == nil {
			p.observe(OpDownload, start, nil)
			return reader, true
		}
	}

	p.report(ctx, OpDownload, key, location, err)
	p.observe(OpDownload, start, err)
	return nil, false
}

func (p *provider) Delete(ctx context.Context, location Location) (err error) {
	start := time.Now()
	defer func() { p.observe(OpDelete, start, err) }()

	container, key, err := p.resolve(ctx, location)
	if err != nil {
		return err
	}
	return p.deleteKey(ctx, container, key, location)
}

// deleteKey treats a missing object as already deleted
func (p *provider) deleteKey(ctx context.Context, container remote.Container, key string, location Location) error {
	err := container.Delete(ctx, key)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrObjectNotFound) {
		p.report(ctx, OpDelete, key, location, err)
		return nil
	}
	return &StorageError{Backend: p.name, Key: key, Op: OpDelete, Err: err}
}

func (p *provider) Exists(ctx context.Context, location Location) bool {
	start := time.Now()

	container, key, err := p.resolve(ctx, location)
	if err == nil {
		_, err = container.Object(ctx, key)
		if err == nil {
			p.observe(OpExists, start, nil)
			return true
		}
	}

	p.report(ctx, OpExists, key, location, err)
	p.observe(OpExists, start, err)
	return false
}

func (p *provider) GetURL(ctx context.Context, location Location) (url string, err error) {
	start := time.Now()

	container, key, err := p.resolve(ctx, location)
	if err == nil {
		var info remote.ObjectInfo
		info, err = container.Object(ctx, key)
		if err == nil {
			p.observe(OpGetURL, start, nil)
			if info.CDNURI != "" {
				return info.CDNURI, nil
			}
			return remote.ObjectCDNURI(container.CDNURI(), key), nil
		}
	}

	p.report(ctx, OpGetURL, key, location, err)
	p.observe(OpGetURL, start, err)
	return p.missingURLFor(location, key, err)
}

func (p *provider) missingURLFor(location Location, key string, cause error) (string, error) {
	p.mu.RLock()
	policy, base := p.missingURL, p.placeholderBase
	p.mu.RUnlock()

	switch policy {
	case MissingURLEmpty:
		return "", nil
	case MissingURLPlaceholder:
		path := strings.TrimPrefix(location.FilePath, "/")
		if path == "" {
			path = key
		}
		return strings.TrimSuffix(base, "/") + "/" + path, nil
	default:
		return "", &StorageError{Backend: p.name, Key: key, Op: OpGetURL, Err: cause}
	}
}

func (p *provider) Copy(ctx context.Context, source, destination Location) (err error) {
	start := time.Now()
	defer func() { p.observe(OpCopy, start, err) }()

	container, srcKey, dstKey, err := p.resolvePair(ctx, source, destination)
	if err != nil {
		return err
	}
	return p.copyKey(ctx, container, srcKey, dstKey)
}

// copyKey is a no-op when both locations name the same object
func (p *provider) copyKey(ctx context.Context, container remote.Container, srcKey, dstKey string) error {
	if srcKey == dstKey {
		return nil
	}
	if err := container.Copy(ctx, srcKey, dstKey); err != nil {
		return &StorageError{Backend: p.name, Key: srcKey, Op: OpCopy, Err: err}
	}
	return nil
}

func (p *provider) Move(ctx context.Context, source, destination Location) (err error) {
	start := time.Now()
	defer func() { p.observe(OpMove, start, err) }()

	container, srcKey, dstKey, err := p.resolvePair(ctx, source, destination)
	if err != nil {
		return err
	}
	if srcKey == dstKey {
		return nil
	}

	if err := p.copyKey(ctx, container, srcKey, dstKey); err != nil {
		return fmt.Errorf("move aborted, source kept: %w", err)
	}
	return p.deleteKey(ctx, container, srcKey, source)
}

func (p *provider) GetProperties(ctx context.Context, location Location) (props BlobProperties, err error) {
	start := time.Now()
	defer func() { p.observe(OpGetProperties, start, err) }()

	container, key, err := p.resolve(ctx, location)
	if err != nil {
		return BlobProperties{}, err
	}

	info, err := container.Object(ctx, key)
	if err != nil {
		return BlobProperties{}, &StorageError{Backend: p.name, Key: key, Op: OpGetProperties, Err: err}
	}
	return BlobProperties{ContentType: info.ContentType}, nil
}

func (p *provider) SetProperties(ctx context.Context, location Location, properties BlobProperties) error {
	p.observe(OpSetProperties, time.Now(), nil)
	return nil
}

func (p *provider) resolve(ctx context.Context, location Location) (remote.Container, string, error) {
	key, err := p.namer.Key(location.ID, location.Extension)
	if err != nil {
		return nil, "", err
	}
	container, err := p.chain.Container(ctx)
	if err != nil {
		return nil, key, err
	}
	return container, key, nil
}

func (p *provider) resolvePair(ctx context.Context, source, destination Location) (remote.Container, string, string, error) {
	srcKey, err := p.namer.Key(source.ID, source.Extension)
	if err != nil {
		return nil, "", "", err
	}
	dstKey, err := p.namer.Key(destination.ID, destination.Extension)
	if err != nil {
		return nil, "", "", err
	}
	container, err := p.chain.Container(ctx)
	if err != nil {
		return nil, "", "", err
	}
	return container, srcKey, dstKey, nil
}

func (p *provider) report(ctx context.Context, op, key string, location Location, err error) {
	p.failures.ReportFailure(ctx, FailureEvent{
		Op:       op,
		Key:      key,
		FilePath: location.FilePath,
		Err:      err,
	})
}

func (p *provider) observe(op string, start time.Time, err error) {
	if p.observer == nil {
		return
	}
	outcome := OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, ErrObjectNotFound):
		outcome = OutcomeNotFound
	default:
		outcome = OutcomeError
	}
	p.observer.ObserveOperation(op, outcome, time.Since(start))
}

// contentTypeFor maps a blob extension to the content type stored with the object
func contentTypeFor(extension string) string {
	ext := strings.ToLower(strings.TrimSpace(extension))
	if ext == "" {
		return defaultContentType
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}
	return defaultContentType
}
