package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tendant/simple-blob/pkg/simpleblob/remote"
)

// Operation names accepted by Container.FailOperation
const (
	OpObject = "object"
	OpRead   = "read"
	OpWrite  = "write"
	OpDelete = "delete"
	OpCopy   = "copy"
)

const defaultCDNBaseURL = "https://cdn.memory.local"

// Driver is an in-memory implementation of remote.Driver.
// It is safe for concurrent use and records how often it authenticates and
// resolves containers.
type Driver struct {
	mu         sync.RWMutex
	users      map[string]string
	containers map[string]*Container
	cdnBaseURL string
	latency    time.Duration

	authCalls      atomic.Int64
	containerCalls atomic.Int64
}

// Option configures the in-memory driver
type Option func(*Driver)

// WithUser registers an accepted username/API key pair. When no user is
// registered any non-empty credentials are accepted.
func WithUser(username, apiKey string) Option {
	return func(d *Driver) {
		d.users[username] = apiKey
	}
}

// WithContainer creates a container, optionally CDN-enabled
func WithContainer(name string, cdnEnabled bool) Option {
	return func(d *Driver) {
		d.containers[name] = d.newContainer(name, cdnEnabled)
	}
}

// WithCDNBaseURL sets the base used to build container CDN URIs
func WithCDNBaseURL(base string) Option {
	return func(d *Driver) {
		d.cdnBaseURL = base
	}
}

// WithLatency delays authentication and container lookups, widening the
// window in which concurrent initializers race.
func WithLatency(latency time.Duration) Option {
	return func(d *Driver) {
		d.latency = latency
	}
}

// New creates a new in-memory driver
func New(opts ...Option) *Driver {
	d := &Driver{
		users:      make(map[string]string),
		containers: make(map[string]*Container),
		cdnBaseURL: defaultCDNBaseURL,
	}
	for _, opt := range opts {
		opt(d)
	}
	// WithCDNBaseURL may follow WithContainer
	for _, c := range d.containers {
		if c.cdnEnabled {
			c.cdnURI = fmt.Sprintf("%s/%s", d.cdnBaseURL, c.name)
		}
	}
	return d
}

func (d *Driver) newContainer(name string, cdnEnabled bool) *Container {
	c := &Container{
		name:       name,
		cdnEnabled: cdnEnabled,
		objects:    make(map[string]*object),
		failures:   make(map[string]error),
	}
	if cdnEnabled {
		c.cdnURI = fmt.Sprintf("%s/%s", d.cdnBaseURL, name)
	}
	return c
}

// AddContainer creates (or replaces) a container and returns it
func (d *Driver) AddContainer(name string, cdnEnabled bool) *Container {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.newContainer(name, cdnEnabled)
	d.containers[name] = c
	return c
}

// Bucket returns a container directly, bypassing the connection chain
func (d *Driver) Bucket(name string) (*Container, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.containers[name]
	return c, ok
}

// AuthenticateCalls returns how many times Authenticate was called
func (d *Driver) AuthenticateCalls() int64 {
	return d.authCalls.Load()
}

// ContainerLookups returns how many times a container was resolved
func (d *Driver) ContainerLookups() int64 {
	return d.containerCalls.Load()
}

// Name returns the driver name
func (d *Driver) Name() string {
	return "memory"
}

// Connect creates a connection for the given credentials
func (d *Driver) Connect(ctx context.Context, creds remote.Credentials) (remote.Connection, error) {
	return &connection{driver: d, creds: creds}, nil
}

type connection struct {
	driver        *Driver
	creds         remote.Credentials
	authenticated atomic.Bool
}

func (c *connection) Authenticate(ctx context.Context) error {
	d := c.driver
	d.authCalls.Add(1)
	if err := d.wait(ctx); err != nil {
		return err
	}

	if c.creds.Username == "" || c.creds.APIKey == "" {
		return fmt.Errorf("%w: username and API key are required", remote.ErrAuthenticationFailed)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.users) > 0 {
		if key, ok := d.users[c.creds.Username]; !ok || key != c.creds.APIKey {
			return fmt.Errorf("%w: user %s", remote.ErrAuthenticationFailed, c.creds.Username)
		}
	}

	c.authenticated.Store(true)
	return nil
}

func (c *connection) Account(ctx context.Context) (remote.Account, error) {
	if !c.authenticated.Load() {
		return nil, fmt.Errorf("%w: connection is not authenticated", remote.ErrAuthenticationFailed)
	}
	return &account{driver: c.driver}, nil
}

type account struct {
	driver *Driver
}

func (a *account) Container(ctx context.Context, name string) (remote.Container, error) {
	d := a.driver
	d.containerCalls.Add(1)
	if err := d.wait(ctx); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.containers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", remote.ErrContainerNotFound, name)
	}
	return c, nil
}

func (d *Driver) wait(ctx context.Context) error {
	if d.latency <= 0 {
		return nil
	}
	select {
	case <-time.After(d.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type object struct {
	data        []byte
	contentType string
	etag        string
	modified    time.Time
}

// Container is an in-memory implementation of remote.Container
type Container struct {
	mu         sync.RWMutex
	name       string
	cdnEnabled bool
	cdnURI     string
	objects    map[string]*object
	failures   map[string]error
	version    int64
}

// FailOperation makes every subsequent call of op fail with err until
// ClearFailures is called.
func (c *Container) FailOperation(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = err
}

// ClearFailures removes all injected failures
func (c *Container) ClearFailures() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = make(map[string]error)
}

// Len returns the number of stored objects
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}

// Has reports whether an object is stored at key
func (c *Container) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.objects[key]
	return ok
}

func (c *Container) Name() string {
	return c.name
}

func (c *Container) CDNEnabled() bool {
	return c.cdnEnabled
}

func (c *Container) CDNURI() string {
	return c.cdnURI
}

// failure must be called with c.mu held
func (c *Container) failure(op string) error {
	return c.failures[op]
}

func (c *Container) Object(ctx context.Context, key string) (remote.ObjectInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.failure(OpObject); err != nil {
		return remote.ObjectInfo{}, err
	}

	obj, ok := c.objects[key]
	if !ok {
		return remote.ObjectInfo{}, fmt.Errorf("%w: %s", remote.ErrObjectNotFound, key)
	}

	return remote.ObjectInfo{
		Key:           key,
		ContentLength: int64(len(obj.data)),
		ContentType:   obj.contentType,
		ETag:          obj.etag,
		LastModified:  obj.modified,
		CDNURI:        remote.ObjectCDNURI(c.cdnURI, key),
	}, nil
}

func (c *Container) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.failure(OpRead); err != nil {
		return nil, err
	}

	obj, ok := c.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", remote.ErrObjectNotFound, key)
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (c *Container) Write(ctx context.Context, key string, reader io.Reader, contentType string) (int64, error) {
	c.mu.RLock()
	err := c.failure(OpWrite)
	c.mu.RUnlock()
	if err != nil {
		return 0, err
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return 0, err
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.version++
	c.objects[key] = &object{
		data:        data,
		contentType: contentType,
		etag:        fmt.Sprintf("%x", c.version),
		modified:    time.Now().UTC(),
	}
	return int64(len(data)), nil
}

func (c *Container) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.failure(OpDelete); err != nil {
		return err
	}

	if _, ok := c.objects[key]; !ok {
		return fmt.Errorf("%w: %s", remote.ErrObjectNotFound, key)
	}

	delete(c.objects, key)
	return nil
}

func (c *Container) Copy(ctx context.Context, srcKey, dstKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.failure(OpCopy); err != nil {
		return err
	}

	src, ok := c.objects[srcKey]
	if !ok {
		return fmt.Errorf("%w: %s", remote.ErrObjectNotFound, srcKey)
	}

	c.version++
	data := make([]byte, len(src.data))
	copy(data, src.data)
	c.objects[dstKey] = &object{
		data:        data,
		contentType: src.contentType,
		etag:        src.etag,
		modified:    time.Now().UTC(),
	}
	return nil
}
