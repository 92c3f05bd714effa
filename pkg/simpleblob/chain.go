package simpleblob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tendant/simple-blob/pkg/simpleblob/remote"
)

// ChainState is the lifecycle state of a ResourceChain
type ChainState int32

const (
	StateUninitialized ChainState = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s ChainState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("ChainState(%d)", int32(s))
	}
}

// ResourceChain builds and memoizes, in order, the handles needed to talk to
// the remote store: credentials, connection, account and container.
//
// Construction happens under a single mutex, so concurrent first use yields
// one authentication and one container resolution. Once Ready the handles
// never change; once Failed every call returns the initialization error.
type ResourceChain struct {
	driver remote.Driver

	mu         sync.Mutex
	state      atomic.Int32
	configured bool
	cfg        ProviderConfig
	initErr    error

	credentials   *remote.Credentials
	connection    remote.Connection
	authenticated bool
	account       remote.Account
	container     remote.Container
}

// NewResourceChain creates an uninitialized chain for the driver
func NewResourceChain(driver remote.Driver) *ResourceChain {
	return &ResourceChain{driver: driver}
}

// State returns the current lifecycle state without blocking
func (c *ResourceChain) State() ChainState {
	return ChainState(c.state.Load())
}

// Initialize validates the config, authenticates, and resolves the
// container, checking that it is CDN-enabled. It is idempotent: once the
// chain is Ready later calls return nil, and once Failed they return the
// original error.
//
// A failure caused by ctx being cancelled or expiring is not terminal: the
// partially built handles are dropped and the chain returns to
// Uninitialized, so a later call with a live context can retry.
func (c *ResourceChain) Initialize(ctx context.Context, cfg ProviderConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case StateReady:
		return nil
	case StateFailed:
		return c.initErr
	}

	c.state.Store(int32(StateInitializing))
	if err := c.initialize(ctx, cfg); err != nil {
		if ctx.Err() != nil {
			c.resetLocked()
			c.state.Store(int32(StateUninitialized))
			return err
		}
		c.initErr = err
		c.state.Store(int32(StateFailed))
		return err
	}

	c.state.Store(int32(StateReady))
	return nil
}

// initialize must be called with c.mu held
func (c *ResourceChain) initialize(ctx context.Context, cfg ProviderConfig) error {
	if c.driver == nil {
		return errors.New("remote driver is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	c.configured = true

	conn, err := c.connectionLocked(ctx)
	if err != nil {
		return err
	}
	if err := conn.Authenticate(ctx); err != nil {
		return fmt.Errorf("failed to authenticate with %s: %w", c.driver.Name(), err)
	}
	c.authenticated = true

	container, err := c.containerLocked(ctx)
	if err != nil {
		return err
	}
	if !container.CDNEnabled() {
		return &ContainerError{Name: cfg.ContainerName, Err: ErrCDNNotEnabled}
	}

	return nil
}

// resetLocked drops every memoized handle; c.mu must be held
func (c *ResourceChain) resetLocked() {
	c.configured = false
	c.cfg = ProviderConfig{}
	c.credentials = nil
	c.connection = nil
	c.authenticated = false
	c.account = nil
	c.container = nil
}

// Credentials returns the memoized credentials
func (c *ResourceChain) Credentials() (remote.Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	creds, err := c.credentialsLocked()
	if err != nil {
		return remote.Credentials{}, err
	}
	return *creds, nil
}

// Connection returns the memoized connection
func (c *ResourceChain) Connection(ctx context.Context) (remote.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionLocked(ctx)
}

// Account returns the memoized account
func (c *ResourceChain) Account(ctx context.Context) (remote.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountLocked(ctx)
}

// Container returns the memoized container
func (c *ResourceChain) Container(ctx context.Context) (remote.Container, error) {
	// Fast path once Ready: the handle is immutable from here on.
	if c.State() == StateReady {
		c.mu.Lock()
		container := c.container
		c.mu.Unlock()
		return container, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.containerLocked(ctx)
}

func (c *ResourceChain) usableLocked() error {
	if c.State() == StateFailed {
		return c.initErr
	}
	if !c.configured {
		return ErrNotInitialized
	}
	return nil
}

func (c *ResourceChain) credentialsLocked() (*remote.Credentials, error) {
	if err := c.usableLocked(); err != nil {
		return nil, err
	}
	if c.credentials == nil {
		c.credentials = &remote.Credentials{
			Username: c.cfg.Username,
			APIKey:   c.cfg.APIKey,
		}
	}
	return c.credentials, nil
}

func (c *ResourceChain) connectionLocked(ctx context.Context) (remote.Connection, error) {
	if err := c.usableLocked(); err != nil {
		return nil, err
	}
	if c.connection != nil {
		return c.connection, nil
	}
	creds, err := c.credentialsLocked()
	if err != nil {
		return nil, err
	}
	conn, err := c.driver.Connect(ctx, *creds)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.driver.Name(), err)
	}
	c.connection = conn
	return conn, nil
}

func (c *ResourceChain) accountLocked(ctx context.Context) (remote.Account, error) {
	if err := c.usableLocked(); err != nil {
		return nil, err
	}
	if c.account != nil {
		return c.account, nil
	}
	conn, err := c.connectionLocked(ctx)
	if err != nil {
		return nil, err
	}
	if !c.authenticated {
		return nil, ErrNotInitialized
	}
	account, err := conn.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open account on %s: %w", c.driver.Name(), err)
	}
	c.account = account
	return account, nil
}

func (c *ResourceChain) containerLocked(ctx context.Context) (remote.Container, error) {
	if err := c.usableLocked(); err != nil {
		return nil, err
	}
	if c.container != nil {
		return c.container, nil
	}
	account, err := c.accountLocked(ctx)
	if err != nil {
		return nil, err
	}
	container, err := account.Container(ctx, c.cfg.ContainerName)
	if err != nil {
		return nil, &ContainerError{Name: c.cfg.ContainerName, Err: err}
	}
	c.container = container
	return container, nil
}
