package unifiedllm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Middleware wraps a provider call. It receives the request and a next function
// that calls the downstream handler, and returns the response.
type Middleware func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error)

type handler func(context.Context, Request) (*Response, error)

// Client routes requests to provider adapters through a fixed middleware
// chain. Providers and middleware are set at construction, so a Client is
// safe for concurrent use without locking.
type Client struct {
	providers       map[string]ProviderAdapter
	defaultProvider string
	middleware      []Middleware
	chain           handler
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider registers adapter under name, replacing any earlier one.
func WithProvider(name string, adapter ProviderAdapter) ClientOption {
	return func(c *Client) { c.providers[name] = adapter }
}

// WithDefaultProvider names the provider used when a request carries none
// and its model is not in the built-in table.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) { c.defaultProvider = name }
}

// WithMiddleware appends middleware. The first one added sees the request
// first and the response last.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) { c.middleware = append(c.middleware, mw...) }
}

// NewClient builds a Client. A sole provider becomes the default.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{providers: make(map[string]ProviderAdapter)}
	for _, opt := range opts {
		opt(c)
	}
	if c.defaultProvider == "" && len(c.providers) == 1 {
		for name := range c.providers {
			c.defaultProvider = name
		}
	}

	c.chain = c.dispatch
	for i := len(c.middleware) - 1; i >= 0; i-- {
		mw, next := c.middleware[i], c.chain
		c.chain = func(ctx context.Context, r Request) (*Response, error) {
			return mw(ctx, r, next)
		}
	}
	return c
}

// Providers returns the registered provider names, sorted.
func (c *Client) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// route picks the provider for req: its explicit Provider, then the provider
// the built-in table lists for its model, then the default.
func (c *Client) route(req Request) (string, error) {
	if req.Provider != "" {
		if _, ok := c.providers[req.Provider]; !ok {
			return "", configError(fmt.Sprintf("provider %q is not registered", req.Provider))
		}
		return req.Provider, nil
	}
	if info := GetModelInfo(req.Model); info != nil {
		if _, ok := c.providers[info.Provider]; ok {
			return info.Provider, nil
		}
	}
	if c.defaultProvider == "" {
		return "", configError("no provider specified and no default provider configured")
	}
	if _, ok := c.providers[c.defaultProvider]; !ok {
		return "", configError(fmt.Sprintf("default provider %q is not registered", c.defaultProvider))
	}
	return c.defaultProvider, nil
}

// Complete resolves the provider, fills in req.Provider and runs the
// middleware chain. Middleware observes the resolved provider.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	name, err := c.route(req)
	if err != nil {
		return nil, err
	}
	req.Provider = name
	return c.chain(ctx, req)
}

func (c *Client) dispatch(ctx context.Context, req Request) (*Response, error) {
	adapter, ok := c.providers[req.Provider]
	if !ok {
		return nil, configError(fmt.Sprintf("provider %q is not registered", req.Provider))
	}
	return adapter.Complete(ctx, req)
}

// Close closes every adapter that implements io.Closer.
func (c *Client) Close() error {
	var errs []error
	for _, name := range c.Providers() {
		if closer, ok := c.providers[name].(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func configError(msg string) *ConfigurationError {
	return &ConfigurationError{SDKError: SDKError{Message: msg}}
}
