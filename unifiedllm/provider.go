package unifiedllm

import "context"

// ProviderAdapter turns a Request into a provider call. Implementations that
// hold connections may also implement io.Closer.
type ProviderAdapter interface {
	// Name is the provider identifier requests route by, "local" or "groq".
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}
