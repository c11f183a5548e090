// Package search provides the web search backends behind the web_search tool.
//
// Each backend implements [Provider] and is registered with a [Manager],
// which routes queries to the configured primary backend. [WebSearchTool]
// exposes the manager to the agent.
package search

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultMaxResults is used when neither the caller nor the tool sets a count.
const DefaultMaxResults = 5

// ErrProviderNotConfigured is returned when a search names an unregistered backend.
var ErrProviderNotConfigured = errors.New("search provider not configured")

// Result is a single search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Options are optional parameters for a search query.
type Options struct {
	// Count is the maximum number of results. Zero means DefaultMaxResults.
	Count int
	// Language is an ISO 639-1 code; backends that cannot filter ignore it.
	Language string
}

func (o Options) count() int {
	if o.Count > 0 {
		return o.Count
	}
	return DefaultMaxResults
}

// Provider is a search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Manager holds the registered backends. Register everything before the
// first search; after that the manager is read-only and safe to share.
type Manager struct {
	providers map[string]Provider
	primary   string
}

// NewManager creates a manager that sends queries to primary by default.
func NewManager(primary string) *Manager {
	return &Manager{
		providers: make(map[string]Provider),
		primary:   primary,
	}
}

// Register adds a backend under its own name.
func (m *Manager) Register(p Provider) {
	m.providers[p.Name()] = p
}

// Primary returns the name of the default backend.
func (m *Manager) Primary() string {
	return m.primary
}

// Search runs a query against the primary backend.
func (m *Manager) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	return m.SearchWith(ctx, m.primary, query, opts)
}

// SearchWith runs a query against the named backend.
func (m *Manager) SearchWith(ctx context.Context, provider, query string, opts Options) ([]Result, error) {
	p, ok := m.providers[provider]
	if !ok {
		return nil, errors.Wrapf(ErrProviderNotConfigured, "%q", provider)
	}

	start := time.Now()
	results, err := p.Search(ctx, query, opts)
	logger := zerolog.Ctx(ctx)
	if err != nil {
		logger.Warn().Err(err).Str("provider", provider).Msg("search failed")
		return nil, err
	}
	logger.Debug().
		Str("provider", provider).
		Int("results", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("search done")
	return results, nil
}

// Providers returns the registered backend names, sorted.
func (m *Manager) Providers() []string {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
