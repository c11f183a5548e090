package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/martinemde/chatagent/agentloop"
	"github.com/martinemde/chatagent/config"
	"github.com/martinemde/chatagent/metrics"
	"github.com/martinemde/chatagent/search"
	"github.com/martinemde/chatagent/unifiedllm"
)

// observerQueueSize bounds queued log notifications before they are dropped.
const observerQueueSize = 1024

// app is the wired object graph shared by the commands.
type app struct {
	catalog     *unifiedllm.Catalog
	client      *unifiedllm.Client
	agent       *agentloop.Agent
	logQueue    *agentloop.QueuedObserver
	registry    *prometheus.Registry
	httpMetrics *metrics.HTTPRecorder
}

func newApp(cfg *config.Config) (*app, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	agentMetrics := metrics.NewObserver(registry)

	client, err := newLLMClient(cfg, agentMetrics)
	if err != nil {
		return nil, err
	}

	tools, err := agentloop.NewToolRegistry(search.NewWebSearchTool(newSearchManager(cfg), cfg.Search.MaxResults))
	if err != nil {
		return nil, err
	}

	logQueue := agentloop.NewQueuedObserver(agentloop.NewLogObserver(log.Logger), observerQueueSize)
	model := agentloop.NewLLMModelClient(client, catalog, cfg.DefaultTemperature)
	agent := agentloop.NewAgent(model, tools,
		agentloop.WithConfig(cfg.Agent),
		agentloop.WithLogger(log.Logger),
		agentloop.WithObserver(logQueue, agentMetrics),
		agentloop.WithRetryListener(agentMetrics.ObserveRetry),
	)

	return &app{
		catalog:     catalog,
		client:      client,
		agent:       agent,
		logQueue:    logQueue,
		registry:    registry,
		httpMetrics: metrics.NewHTTPRecorder(registry),
	}, nil
}

// newLLMClient registers the local and Groq providers on the configured backend.
func newLLMClient(cfg *config.Config, agentMetrics *metrics.Observer) (*unifiedllm.Client, error) {
	opts := []unifiedllm.ClientOption{
		unifiedllm.WithDefaultProvider(unifiedllm.ProviderLocal),
		unifiedllm.WithMiddleware(
			unifiedllm.LogRequests(log.Logger),
			agentMetrics.Middleware(),
			unifiedllm.ValidateToolCalls(),
		),
	}

	switch cfg.ModelBackend {
	case config.BackendGollm:
		localOpts := []unifiedllm.GollmAdapterOption{
			unifiedllm.WithAdapterName(unifiedllm.ProviderLocal),
			unifiedllm.WithTemperature(cfg.DefaultTemperature),
		}
		if cfg.GollmProvider == "ollama" {
			localOpts = append(localOpts, unifiedllm.WithEndpoint(cfg.OllamaEndpoint))
		}
		local, err := unifiedllm.NewGollmAdapter(cfg.GollmProvider, cfg.OpenAIAPIKey, localOpts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, unifiedllm.WithProvider(unifiedllm.ProviderLocal, local))
		if cfg.GroqAPIKey != "" {
			groq, err := unifiedllm.NewGollmAdapter("groq", cfg.GroqAPIKey,
				unifiedllm.WithAdapterName(unifiedllm.ProviderGroq),
				unifiedllm.WithTemperature(cfg.DefaultTemperature),
			)
			if err != nil {
				return nil, err
			}
			opts = append(opts, unifiedllm.WithProvider(unifiedllm.ProviderGroq, groq))
		}
	default:
		opts = append(opts,
			unifiedllm.WithProvider(unifiedllm.ProviderLocal,
				unifiedllm.NewOpenAIAdapter(unifiedllm.ProviderLocal, cfg.OpenAIEndpoint, cfg.OpenAIAPIKey)),
			unifiedllm.WithProvider(unifiedllm.ProviderGroq,
				unifiedllm.NewOpenAIAdapter(unifiedllm.ProviderGroq, cfg.GroqEndpoint, cfg.GroqAPIKey)),
		)
	}
	return unifiedllm.NewClient(opts...), nil
}

func newSearchManager(cfg *config.Config) *search.Manager {
	mgr := search.NewManager(cfg.Search.Provider)
	mgr.Register(search.NewDuckDuckGo(cfg.Search.Timeout))
	if cfg.Search.SearXNGURL != "" {
		mgr.Register(search.NewSearXNG(cfg.Search.SearXNGURL, cfg.Search.Timeout))
	}
	return mgr
}

// Close flushes queued log notifications and releases provider resources.
func (a *app) Close() error {
	a.logQueue.Close()
	if n := a.logQueue.Dropped(); n > 0 {
		log.Warn().Int64("dropped", n).Msg("observer notifications dropped")
	}
	return a.client.Close()
}
