// Package config loads settings from the environment, an optional .env or
// config file, and command-line flags, using viper.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/martinemde/chatagent/agentloop"
	"github.com/martinemde/chatagent/logging"
	"github.com/martinemde/chatagent/unifiedllm"
)

// Model backends.
const (
	BackendOpenAI = "openai"
	BackendGollm  = "gollm"
)

// Search providers.
const (
	SearchDuckDuckGo = "duckduckgo"
	SearchSearXNG    = "searxng"
)

// deploymentKeys maps local display names to the keys overriding their
// deployment id.
var deploymentKeys = map[string]string{
	"Phi-3":       "phi3_deployment",
	"Gemma 2B":    "gemma_deployment",
	"Mistral":     "mistral_deployment",
	"GPT-4 Turbo": "gpt_deployment",
	"Qwen3 4B":    "qwen_deployment",
}

// Config is the validated process configuration.
type Config struct {
	OpenAIEndpoint string
	OpenAIAPIKey   string
	GroqEndpoint   string
	GroqAPIKey     string

	DefaultTemperature float64
	DefaultModel       string
	ModelBackend       string
	GollmProvider      string
	// OllamaEndpoint is the base URL gollm's ollama provider talks to.
	OllamaEndpoint string
	// Deployments maps local display names to overridden deployment ids.
	Deployments map[string]string

	Log    logging.Config
	Agent  agentloop.Config
	Search SearchConfig

	ListenAddress string
}

// SearchConfig selects the web search backend.
type SearchConfig struct {
	Provider   string
	MaxResults int
	SearXNGURL string
	Timeout    time.Duration
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("openai_endpoint", "http://localhost:4000/")
	v.SetDefault("openai_api_key", "my-secret-key")
	v.SetDefault("groq_endpoint", unifiedllm.GroqBaseURL)
	v.SetDefault("groq_api_key", "")

	v.SetDefault("default_temperature", 0.7)
	v.SetDefault("default_model", unifiedllm.DefaultModelName)
	v.SetDefault("model_backend", BackendOpenAI)
	v.SetDefault("gollm_provider", "openai")
	v.SetDefault("ollama_endpoint", "http://localhost:11434")
	for _, m := range unifiedllm.Models {
		if key, ok := deploymentKeys[m.Name]; ok {
			v.SetDefault(key, m.ID)
		}
	}

	lc := logging.DefaultConfig()
	v.SetDefault("log_level", lc.Level)
	v.SetDefault("log_format", lc.Format)
	v.SetDefault("log_file", lc.File)
	v.SetDefault("log_max_mb", lc.MaxSizeMB)
	v.SetDefault("log_backups", lc.MaxBackups)
	v.SetDefault("log_with_caller", false)

	ac := agentloop.DefaultConfig()
	v.SetDefault("agent_max_retries", ac.MaxRetries)
	v.SetDefault("agent_max_rounds", ac.MaxRounds)
	v.SetDefault("agent_deadline", ac.Deadline)
	v.SetDefault("agent_parallel_tools", ac.ParallelTools)
	v.SetDefault("agent_max_tool_result_chars", ac.MaxToolResultChars)
	v.SetDefault("agent_loop_window", ac.LoopDetectionWindow)

	v.SetDefault("search_provider", SearchDuckDuckGo)
	v.SetDefault("search_max_results", 5)
	v.SetDefault("searxng_url", "")
	v.SetDefault("search_timeout", 15*time.Second)

	v.SetDefault("listen_address", ":8000")
}

// NewViper returns a viper instance with defaults and environment lookup.
// A non-empty path names the config file; otherwise ./.env is read when
// present.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".env")
		v.SetConfigType("env")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}
	return v, nil
}

// Load reads and validates the configuration.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		OpenAIEndpoint: v.GetString("openai_endpoint"),
		OpenAIAPIKey:   v.GetString("openai_api_key"),
		GroqEndpoint:   v.GetString("groq_endpoint"),
		GroqAPIKey:     v.GetString("groq_api_key"),

		DefaultTemperature: v.GetFloat64("default_temperature"),
		DefaultModel:       v.GetString("default_model"),
		ModelBackend:       strings.ToLower(v.GetString("model_backend")),
		GollmProvider:      strings.ToLower(v.GetString("gollm_provider")),
		OllamaEndpoint:     strings.TrimRight(v.GetString("ollama_endpoint"), "/"),
		Deployments:        make(map[string]string, len(deploymentKeys)),

		Log: logging.Config{
			Level:      v.GetString("log_level"),
			Format:     strings.ToLower(v.GetString("log_format")),
			File:       v.GetString("log_file"),
			MaxSizeMB:  v.GetInt("log_max_mb"),
			MaxBackups: v.GetInt("log_backups"),
			WithCaller: v.GetBool("log_with_caller"),
		},
		Agent: agentloop.Config{
			MaxRetries:          v.GetInt("agent_max_retries"),
			MaxRounds:           v.GetInt("agent_max_rounds"),
			Deadline:            v.GetDuration("agent_deadline"),
			ParallelTools:       v.GetBool("agent_parallel_tools"),
			MaxToolResultChars:  v.GetInt("agent_max_tool_result_chars"),
			LoopDetectionWindow: v.GetInt("agent_loop_window"),
		},
		Search: SearchConfig{
			Provider:   strings.ToLower(v.GetString("search_provider")),
			MaxResults: v.GetInt("search_max_results"),
			SearXNGURL: v.GetString("searxng_url"),
			Timeout:    v.GetDuration("search_timeout"),
		},
		ListenAddress: v.GetString("listen_address"),
	}
	for name, key := range deploymentKeys {
		cfg.Deployments[name] = v.GetString(key)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Catalog builds the model catalog with deployment overrides applied.
func (c *Config) Catalog() (*unifiedllm.Catalog, error) {
	models := make([]unifiedllm.ModelInfo, len(unifiedllm.Models))
	copy(models, unifiedllm.Models)
	for i, m := range models {
		if id := c.Deployments[m.Name]; id != "" && m.Provider == unifiedllm.ProviderLocal {
			models[i].ID = id
		}
	}
	return unifiedllm.NewCatalog(c.DefaultModel, models)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Agent.MaxRetries < 0 {
		return errors.Errorf("agent_max_retries must be >= 0, got %d", c.Agent.MaxRetries)
	}
	if c.Agent.MaxRounds < 1 {
		return errors.Errorf("agent_max_rounds must be >= 1, got %d", c.Agent.MaxRounds)
	}
	if c.Agent.Deadline < 0 {
		return errors.Errorf("agent_deadline must not be negative, got %s", c.Agent.Deadline)
	}
	if c.DefaultTemperature < 0 || c.DefaultTemperature > 2 {
		return errors.Errorf("default_temperature must be within [0, 2], got %g", c.DefaultTemperature)
	}

	switch c.ModelBackend {
	case BackendOpenAI:
	case BackendGollm:
		if err := c.validateGollm(); err != nil {
			return err
		}
	default:
		return errors.Errorf("unknown model_backend %q", c.ModelBackend)
	}

	switch c.Search.Provider {
	case SearchDuckDuckGo:
	case SearchSearXNG:
		if c.Search.SearXNGURL == "" {
			return errors.New("searxng_url is required when search_provider is searxng")
		}
	default:
		return errors.Errorf("unknown search_provider %q", c.Search.Provider)
	}
	if c.Search.MaxResults < 1 {
		return errors.Errorf("search_max_results must be >= 1, got %d", c.Search.MaxResults)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Errorf("unknown log_format %q", c.Log.Format)
	}

	if _, err := c.Catalog(); err != nil {
		return errors.Wrap(err, "model catalog")
	}
	return nil
}

// validateGollm applies the key rules gollm enforces when it builds a
// client, so a bad key fails at startup with the setting's name.
func (c *Config) validateGollm() error {
	switch c.GollmProvider {
	case "":
		return errors.New("gollm_provider is required when model_backend is gollm")
	case "ollama":
		if c.OllamaEndpoint == "" {
			return errors.New("ollama_endpoint is required when gollm_provider is ollama")
		}
	case "lmstudio":
	default:
		if !gollmKeyAccepted(c.GollmProvider, c.OpenAIAPIKey) {
			return errors.Errorf("openai_api_key is not a valid %s key for the gollm backend", c.GollmProvider)
		}
	}
	if c.GroqAPIKey != "" && !gollmKeyAccepted("groq", c.GroqAPIKey) {
		return errors.New("groq_api_key is not a valid groq key for the gollm backend")
	}
	return nil
}

func gollmKeyAccepted(provider, key string) bool {
	if len(key) <= 20 {
		return false
	}
	switch provider {
	case "openai":
		return strings.HasPrefix(key, "sk-")
	case "anthropic":
		return strings.HasPrefix(key, "sk-ant-")
	}
	return true
}
