package unifiedllm

import "fmt"

// Provider identifiers used by the built-in catalog.
const (
	ProviderLocal = "local" // OpenAI-compatible proxy in front of locally served models
	ProviderGroq  = "groq"
)

// DefaultModelName is the display name used when a caller does not pick a model.
const DefaultModelName = "Phi-3"

// ModelInfo describes a model offered to callers. Name is the display name
// callers choose by; ID is what the provider expects.
type ModelInfo struct {
	Name     string   `json:"name"`
	ID       string   `json:"id"`
	Provider string   `json:"provider"`
	Aliases  []string `json:"aliases,omitempty"`
}

// Models is the built-in model catalog, in the order it is presented.
var Models = []ModelInfo{
	// Served through the local proxy.
	{Name: "Phi-3", ID: "phi3", Provider: ProviderLocal},
	{Name: "Gemma 2B", ID: "gemma:2b", Provider: ProviderLocal},
	{Name: "Mistral", ID: "mistral", Provider: ProviderLocal},
	{Name: "GPT-4 Turbo", ID: "gpt-4-turbo", Provider: ProviderLocal},
	{Name: "Qwen3 4B", ID: "qwen3", Provider: ProviderLocal},

	// Groq
	{Name: "Groq GPT-OSS 120B", ID: "openai/gpt-oss-120b", Provider: ProviderGroq, Aliases: []string{"gpt-oss"}},
	{Name: "Groq Llama 3.1 70B", ID: "llama-3.1-70b-versatile", Provider: ProviderGroq},
	{Name: "Groq Llama 3.1 8B", ID: "llama-3.1-8b-instant", Provider: ProviderGroq},
	{Name: "Groq Mixtral 8x7B", ID: "mixtral-8x7b-32768", Provider: ProviderGroq},
}

// GetModelInfo returns the built-in entry matching a display name, provider
// id or alias, or nil if unknown.
func GetModelInfo(model string) *ModelInfo {
	for i := range Models {
		if Models[i].matches(model) || Models[i].ID == model {
			return &Models[i]
		}
	}
	return nil
}

func (m ModelInfo) matches(name string) bool {
	if m.Name == name {
		return true
	}
	for _, alias := range m.Aliases {
		if alias == name {
			return true
		}
	}
	return false
}

// Catalog is an immutable, ordered set of models with a default choice.
// It is safe for concurrent use.
type Catalog struct {
	models      []ModelInfo
	defaultName string
}

// NewCatalog validates and freezes a model list. Names must be unique and the
// default must be one of them.
func NewCatalog(defaultName string, models []ModelInfo) (*Catalog, error) {
	if len(models) == 0 {
		return nil, &ConfigurationError{SDKError: SDKError{Message: "model catalog is empty"}}
	}
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		if m.Name == "" || m.ID == "" || m.Provider == "" {
			return nil, &ConfigurationError{SDKError: SDKError{
				Message: fmt.Sprintf("model %q needs a name, id and provider", m.Name),
			}}
		}
		if seen[m.Name] {
			return nil, &ConfigurationError{SDKError: SDKError{
				Message: fmt.Sprintf("model %q listed twice", m.Name),
			}}
		}
		seen[m.Name] = true
	}
	if !seen[defaultName] {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("default model %q is not in the catalog", defaultName),
		}}
	}
	frozen := make([]ModelInfo, len(models))
	copy(frozen, models)
	return &Catalog{models: frozen, defaultName: defaultName}, nil
}

// DefaultCatalog returns the built-in catalog with DefaultModelName as default.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultModelName, Models)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup resolves a display name or alias.
func (c *Catalog) Lookup(name string) (ModelInfo, bool) {
	for _, m := range c.models {
		if m.matches(name) {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// Names returns the display names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.models))
	for i, m := range c.models {
		names[i] = m.Name
	}
	return names
}

// Default returns the default display name.
func (c *Catalog) Default() string {
	return c.defaultName
}

// Models returns a copy of the catalog entries.
func (c *Catalog) Models() []ModelInfo {
	out := make([]ModelInfo, len(c.models))
	copy(out, c.models)
	return out
}
