package llm

import "fmt"

// Factory creates a provider from its configuration.
type Factory func(cfg ProviderConfig) (Provider, error)

// Registry holds all registered provider factories.
var Registry = map[ProviderType]Factory{
	ProviderGemini: NewGeminiProvider,
	ProviderOpenAI: NewOpenAIProvider,
}

// CreateProvider creates a provider from its configuration.
func CreateProvider(cfg ProviderConfig) (Provider, error) {
	factory, ok := Registry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
	p, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s provider config: %w", cfg.Type, err)
	}
	return p, nil
}
