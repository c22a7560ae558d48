// Package provider maps logical model classes (small/medium/large/embedding)
// and provider names to concrete model identifiers, sampling settings and
// endpoints. Resolution applies an explicit override chain: agent-level
// secret/setting > character default > compiled-in default. Unknown providers
// are a fatal error at resolution time, never silently defaulted.
package provider

import (
	"strings"

	"github.com/animus-ai/animus/core"
)

// ModelClass is a logical model tier mapped to a concrete vendor model at
// resolution time.
type ModelClass string

const (
	// ModelClassSmall selects the provider's fast, cheap tier.
	ModelClassSmall ModelClass = "small"
	// ModelClassMedium selects the balanced tier.
	ModelClassMedium ModelClass = "medium"
	// ModelClassLarge selects the most capable tier.
	ModelClassLarge ModelClass = "large"
	// ModelClassEmbedding selects the embedding model.
	ModelClassEmbedding ModelClass = "embedding"
)

// ModelConfig is the fully resolved configuration for one generation request.
type ModelConfig struct {
	Provider         string
	Model            string
	Endpoint         string
	APIKey           string
	Temperature      float64
	MaxInputTokens   int
	MaxOutputTokens  int
	FrequencyPenalty float64
	PresencePenalty  float64
	StopSequences    []string
}

// Settings supplies agent-level configuration values. core.Character
// satisfies this via its Setting method; tests can use SettingsFunc.
type Settings interface {
	Setting(key string) string
}

// SettingsFunc adapts a plain function to the Settings interface.
type SettingsFunc func(key string) string

// Setting implements Settings.
func (f SettingsFunc) Setting(key string) string { return f(key) }

// Resolver resolves (provider, class) pairs against the settings override
// chain and the compiled-in defaults table.
type Resolver struct {
	settings Settings
}

// NewResolver creates a Resolver. A nil settings source resolves everything
// from compiled-in defaults and process environment only.
func NewResolver(settings Settings) *Resolver {
	if settings == nil {
		settings = SettingsFunc(func(string) string { return "" })
	}
	return &Resolver{settings: settings}
}

// Resolve returns the concrete model configuration for a provider and class.
// Unknown providers fail with UnsupportedProviderError.
func (r *Resolver) Resolve(name string, class ModelClass) (ModelConfig, error) {
	d, ok := defaults[strings.ToLower(name)]
	if !ok {
		return ModelConfig{}, &core.UnsupportedProviderError{Provider: name}
	}

	cfg := ModelConfig{
		Provider:         d.name,
		Model:            d.models[class],
		Endpoint:         d.endpoint,
		Temperature:      d.temperature,
		MaxInputTokens:   d.maxInputTokens,
		MaxOutputTokens:  d.maxOutputTokens,
		FrequencyPenalty: d.frequencyPenalty,
		PresencePenalty:  d.presencePenalty,
		StopSequences:    append([]string(nil), d.stop...),
	}

	upper := strings.ToUpper(d.name)
	if m := r.settings.Setting(strings.ToUpper(string(class)) + "_" + upper + "_MODEL"); m != "" {
		cfg.Model = m
	}
	if u := r.settings.Setting(upper + "_API_URL"); u != "" {
		cfg.Endpoint = u
	}
	cfg.APIKey = r.settings.Setting(upper + "_API_KEY")

	r.applyGateway(&cfg)

	if cfg.Model == "" {
		return ModelConfig{}, &core.InvalidArgumentError{
			Field:  "modelClass",
			Reason: "no model configured for class " + string(class) + " on provider " + d.name,
		}
	}
	return cfg, nil
}

// applyGateway rewrites the endpoint to route through an observability
// gateway when gateway credentials are configured. Absence of gateway config
// is a pass-through, not an error.
func (r *Resolver) applyGateway(cfg *ModelConfig) {
	gw := r.settings.Setting("GATEWAY_URL")
	if gw == "" {
		return
	}
	cfg.Endpoint = strings.TrimSuffix(gw, "/") + "/" + cfg.Provider
	if key := r.settings.Setting("GATEWAY_API_KEY"); key != "" && cfg.APIKey == "" {
		cfg.APIKey = key
	}
}
