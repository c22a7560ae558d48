package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animus-ai/animus/core"
)

func settingsMap(m map[string]string) Settings {
	return SettingsFunc(func(key string) string { return m[key] })
}

func TestResolve_CompiledInDefaults(t *testing.T) {
	r := NewResolver(nil)

	cfg, err := r.Resolve(OpenAI, ModelClassSmall)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Endpoint)
	assert.Greater(t, cfg.MaxInputTokens, 0)
	assert.Greater(t, cfg.MaxOutputTokens, 0)
}

func TestResolve_UnknownProviderFatal(t *testing.T) {
	r := NewResolver(nil)

	_, err := r.Resolve("made-up-vendor", ModelClassLarge)
	var unsupported *core.UnsupportedProviderError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "made-up-vendor", unsupported.Provider)
}

func TestResolve_OverrideChainPerClass(t *testing.T) {
	r := NewResolver(settingsMap(map[string]string{
		"LARGE_OPENROUTER_MODEL": "nousresearch/hermes-3-llama-3.1-405b",
	}))

	large, err := r.Resolve(OpenRouter, ModelClassLarge)
	require.NoError(t, err)
	assert.Equal(t, "nousresearch/hermes-3-llama-3.1-405b", large.Model)

	// Small stays on the compiled-in default.
	small, err := r.Resolve(OpenRouter, ModelClassSmall)
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o-mini", small.Model)
}

func TestResolve_EndpointAndKeyOverride(t *testing.T) {
	r := NewResolver(settingsMap(map[string]string{
		"OPENAI_API_URL": "https://proxy.internal/v1",
		"OPENAI_API_KEY": "sk-test",
	}))

	cfg, err := r.Resolve(OpenAI, ModelClassLarge)
	require.NoError(t, err)
	assert.Equal(t, "https://proxy.internal/v1", cfg.Endpoint)
	assert.Equal(t, "sk-test", cfg.APIKey)
}

func TestResolve_GatewayIndirection(t *testing.T) {
	r := NewResolver(settingsMap(map[string]string{
		"GATEWAY_URL":     "https://gateway.example.com/v1/acct/prod/",
		"GATEWAY_API_KEY": "gw-key",
	}))

	cfg, err := r.Resolve(Anthropic, ModelClassSmall)
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.example.com/v1/acct/prod/anthropic", cfg.Endpoint)
	assert.Equal(t, "gw-key", cfg.APIKey)
}

func TestResolve_MissingClassModel(t *testing.T) {
	// Anthropic has no embedding tier.
	r := NewResolver(nil)
	_, err := r.Resolve(Anthropic, ModelClassEmbedding)
	var argErr *core.InvalidArgumentError
	require.ErrorAs(t, err, &argErr)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(OpenAI))
	assert.True(t, Supported(Ollama))
	assert.False(t, Supported("bedrock"))
}
