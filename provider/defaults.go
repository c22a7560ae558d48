package provider

// Supported provider names.
const (
	OpenAI     = "openai"
	Anthropic  = "anthropic"
	OpenRouter = "openrouter"
	DeepSeek   = "deepseek"
	Groq       = "groq"
	Ollama     = "ollama"
)

type providerDefaults struct {
	name             string
	endpoint         string
	models           map[ModelClass]string
	temperature      float64
	maxInputTokens   int
	maxOutputTokens  int
	frequencyPenalty float64
	presencePenalty  float64
	stop             []string
}

// defaults is the compiled-in bottom of the override chain. Model ids track
// each vendor's current generally-available lineup; agents override per class
// via settings (e.g. LARGE_OPENROUTER_MODEL).
var defaults = map[string]providerDefaults{
	OpenAI: {
		name:     OpenAI,
		endpoint: "https://api.openai.com/v1",
		models: map[ModelClass]string{
			ModelClassSmall:     "gpt-4o-mini",
			ModelClassMedium:    "gpt-4o",
			ModelClassLarge:     "gpt-4o",
			ModelClassEmbedding: "text-embedding-3-small",
		},
		temperature:      0.6,
		maxInputTokens:   128000,
		maxOutputTokens:  8192,
		frequencyPenalty: 0.0,
		presencePenalty:  0.0,
	},
	Anthropic: {
		name:     Anthropic,
		endpoint: "https://api.anthropic.com/v1",
		models: map[ModelClass]string{
			ModelClassSmall:  "claude-3-5-haiku-20241022",
			ModelClassMedium: "claude-3-5-sonnet-20241022",
			ModelClassLarge:  "claude-3-5-sonnet-20241022",
		},
		temperature:     0.7,
		maxInputTokens:  200000,
		maxOutputTokens: 4096,
	},
	OpenRouter: {
		name:     OpenRouter,
		endpoint: "https://openrouter.ai/api/v1",
		models: map[ModelClass]string{
			ModelClassSmall:     "openai/gpt-4o-mini",
			ModelClassMedium:    "openai/gpt-4o",
			ModelClassLarge:     "anthropic/claude-3.5-sonnet",
			ModelClassEmbedding: "openai/text-embedding-3-small",
		},
		temperature:     0.7,
		maxInputTokens:  128000,
		maxOutputTokens: 8192,
	},
	DeepSeek: {
		name:     DeepSeek,
		endpoint: "https://api.deepseek.com/v1",
		models: map[ModelClass]string{
			ModelClassSmall:  "deepseek-chat",
			ModelClassMedium: "deepseek-chat",
			ModelClassLarge:  "deepseek-reasoner",
		},
		temperature:     0.7,
		maxInputTokens:  64000,
		maxOutputTokens: 8192,
	},
	Groq: {
		name:     Groq,
		endpoint: "https://api.groq.com/openai/v1",
		models: map[ModelClass]string{
			ModelClassSmall:  "llama-3.1-8b-instant",
			ModelClassMedium: "llama-3.3-70b-versatile",
			ModelClassLarge:  "llama-3.3-70b-versatile",
		},
		temperature:     0.7,
		maxInputTokens:  128000,
		maxOutputTokens: 8000,
	},
	Ollama: {
		name:     Ollama,
		endpoint: "http://localhost:11434/v1",
		models: map[ModelClass]string{
			ModelClassSmall:     "llama3.2",
			ModelClassMedium:    "llama3.1",
			ModelClassLarge:     "llama3.1:70b",
			ModelClassEmbedding: "nomic-embed-text",
		},
		temperature:     0.7,
		maxInputTokens:  32000,
		maxOutputTokens: 8192,
	},
}

// Supported reports whether name is a known provider.
func Supported(name string) bool {
	_, ok := defaults[name]
	return ok
}
