package core

import "os"

// KnowledgeSource declares one knowledge input of a character. Exactly one of
// the fields is set: Text for direct string knowledge, Path for a single file,
// Directory (with optional Pattern) for recursive ingestion.
type KnowledgeSource struct {
	Text      string `json:"text,omitempty" yaml:"text,omitempty"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	Directory string `json:"directory,omitempty" yaml:"directory,omitempty"`
	Pattern   string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Shared    bool   `json:"shared,omitempty" yaml:"shared,omitempty"`
}

// Character is the static agent definition: persona, plugins, knowledge
// sources, model provider and secrets. It is produced by configuration
// loading and consumed read-only by the runtime for its whole lifetime.
type Character struct {
	Name          string            `json:"name" yaml:"name"`
	System        string            `json:"system,omitempty" yaml:"system,omitempty"`
	Bio           []string          `json:"bio,omitempty" yaml:"bio,omitempty"`
	Lore          []string          `json:"lore,omitempty" yaml:"lore,omitempty"`
	ModelProvider string            `json:"modelProvider" yaml:"modelProvider"`
	Knowledge     []KnowledgeSource `json:"knowledge,omitempty" yaml:"knowledge,omitempty"`
	Settings      map[string]string `json:"settings,omitempty" yaml:"settings,omitempty"`
	Secrets       map[string]string `json:"secrets,omitempty" yaml:"secrets,omitempty"`
	// RAGKnowledge enables the full ingestion pipeline (chunking + embedding).
	// When false only direct string knowledge is processed; file-backed
	// sources are skipped. Compatibility mode for agents without a vector
	// capable datastore.
	RAGKnowledge bool `json:"ragKnowledge,omitempty" yaml:"ragKnowledge,omitempty"`
}

// Setting resolves a configuration value using the override chain
// secret > setting > process environment. An empty string means unset.
func (c *Character) Setting(key string) string {
	if v, ok := c.Secrets[key]; ok && v != "" {
		return v
	}
	if v, ok := c.Settings[key]; ok && v != "" {
		return v
	}
	return os.Getenv(key)
}

// SystemPrompt returns the character's system prompt, falling back to a
// minimal persona statement assembled from the bio when unset.
func (c *Character) SystemPrompt() string {
	if c.System != "" {
		return c.System
	}
	prompt := "You are " + c.Name + "."
	for _, line := range c.Bio {
		prompt += "\n" + line
	}
	return prompt
}
