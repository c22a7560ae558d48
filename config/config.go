// Package config loads character definitions and process environment for the
// runtime. Characters are JSON or YAML files selected by extension; secrets
// come from the environment via a .env file when present.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/animus-ai/animus/core"
	"github.com/animus-ai/animus/provider"
)

// LoadEnv loads variables from a .env file in the working directory into the
// process environment. A missing file is not an error; existing variables are
// never overwritten.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// LoadCharacter reads and validates a character definition. The format is
// chosen by file extension: .json for JSON, .yaml/.yml for YAML.
func LoadCharacter(path string) (*core.Character, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read character %s: %w", path, err)
	}

	var char core.Character
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &char); err != nil {
			return nil, fmt.Errorf("parse character %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &char); err != nil {
			return nil, fmt.Errorf("parse character %s: %w", path, err)
		}
	default:
		return nil, &core.InvalidArgumentError{
			Field:  "path",
			Reason: "unsupported character format " + filepath.Ext(path),
		}
	}

	if err := Validate(&char); err != nil {
		return nil, err
	}
	return &char, nil
}

// Validate checks the minimum a runtime needs from a character.
func Validate(char *core.Character) error {
	if strings.TrimSpace(char.Name) == "" {
		return &core.InvalidArgumentError{Field: "name", Reason: "character name is required"}
	}
	if char.ModelProvider == "" {
		return &core.InvalidArgumentError{Field: "modelProvider", Reason: "model provider is required"}
	}
	if !provider.Supported(strings.ToLower(char.ModelProvider)) {
		return &core.UnsupportedProviderError{Provider: char.ModelProvider}
	}
	for i, src := range char.Knowledge {
		set := 0
		for _, v := range []string{src.Text, src.Path, src.Directory} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			return &core.InvalidArgumentError{
				Field:  fmt.Sprintf("knowledge[%d]", i),
				Reason: "exactly one of text, path or directory must be set",
			}
		}
	}
	return nil
}
