// Package persona loads the assistant's fixed instruction block and the
// phrases the chat loop shows around it.
package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Persona struct {
	Name           string   `yaml:"name"`
	SystemPrompt   string   `yaml:"system_prompt"`
	Banner         []string `yaml:"banner"`
	UserLabel      string   `yaml:"user_label"`
	AssistantLabel string   `yaml:"assistant_label"`
	Farewell       string   `yaml:"farewell"`
	Interrupted    string   `yaml:"interrupted"`
	ErrorPrefix    string   `yaml:"error_prefix"`
}

// Default returns a fresh copy of the embedded mentor persona.
func Default() *Persona {
	var p Persona
	if err := yaml.Unmarshal(defaultYAML, &p); err != nil {
		panic(fmt.Sprintf("persona: embedded default is invalid: %v", err))
	}
	p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
	return &p
}

// Load reads a persona file. YAML files are overlaid on the default persona,
// so they only need the fields they change; .txt and .md files replace the
// system prompt and keep everything else.
func Load(path string) (*Persona, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading persona: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		p.SystemPrompt = string(data)
	default:
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("decoding persona %s: %w", path, err)
		}
	}

	p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
	if p.SystemPrompt == "" {
		return nil, errors.New("persona: system_prompt must not be empty")
	}
	return p, nil
}
