package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envVar matches ${NAME} and ${NAME:-fallback} references in the raw
// YAML bytes. The fallback may contain anything except an unescaped "}".
var envVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads quill's YAML configuration from path. Environment variable
// references are expanded before parsing, so secrets like provider API
// keys can stay out of the file itself.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// expandEnv substitutes every ${NAME} and ${NAME:-fallback} reference.
// A reference with neither an environment value nor a fallback is an
// error; all such references are collected and reported together.
func expandEnv(raw []byte) ([]byte, error) {
	var missing []error

	out := envVar.ReplaceAllFunc(raw, func(match []byte) []byte {
		groups := envVar.FindSubmatch(match)
		name := string(groups[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if groups[2] != nil {
			return groups[2]
		}

		missing = append(missing, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return out, errors.Join(missing...)
}
