// Package prompt implements prompt configuration and final prompt assembly.
// Assembly is pure: the same inputs always produce the same string, which
// keeps it unit-testable without a live generation service.
package prompt

import "github.com/quillworks/quill/internal/provider"

// Config describes one user-selected prompt: the template text, optional
// system instructions, and provider overrides. Immutable once a generation
// task starts; retries during recovery reuse the same Config.
type Config struct {
	// TemplateID names the template for logging and persistence.
	TemplateID string `json:"template_id" yaml:"template_id"`

	// Template is the prompt body. Placeholders of the form {name} are
	// substituted from the additional variables; {action_beats} receives
	// the user's action-beat text.
	Template string `json:"template" yaml:"template"`

	// System is passed to the provider as system instructions.
	System string `json:"system,omitempty" yaml:"system,omitempty"`

	// Overrides tune the provider call for this prompt.
	Overrides Overrides `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// Overrides are per-prompt provider settings. Zero values defer to the
// provider's configured defaults.
type Overrides struct {
	Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
}

// defaultMaxTokens mirrors the reply budget used when a prompt does not
// set its own. The truncation window during recovery derives from it.
const defaultMaxTokens = 2000

// MaxTokensOrDefault returns the configured max tokens, or the default.
func (c Config) MaxTokensOrDefault() int {
	if c.Overrides.MaxTokens > 0 {
		return c.Overrides.MaxTokens
	}
	return defaultMaxTokens
}

// Params converts the config into provider request parameters.
func (c Config) Params() provider.Params {
	return provider.Params{
		Model:       c.Overrides.Model,
		System:      c.System,
		MaxTokens:   c.Overrides.MaxTokens,
		Temperature: c.Overrides.Temperature,
		TopP:        c.Overrides.TopP,
	}
}

// Vars maps template variable names (pov, pov_character, tense, ...) to
// their values. Keys are unique; insertion order is irrelevant because
// substitution is driven by the template text, not the map.
type Vars map[string]string
