// Package anthropic implements the provider.anthropic module, bridging the
// generation engine to the Anthropic Messages API.
package anthropic

import (
	"errors"
	"log/slog"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"gopkg.in/yaml.v3"

	"github.com/quillworks/quill/internal/core"
	"github.com/quillworks/quill/internal/provider"
)

func init() {
	core.RegisterModule(&Anthropic{})
}

// Interface guards.
var (
	_ core.Module       = (*Anthropic)(nil)
	_ core.Configurable = (*Anthropic)(nil)
	_ core.Provisioner  = (*Anthropic)(nil)
	_ core.Validator    = (*Anthropic)(nil)
	_ provider.Provider = (*Anthropic)(nil)
)

// Anthropic is the provider.anthropic module. It implements
// provider.Provider using the Anthropic Messages API.
type Anthropic struct {
	config        Config
	client        *sdkanthropic.Client
	logger        *slog.Logger
	contextWindow int
}

// ModuleInfo implements core.Module.
func (a *Anthropic) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.anthropic",
		New: func() core.Module { return &Anthropic{} },
	}
}

// Configure implements core.Configurable.
func (a *Anthropic) Configure(node *yaml.Node) error {
	if err := node.Decode(&a.config); err != nil {
		return err
	}
	a.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (a *Anthropic) Provision(ctx *core.AppContext) error {
	a.logger = ctx.Logger

	// Resolve API key: config takes precedence over environment variable.
	apiKey := a.config.APIKey
	if apiKey == "" {
		if envKey, ok := os.LookupEnv("ANTHROPIC_API_KEY"); ok {
			apiKey = envKey
		}
	}

	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if a.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.config.BaseURL))
	}
	// Retrying a prose stream would replay already-delivered text, so the
	// SDK-level retries stay off and failures surface to the engine.
	opts = append(opts, option.WithMaxRetries(0))

	client := sdkanthropic.NewClient(opts...)
	a.client = &client

	a.contextWindow = a.config.contextWindowForModel()

	ctx.RegisterService("provider.anthropic", a)
	return nil
}

// Validate implements core.Validator.
func (a *Anthropic) Validate() error {
	if a.config.Model == "" {
		return errors.New("provider.anthropic: model must not be empty")
	}
	if a.client == nil {
		return errors.New("provider.anthropic: client not initialized (Provision not called)")
	}
	return nil
}

// ContextWindowSize implements provider.Provider.
func (a *Anthropic) ContextWindowSize() int {
	return a.contextWindow
}

// ModelName implements provider.Provider.
func (a *Anthropic) ModelName() string {
	return a.config.Model
}
