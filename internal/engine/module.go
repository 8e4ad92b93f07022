package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quillworks/quill/internal/core"
	"github.com/quillworks/quill/internal/provider"
	"github.com/quillworks/quill/internal/store"
)

func init() {
	core.RegisterModule(&Module{})
}

// Module wires the generation engine into the module system. It owns the
// provider aggregator and the Engine, and binds providers and the summary
// store at Start, after every module has been provisioned.
type Module struct {
	config ModuleConfig
	appCtx *core.AppContext
	logger *slog.Logger

	agg    *provider.Aggregator
	engine *Engine
}

// ModuleConfig is the engine.core YAML block.
type ModuleConfig struct {
	// Providers names the provider modules serving each role, by module
	// ID. Prose is required; summary falls back to prose when unset.
	Providers struct {
		Prose   string `yaml:"prose"`
		Summary string `yaml:"summary"`
	} `yaml:"providers"`

	Recovery struct {
		// SummaryTimeout bounds the automatic summarize call.
		SummaryTimeout time.Duration `yaml:"summary_timeout"`
	} `yaml:"recovery"`
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "engine.core",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	return node.Decode(&m.config)
}

// Provision implements core.Provisioner. The Engine is created here and
// published for the gateway; providers are attached at Start.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger

	m.agg = provider.NewAggregator(m.logger)
	m.engine = New(Options{
		Generator:      m.agg,
		Summarizer:     NewProviderSummarizer(m.agg),
		Logger:         m.logger,
		SummaryTimeout: m.config.Recovery.SummaryTimeout,
	})

	ctx.RegisterService("engine.core", m.engine)
	ctx.RegisterService("provider.aggregator", m.agg)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.Providers.Prose == "" {
		return errors.New("engine: providers.prose is required")
	}
	return nil
}

// Start implements core.Starter. It binds the configured providers and
// the summary store from the service registry.
func (m *Module) Start() error {
	prose, err := m.resolveProvider(m.config.Providers.Prose)
	if err != nil {
		return err
	}
	m.agg.Register(provider.RoleProse, prose)

	if id := m.config.Providers.Summary; id != "" && id != m.config.Providers.Prose {
		summary, err := m.resolveProvider(id)
		if err != nil {
			return err
		}
		m.agg.Register(provider.RoleSummary, summary)
	}

	if svc, ok := m.appCtx.Service("store.summaries"); ok {
		if s, ok := svc.(store.SummaryStore); ok {
			m.engine.SetSummaryStore(s)
		}
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	m.engine.Close()
	return nil
}

func (m *Module) resolveProvider(id string) (provider.Provider, error) {
	svc, ok := m.appCtx.Service(id)
	if !ok {
		return nil, fmt.Errorf("engine: provider service %q not found", id)
	}
	p, ok := svc.(provider.Provider)
	if !ok {
		return nil, fmt.Errorf("engine: service %q is not a provider", id)
	}
	return p, nil
}

// Interface guards.
var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)
