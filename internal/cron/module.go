package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quillworks/quill/internal/core"
	"github.com/quillworks/quill/internal/store"
)

func init() {
	core.RegisterModule(&Module{})
}

const defaultSummaryMaxAge = 7 * 24 * time.Hour

// Module runs the background scheduler. It registers the summary prune
// job against the store module's summary cache.
type Module struct {
	config    ModuleConfig
	appCtx    *core.AppContext
	logger    *slog.Logger
	scheduler *Scheduler
}

// ModuleConfig is the cron.jobs YAML block.
type ModuleConfig struct {
	SummaryPrune struct {
		// Schedule overrides the job's cron expression.
		Schedule string `yaml:"schedule"`

		// MaxAge is how long an untouched summary survives.
		MaxAge time.Duration `yaml:"max_age"`
	} `yaml:"summary_prune"`
}

func (c *ModuleConfig) defaults() {
	if c.SummaryPrune.MaxAge <= 0 {
		c.SummaryPrune.MaxAge = defaultSummaryMaxAge
	}
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "cron.jobs",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("cron: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.scheduler = NewScheduler(m.logger)
	return nil
}

// Start implements core.Starter. The prune job is registered only when
// the store module is loaded; a storeless deployment simply runs no jobs.
func (m *Module) Start() error {
	if svc, ok := m.appCtx.Service("store.summaries"); ok {
		if summaries, ok := svc.(store.SummaryStore); ok {
			job := &SummaryPruneJob{
				Store:        summaries,
				MaxAge:       m.config.SummaryPrune.MaxAge,
				Logger:       m.logger,
				ScheduleExpr: m.config.SummaryPrune.Schedule,
			}
			if err := m.scheduler.RegisterJob(job); err != nil {
				return err
			}
		}
	}
	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// Interface guards.
var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)
