package provider

import (
	"context"
	"log/slog"
	"sync"
)

// Role describes the purpose a provider serves in the system.
type Role string

// Role constants for provider registration.
const (
	// RoleProse generates the user-facing prose stream.
	RoleProse Role = "prose"

	// RoleSummary condenses document text during token-limit recovery.
	RoleSummary Role = "summary"
)

// Aggregator is a provider-agnostic front for generation calls. It selects
// a registered Provider by role and tracks the in-flight prose generation
// so that Interrupt can abort it. Interrupt is process-wide: it affects
// whichever generation call is currently active, and only that call.
type Aggregator struct {
	mu        sync.Mutex
	providers map[Role]Provider
	inflight  context.CancelFunc
	logger    *slog.Logger
}

// NewAggregator creates an empty Aggregator. A nil logger discards output.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(nopHandler{})
	}
	return &Aggregator{
		providers: make(map[Role]Provider),
		logger:    logger,
	}
}

// Register binds a provider to a role, replacing any previous binding.
func (a *Aggregator) Register(role Role, p Provider) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.providers[role] = p
	a.logger.Info("provider registered", "role", string(role), "model", p.ModelName())
}

// Provider returns the provider bound to the given role.
func (a *Aggregator) Provider(role Role) (Provider, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.providers[role]
	return p, ok
}

// Generate starts a streaming generation on the prose provider. The call
// context is wrapped with a cancel func stored as the current in-flight
// call; starting a new generation cancels the previous one, and Interrupt
// cancels whichever is stored.
func (a *Aggregator) Generate(ctx context.Context, req Request) (<-chan Chunk, error) {
	a.mu.Lock()
	p, ok := a.providers[RoleProse]
	if !ok {
		a.mu.Unlock()
		return nil, ErrNoProvider
	}
	if a.inflight != nil {
		a.inflight()
	}
	genCtx, cancel := context.WithCancel(ctx)
	a.inflight = cancel
	a.mu.Unlock()

	ch, err := p.Generate(genCtx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	return ch, nil
}

// Complete runs a non-streaming generation on the provider bound to role.
// Falls back to the prose provider when no dedicated provider is bound.
// Complete calls are not tracked by Interrupt; cancellation is the
// caller's responsibility via ctx.
func (a *Aggregator) Complete(ctx context.Context, role Role, req Request) (string, error) {
	a.mu.Lock()
	p, ok := a.providers[role]
	if !ok {
		p, ok = a.providers[RoleProse]
	}
	a.mu.Unlock()

	if !ok {
		return "", ErrNoProvider
	}
	return p.Complete(ctx, req)
}

// Interrupt aborts the current in-flight generation, if any. Best-effort:
// the underlying stream observes the cancellation at its next suspension
// point. Safe to call when nothing is in flight.
func (a *Aggregator) Interrupt() {
	a.mu.Lock()
	cancel := a.inflight
	a.inflight = nil
	a.mu.Unlock()

	if cancel != nil {
		a.logger.Debug("interrupting in-flight generation")
		cancel()
	}
}

// ContextWindowSize reports the prose provider's context window,
// or 0 when none is registered.
func (a *Aggregator) ContextWindowSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.providers[RoleProse]; ok {
		return p.ContextWindowSize()
	}
	return 0
}
