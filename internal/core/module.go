package core

// ModuleID uniquely identifies a module, namespaced with dots
// (e.g. "provider.anthropic", "gateway.http").
type ModuleID string

// ModuleInfo describes a registered module: its ID and a constructor
// returning a fresh, unconfigured instance.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is the minimal interface every module implements. Optional
// lifecycle behavior is added by implementing the interfaces in
// lifecycle.go (Configurable, Provisioner, Validator, Starter, Stopper).
type Module interface {
	ModuleInfo() ModuleInfo
}
