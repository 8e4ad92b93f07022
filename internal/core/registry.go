package core

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// The process-wide module registry. Modules add themselves from init(),
// so the registry is complete once package initialization finishes.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]ModuleInfo)
)

// RegisterModule adds a module to the registry, reading its ModuleInfo
// from a throwaway instance. It panics on an empty ID, a nil constructor,
// or a duplicate registration; all three are programmer errors that
// should surface at startup rather than at first use.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if info.ID == "" {
		panic("module ID must not be empty")
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	id := string(info.ID)
	if _, exists := registry[id]; exists {
		panic(fmt.Sprintf("module already registered: %s", id))
	}
	registry[id] = info
}

// GetModule looks up a module by its full ID, such as "engine.core".
func GetModule(id string) (ModuleInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[id]
	return info, ok
}

// GetModules returns every registered module, sorted by ID.
func GetModules() []ModuleInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return collectModules(func(string) bool { return true })
}

// GetModulesByNamespace returns the modules under one dotted namespace,
// sorted by ID: "provider" matches "provider.anthropic" and
// "provider.openai_compatible" but not a module named "provider" itself.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	prefix := namespace + "."

	registryMu.RLock()
	defer registryMu.RUnlock()
	return collectModules(func(id string) bool {
		return strings.HasPrefix(id, prefix)
	})
}

// collectModules filters the registry by ID. Callers hold registryMu.
func collectModules(keep func(id string) bool) []ModuleInfo {
	out := make([]ModuleInfo, 0, len(registry))
	for id, info := range registry {
		if keep(id) {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]ModuleInfo)
}
