package config

import (
	"maps"
	"slices"
)

// Resolve returns the configured module IDs in load order. Sorting makes
// startup deterministic instead of following map iteration, so two runs
// of the same quill.yaml always load modules the same way.
func Resolve(cfg *Config) []string {
	return slices.Sorted(maps.Keys(cfg.Modules))
}
