package config

import (
	"errors"
	"fmt"

	"github.com/quillworks/quill/internal/core"
)

// requiredModules must appear in every configuration; quill cannot serve
// requests without them.
var requiredModules = []string{"engine.core"}

// Validate checks the structural validity of a Config. It verifies the
// version field, ensures modules are present, checks that all referenced
// module IDs exist in the registry, and that the required core modules
// are configured.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	if len(cfg.Modules) > 0 {
		for _, id := range requiredModules {
			if _, ok := cfg.Modules[id]; !ok {
				errs = append(errs, fmt.Errorf("config: required module %q is not configured", id))
			}
		}
	}

	return errors.Join(errs...)
}
