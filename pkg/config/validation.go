package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate = validator.New()

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization happens in ApplyDefaults; validation accepts
// either case.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules performs validation that tags cannot express.
func validateCustomRules(cfg *Config) error {
	if len(cfg.Mounts) == 0 {
		return fmt.Errorf("mounts: at least the root mount must be configured")
	}
	if cfg.Mounts[0].Target != "/" {
		return fmt.Errorf("mounts[0]: the first mount must target \"/\", got %q", cfg.Mounts[0].Target)
	}

	targets := make(map[string]bool)
	usesBadgerfs := false
	for i, m := range cfg.Mounts {
		if targets[m.Target] {
			return fmt.Errorf("mounts[%d]: duplicate target %q", i, m.Target)
		}
		targets[m.Target] = true
		if m.FSType == "badgerfs" {
			usesBadgerfs = true
		}
	}

	if usesBadgerfs {
		if _, ok := cfg.Content.Stores[cfg.Filesystems.Badgerfs.ContentStore]; !ok {
			return fmt.Errorf("filesystems.badgerfs: content_store %q is not defined in content.stores",
				cfg.Filesystems.Badgerfs.ContentStore)
		}
	}

	modules := make(map[string]bool)
	for i, name := range cfg.Modules {
		if modules[name] {
			return fmt.Errorf("modules[%d]: duplicate module %q", i, name)
		}
		modules[name] = true
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
