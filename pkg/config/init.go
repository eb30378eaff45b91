package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `dittovfs Configuration File

Values below are the defaults. Every key can be overridden with an
environment variable: DITTOVFS_<SECTION>_<KEY>, e.g. DITTOVFS_LOGGING_LEVEL.`

// sectionComments documents the top-level keys of the generated file.
var sectionComments = map[string]string{
	"logging":          "Log level (DEBUG, INFO, WARN, ERROR), format (text, json) and output (stdout, stderr, file path)",
	"metrics":          "Prometheus endpoint served at :<port>/metrics when enabled",
	"content":          "Named content stores holding file bodies (types: memory, filesystem, s3)",
	"filesystems":      "Per-type backend options; a section is only read when that type is mounted",
	"mounts":           "Mount table, performed in order. The first entry must target \"/\"",
	"modules":          "Modules loaded into the module registry at boot; listed under /sys/modules",
	"shutdown_timeout": "Maximum time services get to stop",
	"adapters":         "Host exposure. FUSE mounts the tree on a host directory",
}

// InitConfig writes a default configuration file to the default location
// and returns its path. An existing file is only replaced with force.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as YAML with a header and a comment
// above each top-level section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	root.HeadComment = configHeader

	if root.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(root.Content); i += 2 {
			key := root.Content[i]
			if comment, ok := sectionComments[key.Value]; ok {
				key.HeadComment = comment
			}
		}
	}

	out, err := yaml.Marshal(&root)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(out), nil
}
