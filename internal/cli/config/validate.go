package config

import (
	"fmt"
	"os"
	"slices"
)

var (
	validSources = []string{SourceAuto, SourceYAML, SourceManifest}
	validOutputs = []string{OutputAuto, OutputText, OutputMarkdown, OutputJSON}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ModelsDir == "" {
		return fmt.Errorf("models_dir is required")
	}
	if !slices.Contains(validSources, c.Source) {
		return fmt.Errorf("invalid source %q: must be one of %v", c.Source, validSources)
	}
	if !slices.Contains(validOutputs, c.OutputFormat) {
		return fmt.Errorf("invalid output format %q: must be one of %v", c.OutputFormat, validOutputs)
	}
	return nil
}

// ResolvedSource returns the source kind a scan reads from. Auto picks the
// manifest when one is configured and present.
func (c *Config) ResolvedSource() string {
	if c.Source != SourceAuto {
		return c.Source
	}
	if c.ManifestPath != "" {
		if info, err := os.Stat(c.ManifestPath); err == nil && !info.IsDir() {
			return SourceManifest
		}
	}
	return SourceYAML
}

// ValidateDirectories checks that the input of the resolved source exists.
func (c *Config) ValidateDirectories() error {
	if c.ResolvedSource() == SourceManifest {
		if c.ManifestPath == "" {
			return fmt.Errorf("no manifest found in %s\nHint: run `dbt compile` or use --manifest to specify a path", c.ProjectDir)
		}
		if _, err := os.Stat(c.ManifestPath); os.IsNotExist(err) {
			return fmt.Errorf("manifest does not exist: %s\nHint: run `dbt compile` or use --manifest to specify a path", c.ManifestPath)
		}
		return nil
	}
	if _, err := os.Stat(c.ModelsDir); os.IsNotExist(err) {
		return fmt.Errorf("models directory does not exist: %s\nHint: Create the directory or use --models-dir to specify a different path", c.ModelsDir)
	}
	return nil
}

// ManifestSchema is the schema manifest nodes are filtered by. The default
// schema only names YAML models and never filters the manifest.
func (c *Config) ManifestSchema() string {
	if !c.SchemaSet {
		return ""
	}
	return c.Schema
}
