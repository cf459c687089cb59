// Package dbt extracts table and column metadata from a dbt project.
//
// Declarations come from a Source: either the schema YAML files under the
// project's models directory (YAMLSource) or a compiled manifest.json
// (ManifestSource). The Scanner filters declarations by name and normalizes
// each one into a metadata.Model:
//
//	src := dbt.NewYAMLSource("path/to/project", dbt.YAMLOptions{}, logger)
//	models, err := dbt.NewScanner(src, logger).Scan(dbt.Filter{Excludes: []string{"stg_events"}})
//
// Column normalization detects foreign keys from relationships tests, resolves
// ref() expressions, and applies metabase.* annotations from column meta.
package dbt
