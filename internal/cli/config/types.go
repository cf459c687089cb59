// Package config loads leapmeta settings from defaults, leapmeta.yaml,
// LEAPMETA_* environment variables and command-line flags.
package config

// Config holds all CLI configuration options.
type Config struct {
	ProjectDir   string   `koanf:"project_dir"`
	ProjectName  string   `koanf:"project_name"`
	ModelsDir    string   `koanf:"models_dir"`
	ManifestPath string   `koanf:"manifest_path"`
	Source       string   `koanf:"source"`
	Schema       string   `koanf:"schema"`
	Database     string   `koanf:"database"`
	Includes     []string `koanf:"includes"`
	Excludes     []string `koanf:"excludes"`
	StatePath    string   `koanf:"state_path"`
	Verbose      bool     `koanf:"verbose"`
	OutputFormat string   `koanf:"output"`
	Record       bool     `koanf:"record"`

	// SchemaSet is true when schema came from a file, env or flag rather
	// than the default.
	SchemaSet bool `koanf:"-"`
}

// Source kinds.
const (
	SourceAuto     = "auto"     // manifest when one is found, else YAML
	SourceYAML     = "yaml"     // walk schema files under models_dir
	SourceManifest = "manifest" // read a compiled manifest.json
)

// Output formats.
const (
	OutputAuto     = "auto" // TTY=text, otherwise markdown
	OutputText     = "text"
	OutputMarkdown = "markdown"
	OutputJSON     = "json"
)

// Default configuration values.
const (
	DefaultModelsDir = "models"
	DefaultSchema    = "public"
	DefaultStateFile = ".leapmeta/history.db"
	DefaultSource    = SourceAuto
	DefaultOutput    = OutputAuto
)

// configFileNames are tried in order in the project root.
var configFileNames = []string{"leapmeta.yaml", "leapmeta.yml"}

// projectMarkers identify a project root when searching upward.
var projectMarkers = append(append([]string{}, configFileNames...), "dbt_project.yml")
