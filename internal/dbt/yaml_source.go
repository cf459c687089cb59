package dbt

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapmeta/internal/metadata"
	"gopkg.in/yaml.v3"
)

// Defaults for YAMLOptions.
const (
	DefaultModelsDir = "models"
	DefaultSchema    = "public"
)

// YAMLOptions configures a YAMLSource.
type YAMLOptions struct {
	ModelsDir   string // relative to the project dir unless absolute
	Schema      string // schema assigned to models
	ProjectName string // overrides the name from dbt_project.yml
}

// YAMLSource reads declarations from the schema files of a dbt project.
type YAMLSource struct {
	projectDir string
	opts       YAMLOptions
	logger     *slog.Logger
}

// NewYAMLSource creates a source for the project rooted at projectDir.
func NewYAMLSource(projectDir string, opts YAMLOptions, logger *slog.Logger) *YAMLSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.ModelsDir == "" {
		opts.ModelsDir = DefaultModelsDir
	}
	if opts.Schema == "" {
		opts.Schema = DefaultSchema
	}
	return &YAMLSource{projectDir: projectDir, opts: opts, logger: logger}
}

// ModelsDir returns the directory walked for schema files.
func (s *YAMLSource) ModelsDir() string {
	if filepath.IsAbs(s.opts.ModelsDir) {
		return s.opts.ModelsDir
	}
	return filepath.Join(s.projectDir, s.opts.ModelsDir)
}

// Declarations walks the models directory in lexical order. Files that are
// empty or not a mapping are logged and skipped.
func (s *YAMLSource) Declarations() ([]Declaration, error) {
	project := s.projectName()

	paths, err := s.schemaFiles()
	if err != nil {
		return nil, err
	}

	var decls []Declaration
	for _, path := range paths {
		s.logger.Info("processing schema file", "path", path)

		schema, err := readSchemaFile(path)
		if errors.Is(err, ErrEmptyDocument) {
			s.logger.Warn("skipping empty or invalid YAML", "path", path)
			continue
		}
		if err != nil {
			return nil, err
		}

		decls = append(decls, s.fileDeclarations(path, project, schema)...)
	}
	return decls, nil
}

// IsSchemaFile reports whether path has a schema file extension.
func IsSchemaFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}

func (s *YAMLSource) schemaFiles() ([]string, error) {
	root := s.ModelsDir()
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsSchemaFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk models directory %s: %w", root, err)
	}
	return paths, nil
}

// readSchemaFile opens, parses and closes one schema file.
func readSchemaFile(path string) (*SchemaFile, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from walking the models dir
	if err != nil {
		return nil, fmt.Errorf("failed to open schema file: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return ParseSchema(path, data)
}

// fileDeclarations lists models first, then source tables.
func (s *YAMLSource) fileDeclarations(path, project string, schema *SchemaFile) []Declaration {
	decls := make([]Declaration, 0, len(schema.Models))
	for i, m := range schema.Models {
		decls = append(decls, Declaration{
			Path:      path,
			Index:     i,
			ModelType: metadata.ModelTypeModel,
			UniqueID:  fmt.Sprintf("model.%s.%s", project, uniqueName(m)),
			Schema:    s.opts.Schema,
			Model:     m,
		})
	}

	for _, src := range schema.Sources {
		srcSchema := src.Schema
		if srcSchema == "" {
			srcSchema = src.Name
		}
		for i, table := range src.Tables {
			decls = append(decls, Declaration{
				Path:       path,
				Index:      i,
				ModelType:  metadata.ModelTypeSource,
				UniqueID:   fmt.Sprintf("source.%s.%s.%s", project, src.Name, uniqueName(table)),
				Schema:     srcSchema,
				SourceName: src.Name,
				Model:      table,
			})
		}
	}
	return decls
}

// uniqueName is the name dbt uses in unique IDs: the declared name, falling
// back to the identifier.
func uniqueName(m ModelDecl) string {
	if m.Name != nil {
		return *m.Name
	}
	return metadata.Deref(m.Identifier)
}

// projectName reads the name from dbt_project.yml, defaulting to the project
// directory name.
func (s *YAMLSource) projectName() string {
	if s.opts.ProjectName != "" {
		return s.opts.ProjectName
	}

	fallback := filepath.Base(s.projectDir)
	if abs, err := filepath.Abs(s.projectDir); err == nil {
		fallback = filepath.Base(abs)
	}

	data, err := os.ReadFile(filepath.Join(s.projectDir, "dbt_project.yml")) //nolint:gosec // G304: fixed file in project dir
	if err != nil {
		return fallback
	}
	var project struct {
		Name string `yaml:"name"`
	}
	if err := yaml.Unmarshal(data, &project); err != nil || project.Name == "" {
		s.logger.Debug("could not read project name", "path", "dbt_project.yml")
		return fallback
	}
	return project.Name
}
