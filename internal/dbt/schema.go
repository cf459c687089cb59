package dbt

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// SchemaFile is one schema YAML document (models/**/*.yml).
type SchemaFile struct {
	Version int          `yaml:"version"`
	Models  []ModelDecl  `yaml:"models"`
	Sources []SourceDecl `yaml:"sources"`
}

// SourceDecl is one entry of the sources sequence.
type SourceDecl struct {
	Name        string      `yaml:"name"`
	Schema      string      `yaml:"schema"`
	Database    string      `yaml:"database"`
	Description *string     `yaml:"description"`
	Tables      []ModelDecl `yaml:"tables"`
}

// ModelDecl is a model or source table declaration.
type ModelDecl struct {
	Name        *string      `yaml:"name"`
	Identifier  *string      `yaml:"identifier"`
	Description *string      `yaml:"description"`
	Columns     []ColumnDecl `yaml:"columns"`
}

// ResolvedName returns the identifier if set, else the name.
// ok is false when neither is present.
func (m ModelDecl) ResolvedName() (name string, ok bool) {
	if m.Identifier != nil {
		return *m.Identifier, true
	}
	if m.Name != nil {
		return *m.Name, true
	}
	return "", false
}

// ColumnDecl is one column of a model or source table.
type ColumnDecl struct {
	Name        string         `yaml:"name"`
	Description *string        `yaml:"description"`
	Tests       []TestDecl     `yaml:"tests"`
	Meta        map[string]any `yaml:"meta"`
}

// TestDecl is a column test: a bare label such as "unique", or a mapping such
// as {relationships: {to: ref('x'), field: id}}.
type TestDecl struct {
	Name          string
	Relationships *RelationshipTest
}

// RelationshipTest is the payload of a relationships test.
type RelationshipTest struct {
	To    *string `yaml:"to"`
	Field *string `yaml:"field"`
}

// UnmarshalYAML accepts both the scalar and the mapping test forms.
func (t *TestDecl) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		t.Name = value.Value
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			key, val := value.Content[i], value.Content[i+1]
			if t.Name == "" {
				t.Name = key.Value
			}
			if key.Value != "relationships" {
				continue
			}
			rel := &RelationshipTest{}
			if err := val.Decode(rel); err != nil {
				return err
			}
			t.Name = key.Value
			t.Relationships = rel
			return nil
		}
		return nil
	default:
		return fmt.Errorf("line %d: test must be a name or a mapping", value.Line)
	}
}

// ParseSchema decodes one schema document. It returns ErrEmptyDocument for
// empty, null, or non-mapping documents and a *ParseError for invalid YAML or
// shape violations.
func ParseSchema(file string, data []byte) (*SchemaFile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, newParseError(file, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, ErrEmptyDocument
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, ErrEmptyDocument
	}

	var schema SchemaFile
	if err := root.Decode(&schema); err != nil {
		return nil, newParseError(file, err)
	}
	return &schema, nil
}
