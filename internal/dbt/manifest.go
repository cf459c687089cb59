package dbt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapmeta/internal/metadata"
)

// DefaultManifestPath is where dbt writes the compiled manifest.
const DefaultManifestPath = "target/manifest.json"

// ManifestOptions configures a ManifestSource.
type ManifestOptions struct {
	Database string // only nodes in this database, if set
	Schema   string // only nodes in this schema, if set
}

// ManifestSource reads declarations from a compiled dbt manifest.json.
type ManifestSource struct {
	path   string
	opts   ManifestOptions
	logger *slog.Logger
}

// NewManifestSource creates a source for the manifest at path.
func NewManifestSource(path string, opts ManifestOptions, logger *slog.Logger) *ManifestSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ManifestSource{path: path, opts: opts, logger: logger}
}

// FindManifest returns the default manifest path under projectDir when it
// exists.
func FindManifest(projectDir string) (string, bool) {
	path := filepath.Join(projectDir, DefaultManifestPath)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, true
	}
	return "", false
}

type manifestFile struct {
	Nodes   ordered[manifestNode] `json:"nodes"`
	Sources ordered[manifestNode] `json:"sources"`
}

type manifestNode struct {
	UniqueID     string                  `json:"unique_id"`
	ResourceType string                  `json:"resource_type"`
	Name         string                  `json:"name"`
	Alias        *string                 `json:"alias"`
	Identifier   *string                 `json:"identifier"`
	SourceName   string                  `json:"source_name"`
	Database     string                  `json:"database"`
	Schema       string                  `json:"schema"`
	Description  string                  `json:"description"`
	Columns      ordered[manifestColumn] `json:"columns"`
	DependsOn    struct {
		Nodes []string `json:"nodes"`
	} `json:"depends_on"`
	TestMetadata *struct {
		Name   string         `json:"name"`
		Kwargs map[string]any `json:"kwargs"`
	} `json:"test_metadata"`
	AttachedNode *string `json:"attached_node"`
	ColumnName   *string `json:"column_name"`
}

type manifestColumn struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Meta        map[string]any `json:"meta"`
}

// physicalName is the relation name of a node in the warehouse.
func (n manifestNode) physicalName() string {
	if n.Alias != nil && *n.Alias != "" {
		return *n.Alias
	}
	if n.Identifier != nil && *n.Identifier != "" {
		return *n.Identifier
	}
	return n.Name
}

// ordered decodes a JSON object into its values, keeping key order.
type ordered[T any] []T

func (o *ordered[T]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return err
		}
		var v T
		if err := dec.Decode(&v); err != nil {
			return err
		}
		*o = append(*o, v)
	}
	_, err = dec.Token()
	return err
}

// Declarations returns model nodes, then sources, in manifest order.
// Relationships tests are attached to the columns they test.
func (s *ManifestSource) Declarations() ([]Declaration, error) {
	s.logger.Info("processing manifest", "path", s.path)

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest manifestFile
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, &ParseError{File: s.path, Message: err.Error()}
	}

	byID := make(map[string]manifestNode, len(manifest.Nodes)+len(manifest.Sources))
	for _, n := range manifest.Nodes {
		byID[n.UniqueID] = n
	}
	for _, n := range manifest.Sources {
		byID[n.UniqueID] = n
	}
	tests := s.relationshipTests(manifest.Nodes, byID)

	var decls []Declaration
	candidates := 0
	for _, n := range manifest.Nodes {
		if n.ResourceType != "model" {
			continue
		}
		candidates++
		if !s.selected(n) {
			continue
		}
		decls = append(decls, s.declaration(n, metadata.ModelTypeModel, len(decls), tests[n.UniqueID]))
	}
	modelCount := len(decls)
	for _, n := range manifest.Sources {
		candidates++
		if !s.selected(n) {
			continue
		}
		decls = append(decls, s.declaration(n, metadata.ModelTypeSource, len(decls)-modelCount, tests[n.UniqueID]))
	}

	if len(decls) == 0 && candidates > 0 {
		s.logger.Warn("manifest filters matched no nodes",
			"path", s.path, "nodes", candidates, "database", s.opts.Database, "schema", s.opts.Schema)
	}
	return decls, nil
}

func (s *ManifestSource) selected(n manifestNode) bool {
	if s.opts.Database != "" && !strings.EqualFold(s.opts.Database, n.Database) {
		return false
	}
	if s.opts.Schema != "" && !strings.EqualFold(s.opts.Schema, n.Schema) {
		return false
	}
	return true
}

// columnTests maps a lowercase column name to its tests.
type columnTests map[string][]TestDecl

func (s *ManifestSource) declaration(n manifestNode, mt metadata.ModelType, index int, tests columnTests) Declaration {
	name := n.Name
	identifier := n.physicalName()

	columns := make([]ColumnDecl, 0, len(n.Columns))
	for _, c := range n.Columns {
		columns = append(columns, ColumnDecl{
			Name:        c.Name,
			Description: optional(c.Description),
			Tests:       tests[strings.ToLower(c.Name)],
			Meta:        c.Meta,
		})
	}

	return Declaration{
		Path:       s.path,
		Index:      index,
		ModelType:  mt,
		UniqueID:   n.UniqueID,
		Schema:     n.Schema,
		SourceName: n.SourceName,
		Model: ModelDecl{
			Name:        &name,
			Identifier:  &identifier,
			Description: optional(n.Description),
			Columns:     columns,
		},
	}
}

// relationshipTests groups relationships tests by the node and column they
// are attached to.
func (s *ManifestSource) relationshipTests(nodes []manifestNode, byID map[string]manifestNode) map[string]columnTests {
	out := make(map[string]columnTests)
	for _, n := range nodes {
		if n.ResourceType != "test" || n.TestMetadata == nil || n.TestMetadata.Name != "relationships" {
			continue
		}
		kwargs := n.TestMetadata.Kwargs

		column := kwargString(kwargs, "column_name")
		if column == "" && n.ColumnName != nil {
			column = *n.ColumnName
		}
		to := kwargString(kwargs, "to")
		targetName := ParseRef(to)

		attached := s.attachedNode(n, byID, targetName, kwargString(kwargs, "model"))
		if attached == "" || column == "" {
			s.logger.Debug("relationships test not attached", "test", n.UniqueID)
			continue
		}

		rel := &RelationshipTest{}
		if _, ok := kwargs["to"]; ok {
			resolved := to
			if target, ok := relationshipTarget(n, byID, targetName, attached); ok {
				resolved = target.physicalName()
			}
			rel.To = &resolved
		}
		if field, ok := kwargs["field"]; ok && field != nil {
			f := fmt.Sprint(field)
			rel.Field = &f
		}

		if out[attached] == nil {
			out[attached] = make(columnTests)
		}
		key := strings.ToLower(column)
		out[attached][key] = append(out[attached][key], TestDecl{Name: "relationships", Relationships: rel})
	}
	return out
}

// attachedNode returns the unique ID of the node a test belongs to.
func (s *ManifestSource) attachedNode(test manifestNode, byID map[string]manifestNode, targetName, modelExpr string) string {
	if test.AttachedNode != nil && *test.AttachedNode != "" {
		return *test.AttachedNode
	}
	if modelExpr != "" {
		modelName := ParseRef(modelExpr)
		for _, dep := range test.DependsOn.Nodes {
			if n, ok := byID[dep]; ok && n.Name == modelName {
				return dep
			}
		}
	}
	for _, dep := range test.DependsOn.Nodes {
		if n, ok := byID[dep]; ok && n.Name != targetName {
			return dep
		}
	}
	return ""
}

// relationshipTarget finds the node referenced by a test's to expression:
// the dependency with the referenced name, else the one dependency that is
// not the tested node (as for source() targets).
func relationshipTarget(test manifestNode, byID map[string]manifestNode, targetName, attached string) (manifestNode, bool) {
	for _, dep := range test.DependsOn.Nodes {
		if n, ok := byID[dep]; ok && n.Name == targetName {
			return n, true
		}
	}
	var others []manifestNode
	for _, dep := range test.DependsOn.Nodes {
		if n, ok := byID[dep]; ok && dep != attached {
			others = append(others, n)
		}
	}
	if len(others) == 1 {
		return others[0], true
	}
	return manifestNode{}, false
}

func kwargString(kwargs map[string]any, key string) string {
	v, ok := kwargs[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// optional maps dbt's empty description to nil.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
