// Package metadata defines the normalized, tool-agnostic table and column
// records produced by a project scan and consumed by catalog sync.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ModelType distinguishes dbt models from source tables.
type ModelType string

// Model types.
const (
	ModelTypeModel  ModelType = "model"
	ModelTypeSource ModelType = "source"
)

// SemanticTypeFK is the semantic type assigned to columns carrying a
// relationships test.
const SemanticTypeFK = "type/FK"

// Column is one normalized column.
// FKTargetTable and FKTargetField are either both set or both nil.
type Column struct {
	Name           string  `json:"name"`
	Description    *string `json:"description"`
	SemanticType   *string `json:"semantic_type"`
	VisibilityType *string `json:"visibility_type"`
	FKTargetTable  *string `json:"fk_target_table"`
	FKTargetField  *string `json:"fk_target_field"`
}

// IsForeignKey reports whether the column references another table.
func (c Column) IsForeignKey() bool {
	return c.FKTargetTable != nil && c.FKTargetField != nil
}

// Model is one normalized table (dbt model or source table).
type Model struct {
	Name        string    `json:"name"`
	Schema      string    `json:"schema"`
	Description *string   `json:"description"`
	Columns     []Column  `json:"columns"`
	ModelType   ModelType `json:"model_type"`
	UniqueID    string    `json:"unique_id"`
	SourceName  string    `json:"source_name,omitempty"`
}

// FullName returns SCHEMA.NAME, or NAME when the schema is unknown.
func (m Model) FullName() string {
	if m.Schema == "" {
		return m.Name
	}
	return m.Schema + "." + m.Name
}

// Column returns the column with the given normalized name.
func (m Model) Column(name string) (Column, bool) {
	for _, c := range m.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Hash returns a stable content hash of the model, used to detect changes
// between scans of the same project.
func (m Model) Hash() string {
	// Field order of the struct is fixed, so the encoding is deterministic.
	data, _ := json.Marshal(m)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Upper applies full Unicode uppercasing (e.g. "ß" becomes "SS").
// A Caser is stateful, so a fresh one is built per call.
func Upper(s string) string {
	return cases.Upper(language.Und).String(s)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// Deref returns the pointed-to string or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
