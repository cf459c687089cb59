package dbt

import "github.com/leapstack-labs/leapmeta/internal/metadata"

// Source supplies model and source-table declarations to the Scanner.
// Declarations are returned in discovery order.
type Source interface {
	Declarations() ([]Declaration, error)
}

// Declaration is one raw model or source table together with where it was
// declared.
type Declaration struct {
	Path       string // file the entry was read from
	Index      int    // position within its models or tables sequence
	ModelType  metadata.ModelType
	UniqueID   string
	Schema     string
	SourceName string
	Model      ModelDecl
}

// Name returns the identifier-or-name of the declared table.
func (d Declaration) Name() (string, error) {
	if name, ok := d.Model.ResolvedName(); ok {
		return name, nil
	}
	return "", &MissingNameError{File: d.Path, ModelType: d.ModelType, Index: d.Index}
}
