package dbt

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapmeta/internal/metadata"
)

// NormalizeModel converts one declaration into a metadata.Model, normalizing
// its columns in declaration order.
func NormalizeModel(logger *slog.Logger, decl Declaration) (metadata.Model, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	name, err := decl.Name()
	if err != nil {
		return metadata.Model{}, err
	}

	columns := make([]metadata.Column, 0, len(decl.Model.Columns))
	for _, col := range decl.Model.Columns {
		c, err := NormalizeColumn(logger, col)
		if err != nil {
			return metadata.Model{}, fmt.Errorf("%s %q: %w", decl.ModelType, name, err)
		}
		columns = append(columns, c)
	}

	return metadata.Model{
		Name:        metadata.Upper(name),
		Schema:      metadata.Upper(decl.Schema),
		Description: decl.Model.Description,
		Columns:     columns,
		ModelType:   decl.ModelType,
		UniqueID:    decl.UniqueID,
		SourceName:  decl.SourceName,
	}, nil
}
