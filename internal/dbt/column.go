package dbt

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapmeta/internal/metadata"
)

// fkTarget is the referenced table and field of a relationships test.
type fkTarget struct {
	table string
	field string
}

// NormalizeColumn converts one column declaration into a metadata.Column.
//
// The first relationships test marks the column as a foreign key. Column
// annotations then override the detected semantic type; the deprecated
// special_type annotation only applies when nothing else set one.
func NormalizeColumn(logger *slog.Logger, col ColumnDecl) (metadata.Column, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	out := metadata.Column{
		Name:        metadata.Upper(col.Name),
		Description: col.Description,
	}

	annotations, err := DecodeAnnotations(col.Meta)
	if err != nil {
		return metadata.Column{}, fmt.Errorf("column %q: %w", col.Name, err)
	}

	fk, err := detectForeignKey(logger, col, annotations)
	if err != nil {
		return metadata.Column{}, err
	}

	var detected *string
	if fk != nil {
		detected = metadata.StringPtr(metadata.SemanticTypeFK)
		out.FKTargetTable = metadata.StringPtr(metadata.Upper(fk.table))
		out.FKTargetField = metadata.StringPtr(metadata.Upper(fk.field))
	}

	if annotations.HasDeprecated() {
		logger.Warn("DEPRECATION: metabase.special_type is deprecated and will be removed, use metabase.semantic_type instead",
			"column", col.Name)
	}

	out.SemanticType = resolveSemanticType(detected, annotations)
	out.VisibilityType = annotations.VisibilityType

	logger.Info("column", "name", out.Name,
		"semantic_type", metadata.Deref(out.SemanticType),
		"fk_target_table", metadata.Deref(out.FKTargetTable))

	return out, nil
}

// detectForeignKey returns the target of the first relationships test, or nil
// when the column has none.
func detectForeignKey(logger *slog.Logger, col ColumnDecl, a Annotations) (*fkTarget, error) {
	var found *fkTarget
	for _, test := range col.Tests {
		rel := test.Relationships
		if rel == nil {
			continue
		}
		if found != nil {
			logger.Debug("ignoring additional relationships test", "column", col.Name)
			continue
		}
		if rel.To == nil {
			return nil, &RelationshipError{Column: col.Name, Missing: "to"}
		}
		if rel.Field == nil {
			return nil, &RelationshipError{Column: col.Name, Missing: "field"}
		}
		found = &fkTarget{
			table: resolveFKTarget(*rel.To, a),
			field: *rel.Field,
		}
	}
	return found, nil
}
