package dbt

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/leapstack-labs/leapmeta/internal/metadata"
	"github.com/leapstack-labs/leapmeta/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// parseColumn decodes a single column declaration from YAML.
func parseColumn(t *testing.T, content string) ColumnDecl {
	t.Helper()
	var col ColumnDecl
	require.NoError(t, yaml.Unmarshal([]byte(content), &col))
	return col
}

func TestNormalizeColumn(t *testing.T) {
	tests := []struct {
		name       string
		yaml       string
		want       metadata.Column
		wantWarned bool
	}{
		{
			name: "plain column",
			yaml: `
name: order_id
description: Primary key
tests: [unique, not_null]
`,
			want: metadata.Column{
				Name:        "ORDER_ID",
				Description: metadata.StringPtr("Primary key"),
			},
		},
		{
			name: "missing name",
			yaml: `description: anonymous`,
			want: metadata.Column{
				Name:        "",
				Description: metadata.StringPtr("anonymous"),
			},
		},
		{
			name: "relationship with ref",
			yaml: `
name: customer_id
tests:
  - relationships:
      to: ref('orders')
      field: customer_id
`,
			want: metadata.Column{
				Name:          "CUSTOMER_ID",
				SemanticType:  metadata.StringPtr("type/FK"),
				FKTargetTable: metadata.StringPtr("ORDERS"),
				FKTargetField: metadata.StringPtr("CUSTOMER_ID"),
			},
		},
		{
			name: "relationship with literal table",
			yaml: `
name: customer_id
tests:
  - not_null
  - relationships:
      to: analytics.customers
      field: id
`,
			want: metadata.Column{
				Name:          "CUSTOMER_ID",
				SemanticType:  metadata.StringPtr("type/FK"),
				FKTargetTable: metadata.StringPtr("ANALYTICS.CUSTOMERS"),
				FKTargetField: metadata.StringPtr("ID"),
			},
		},
		{
			name: "fk_ref overrides to expression",
			yaml: `
name: customer_id
meta:
  metabase.fk_ref: public.dim_customers
tests:
  - relationships:
      to: ref('customers')
      field: id
`,
			want: metadata.Column{
				Name:          "CUSTOMER_ID",
				SemanticType:  metadata.StringPtr("type/FK"),
				FKTargetTable: metadata.StringPtr("PUBLIC.DIM_CUSTOMERS"),
				FKTargetField: metadata.StringPtr("ID"),
			},
		},
		{
			name: "fk_ref without relationship test is ignored",
			yaml: `
name: customer_id
meta:
  metabase.fk_ref: customers
`,
			want: metadata.Column{Name: "CUSTOMER_ID"},
		},
		{
			name: "annotation overrides detected semantic type",
			yaml: `
name: customer_id
meta:
  metabase.semantic_type: type/Category
  metabase.visibility_type: sensitive
tests:
  - relationships:
      to: ref('customers')
      field: id
`,
			want: metadata.Column{
				Name:           "CUSTOMER_ID",
				SemanticType:   metadata.StringPtr("type/Category"),
				VisibilityType: metadata.StringPtr("sensitive"),
				FKTargetTable:  metadata.StringPtr("CUSTOMERS"),
				FKTargetField:  metadata.StringPtr("ID"),
			},
		},
		{
			name: "deprecated alias alone",
			yaml: `
name: status
meta:
  metabase.special_type: type/Category
`,
			want: metadata.Column{
				Name:         "STATUS",
				SemanticType: metadata.StringPtr("type/Category"),
			},
			wantWarned: true,
		},
		{
			name: "deprecated alias loses to detected type",
			yaml: `
name: customer_id
meta:
  metabase.special_type: type/Category
tests:
  - relationships:
      to: ref('customers')
      field: id
`,
			want: metadata.Column{
				Name:          "CUSTOMER_ID",
				SemanticType:  metadata.StringPtr("type/FK"),
				FKTargetTable: metadata.StringPtr("CUSTOMERS"),
				FKTargetField: metadata.StringPtr("ID"),
			},
			wantWarned: true,
		},
		{
			name: "deprecated alias loses to semantic_type annotation",
			yaml: `
name: amount
meta:
  metabase.semantic_type: type/Currency
  metabase.special_type: type/Number
`,
			want: metadata.Column{
				Name:         "AMOUNT",
				SemanticType: metadata.StringPtr("type/Currency"),
			},
			wantWarned: true,
		},
		{
			name: "unknown meta keys are ignored",
			yaml: `
name: email
meta:
  owner: data-team
  metabase.display_name: E-mail
`,
			want: metadata.Column{Name: "EMAIL"},
		},
		{
			name: "first relationship test wins",
			yaml: `
name: customer_id
tests:
  - relationships:
      to: ref('customers')
      field: id
  - relationships:
      to: ref('legacy_customers')
      field: legacy_id
`,
			want: metadata.Column{
				Name:          "CUSTOMER_ID",
				SemanticType:  metadata.StringPtr("type/FK"),
				FKTargetTable: metadata.StringPtr("CUSTOMERS"),
				FKTargetField: metadata.StringPtr("ID"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, logger := testutil.NewRecorder()

			got, err := NormalizeColumn(logger, parseColumn(t, tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			warnings := rec.AtLevel(slog.LevelWarn)
			if tt.wantWarned {
				require.Len(t, warnings, 1)
				assert.Contains(t, warnings[0].Message, "metabase.special_type is deprecated")
			} else {
				assert.Empty(t, warnings)
			}
		})
	}
}

func TestNormalizeColumn_FKFieldsSetTogether(t *testing.T) {
	cols := []string{
		`{name: a}`,
		`{name: b, tests: [unique]}`,
		`{name: c, tests: [{relationships: {to: "ref('x')", field: id}}]}`,
		`{name: d, meta: {metabase.semantic_type: type/PK}}`,
	}

	for _, c := range cols {
		got, err := NormalizeColumn(nil, parseColumn(t, c))
		require.NoError(t, err)
		assert.Equal(t, got.FKTargetTable == nil, got.FKTargetField == nil, c)
	}
}

func TestNormalizeColumn_MalformedRelationship(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantMissing string
	}{
		{
			name: "missing to",
			yaml: `
name: customer_id
tests:
  - relationships:
      field: id
`,
			wantMissing: "to",
		},
		{
			name: "missing field",
			yaml: `
name: customer_id
tests:
  - relationships:
      to: ref('customers')
`,
			wantMissing: "field",
		},
		{
			name: "empty payload",
			yaml: `
name: customer_id
tests:
  - relationships:
`,
			wantMissing: "to",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeColumn(nil, parseColumn(t, tt.yaml))
			require.Error(t, err)

			var relErr *RelationshipError
			require.True(t, errors.As(err, &relErr))
			assert.Equal(t, "customer_id", relErr.Column)
			assert.Equal(t, tt.wantMissing, relErr.Missing)
		})
	}
}

func TestNormalizeColumn_InvalidAnnotation(t *testing.T) {
	col := parseColumn(t, `
name: status
meta:
  metabase.semantic_type:
    nested: value
`)
	_, err := NormalizeColumn(nil, col)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "status"`)
}

func TestNormalizeColumn_LogsEachColumn(t *testing.T) {
	rec, logger := testutil.NewRecorder()

	_, err := NormalizeColumn(logger, ColumnDecl{Name: "id"})
	require.NoError(t, err)

	infos := rec.AtLevel(slog.LevelInfo)
	require.Len(t, infos, 1)
	assert.Equal(t, "ID", infos[0].Attrs["name"])
}

func TestDecodeAnnotations(t *testing.T) {
	a, err := DecodeAnnotations(map[string]any{
		MetaSemanticType:   "type/Name",
		MetaVisibilityType: "details-only",
		MetaFKRef:          "customers",
		"other":            42,
	})
	require.NoError(t, err)
	assert.Equal(t, "type/Name", *a.SemanticType)
	assert.Equal(t, "details-only", *a.VisibilityType)
	assert.Equal(t, "customers", *a.FKRef)
	assert.Nil(t, a.SpecialType)
	assert.False(t, a.HasDeprecated())

	a, err = DecodeAnnotations(map[string]any{MetaSpecialType: "type/Category", MetaSemanticType: nil})
	require.NoError(t, err)
	assert.True(t, a.HasDeprecated())
	assert.Nil(t, a.SemanticType)

	a, err = DecodeAnnotations(nil)
	require.NoError(t, err)
	assert.Equal(t, Annotations{}, a)
}

func TestDecodeAnnotations_KeysMatchExactly(t *testing.T) {
	a, err := DecodeAnnotations(map[string]any{
		"Metabase.Semantic_Type":   "type/X",
		"METABASE.VISIBILITY_TYPE": "sensitive",
	})
	require.NoError(t, err)
	assert.Equal(t, Annotations{}, a)
}

func TestDecodeAnnotations_ScalarValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "string", value: "normal", want: "normal"},
		{name: "true", value: true, want: "true"},
		{name: "false", value: false, want: "false"},
		{name: "int", value: 42, want: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := DecodeAnnotations(map[string]any{MetaVisibilityType: tt.value})
			require.NoError(t, err)
			require.NotNil(t, a.VisibilityType)
			assert.Equal(t, tt.want, *a.VisibilityType)
		})
	}
}

func TestResolveSemanticType(t *testing.T) {
	fk := metadata.StringPtr(metadata.SemanticTypeFK)
	annotated := metadata.StringPtr("type/Category")
	deprecated := metadata.StringPtr("type/Number")

	assert.Nil(t, resolveSemanticType(nil, Annotations{}))
	assert.Equal(t, fk, resolveSemanticType(fk, Annotations{}))
	assert.Equal(t, annotated, resolveSemanticType(fk, Annotations{SemanticType: annotated}))
	assert.Equal(t, fk, resolveSemanticType(fk, Annotations{SpecialType: deprecated}))
	assert.Equal(t, deprecated, resolveSemanticType(nil, Annotations{SpecialType: deprecated}))
	assert.Equal(t, annotated, resolveSemanticType(nil, Annotations{SemanticType: annotated, SpecialType: deprecated}))
}
