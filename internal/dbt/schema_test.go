package dbt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchema_ModelsAndSources(t *testing.T) {
	content := `
version: 2
models:
  - name: customers
    identifier: dim_customers
    description: One row per customer
    columns:
      - name: customer_id
        tests:
          - unique
          - not_null
      - name: region
        meta:
          metabase.semantic_type: type/Category
sources:
  - name: raw
    schema: landing
    tables:
      - name: payments
        columns:
          - name: order_id
            tests:
              - relationships:
                  to: ref('orders')
                  field: order_id
`
	schema, err := ParseSchema("schema.yml", []byte(content))
	require.NoError(t, err)

	require.Len(t, schema.Models, 1)
	model := schema.Models[0]
	name, ok := model.ResolvedName()
	assert.True(t, ok)
	assert.Equal(t, "dim_customers", name)
	require.NotNil(t, model.Description)
	assert.Equal(t, "One row per customer", *model.Description)

	require.Len(t, model.Columns, 2)
	assert.Equal(t, []TestDecl{{Name: "unique"}, {Name: "not_null"}}, model.Columns[0].Tests)
	assert.Nil(t, model.Columns[0].Description)
	assert.Equal(t, "type/Category", model.Columns[1].Meta["metabase.semantic_type"])

	require.Len(t, schema.Sources, 1)
	src := schema.Sources[0]
	assert.Equal(t, "raw", src.Name)
	assert.Equal(t, "landing", src.Schema)
	require.Len(t, src.Tables, 1)

	tests := src.Tables[0].Columns[0].Tests
	require.Len(t, tests, 1)
	assert.Equal(t, "relationships", tests[0].Name)
	require.NotNil(t, tests[0].Relationships)
	assert.Equal(t, "ref('orders')", *tests[0].Relationships.To)
	assert.Equal(t, "order_id", *tests[0].Relationships.Field)
}

func TestParseSchema_TestForms(t *testing.T) {
	content := `
models:
  - name: orders
    columns:
      - name: status
        tests:
          - accepted_values:
              values: [placed, shipped]
          - relationships:
              to: customers
      - name: amount
        tests:
          - relationships:
`
	schema, err := ParseSchema("schema.yml", []byte(content))
	require.NoError(t, err)

	status := schema.Models[0].Columns[0]
	require.Len(t, status.Tests, 2)
	assert.Equal(t, "accepted_values", status.Tests[0].Name)
	assert.Nil(t, status.Tests[0].Relationships)
	require.NotNil(t, status.Tests[1].Relationships)
	assert.Equal(t, "customers", *status.Tests[1].Relationships.To)
	assert.Nil(t, status.Tests[1].Relationships.Field)

	amount := schema.Models[0].Columns[1]
	require.Len(t, amount.Tests, 1)
	require.NotNil(t, amount.Tests[0].Relationships)
	assert.Nil(t, amount.Tests[0].Relationships.To)
}

func TestParseSchema_EmptyDocuments(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty file", content: ""},
		{name: "whitespace", content: "\n\n"},
		{name: "comment only", content: "# nothing here\n"},
		{name: "explicit null", content: "null\n"},
		{name: "sequence", content: "- a\n- b\n"},
		{name: "scalar", content: "just text\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchema("x.yml", []byte(tt.content))
			assert.ErrorIs(t, err, ErrEmptyDocument)
		})
	}
}

func TestParseSchema_ShapeViolation(t *testing.T) {
	content := `
models:
  - name: orders
    columns:
      customer_id: not-a-list
`
	_, err := ParseSchema("models/orders.yml", []byte(content))
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "models/orders.yml", parseErr.File)
	assert.Equal(t, 5, parseErr.Line)
	assert.Contains(t, err.Error(), "models/orders.yml:5")
}

func TestParseSchema_InvalidYAML(t *testing.T) {
	_, err := ParseSchema("bad.yml", []byte("models:\n  - name: [unclosed\n"))
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "bad.yml", parseErr.File)
	assert.NotErrorIs(t, err, ErrEmptyDocument)
}

func TestModelDecl_ResolvedName(t *testing.T) {
	name, ident := "customers", "dim_customers"

	got, ok := ModelDecl{Name: &name, Identifier: &ident}.ResolvedName()
	assert.True(t, ok)
	assert.Equal(t, "dim_customers", got)

	got, ok = ModelDecl{Name: &name}.ResolvedName()
	assert.True(t, ok)
	assert.Equal(t, "customers", got)

	got, ok = ModelDecl{Identifier: &ident}.ResolvedName()
	assert.True(t, ok)
	assert.Equal(t, "dim_customers", got)

	_, ok = ModelDecl{}.ResolvedName()
	assert.False(t, ok)
}
