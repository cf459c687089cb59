package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapmeta/internal/cli/config"
	"github.com/leapstack-labs/leapmeta/internal/cli/output"
	"github.com/leapstack-labs/leapmeta/internal/cli/testutil"
	"github.com/leapstack-labs/leapmeta/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paymentsSchema = `
version: 2
models:
  - name: payments
    columns:
      - name: amount
        meta:
          metabase.semantic_type: type/Currency
`

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeWithStatus(t, args...)
	return out, err
}

// executeWithStatus runs the root command and returns stdout and stderr.
func executeWithStatus(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func runModelsJSON(t *testing.T, dir string, extra ...string) output.ModelsOutput {
	t.Helper()
	args := append([]string{"models", "--project-dir", dir, "-o", "json"}, extra...)
	out, err := execute(t, args...)
	require.NoError(t, err)

	var result output.ModelsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	return result
}

func TestModels_JSON(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	result := runModelsJSON(t, dir)

	require.Len(t, result.Models, 2)
	assert.Equal(t, "CUSTOMERS", result.Models[0].Name)
	assert.Equal(t, "PUBLIC", result.Models[0].Schema)
	assert.Equal(t, "model.shop.customers", result.Models[0].UniqueID)

	orders := result.Models[1]
	col, ok := orders.Column("CUSTOMER_ID")
	require.True(t, ok)
	assert.Equal(t, metadata.StringPtr("type/FK"), col.SemanticType)
	assert.Equal(t, metadata.StringPtr("CUSTOMERS"), col.FKTargetTable)
	assert.Equal(t, metadata.StringPtr("ID"), col.FKTargetField)

	assert.Equal(t, 2, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.ForeignKeys)
	assert.Equal(t, config.SourceYAML, result.Summary.Source)

	require.NotNil(t, result.Run, "scan should be recorded")
	assert.Equal(t, 2, result.Run.Models)
	assert.Nil(t, result.Changes, "first scan has nothing to compare")
	assert.FileExists(t, filepath.Join(dir, ".leapmeta", "history.db"))
}

func TestModels_ReportsChanges(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	runModelsJSON(t, dir)

	testutil.WriteFile(t, filepath.Join(dir, "models", "payments.yml"), paymentsSchema)
	result := runModelsJSON(t, dir)

	require.NotNil(t, result.Changes)
	assert.Equal(t, []string{"model.shop.payments"}, result.Changes.Added)
	assert.Empty(t, result.Changes.Changed)
	assert.Empty(t, result.Changes.Removed)
	assert.Equal(t, []string{"model.shop.customers", "model.shop.orders"}, result.Changes.Unchanged)

	require.NoError(t, os.Remove(filepath.Join(dir, "models", "payments.yml")))
	result = runModelsJSON(t, dir)
	require.NotNil(t, result.Changes)
	assert.Equal(t, []string{"model.shop.payments"}, result.Changes.Removed)
}

func TestModels_NoRecord(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	result := runModelsJSON(t, dir, "--no-record")
	assert.Nil(t, result.Run)
	assert.Nil(t, result.Changes)
	assert.NoFileExists(t, filepath.Join(dir, ".leapmeta", "history.db"))
}

func TestModels_IncludeExclude(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	result := runModelsJSON(t, dir, "--no-record", "--exclude", "customers")
	require.Len(t, result.Models, 1)
	assert.Equal(t, "ORDERS", result.Models[0].Name)

	result = runModelsJSON(t, dir, "--no-record", "--include", "customers,orders", "--exclude", "orders")
	require.Len(t, result.Models, 1)
	assert.Equal(t, "CUSTOMERS", result.Models[0].Name)
}

const analyticsManifest = `{
  "nodes": {
    "model.shop.customers": {
      "unique_id": "model.shop.customers",
      "resource_type": "model",
      "name": "customers",
      "schema": "analytics",
      "description": "One row per customer",
      "columns": {"id": {"name": "id", "description": "", "meta": {"metabase.semantic_type": "type/PK"}}}
    },
    "model.shop.orders": {
      "unique_id": "model.shop.orders",
      "resource_type": "model",
      "name": "orders",
      "schema": "analytics",
      "description": "",
      "columns": {
        "order_id": {"name": "order_id", "description": "", "meta": {}},
        "customer_id": {"name": "customer_id", "description": "", "meta": {}}
      }
    }
  },
  "sources": {}
}`

func TestModels_ManifestOutsideDefaultSchema(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	fromYAML := runModelsJSON(t, dir, "--no-record")
	assert.Equal(t, config.SourceYAML, fromYAML.Summary.Source)

	testutil.WriteFile(t, filepath.Join(dir, "target", "manifest.json"), analyticsManifest)
	fromManifest := runModelsJSON(t, dir, "--no-record")
	assert.Equal(t, config.SourceManifest, fromManifest.Summary.Source)
	require.Len(t, fromManifest.Models, len(fromYAML.Models))
	for i, m := range fromManifest.Models {
		assert.Equal(t, fromYAML.Models[i].UniqueID, m.UniqueID)
		assert.Equal(t, "ANALYTICS", m.Schema)
	}

	// An explicit schema still filters manifest nodes.
	filtered := runModelsJSON(t, dir, "--no-record", "--schema", "staging")
	assert.Empty(t, filtered.Models)
}

func TestModels_Markdown(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	out, err := execute(t, "models", "--project-dir", dir, "-o", "markdown", "--no-record")
	require.NoError(t, err)
	assert.Contains(t, out, "# Models (2 total)")
	assert.Contains(t, out, "## PUBLIC.ORDERS")
	assert.Contains(t, out, "CUSTOMERS.ID")
	testutil.AssertNoANSI(t, out)
}

func TestModels_TextReportsRecordedScan(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	out, status, err := executeWithStatus(t, "models", "--project-dir", dir, "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "First recorded scan")
	assert.Contains(t, status, "✓ Recorded scan ")
	assert.NotContains(t, out, "Recorded scan")

	out, _, err = executeWithStatus(t, "models", "--project-dir", dir, "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "No changes since last scan")
}

func TestModels_InvalidSchemaFile(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	testutil.WriteFile(t, filepath.Join(dir, "models", "broken.yml"), "models:\n  - name: [unclosed\n")

	_, err := execute(t, "models", "--project-dir", dir, "--no-record")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yml")
}

func TestShow(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	out, err := execute(t, "show", "orders", "--project-dir", dir, "-o", "json")
	require.NoError(t, err)

	var m metadata.Model
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "ORDERS", m.Name)
	assert.Len(t, m.Columns, 2)

	_, err = execute(t, "show", "refunds", "--project-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `model "refunds" not found`)
}

func TestHistory(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	out, err := execute(t, "history", "--project-dir", dir, "-o", "json")
	require.NoError(t, err)
	var empty output.HistoryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &empty))
	assert.Empty(t, empty.Runs)

	first := runModelsJSON(t, dir)
	second := runModelsJSON(t, dir)

	out, err = execute(t, "history", "--project-dir", dir, "-o", "json")
	require.NoError(t, err)
	var history output.HistoryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &history))

	assert.Equal(t, dir, history.Project)
	require.Len(t, history.Runs, 2)
	assert.Equal(t, second.Run.ID, history.Runs[0].ID, "newest first")
	assert.Equal(t, first.Run.ID, history.Runs[1].ID)

	out, err = execute(t, "history", "--project-dir", dir, "-o", "json", "--limit", "1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	assert.Len(t, history.Runs, 1)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "leapmeta v"+Version)
}

func TestCompletion(t *testing.T) {
	out, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "leapmeta")
}
