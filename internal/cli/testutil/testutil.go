// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

// ShopSchema declares two models joined by a relationships test.
const ShopSchema = `
version: 2
models:
  - name: customers
    description: One row per customer
    columns:
      - name: id
        meta:
          metabase.semantic_type: type/PK
  - name: orders
    columns:
      - name: order_id
      - name: customer_id
        tests:
          - relationships:
              to: ref('customers')
              field: id
`

// SetupTestProject creates a temporary dbt project named "shop" with
// ShopSchema in models/schema.yml.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	WriteFile(t, filepath.Join(tmpDir, "dbt_project.yml"), "name: shop\n")
	WriteFile(t, filepath.Join(tmpDir, "models", "schema.yml"), ShopSchema)
	return tmpDir
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
