package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/leapmeta/internal/cli/config"
	"github.com/leapstack-labs/leapmeta/internal/cli/output"
	"github.com/leapstack-labs/leapmeta/internal/dbt"
	"github.com/leapstack-labs/leapmeta/internal/metadata"
	"github.com/leapstack-labs/leapmeta/internal/state"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mode := output.Mode(cfg.OutputFormat)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}, nil
}

// getConfig returns the configuration loaded by the root command, loading
// defaults when a command runs on its own.
func getConfig() (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}

// NewSource builds the declaration source the configuration selects and
// returns it with its kind.
func (c *CommandContext) NewSource() (dbt.Source, string, error) {
	if err := c.Cfg.ValidateDirectories(); err != nil {
		return nil, "", err
	}

	kind := c.Cfg.ResolvedSource()
	if kind == config.SourceManifest {
		return dbt.NewManifestSource(c.Cfg.ManifestPath, dbt.ManifestOptions{
			Database: c.Cfg.Database,
			Schema:   c.Cfg.ManifestSchema(),
		}, c.Logger), kind, nil
	}
	return dbt.NewYAMLSource(c.Cfg.ProjectDir, dbt.YAMLOptions{
		ModelsDir:   c.Cfg.ModelsDir,
		Schema:      c.Cfg.Schema,
		ProjectName: c.Cfg.ProjectName,
	}, c.Logger), kind, nil
}

// Filter returns the include/exclude filter from the configuration.
func (c *CommandContext) Filter() dbt.Filter {
	return dbt.Filter{Includes: c.Cfg.Includes, Excludes: c.Cfg.Excludes}
}

// ScanResult is the outcome of one scan.
type ScanResult struct {
	Models    []metadata.Model
	Source    string
	StartedAt time.Time
}

// Scan reads and normalizes the project's models.
func (c *CommandContext) Scan() (*ScanResult, error) {
	src, kind, err := c.NewSource()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	models, err := dbt.NewScanner(src, c.Logger).Scan(c.Filter())
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return &ScanResult{Models: models, Source: kind, StartedAt: started}, nil
}

// OpenStore opens and migrates the scan history database.
// The caller must close the returned store.
func (c *CommandContext) OpenStore(ctx context.Context) (*state.SQLiteStore, error) {
	stateDir := filepath.Dir(c.Cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// projectKey identifies the project in the history store.
func (c *CommandContext) projectKey() string {
	return c.Cfg.ProjectDir
}
