package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapmeta/internal/cli/output"
	"github.com/leapstack-labs/leapmeta/internal/metadata"
	"github.com/leapstack-labs/leapmeta/internal/state"
	"github.com/spf13/cobra"
)

// NewModelsCommand creates the models command.
func NewModelsCommand() *cobra.Command {
	var noRecord bool

	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"scan"},
		Short:   "Scan the dbt project and list model metadata",
		Long: `Scan dbt schema files (or a compiled manifest) and list every model and
source table with its column metadata: semantic types, visibility and
foreign key targets.

Each scan is recorded in the history database so the next scan can report
which models were added, changed or removed.`,
		Example: `  # List models in the current project
  leapmeta models

  # Only some models, as JSON
  leapmeta models --include orders,customers -o json

  # Read target/manifest.json and skip recording
  leapmeta models --source manifest --no-record`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModels(cmd, noRecord)
		},
	}

	cmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not record this scan in the history database")
	return cmd
}

func runModels(cmd *cobra.Command, noRecord bool) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	res, err := cc.Scan()
	if err != nil {
		return err
	}

	var run *state.Run
	var diff *state.Diff
	if cc.Cfg.Record && !noRecord {
		run, diff, err = recordScan(cmd.Context(), cc, res)
		if err != nil {
			return err
		}
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		out := output.ModelsOutput{
			Models:  res.Models,
			Summary: output.Summarize(res.Models, res.Source),
			Changes: diff,
		}
		if out.Models == nil {
			out.Models = []metadata.Model{}
		}
		if run != nil {
			info := output.NewRunInfo(*run)
			out.Run = &info
		}
		return r.JSON(out)
	case output.ModeMarkdown:
		modelsMarkdown(r, res.Models)
	default:
		modelsText(r, res.Models)
	}

	if run != nil {
		printChanges(r, diff)
		r.Success(fmt.Sprintf("Recorded scan %s", run.ID))
	}
	return nil
}

// recordScan stores the scan and diffs it against the previous one.
// diff is nil on the first recorded scan.
func recordScan(ctx context.Context, cc *CommandContext, res *ScanResult) (*state.Run, *state.Diff, error) {
	store, err := cc.OpenStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = store.Close() }()

	d, ok, err := store.CompareLatest(ctx, cc.projectKey(), res.Models)
	if err != nil {
		return nil, nil, err
	}
	run, err := store.RecordScan(ctx, cc.projectKey(), res.Source, res.StartedAt, res.Models)
	if err != nil {
		return nil, nil, err
	}

	cc.Logger.Debug("scan recorded", "run", run.ID, "models", run.ModelCount)
	if !ok {
		return run, nil, nil
	}
	return run, &d, nil
}

func modelsText(r *output.Renderer, models []metadata.Model) {
	r.Header(1, fmt.Sprintf("Models (%d total)", len(models)))
	if len(models) == 0 {
		r.Println(r.Muted("No models found"))
		return
	}

	rows := make([][]string, 0, len(models))
	for _, m := range models {
		rows = append(rows, []string{
			m.FullName(),
			string(m.ModelType),
			strconv.Itoa(len(m.Columns)),
			strconv.Itoa(countForeignKeys(m)),
			metadata.Deref(m.Description),
		})
	}
	r.Table([]string{"Name", "Type", "Columns", "FKs", "Description"}, rows)
}

func modelsMarkdown(r *output.Renderer, models []metadata.Model) {
	r.Header(1, fmt.Sprintf("Models (%d total)", len(models)))
	for _, m := range models {
		modelDetail(r, m)
	}
}

// modelDetail renders one model with its columns.
func modelDetail(r *output.Renderer, m metadata.Model) {
	r.Header(2, m.FullName())
	r.Println(output.FormatKeyValue("Type", string(m.ModelType)))
	if m.UniqueID != "" {
		r.Println(output.FormatKeyValue("Unique ID", m.UniqueID))
	}
	if m.SourceName != "" {
		r.Println(output.FormatKeyValue("Source", m.SourceName))
	}
	if m.Description != nil {
		r.Println(output.FormatKeyValue("Description", *m.Description))
	}
	r.Println("")

	if len(m.Columns) == 0 {
		r.Println(r.Muted("No columns declared"))
		r.Println("")
		return
	}
	r.Table([]string{"Column", "Semantic Type", "Visibility", "FK Target", "Description"}, columnRows(m))
	r.Println("")
}

func columnRows(m metadata.Model) [][]string {
	rows := make([][]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		fk := ""
		if c.IsForeignKey() {
			fk = *c.FKTargetTable + "." + *c.FKTargetField
		}
		rows = append(rows, []string{
			c.Name,
			metadata.Deref(c.SemanticType),
			metadata.Deref(c.VisibilityType),
			fk,
			metadata.Deref(c.Description),
		})
	}
	return rows
}

func countForeignKeys(m metadata.Model) int {
	n := 0
	for _, c := range m.Columns {
		if c.IsForeignKey() {
			n++
		}
	}
	return n
}

// printChanges reports the diff against the previous scan.
func printChanges(r *output.Renderer, diff *state.Diff) {
	if diff == nil {
		r.Println(r.Muted("First recorded scan"))
		return
	}
	if !diff.HasChanges() {
		r.Println(r.Muted("No changes since last scan"))
		return
	}

	r.Println("Changes since last scan: " + describeDiff(*diff))
	for _, id := range diff.Added {
		r.Println("  + " + id)
	}
	for _, id := range diff.Changed {
		r.Println("  ~ " + id)
	}
	for _, id := range diff.Removed {
		r.Println("  - " + id)
	}
}

func describeDiff(d state.Diff) string {
	parts := []string{
		fmt.Sprintf("%d added", len(d.Added)),
		fmt.Sprintf("%d changed", len(d.Changed)),
		fmt.Sprintf("%d removed", len(d.Removed)),
	}
	return strings.Join(parts, ", ")
}
