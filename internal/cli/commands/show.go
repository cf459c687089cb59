package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapmeta/internal/cli/output"
	"github.com/leapstack-labs/leapmeta/internal/metadata"
	"github.com/spf13/cobra"
)

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <model>",
		Short: "Show the column metadata of one model",
		Long: `Scan the project and show one model or source table with its columns.
The model may be given by name, schema-qualified name or unique ID; names
are matched case-insensitively.`,
		Example: `  leapmeta show orders
  leapmeta show analytics.orders -o json
  leapmeta show model.jaffle_shop.orders`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			res, err := cc.Scan()
			if err != nil {
				return err
			}

			matches := findModels(res.Models, args[0])
			if len(matches) == 0 {
				return fmt.Errorf("model %q not found", args[0])
			}
			if len(matches) > 1 {
				cc.Renderer.Warning(fmt.Sprintf("%d models match %q, showing the first", len(matches), args[0]))
			}
			m := matches[0]

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(m)
			}
			modelDetail(r, m)
			return nil
		},
	}
}

// findModels returns the models whose name, full name or unique ID matches.
func findModels(models []metadata.Model, query string) []metadata.Model {
	var out []metadata.Model
	for _, m := range models {
		if m.UniqueID == query || strings.EqualFold(m.Name, query) || strings.EqualFold(m.FullName(), query) {
			out = append(out, m)
		}
	}
	return out
}
