package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapmeta/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded scans",
		Long:  `List the scans recorded in the history database for this project, newest first.`,
		Example: `  leapmeta history
  leapmeta history --limit 5 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}

			store, err := cc.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(cmd.Context(), cc.projectKey(), limit)
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				out := output.HistoryOutput{Project: cc.projectKey(), Runs: make([]output.RunInfo, 0, len(runs))}
				for _, run := range runs {
					out.Runs = append(out.Runs, output.NewRunInfo(run))
				}
				return r.JSON(out)
			}

			r.Header(1, fmt.Sprintf("Scan history (%d runs)", len(runs)))
			if len(runs) == 0 {
				r.Println(r.Muted("No recorded scans"))
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.StartedAt.Local().Format(time.DateTime),
					run.Source,
					strconv.Itoa(run.ModelCount),
					run.Duration().Round(time.Millisecond).String(),
				})
			}
			r.Table([]string{"Run", "Started", "Source", "Models", "Duration"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show (0 for all)")
	return cmd
}
