package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/leapmeta/internal/cli/config"
	"github.com/leapstack-labs/leapmeta/internal/dbt"
	"github.com/leapstack-labs/leapmeta/internal/state"
	"github.com/leapstack-labs/leapmeta/internal/watch"
	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rescan the project whenever schema files change",
		Long: `Watch the models directory (or the manifest) and rescan after each change,
reporting which models were added, changed or removed. Invalid files are
reported and watching continues. Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return runWatch(ctx, cc, debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Wait this long for changes to settle before rescanning")
	return cmd
}

func runWatch(ctx context.Context, cc *CommandContext, debounce time.Duration) error {
	r := cc.Renderer

	var previous []state.Snapshot
	rescan := func(context.Context) error {
		res, err := cc.Scan()
		if err != nil {
			r.Error(err.Error())
			return nil
		}

		stamp := time.Now().Format(time.TimeOnly)
		if previous == nil {
			r.Printf("[%s] %d models\n", stamp, len(res.Models))
		} else {
			d := state.Compare(previous, res.Models)
			r.Printf("[%s] %d models (%s)\n", stamp, len(res.Models), describeDiff(d))
		}

		previous = make([]state.Snapshot, 0, len(res.Models))
		for _, m := range res.Models {
			previous = append(previous, state.NewSnapshot(m))
		}
		return nil
	}

	if err := rescan(ctx); err != nil {
		return err
	}

	dir, match := watchTarget(cc.Cfg)
	r.Println(r.Muted(fmt.Sprintf("Watching %s for changes...", dir)))

	w := watch.New(watch.Config{
		Dir:      dir,
		Debounce: debounce,
		Match:    match,
		Logger:   cc.Logger,
	})
	return w.Run(ctx, rescan)
}

// watchTarget returns the directory to watch and the files that matter.
func watchTarget(cfg *config.Config) (string, func(string) bool) {
	if cfg.ResolvedSource() == config.SourceManifest {
		manifest := filepath.Clean(cfg.ManifestPath)
		return filepath.Dir(manifest), func(path string) bool {
			return filepath.Clean(path) == manifest
		}
	}
	return cfg.ModelsDir, dbt.IsSchemaFile
}
