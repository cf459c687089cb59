package output

import (
	"time"

	"github.com/leapstack-labs/leapmeta/internal/metadata"
	"github.com/leapstack-labs/leapmeta/internal/state"
)

// ModelsOutput is the JSON form of the models command.
type ModelsOutput struct {
	Models  []metadata.Model `json:"models"`
	Summary ModelsSummary    `json:"summary"`
	Run     *RunInfo         `json:"run,omitempty"`
	Changes *state.Diff      `json:"changes,omitempty"`
}

// ModelsSummary counts scanned tables.
type ModelsSummary struct {
	Total       int    `json:"total"`
	Models      int    `json:"models"`
	Sources     int    `json:"sources"`
	ForeignKeys int    `json:"foreign_keys"`
	Source      string `json:"source"`
}

// RunInfo describes a recorded scan.
type RunInfo struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Models      int       `json:"models"`
}

// NewRunInfo converts a stored run.
func NewRunInfo(run state.Run) RunInfo {
	return RunInfo{
		ID:          run.ID,
		Source:      run.Source,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Models:      run.ModelCount,
	}
}

// HistoryOutput is the JSON form of the history command.
type HistoryOutput struct {
	Project string    `json:"project"`
	Runs    []RunInfo `json:"runs"`
}

// Summarize counts models, sources and foreign key columns.
func Summarize(models []metadata.Model, source string) ModelsSummary {
	s := ModelsSummary{Total: len(models), Source: source}
	for _, m := range models {
		switch m.ModelType {
		case metadata.ModelTypeSource:
			s.Sources++
		default:
			s.Models++
		}
		for _, c := range m.Columns {
			if c.IsForeignKey() {
				s.ForeignKeys++
			}
		}
	}
	return s
}
