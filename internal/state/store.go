// Package state records scan history in SQLite.
// Each scan is stored as a run with one snapshot per model, so later runs
// can report which models were added, changed or removed.
package state

import (
	"time"

	"github.com/leapstack-labs/leapmeta/internal/metadata"
)

// Run is one recorded scan.
type Run struct {
	ID          string    `json:"id"`
	Project     string    `json:"project"`
	Source      string    `json:"source"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	ModelCount  int       `json:"model_count"`
}

// Duration returns how long the scan took.
func (r Run) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Snapshot is the stored fingerprint of one model within a run.
type Snapshot struct {
	UniqueID    string             `json:"unique_id"`
	Name        string             `json:"name"`
	Schema      string             `json:"schema"`
	ModelType   metadata.ModelType `json:"model_type"`
	ColumnCount int                `json:"column_count"`
	Hash        string             `json:"hash"`
}

// NewSnapshot fingerprints a model.
func NewSnapshot(m metadata.Model) Snapshot {
	return Snapshot{
		UniqueID:    m.UniqueID,
		Name:        m.Name,
		Schema:      m.Schema,
		ModelType:   m.ModelType,
		ColumnCount: len(m.Columns),
		Hash:        m.Hash(),
	}
}

// Diff lists unique IDs by how they changed between two scans.
type Diff struct {
	Added     []string `json:"added"`
	Changed   []string `json:"changed"`
	Unchanged []string `json:"unchanged"`
	Removed   []string `json:"removed"`
}

// HasChanges reports whether anything was added, changed or removed.
func (d Diff) HasChanges() bool {
	return len(d.Added)+len(d.Changed)+len(d.Removed) > 0
}

// Compare diffs a previous run's snapshots against freshly scanned models.
// Models are matched by unique ID; when an ID repeats the last entry wins.
// Added, changed and unchanged follow current order, removed follows previous
// order.
func Compare(previous []Snapshot, current []metadata.Model) Diff {
	prev := make(map[string]string, len(previous))
	for _, s := range previous {
		prev[s.UniqueID] = s.Hash
	}

	var d Diff
	seen := make(map[string]bool, len(current))
	hashes := make(map[string]string, len(current))
	var order []string
	for _, m := range current {
		if !seen[m.UniqueID] {
			order = append(order, m.UniqueID)
		}
		seen[m.UniqueID] = true
		hashes[m.UniqueID] = m.Hash()
	}

	for _, id := range order {
		old, ok := prev[id]
		switch {
		case !ok:
			d.Added = append(d.Added, id)
		case old != hashes[id]:
			d.Changed = append(d.Changed, id)
		default:
			d.Unchanged = append(d.Unchanged, id)
		}
	}

	removed := make(map[string]bool)
	for _, s := range previous {
		if !seen[s.UniqueID] && !removed[s.UniqueID] {
			removed[s.UniqueID] = true
			d.Removed = append(d.Removed, s.UniqueID)
		}
	}
	return d
}
