package dbt

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/leapstack-labs/leapmeta/internal/metadata"
)

// Filter limits a scan by resolved table name.
// An empty Includes admits every name; Excludes always wins.
type Filter struct {
	Includes []string
	Excludes []string
}

// Allows reports whether name passes the filter.
func (f Filter) Allows(name string) bool {
	if len(f.Includes) > 0 && !slices.Contains(f.Includes, name) {
		return false
	}
	return !slices.Contains(f.Excludes, name)
}

// Scanner aggregates normalized models from a Source.
type Scanner struct {
	source Source
	logger *slog.Logger
}

// NewScanner creates a Scanner reading from source.
func NewScanner(source Source, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{source: source, logger: logger}
}

// Scan returns the normalized models that pass filter, in source order.
// Duplicate names are kept. Any invalid entry aborts the scan.
func (s *Scanner) Scan(filter Filter) ([]metadata.Model, error) {
	decls, err := s.source.Declarations()
	if err != nil {
		return nil, err
	}

	models := make([]metadata.Model, 0, len(decls))
	for _, decl := range decls {
		name, err := decl.Name()
		if err != nil {
			return nil, err
		}

		s.logger.Info(string(decl.ModelType), "name", name, "path", decl.Path)
		if !filter.Allows(name) {
			s.logger.Debug("filtered out", "name", name)
			continue
		}

		model, err := NormalizeModel(s.logger, decl)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", decl.Path, err)
		}
		models = append(models, model)
	}

	s.logger.Info("scan completed", "declarations", len(decls), "models", len(models))
	return models, nil
}
