// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-search/pkg/types"
)

// ExportYAML writes papers matching f to w as a YAML sequence.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, f types.PaperFilter) (int, error) {
	papers, err := s.ListPapers(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("querying for export: %w", err)
	}
	if papers == nil {
		papers = []types.Paper{}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(papers); err != nil {
		return 0, fmt.Errorf("marshaling YAML: %w", err)
	}
	return len(papers), enc.Close()
}

// ExportJSON writes papers matching f to w as an indented JSON array.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, f types.PaperFilter) (int, error) {
	papers, err := s.ListPapers(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("querying for export: %w", err)
	}
	if papers == nil {
		papers = []types.Paper{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(papers); err != nil {
		return 0, fmt.Errorf("marshaling JSON: %w", err)
	}
	return len(papers), nil
}
