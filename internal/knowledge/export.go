// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/cts-structure/pkg/types"
)

// ExportYAML writes every stored structure to knowledge/index/export.yaml.
func (s *Store) ExportYAML(ctx context.Context) error {
	all, err := s.exportStructures(ctx)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(all)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return s.writeExport("export.yaml", data)
}

// ExportJSON writes every stored structure to knowledge/index/export.json.
func (s *Store) ExportJSON(ctx context.Context) error {
	all, err := s.exportStructures(ctx)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return s.writeExport("export.json", data)
}

// ExportPath returns where an export file with the given name is written.
func (s *Store) ExportPath(name string) string {
	return filepath.Join(s.knowledgeDir, indexDir, name)
}

func (s *Store) exportStructures(ctx context.Context) ([]*types.TextStructure, error) {
	summaries, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	all := make([]*types.TextStructure, 0, len(summaries))
	for _, sm := range summaries {
		ts, err := s.Structure(ctx, sm.URN)
		if err != nil {
			return nil, fmt.Errorf("querying for export: %w", err)
		}
		all = append(all, ts)
	}
	return all, nil
}

func (s *Store) writeExport(name string, data []byte) error {
	path := s.ExportPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
