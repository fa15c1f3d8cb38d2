// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/cts-structure/pkg/types"
)

// Summary describes one stored structure.
type Summary struct {
	URN         string `json:"urn" yaml:"urn"`
	Provenance  string `json:"provenance" yaml:"provenance"`
	Levels      int    `json:"levels" yaml:"levels"`
	Elements    int    `json:"elements" yaml:"elements"`
	PopulatedAt string `json:"populated_at" yaml:"populated_at"`
}

// Element is a stored text element with its position in the structure.
type Element struct {
	types.ReferenceElement `yaml:",inline"`
	StructureURN           string `json:"structure_urn" yaml:"structure_urn"`
	Level                  int    `json:"level" yaml:"level"`
	Label                  string `json:"label" yaml:"label"`
	Position               int    `json:"position" yaml:"position"`
}

// List returns a summary of every stored structure, ordered by URN.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.urn, t.provenance, t.populated_at,
			(SELECT count(*) FROM citation_levels l WHERE l.structure_urn = t.urn),
			(SELECT count(*) FROM text_elements e WHERE e.structure_urn = t.urn)
		FROM text_structures t
		ORDER BY t.urn`)
	if err != nil {
		return nil, fmt.Errorf("listing structures: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.URN, &sm.Provenance, &sm.PopulatedAt, &sm.Levels, &sm.Elements); err != nil {
			return nil, fmt.Errorf("scanning structure: %w", err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Structure rebuilds the stored text structure of a work.
func (s *Store) Structure(ctx context.Context, urn string) (*types.TextStructure, error) {
	ts := &types.TextStructure{
		URN:        urn,
		Levels:     []types.Level{},
		ValidReffs: map[int][]types.ReferenceElement{},
	}

	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT provenance FROM text_structures WHERE urn = ?`), urn,
	).Scan(&ts.Provenance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("structure %s: %w", urn, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying structure: %w", err)
	}

	levelRows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT level_number, label FROM citation_levels
		 WHERE structure_urn = ? ORDER BY level_number`), urn)
	if err != nil {
		return nil, fmt.Errorf("querying levels: %w", err)
	}
	defer levelRows.Close()

	for levelRows.Next() {
		var l types.Level
		if err := levelRows.Scan(&l.Number, &l.Label); err != nil {
			return nil, fmt.Errorf("scanning level: %w", err)
		}
		ts.Levels = append(ts.Levels, l)
		ts.ValidReffs[l.Number] = []types.ReferenceElement{}
	}
	if err := levelRows.Err(); err != nil {
		return nil, err
	}

	elemRows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT level_number, urn, parent, previous, following FROM text_elements
		 WHERE structure_urn = ? ORDER BY level_number, seq`), urn)
	if err != nil {
		return nil, fmt.Errorf("querying elements: %w", err)
	}
	defer elemRows.Close()

	for elemRows.Next() {
		var (
			level                       int
			e                           types.ReferenceElement
			parent, previous, following sql.NullString
		)
		if err := elemRows.Scan(&level, &e.Current, &parent, &previous, &following); err != nil {
			return nil, fmt.Errorf("scanning element: %w", err)
		}
		e.Parent, e.Previous, e.Following = parent.String, previous.String, following.String
		ts.ValidReffs[level] = append(ts.ValidReffs[level], e)
	}
	return ts, elemRows.Err()
}

// Element looks up a single text element by its URN.
func (s *Store) Element(ctx context.Context, urn string) (*Element, error) {
	var (
		e                           Element
		parent, previous, following sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT e.structure_urn, e.level_number, COALESCE(l.label, ''), e.seq,
			e.urn, e.parent, e.previous, e.following
		FROM text_elements e
		LEFT JOIN citation_levels l
			ON l.structure_urn = e.structure_urn AND l.level_number = e.level_number
		WHERE e.urn = ?
		ORDER BY e.level_number
		LIMIT 1`), urn,
	).Scan(&e.StructureURN, &e.Level, &e.Label, &e.Position,
		&e.Current, &parent, &previous, &following)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("element %s: %w", urn, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying element: %w", err)
	}
	e.Parent, e.Previous, e.Following = parent.String, previous.String, following.String
	return &e, nil
}

// Children returns the elements whose parent is urn, in structure order.
func (s *Store) Children(ctx context.Context, urn string) ([]types.ReferenceElement, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT urn, parent, previous, following FROM text_elements
		 WHERE parent = ? ORDER BY level_number, seq`), urn)
	if err != nil {
		return nil, fmt.Errorf("querying children: %w", err)
	}
	defer rows.Close()

	var out []types.ReferenceElement
	for rows.Next() {
		var (
			e                           types.ReferenceElement
			parent, previous, following sql.NullString
		)
		if err := rows.Scan(&e.Current, &parent, &previous, &following); err != nil {
			return nil, fmt.Errorf("scanning child: %w", err)
		}
		e.Parent, e.Previous, e.Following = parent.String, previous.String, following.String
		out = append(out, e)
	}
	return out, rows.Err()
}
