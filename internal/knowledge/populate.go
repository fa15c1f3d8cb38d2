// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/cts-structure/internal/structure"
	"github.com/pdiddy/cts-structure/pkg/types"
)

// PopulateStatus reports what Populate did with a structure.
type PopulateStatus string

const (
	StatusCreated PopulateStatus = "created"
	StatusUpdated PopulateStatus = "updated"
	StatusSkipped PopulateStatus = "skipped"
)

// PopulateSummary holds counts from a populate run.
type PopulateSummary struct {
	Created int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of files processed.
func (s PopulateSummary) Total() int {
	return s.Created + s.Updated + s.Skipped + s.Failed
}

// Populate stores a text structure. A work without a stored structure gets
// one, with its levels and text elements. A work whose stored structure has
// the same content is left untouched. A changed structure replaces the
// stored levels and elements.
func (s *Store) Populate(ctx context.Context, ts *types.TextStructure) (PopulateStatus, error) {
	if ts == nil {
		return "", errors.New("populating: nil text structure")
	}
	if ts.URN == "" {
		return "", errors.New("populating: text structure has no urn")
	}

	sum, err := checksum(ts)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var stored string
	err = tx.QueryRowContext(ctx,
		s.rebind(`SELECT checksum FROM text_structures WHERE urn = ?`), ts.URN,
	).Scan(&stored)

	var status PopulateStatus
	switch {
	case errors.Is(err, sql.ErrNoRows):
		status = StatusCreated
	case err != nil:
		return "", fmt.Errorf("checking stored structure: %w", err)
	case stored == sum:
		return StatusSkipped, nil
	default:
		status = StatusUpdated
		for _, q := range []string{
			`DELETE FROM text_elements WHERE structure_urn = ?`,
			`DELETE FROM citation_levels WHERE structure_urn = ?`,
		} {
			if _, err := tx.ExecContext(ctx, s.rebind(q), ts.URN); err != nil {
				return "", fmt.Errorf("deleting old structure: %w", err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO text_structures (urn, provenance, checksum, populated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(urn) DO UPDATE SET
			provenance=excluded.provenance, checksum=excluded.checksum,
			populated_at=excluded.populated_at`),
		ts.URN, ts.Provenance, sum, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("upserting structure: %w", err)
	}

	for _, l := range ts.Levels {
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO citation_levels (structure_urn, level_number, label) VALUES (?, ?, ?)`),
			ts.URN, l.Number, l.Label,
		)
		if err != nil {
			return "", fmt.Errorf("inserting level %d: %w", l.Number, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO text_elements (structure_urn, level_number, seq, urn, parent, previous, following)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, level := range sortedLevels(ts.ValidReffs) {
		for i, e := range ts.ValidReffs[level] {
			_, err := stmt.ExecContext(ctx,
				ts.URN, level, i, e.Current,
				nullString(e.Parent), nullString(e.Previous), nullString(e.Following),
			)
			if err != nil {
				return "", fmt.Errorf("inserting element %s: %w", e.Current, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	return status, nil
}

// PopulateDir populates every *.json structure file in dir.
func (s *Store) PopulateDir(ctx context.Context, dir string, w io.Writer) (PopulateSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return PopulateSummary{}, fmt.Errorf("reading structure directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return s.PopulateFiles(ctx, paths, w)
}

// PopulateFiles loads and populates each structure file, printing one line
// per file and a summary to w. It continues after individual failures and
// rewrites export.yaml when anything changed.
func (s *Store) PopulateFiles(ctx context.Context, paths []string, w io.Writer) (PopulateSummary, error) {
	var summary PopulateSummary

	for _, path := range paths {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		name := filepath.Base(path)
		ts, err := structure.Load(path)
		if err != nil {
			fmt.Fprintf(w, "failed: %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		status, err := s.Populate(ctx, ts)
		if err != nil {
			fmt.Fprintf(w, "failed: %s: %v\n", ts.URN, err)
			summary.Failed++
			continue
		}

		switch status {
		case StatusCreated:
			fmt.Fprintf(w, "indexing %s (%d levels, %d elements)\n", ts.URN, len(ts.Levels), ts.ElementCount())
			summary.Created++
		case StatusUpdated:
			fmt.Fprintf(w, "updated %s (%d levels, %d elements)\n", ts.URN, len(ts.Levels), ts.ElementCount())
			summary.Updated++
		case StatusSkipped:
			fmt.Fprintf(w, "skipped %s\n", ts.URN)
			summary.Skipped++
		}
	}

	fmt.Fprintf(w, "\ncreated: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Created, summary.Updated, summary.Skipped, summary.Failed)

	if summary.Created > 0 || summary.Updated > 0 {
		if err := s.ExportYAML(ctx); err != nil {
			fmt.Fprintf(w, "warning: export.yaml write failed: %v\n", err)
		}
	}

	return summary, nil
}

// checksum hashes the JSON encoding of ts. encoding/json sorts map keys,
// so equal structures hash equally.
func checksum(ts *types.TextStructure) (string, error) {
	data, err := json.Marshal(ts)
	if err != nil {
		return "", fmt.Errorf("encoding structure: %w", err)
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}

func sortedLevels(m map[int][]types.ReferenceElement) []int {
	levels := make([]int, 0, len(m))
	for l := range m {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	return levels
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
