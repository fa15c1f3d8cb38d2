// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the cts-structure tool:
// the fetched text structure and the per-stage configuration.
package types

import (
	"encoding/json"
	"fmt"
)

// Level is one step of a work's citation scheme (e.g. book, line).
// It serializes as the pair [number, "label"].
type Level struct {
	// Number is the 1-based depth of the level.
	Number int

	// Label is the lower-cased name of the citation node.
	Label string
}

// MarshalJSON encodes the level as a two-element array.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{l.Number, l.Label})
}

// UnmarshalJSON decodes a [number, "label"] pair.
func (l *Level) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding level: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decoding level: expected [number, label], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &l.Number); err != nil {
		return fmt.Errorf("decoding level number: %w", err)
	}
	if err := json.Unmarshal(pair[1], &l.Label); err != nil {
		return fmt.Errorf("decoding level label: %w", err)
	}
	return nil
}

// MarshalYAML encodes the level as a two-element sequence, matching JSON.
func (l Level) MarshalYAML() (any, error) {
	return []any{l.Number, l.Label}, nil
}

// ReferenceElement is one citable unit of a work at a given level.
// All identifiers are full URNs (work URN + ":" + reference).
type ReferenceElement struct {
	Current string `json:"current" yaml:"current"`

	// Parent is the enclosing unit one level up. Empty for top-level units.
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`

	// Previous is filled from the service's next id and Following from its
	// prev id. Downstream consumers rely on this mapping.
	Previous  string `json:"previous,omitempty" yaml:"previous,omitempty"`
	Following string `json:"following,omitempty" yaml:"following,omitempty"`
}

// TextStructure is the citation structure of one work as fetched from a
// CTS endpoint.
type TextStructure struct {
	// URN is the work-level CTS URN (e.g. "urn:cts:greekLit:tlg0012.tlg001").
	URN string `json:"urn" yaml:"urn"`

	// Provenance is the endpoint URL the structure was fetched from.
	Provenance string `json:"provenance" yaml:"provenance"`

	// Levels lists the citation levels in ascending order.
	Levels []Level `json:"levels" yaml:"levels"`

	// ValidReffs maps a level number to its reference elements in the
	// order the service listed them.
	ValidReffs map[int][]ReferenceElement `json:"valid_reffs" yaml:"valid_reffs"`
}

// ElementCount returns the number of reference elements across all levels.
func (ts *TextStructure) ElementCount() int {
	n := 0
	for _, elems := range ts.ValidReffs {
		n += len(elems)
	}
	return n
}
