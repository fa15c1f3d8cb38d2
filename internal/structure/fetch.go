// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package structure fetches the citation structure of a classical work from
// a CTS resolver and writes it to disk as JSON.
package structure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/cts-structure/internal/cts"
	"github.com/pdiddy/cts-structure/pkg/types"
)

// ErrNoEdition is returned when none of a work's texts is in the work's
// original language.
var ErrNoEdition = errors.New("no edition in the original language")

// Resolver is the subset of the CTS protocol the fetcher depends on.
// *cts.Client implements it; tests substitute a fake.
type Resolver interface {
	Metadata(ctx context.Context, urn string) (*cts.Work, error)
	Reffs(ctx context.Context, urn string, level int) ([]string, error)
	PrevNext(ctx context.Context, urn, ref string) (cts.Navigation, error)
}

// Fetcher builds TextStructures from a Resolver.
type Fetcher struct {
	Resolver Resolver

	// Provenance is recorded in every structure, normally the endpoint URL.
	Provenance string

	// Progress receives one line per reference and warnings. Nil discards.
	Progress io.Writer
}

// NewFetcher returns a Fetcher backed by a CTS client.
func NewFetcher(client *cts.Client, w io.Writer) *Fetcher {
	return &Fetcher{
		Resolver:   client,
		Provenance: client.Endpoint(),
		Progress:   w,
	}
}

// LanguageMarker returns the language code expected in the identifier of a
// work's original-language edition: "grc" for greekLit works, "lat" otherwise.
func LanguageMarker(urn string) string {
	if strings.Contains(urn, "greekLit") {
		return "grc"
	}
	return "lat"
}

// Fetch walks the work's citation scheme level by level and returns its
// structure. urn must parse as a CTS URN; anything else fails with
// cts.ErrInvalidURN before a request is sent. A work without an
// original-language text yields ErrNoEdition; any resolver failure aborts
// the walk and is returned.
func (f *Fetcher) Fetch(ctx context.Context, urn string) (*types.TextStructure, error) {
	w := f.Progress
	if w == nil {
		w = io.Discard
	}

	if _, err := cts.ParseURN(urn); err != nil {
		return nil, err
	}

	work, err := f.Resolver.Metadata(ctx, urn)
	if err != nil {
		return nil, fmt.Errorf("fetching metadata for %s: %w", urn, err)
	}

	marker := LanguageMarker(urn)
	edition, ok := selectEdition(work, marker)
	if !ok {
		fmt.Fprintf(w, "warning: %s: no %q edition among %d texts\n", urn, marker, len(work.Texts))
		return nil, fmt.Errorf("%s: %w", urn, ErrNoEdition)
	}

	ts := &types.TextStructure{
		URN:        urn,
		Provenance: f.Provenance,
		Levels:     make([]types.Level, 0, len(edition.Citation)),
		ValidReffs: make(map[int][]types.ReferenceElement, len(edition.Citation)),
	}
	for i, c := range edition.Citation {
		ts.Levels = append(ts.Levels, types.Level{Number: i + 1, Label: strings.ToLower(c.Name)})
	}

	for _, level := range ts.Levels {
		refs, err := f.Resolver.Reffs(ctx, urn, level.Number)
		if err != nil {
			return nil, fmt.Errorf("listing references at level %d: %w", level.Number, err)
		}

		elems := make([]types.ReferenceElement, 0, len(refs))
		for _, ref := range refs {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			fmt.Fprintln(w, ref)

			nav, err := f.Resolver.PrevNext(ctx, urn, ref)
			if err != nil {
				return nil, fmt.Errorf("fetching neighbours of %s:%s: %w", urn, ref, err)
			}
			elems = append(elems, newElement(urn, ref, nav))
		}
		ts.ValidReffs[level.Number] = elems
	}

	return ts, nil
}

// selectEdition returns the first text whose full identifier contains the
// language marker. The namespace counts too, so in a latinLit work every
// text matches "lat" and the first listed text is chosen.
func selectEdition(work *cts.Work, marker string) (cts.Text, bool) {
	for _, t := range work.Texts {
		if strings.Contains(t.URN, marker) {
			return t, true
		}
	}
	return cts.Text{}, false
}

// newElement builds the reference element for urn:ref. The neighbour
// fields are crossed: Previous takes the service's next id and Following
// its prev id.
func newElement(urn, ref string, nav cts.Navigation) types.ReferenceElement {
	e := types.ReferenceElement{Current: urn + ":" + ref}
	if parent, ok := ParentRef(ref); ok {
		e.Parent = urn + ":" + parent
	}
	if nav.Next != "" {
		e.Previous = urn + ":" + nav.Next
	}
	if nav.Prev != "" {
		e.Following = urn + ":" + nav.Prev
	}
	return e
}

// ParentRef returns ref without its last dot-separated component.
// References without a dot have no parent.
func ParentRef(ref string) (string, bool) {
	i := strings.LastIndex(ref, ".")
	if i < 0 {
		return "", false
	}
	return ref[:i], true
}
