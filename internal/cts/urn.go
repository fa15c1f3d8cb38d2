// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidURN is returned for identifiers that are not CTS URNs.
var ErrInvalidURN = errors.New("invalid CTS URN")

// URN is a parsed CTS URN of the form
// urn:cts:<namespace>:<textgroup>.<work>.<version>.<exemplar>:<passage>.
// Only namespace and text group are mandatory.
type URN struct {
	Namespace string
	TextGroup string
	Work      string
	Version   string
	Exemplar  string
	Passage   string
}

// ParseURN splits a CTS URN into its components.
func ParseURN(s string) (URN, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 5)
	if len(parts) < 4 || !strings.EqualFold(parts[0], "urn") || !strings.EqualFold(parts[1], "cts") {
		return URN{}, fmt.Errorf("%w: %q", ErrInvalidURN, s)
	}
	if parts[2] == "" || parts[3] == "" {
		return URN{}, fmt.Errorf("%w: %q", ErrInvalidURN, s)
	}

	u := URN{Namespace: parts[2]}
	work := strings.Split(parts[3], ".")
	if len(work) > 4 {
		return URN{}, fmt.Errorf("%w: too many work components in %q", ErrInvalidURN, s)
	}
	for i, c := range work {
		if c == "" {
			return URN{}, fmt.Errorf("%w: empty work component in %q", ErrInvalidURN, s)
		}
		switch i {
		case 0:
			u.TextGroup = c
		case 1:
			u.Work = c
		case 2:
			u.Version = c
		case 3:
			u.Exemplar = c
		}
	}
	if len(parts) == 5 {
		u.Passage = parts[4]
	}
	return u, nil
}

// WorkURN returns the URN truncated to the work level
// (e.g. "urn:cts:greekLit:tlg0012.tlg001").
func (u URN) WorkURN() string {
	id := u.TextGroup
	if u.Work != "" {
		id += "." + u.Work
	}
	return "urn:cts:" + u.Namespace + ":" + id
}

// String reassembles the URN.
func (u URN) String() string {
	s := u.WorkURN()
	if u.Version != "" {
		s += "." + u.Version
	}
	if u.Exemplar != "" {
		s += "." + u.Exemplar
	}
	if u.Passage != "" {
		s += ":" + u.Passage
	}
	return s
}

// passageOf returns the passage component of a URN returned by the
// service, falling back to whatever follows the last colon.
func passageOf(s string) string {
	s = strings.TrimSpace(s)
	if u, err := ParseURN(s); err == nil && u.Passage != "" {
		return u.Passage
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		return s[i+1:]
	}
	return s
}
