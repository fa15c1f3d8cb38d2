// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cts

import (
	"encoding/xml"
	"strings"
)

// TextKind classifies a text under a work.
type TextKind string

const (
	KindEdition     TextKind = "edition"
	KindTranslation TextKind = "translation"
	KindCommentary  TextKind = "commentary"
)

// Work is the metadata of a CTS work: its texts in inventory order.
type Work struct {
	URN   string
	Title string
	Lang  string
	Texts []Text
}

// Text is one edition, translation or commentary of a work.
type Text struct {
	URN   string
	Kind  TextKind
	Lang  string
	Label string

	// Citation lists the citation scheme from the outermost level inward.
	Citation []CitationLevel
}

// CitationLevel is one node of a text's citation mapping.
type CitationLevel struct {
	Name  string
	XPath string
	Scope string
}

// Navigation holds the neighbours of a passage as passage references.
// Empty strings mean the passage has no neighbour on that side.
type Navigation struct {
	Prev string
	Next string
}

// GetCapabilities XML structures. Element names are matched without
// namespaces so both ti: and cts: prefixed inventories decode.
type capabilitiesReply struct {
	TextGroups []xmlTextGroup `xml:"reply>TextInventory>textgroup"`
}

type xmlTextGroup struct {
	URN   string    `xml:"urn,attr"`
	Works []xmlWork `xml:"work"`
}

type xmlWork struct {
	URN    string    `xml:"urn,attr"`
	Lang   string    `xml:"lang,attr"`
	Titles []string  `xml:"title"`
	Texts  []xmlText `xml:",any"`
}

type xmlText struct {
	XMLName xml.Name
	URN     string        `xml:"urn,attr"`
	Lang    string        `xml:"lang,attr"`
	Labels  []string      `xml:"label"`
	Online  []xmlCitation `xml:"online>citationMapping>citation"`
	Mapping []xmlCitation `xml:"citationMapping>citation"`
}

type xmlCitation struct {
	Label    string        `xml:"label,attr"`
	XPath    string        `xml:"xpath,attr"`
	Scope    string        `xml:"scope,attr"`
	Children []xmlCitation `xml:"citation"`
}

// GetValidReff reply.
type validReffReply struct {
	URNs []string `xml:"reply>reff>urn"`
}

// GetPrevNextUrn reply.
type prevNextReply struct {
	Prev string `xml:"reply>prevnext>prev>urn"`
	Next string `xml:"reply>prevnext>next>urn"`
}

// ctsErrorReply is the body of a CTSError response.
type ctsErrorReply struct {
	XMLName xml.Name
	Message string `xml:"message"`
	Code    string `xml:"code"`
}

// findWork returns the work with the given URN from a capabilities reply.
func (r *capabilitiesReply) findWork(workURN string) (*Work, bool) {
	for _, tg := range r.TextGroups {
		for _, w := range tg.Works {
			if strings.TrimSpace(w.URN) == workURN {
				return w.toWork(), true
			}
		}
	}
	return nil, false
}

func (w xmlWork) toWork() *Work {
	work := &Work{
		URN:  strings.TrimSpace(w.URN),
		Lang: w.Lang,
	}
	if len(w.Titles) > 0 {
		work.Title = strings.TrimSpace(w.Titles[0])
	}
	for _, t := range w.Texts {
		kind := TextKind(t.XMLName.Local)
		switch kind {
		case KindEdition, KindTranslation, KindCommentary:
		default:
			continue
		}
		text := Text{
			URN:  strings.TrimSpace(t.URN),
			Kind: kind,
			Lang: t.Lang,
		}
		if len(t.Labels) > 0 {
			text.Label = strings.TrimSpace(t.Labels[0])
		}
		mapping := t.Online
		if len(mapping) == 0 {
			mapping = t.Mapping
		}
		text.Citation = flattenCitation(mapping)
		work.Texts = append(work.Texts, text)
	}
	return work
}

// flattenCitation walks the nested citation mapping, following the first
// child at each depth.
func flattenCitation(mapping []xmlCitation) []CitationLevel {
	var levels []CitationLevel
	for len(mapping) > 0 {
		c := mapping[0]
		levels = append(levels, CitationLevel{
			Name:  strings.TrimSpace(c.Label),
			XPath: c.XPath,
			Scope: c.Scope,
		})
		mapping = c.Children
	}
	return levels
}
