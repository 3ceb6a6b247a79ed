package models

import "time"

// Mode is a rewrite style.
type Mode string

const (
	ModeAcademic Mode = "academic"
	ModeFormal   Mode = "formal"
	ModeCreative Mode = "creative"
	ModeSEO      Mode = "seo"
	ModeSimplify Mode = "simplify"
)

// Valid reports whether m is one of the supported styles.
func (m Mode) Valid() bool {
	switch m {
	case ModeAcademic, ModeFormal, ModeCreative, ModeSEO, ModeSimplify:
		return true
	}
	return false
}

type CitationFormat string

const (
	CitationAPA     CitationFormat = "APA"
	CitationMLA     CitationFormat = "MLA"
	CitationChicago CitationFormat = "Chicago"
)

func (f CitationFormat) Valid() bool {
	switch f {
	case CitationAPA, CitationMLA, CitationChicago:
		return true
	}
	return false
}

// HighlightKind labels why a span of the rewritten text changed.
type HighlightKind string

const (
	KindSynonym HighlightKind = "synonym"
	KindGrammar HighlightKind = "grammar"
	KindTone    HighlightKind = "tone"
)

func (k HighlightKind) Valid() bool {
	switch k {
	case KindSynonym, KindGrammar, KindTone:
		return true
	}
	return false
}

// Highlight is a validated [Start, End) span over the rewritten text, in runes.
type Highlight struct {
	Start int           `json:"start"`
	End   int           `json:"end"`
	Kind  HighlightKind `json:"kind"`
}

// Session is one rewrite transaction. RewrittenText and Highlights stay nil
// until the oracle has answered.
type Session struct {
	ID             string         `json:"session_id"`
	OriginalText   string         `json:"original_text"`
	RewrittenText  *string        `json:"rewritten_text"`
	Mode           Mode           `json:"mode"`
	Language       string         `json:"language"`
	CitationFormat CitationFormat `json:"citation_format"`
	StyleMatching  bool           `json:"style_matching"`
	Highlights     []Highlight    `json:"highlights"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
}

// Pending reports whether the session still waits for the rewrite result.
func (s *Session) Pending() bool {
	return s.RewrittenText == nil
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionUpdate carries the fields to merge into a stored session. Nil fields are left untouched.
type SessionUpdate struct {
	RewrittenText *string
	Highlights    []Highlight
}
