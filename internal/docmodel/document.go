// Package docmodel defines the structured-document aggregate produced by an
// extraction run, along with the intermediate block types the pipeline
// stages exchange. Everything here is plain data with fixed fields; the
// pipeline never mutates an aggregate after it is built.
package docmodel

import (
	"time"

	"github.com/google/uuid"
)

// Metadata holds document-level bibliographic fields.
type Metadata struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
}

// Section is one node of the section tree. Root sections have a nil
// ParentID. Order is a global running counter assigned in document order,
// so sibling order values are strictly increasing.
type Section struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Level        int        `json:"level"`
	Order        int        `json:"order"`
	ParentID     *uuid.UUID `json:"parent_id,omitempty"`
	Content      string     `json:"content"`
	WordCount    int        `json:"word_count"`
	HasFigures   bool       `json:"has_figures"`
	HasTables    bool       `json:"has_tables"`
	HasEquations bool       `json:"has_equations"`
}

// Reference is a single bibliography entry. RawCitation is preserved
// verbatim; the parsed fields are best effort and may be empty.
type Reference struct {
	ID          uuid.UUID `json:"id"`
	Order       int       `json:"order"`
	RawCitation string    `json:"raw_citation"`
	Title       string    `json:"title,omitempty"`
	Authors     string    `json:"authors,omitempty"`
	Year        int       `json:"year,omitempty"`
	Venue       string    `json:"venue,omitempty"`
	DOI         string    `json:"doi,omitempty"`
	URL         string    `json:"url,omitempty"`
}

// FigureType distinguishes the kinds of caption-bearing objects.
type FigureType string

const (
	FigureTypeFigure   FigureType = "figure"
	FigureTypeTable    FigureType = "table"
	FigureTypeEquation FigureType = "equation"
)

// Figure records a figure, table, or equation caption. SectionID points at
// the nearest enclosing section, or is nil for captions that precede any
// heading. ReferenceID is the display label, e.g. "Figure 1".
type Figure struct {
	ID          uuid.UUID  `json:"id"`
	Type        FigureType `json:"type"`
	Caption     string     `json:"caption"`
	SectionID   *uuid.UUID `json:"section_id,omitempty"`
	Order       int        `json:"order"`
	ReferenceID string     `json:"reference_id"`
}

// OutcomeStatus is the overall result of an extraction run.
type OutcomeStatus string

const (
	StatusCompleted OutcomeStatus = "completed"
	StatusFailed    OutcomeStatus = "failed"
)

// Attempt records one fallback-stage attempt.
type Attempt struct {
	Method  string        `json:"method"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// ExtractionOutcome is the authoritative record of how a structured
// document was obtained: the winning method, the full attempt trail in
// priority order, and any soft warnings collected along the way.
type ExtractionOutcome struct {
	Method   string        `json:"method"`
	Attempts []Attempt     `json:"attempts"`
	Warnings []string      `json:"warnings,omitempty"`
	Status   OutcomeStatus `json:"status"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Degraded reports whether the run completed with warnings.
func (o ExtractionOutcome) Degraded() bool {
	return o.Status == StatusCompleted && len(o.Warnings) > 0
}

// StructuredDocument is the complete output aggregate of one extraction
// run. A re-run produces a new aggregate that replaces the old one
// wholesale; nothing here is updated in place.
type StructuredDocument struct {
	Metadata   Metadata          `json:"metadata"`
	Sections   []Section         `json:"sections"`
	References []Reference       `json:"references"`
	Figures    []Figure          `json:"figures"`
	Outcome    ExtractionOutcome `json:"outcome"`
}

// Valid reports whether the aggregate meets the minimum bar for a fallback
// stage to count as successful: a non-empty title or at least one section.
func (d *StructuredDocument) Valid() bool {
	if d == nil {
		return false
	}
	return d.Metadata.Title != "" || len(d.Sections) > 0
}

// SectionByID looks up a section in the aggregate.
func (d *StructuredDocument) SectionByID(id uuid.UUID) *Section {
	for i := range d.Sections {
		if d.Sections[i].ID == id {
			return &d.Sections[i]
		}
	}
	return nil
}
