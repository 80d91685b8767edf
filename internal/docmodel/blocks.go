package docmodel

import "strings"

// BlockRole classifies a text block after layout analysis.
type BlockRole string

const (
	RoleHeading        BlockRole = "heading"
	RoleParagraph      BlockRole = "paragraph"
	RoleReferenceEntry BlockRole = "reference_entry"
	RoleCaption        BlockRole = "caption"
)

// CaptionKind identifies what a caption block introduces.
type CaptionKind string

const (
	CaptionFigure   CaptionKind = "figure"
	CaptionTable    CaptionKind = "table"
	CaptionEquation CaptionKind = "equation"
)

// TextBlock is a positioned text fragment produced by the block source.
// Coordinates use PDF conventions: origin at the lower-left corner of the
// page, Y increasing upward. Blocks are immutable once produced.
type TextBlock struct {
	Page     int     `json:"page"`
	X0       float64 `json:"x0"`
	Y0       float64 `json:"y0"`
	X1       float64 `json:"x1"`
	Y1       float64 `json:"y1"`
	Text     string  `json:"text"`
	FontSize float64 `json:"font_size"`
	Bold     bool    `json:"bold"`
	Italic   bool    `json:"italic"`
}

// CenterX returns the horizontal center of the block.
func (b TextBlock) CenterX() float64 {
	return (b.X0 + b.X1) / 2
}

// Width returns the horizontal extent of the block.
func (b TextBlock) Width() float64 {
	return b.X1 - b.X0
}

// WordCount counts whitespace-separated tokens in the block text.
func (b TextBlock) WordCount() int {
	return len(strings.Fields(b.Text))
}

// ClassifiedBlock annotates a TextBlock with the role assigned by the
// layout classifier. The slice order of classified blocks is the
// authoritative reading order after column resolution.
type ClassifiedBlock struct {
	TextBlock

	Role BlockRole `json:"role"`

	// Level is set for headings only (1..6).
	Level int `json:"level,omitempty"`

	// Kind and Number are set for captions only.
	Kind   CaptionKind `json:"kind,omitempty"`
	Number int         `json:"number,omitempty"`
}
