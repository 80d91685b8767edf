package assemble

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

var captionPrefixRe = regexp.MustCompile(`(?i)^(figure|fig\.|table|equation|eq\.)\s*\d+\s*[:.\)\-]\s*`)

// DetectFigures emits a Figure record for every caption block, attached to
// the deepest section open at the caption's document position. Captions
// that precede any heading keep a nil section id and attach to the
// document root.
func DetectFigures(blocks []docmodel.ClassifiedBlock, h *Hierarchy) []docmodel.Figure {
	var figures []docmodel.Figure
	for i, b := range blocks {
		if b.Role != docmodel.RoleCaption {
			continue
		}
		figures = append(figures, docmodel.Figure{
			ID:          uuid.New(),
			Type:        figureType(b.Kind),
			Caption:     captionText(b.Text),
			SectionID:   h.SectionAt(i),
			Order:       len(figures),
			ReferenceID: fmt.Sprintf("%s %d", displayKind(b.Kind), b.Number),
		})
	}
	return figures
}

func figureType(k docmodel.CaptionKind) docmodel.FigureType {
	switch k {
	case docmodel.CaptionTable:
		return docmodel.FigureTypeTable
	case docmodel.CaptionEquation:
		return docmodel.FigureTypeEquation
	default:
		return docmodel.FigureTypeFigure
	}
}

func displayKind(k docmodel.CaptionKind) string {
	switch k {
	case docmodel.CaptionTable:
		return "Table"
	case docmodel.CaptionEquation:
		return "Equation"
	default:
		return "Figure"
	}
}

// captionText strips the "Figure N:" label, leaving the caption body.
func captionText(text string) string {
	return strings.TrimSpace(captionPrefixRe.ReplaceAllString(strings.TrimSpace(text), ""))
}
