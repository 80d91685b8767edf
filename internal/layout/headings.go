package layout

import (
	"regexp"
	"strings"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

// Canonical top-level section names of academic papers. A block matching
// one of these is forced to level 1 regardless of font metrics: the name
// is a stronger signal than typography.
var canonicalSections = map[string]bool{
	"abstract":         true,
	"introduction":     true,
	"background":       true,
	"related work":     true,
	"methods":          true,
	"methodology":      true,
	"materials and methods": true,
	"experiments":      true,
	"evaluation":       true,
	"results":          true,
	"discussion":       true,
	"conclusion":       true,
	"conclusions":      true,
	"references":       true,
	"bibliography":     true,
	"acknowledgments":  true,
	"acknowledgements": true,
	"appendix":         true,
}

var (
	// Leading numbering like "2 ", "2.3 ", "2.3.1) " followed by a
	// capitalized title. The nesting depth of the numeric prefix gives the
	// heading level directly.
	numberedHeadingRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)[\.\)]?\s+[A-Z]`)

	trailingPunctRe = regexp.MustCompile(`[\s:.\-]+$`)
)

// normalizeHeading strips leading numbering and trailing punctuation so
// "2. References:" compares equal to "references".
func normalizeHeading(text string) string {
	t := strings.TrimSpace(text)
	if m := numberedHeadingRe.FindStringSubmatch(t); m != nil {
		t = strings.TrimSpace(t[len(m[1]):])
		t = strings.TrimLeft(t, ".) \t")
	}
	t = trailingPunctRe.ReplaceAllString(t, "")
	return strings.ToLower(t)
}

// isCanonicalSection reports whether the text names a standard top-level
// section, and whether that section opens the bibliography.
func isCanonicalSection(text string) (canonical, references bool) {
	n := normalizeHeading(text)
	if !canonicalSections[n] {
		return false, false
	}
	return true, n == "references" || n == "bibliography"
}

// IsReferenceHeading reports whether the text names the bibliography
// section ("References" or "Bibliography", with or without numbering).
func IsReferenceHeading(text string) bool {
	_, refs := isCanonicalSection(text)
	return refs
}

// headingLevel infers a heading level for the block, or 0 when the block
// reads as body text. bodySize is the running average body font size of
// the surrounding context; pageCenter the horizontal page midpoint.
// inReferences is true while a bibliography run is open.
func (c *Classifier) headingLevel(b docmodel.TextBlock, bodySize, pageCenter float64, inReferences bool) int {
	text := strings.TrimSpace(b.Text)
	if text == "" || len(text) > c.cfg.MaxHeadingLength {
		return 0
	}
	words := b.WordCount()
	if words > c.cfg.MaxHeadingWords {
		return 0
	}

	if canonical, _ := isCanonicalSection(text); canonical {
		return 1
	}

	if m := numberedHeadingRe.FindStringSubmatch(text); m != nil {
		// Inside the bibliography a bare numeric prefix is the citation
		// numbering itself ("1. Smith, A. ..."). Breaking the run takes a
		// typographic cue on top of the numbering.
		if inReferences && !b.Bold && (bodySize <= 0 || b.FontSize/bodySize < c.cfg.SizeRatioH3) {
			return 0
		}
		level := strings.Count(m[1], ".") + 1
		if level > 4 {
			level = 4
		}
		return level
	}

	if bodySize <= 0 {
		return 0
	}
	ratio := b.FontSize / bodySize
	centered := pageCenter > 0 && absFloat(b.CenterX()-pageCenter) <= c.cfg.CenterTolerance

	// Ties break toward the larger font, so test the biggest ratio first.
	switch {
	case ratio >= c.cfg.SizeRatioH1:
		return 1
	case ratio >= c.cfg.SizeRatioH2:
		return 2
	case ratio >= c.cfg.SizeRatioH3:
		return 3
	case b.Bold && ratio >= 1.0 && (centered || words <= 8):
		return 4
	}
	return 0
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
