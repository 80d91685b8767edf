// Package layout turns the positioned text blocks of a document into an
// ordered, role-tagged block sequence: columns are resolved into reading
// order, headings get levels inferred from typography and numbering,
// bibliography runs and captions are tagged. All of it is pure, in-memory
// computation; the package performs no I/O.
package layout

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

// Config tunes the layout heuristics. The ratio cutoffs were calibrated
// against a small corpus of arXiv and ACM two-column papers; they are
// starting points, not ground truth.
type Config struct {
	// ColumnGapThreshold is the maximum x-center distance, in points, for
	// two blocks to share a column.
	ColumnGapThreshold float64

	// DominantColumnShare is the fraction of a page's blocks one cluster
	// must hold for the page to be treated as single-column.
	DominantColumnShare float64

	// MaxHeadingLength and MaxHeadingWords bound what can be a heading.
	MaxHeadingLength int
	MaxHeadingWords  int

	// CenterTolerance is the distance from the page midpoint, in points,
	// within which a block counts as centered.
	CenterTolerance float64

	// SizeRatioH1..H3 are font-size ratio cutoffs against the running
	// body-text average.
	SizeRatioH1 float64
	SizeRatioH2 float64
	SizeRatioH3 float64

	// BodySizeAlpha is the smoothing factor of the running body-size
	// average updated on each paragraph block.
	BodySizeAlpha float64
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		ColumnGapThreshold:  48.0,
		DominantColumnShare: 0.85,
		MaxHeadingLength:    120,
		MaxHeadingWords:     16,
		CenterTolerance:     24.0,
		SizeRatioH1:         1.45,
		SizeRatioH2:         1.25,
		SizeRatioH3:         1.12,
		BodySizeAlpha:       0.1,
	}
}

// ClassificationWarning is a soft, non-fatal finding recorded in the
// extraction outcome. It never changes the pipeline stage.
type ClassificationWarning struct {
	Message string
}

func (w ClassificationWarning) Error() string { return w.Message }

// Classifier assigns roles to text blocks.
type Classifier struct {
	cfg Config
}

// New creates a classifier with the given configuration.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// NewDefault creates a classifier with DefaultConfig.
func NewDefault() *Classifier {
	return New(DefaultConfig())
}

var captionRe = regexp.MustCompile(`(?i)^(figure|fig\.|table|equation|eq\.)\s*(\d+)\s*[:.\)\-]\s*`)

// Classify resolves reading order and tags every block with a role. The
// returned sequence is the authoritative reading order. Warnings report
// degraded-quality findings such as a missing References section.
func (c *Classifier) Classify(blocks []docmodel.TextBlock) ([]docmodel.ClassifiedBlock, []ClassificationWarning) {
	ordered := c.OrderByColumns(blocks)

	bodySize := medianFontSize(ordered)
	pageCenters := pageCenters(ordered)

	classified := make([]docmodel.ClassifiedBlock, 0, len(ordered))
	var warnings []ClassificationWarning

	inReferences := false
	sawReferences := false
	headingCount := 0

	for _, b := range ordered {
		cb := docmodel.ClassifiedBlock{TextBlock: b}

		if kind, num, ok := ParseCaption(b.Text); ok {
			cb.Role = docmodel.RoleCaption
			cb.Kind = kind
			cb.Number = num
			classified = append(classified, cb)
			continue
		}

		if level := c.headingLevel(b, bodySize, pageCenters[b.Page], inReferences); level > 0 {
			headingCount++
			cb.Role = docmodel.RoleHeading
			cb.Level = level

			_, refs := isCanonicalSection(b.Text)
			switch {
			case refs:
				inReferences = true
				sawReferences = true
			case level == 1:
				// Any other level-1 heading closes the bibliography run.
				inReferences = false
			}
			classified = append(classified, cb)
			continue
		}

		if inReferences {
			cb.Role = docmodel.RoleReferenceEntry
		} else {
			cb.Role = docmodel.RoleParagraph
			if b.FontSize > 0 {
				bodySize += c.cfg.BodySizeAlpha * (b.FontSize - bodySize)
			}
		}
		classified = append(classified, cb)
	}

	if !sawReferences {
		warnings = append(warnings, ClassificationWarning{
			Message: "no References or Bibliography section found",
		})
	}
	if headingCount == 0 && len(ordered) > 0 {
		warnings = append(warnings, ClassificationWarning{
			Message: fmt.Sprintf("no headings detected across %d blocks", len(ordered)),
		})
	}

	return classified, warnings
}

// ParseCaption matches caption-prefix patterns like "Figure 3:" and
// returns the parsed kind and number.
func ParseCaption(text string) (docmodel.CaptionKind, int, bool) {
	m := captionRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", 0, false
	}
	num, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	switch strings.ToLower(strings.TrimSuffix(m[1], ".")) {
	case "figure", "fig":
		return docmodel.CaptionFigure, num, true
	case "table":
		return docmodel.CaptionTable, num, true
	default:
		return docmodel.CaptionEquation, num, true
	}
}

// medianFontSize seeds the running body-size average. The median is robust
// against a handful of oversized title and heading blocks.
func medianFontSize(blocks []docmodel.TextBlock) float64 {
	sizes := make([]float64, 0, len(blocks))
	for _, b := range blocks {
		if b.FontSize > 0 {
			sizes = append(sizes, b.FontSize)
		}
	}
	if len(sizes) == 0 {
		return 10.0
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

// pageCenters returns the horizontal midpoint of the text extent per page.
func pageCenters(blocks []docmodel.TextBlock) map[int]float64 {
	type bounds struct{ lo, hi float64 }
	ext := make(map[int]*bounds)
	for _, b := range blocks {
		e, ok := ext[b.Page]
		if !ok {
			ext[b.Page] = &bounds{lo: b.X0, hi: b.X1}
			continue
		}
		if b.X0 < e.lo {
			e.lo = b.X0
		}
		if b.X1 > e.hi {
			e.hi = b.X1
		}
	}
	centers := make(map[int]float64, len(ext))
	for p, e := range ext {
		centers[p] = (e.lo + e.hi) / 2
	}
	return centers
}
