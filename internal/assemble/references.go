package assemble

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

var (
	bracketBoundaryRe = regexp.MustCompile(`^\[\d+\][\.\)]?\s*`)
	numberBoundaryRe  = regexp.MustCompile(`^\d+[\.\)]\s+`)

	doiRe  = regexp.MustCompile(`10\.\d{4,9}/[-._;()/:A-Za-z0-9]+`)
	urlRe  = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
	yearRe = regexp.MustCompile(`\((19|20)\d{2}\)|\b(19|20)\d{2}\b`)
)

// boundaryStyle is how individual citations are delimited in the
// reference run.
type boundaryStyle int

const (
	styleParagraph boundaryStyle = iota // one block per citation
	styleBracketed                      // "[12] Author ..."
	styleNumbered                       // "12. Author ..."
)

// voteWindow bounds how many leading blocks participate in the
// boundary-style majority vote.
const voteWindow = 10

// ExtractReferences splits the ReferenceEntry-tagged run into individual
// citation records. The raw citation text is preserved verbatim; DOI, URL
// and year are extracted best effort. An empty run yields an empty list —
// a missing bibliography is never an error.
func ExtractReferences(blocks []docmodel.ClassifiedBlock) []docmodel.Reference {
	var lines []string
	for _, b := range blocks {
		if b.Role != docmodel.RoleReferenceEntry {
			continue
		}
		if t := strings.TrimSpace(b.Text); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	style := dominantBoundaryStyle(lines)
	citations := splitCitations(lines, style)

	refs := make([]docmodel.Reference, 0, len(citations))
	for i, raw := range citations {
		ref := docmodel.Reference{
			ID:          uuid.New(),
			Order:       i,
			RawCitation: raw,
		}
		if m := doiRe.FindString(raw); m != "" {
			ref.DOI = strings.TrimRight(m, ".,;")
		}
		if m := urlRe.FindString(raw); m != "" {
			ref.URL = strings.TrimRight(m, ".,;")
			if ref.DOI == "" {
				if i := strings.Index(ref.URL, "doi.org/"); i >= 0 {
					ref.DOI = ref.URL[i+len("doi.org/"):]
				}
			}
		}
		if y := extractYear(raw); y != 0 {
			ref.Year = y
		}
		refs = append(refs, ref)
	}
	return refs
}

// dominantBoundaryStyle decides how citations are delimited by majority
// vote over the first voteWindow lines.
func dominantBoundaryStyle(lines []string) boundaryStyle {
	n := len(lines)
	if n > voteWindow {
		n = voteWindow
	}
	var bracketed, numbered int
	for _, l := range lines[:n] {
		switch {
		case bracketBoundaryRe.MatchString(l):
			bracketed++
		case numberBoundaryRe.MatchString(l):
			numbered++
		}
	}
	switch {
	case bracketed >= numbered && bracketed > 0:
		return styleBracketed
	case numbered > 0:
		return styleNumbered
	default:
		return styleParagraph
	}
}

func splitCitations(lines []string, style boundaryStyle) []string {
	if style == styleParagraph {
		return lines
	}
	boundary := bracketBoundaryRe
	if style == styleNumbered {
		boundary = numberBoundaryRe
	}

	var citations []string
	var cur []string
	for _, l := range lines {
		if boundary.MatchString(l) && len(cur) > 0 {
			citations = append(citations, strings.Join(cur, " "))
			cur = cur[:0]
		}
		cur = append(cur, l)
	}
	if len(cur) > 0 {
		citations = append(citations, strings.Join(cur, " "))
	}
	return citations
}

func extractYear(raw string) int {
	m := yearRe.FindString(raw)
	if m == "" {
		return 0
	}
	m = strings.Trim(m, "()")
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return y
}
