package assemble

import (
	"regexp"
	"strings"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

var nameLikeRe = regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`)

// ExtractMetadata pulls the title, author list, and abstract out of the
// classified blocks. The title is the largest-font block near the top of
// the first page; authors are the short name-bearing lines between the
// title and the first heading; the abstract is the paragraph run under the
// Abstract heading. fallbackTitle is used when nothing qualifies.
func ExtractMetadata(blocks []docmodel.ClassifiedBlock, fallbackTitle string) docmodel.Metadata {
	md := docmodel.Metadata{Title: fallbackTitle}

	titleIdx := findTitle(blocks)
	if titleIdx >= 0 {
		md.Title = strings.TrimSpace(blocks[titleIdx].Text)
	}

	md.Authors = findAuthors(blocks, titleIdx)
	md.Abstract = findAbstract(blocks)
	return md
}

// findTitle returns the index of the best title candidate on the first
// page, or -1.
func findTitle(blocks []docmodel.ClassifiedBlock) int {
	if len(blocks) == 0 {
		return -1
	}
	firstPage := blocks[0].Page

	best := -1
	var bestSize float64
	for i, b := range blocks {
		if b.Page != firstPage {
			break
		}
		t := strings.TrimSpace(b.Text)
		if t == "" || len(t) > 200 {
			continue
		}
		if b.FontSize > bestSize {
			bestSize = b.FontSize
			best = i
		}
	}
	return best
}

// findAuthors scans the first-page blocks after the title for short lines
// that look like author names or carry an email address.
func findAuthors(blocks []docmodel.ClassifiedBlock, titleIdx int) []string {
	if titleIdx < 0 {
		return nil
	}
	firstPage := blocks[titleIdx].Page

	var authors []string
	for _, b := range blocks[titleIdx+1:] {
		if b.Page != firstPage || b.Role == docmodel.RoleHeading {
			break
		}
		t := strings.TrimSpace(b.Text)
		if t == "" || b.WordCount() > 12 {
			continue
		}
		if !strings.Contains(t, "@") && !nameLikeRe.MatchString(t) {
			continue
		}
		for _, part := range splitAuthorList(t) {
			if part != "" {
				authors = append(authors, part)
			}
		}
	}
	return authors
}

var authorSepRe = regexp.MustCompile(`\s*(?:,|;| and )\s*`)

func splitAuthorList(line string) []string {
	parts := authorSepRe.Split(line, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// findAbstract joins the paragraph run under an Abstract heading.
func findAbstract(blocks []docmodel.ClassifiedBlock) string {
	var parts []string
	in := false
	for _, b := range blocks {
		if b.Role == docmodel.RoleHeading {
			if in {
				break
			}
			if normalizedTitle(b.Text) == "abstract" {
				in = true
			}
			continue
		}
		if in && b.Role == docmodel.RoleParagraph {
			parts = append(parts, strings.TrimSpace(b.Text))
		}
	}
	return strings.Join(parts, " ")
}

var leadingNumberRe = regexp.MustCompile(`^\d+(?:\.\d+)*[\.\)]?\s+`)

func normalizedTitle(text string) string {
	t := leadingNumberRe.ReplaceAllString(strings.TrimSpace(text), "")
	return strings.ToLower(strings.Trim(t, " :.-"))
}
