package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

const samplePaper = `# Robustness of Deep Networks

**Authors:** Alice Smith, Bob Jones

## Abstract

We study noise and its effect on accuracy.

## Introduction

Deep networks are widely deployed.

### Motivation

Failures are costly.

Figure 1: Accuracy under increasing noise.

## References

1. A. Smith. Understanding noise. NeurIPS, 2019. https://doi.org/10.1234/abc
2. B. Jones. Robust training. ICML, 2020.
`

func TestParseFullPaper(t *testing.T) {
	doc := Parse([]byte(samplePaper), "fallback.pdf")
	require.NotNil(t, doc)

	assert.Equal(t, "Robustness of Deep Networks", doc.Metadata.Title)
	assert.Equal(t, []string{"Alice Smith", "Bob Jones"}, doc.Metadata.Authors)
	assert.Equal(t, "We study noise and its effect on accuracy.", doc.Metadata.Abstract)

	titles := make([]string, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"Abstract", "Introduction", "Motivation", "References"}, titles)

	// H2 under a consumed H1 title stays a top-level section; H3 nests.
	intro := doc.Sections[1]
	motivation := doc.Sections[2]
	require.NotNil(t, motivation.ParentID)
	assert.Equal(t, intro.ID, *motivation.ParentID)

	require.Len(t, doc.References, 2)
	assert.Equal(t, "10.1234/abc", doc.References[0].DOI)
	assert.Equal(t, 2020, doc.References[1].Year)

	require.Len(t, doc.Figures, 1)
	assert.Equal(t, "Figure 1", doc.Figures[0].ReferenceID)
	assert.Equal(t, docmodel.FigureTypeFigure, doc.Figures[0].Type)
	require.NotNil(t, doc.Figures[0].SectionID)
	assert.Equal(t, motivation.ID, *doc.Figures[0].SectionID)
}

func TestParseFallbackTitle(t *testing.T) {
	src := "## Introduction\n\nNo top-level heading here.\n"
	doc := Parse([]byte(src), "my-paper")
	assert.Equal(t, "my-paper", doc.Metadata.Title)
	require.NotEmpty(t, doc.Sections)
	assert.Equal(t, "Introduction", doc.Sections[0].Title)
}

func TestParseFirstH1IsTitleNotSection(t *testing.T) {
	src := "# The Title\n\nIntro text.\n\n# Another H1\n\nMore text.\n"
	doc := Parse([]byte(src), "fallback")

	assert.Equal(t, "The Title", doc.Metadata.Title)
	titles := make([]string, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		titles = append(titles, s.Title)
	}
	// The preamble paragraph forces an implicit root; the second H1 is a
	// real section.
	assert.Contains(t, titles, "Another H1")
	assert.NotContains(t, titles, "The Title\n\nIntro text.")
}

func TestParseReferenceListItems(t *testing.T) {
	src := "## References\n\n1. First entry. 2019.\n2. Second entry. 2020.\n"
	doc := Parse([]byte(src), "fallback")

	require.Len(t, doc.References, 2)
	assert.Contains(t, doc.References[0].RawCitation, "First entry")
	assert.Equal(t, 2019, doc.References[0].Year)
}

func TestParseBibliographyHeadingVariants(t *testing.T) {
	src := "## Bibliography\n\nSmith, A. (2019). A paper.\n"
	doc := Parse([]byte(src), "fallback")
	require.Len(t, doc.References, 1)
	assert.Equal(t, 2019, doc.References[0].Year)
}

func TestParseEmptyInput(t *testing.T) {
	doc := Parse(nil, "fallback")
	require.NotNil(t, doc)
	assert.Equal(t, "fallback", doc.Metadata.Title)
	assert.Empty(t, doc.Sections)
}
