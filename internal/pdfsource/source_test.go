package pdfsource

import (
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

func frag(x, y, w, size float64, font, s string) pdf.Text {
	return pdf.Text{Font: font, FontSize: size, X: x, Y: y, W: w, S: s}
}

func TestMergeRowsJoinsFragmentsOnOneBaseline(t *testing.T) {
	texts := []pdf.Text{
		frag(72, 700, 40, 10, "Times-Roman", "Deep"),
		frag(114, 700, 60, 10, "Times-Roman", "networks"),
		frag(176, 700, 30, 10, "Times-Roman", "fail."),
	}

	blocks := mergeRows(texts, 0)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Deep networks fail.", blocks[0].Text)
	assert.Equal(t, 72.0, blocks[0].X0)
	assert.Equal(t, 206.0, blocks[0].X1)
	assert.Equal(t, 10.0, blocks[0].FontSize)
}

func TestMergeRowsSplitsDistinctBaselines(t *testing.T) {
	texts := []pdf.Text{
		frag(72, 688, 100, 10, "Times-Roman", "second line"),
		frag(72, 700, 100, 10, "Times-Roman", "first line"),
	}

	blocks := mergeRows(texts, 2)
	require.Len(t, blocks, 2)
	assert.Equal(t, "first line", blocks[0].Text)
	assert.Equal(t, "second line", blocks[1].Text)
	assert.Equal(t, 2, blocks[0].Page)
}

func TestMergeRowsToleratesSmallBaselineJitter(t *testing.T) {
	texts := []pdf.Text{
		frag(72, 700, 40, 10, "Times-Roman", "same"),
		frag(120, 698.5, 40, 10, "Times-Roman", "line"),
	}

	blocks := mergeRows(texts, 0)
	require.Len(t, blocks, 1)
	assert.Equal(t, "same line", blocks[0].Text)
}

func TestMergeRowsSkipsWhitespaceFragments(t *testing.T) {
	texts := []pdf.Text{
		frag(72, 700, 5, 10, "Times-Roman", "  "),
		frag(80, 700, 40, 10, "Times-Roman", "text"),
	}

	blocks := mergeRows(texts, 0)
	require.Len(t, blocks, 1)
	assert.Equal(t, "text", blocks[0].Text)
}

func TestMergeRowsEmpty(t *testing.T) {
	assert.Nil(t, mergeRows(nil, 0))
}

func TestBuildRowStyleFromDominantFont(t *testing.T) {
	row := []pdf.Text{
		frag(72, 700, 10, 12, "Times-Roman", "a"),
		frag(84, 700, 90, 12, "Helvetica-BoldOblique", "heavy slanted run"),
	}

	b := buildRow(row, 0)
	assert.True(t, b.Bold)
	assert.True(t, b.Italic)
	assert.Equal(t, 12.0, b.FontSize)
}

func TestBuildRowGlyphRunsConcatenateWithoutSpaces(t *testing.T) {
	// Per-glyph fragments inside one word arrive contiguous.
	row := []pdf.Text{
		frag(72, 700, 6, 10, "Times-Roman", "w"),
		frag(78, 700, 6, 10, "Times-Roman", "o"),
		frag(84, 700, 6, 10, "Times-Roman", "r"),
		frag(90, 700, 6, 10, "Times-Roman", "d"),
	}

	b := buildRow(row, 0)
	assert.Equal(t, "word", b.Text)
}

func TestDocumentTitleStripsExtension(t *testing.T) {
	d := &Document{Filename: "attention-is-all-you-need.pdf"}
	assert.Equal(t, "attention-is-all-you-need", d.Title())
}

func TestDocumentText(t *testing.T) {
	d := &Document{Blocks: []docmodel.TextBlock{
		{Text: "line one"},
		{Text: "line two"},
	}}
	assert.Equal(t, "line one\nline two\n", d.Text())
}

func TestLoadRejectsMissingAndNonPDF(t *testing.T) {
	s := New(1024, nil)

	_, err := s.Load("/nonexistent/paper.pdf")
	assert.ErrorContains(t, err, "does not exist")

	_, err = s.Load("source.go")
	assert.ErrorContains(t, err, "not a PDF")
}
