package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

func TestDetectFiguresAttachesToEnclosingSection(t *testing.T) {
	blocks := []docmodel.ClassifiedBlock{
		heading(1, "Results"),
		caption(docmodel.CaptionFigure, 1, "Figure 1: Accuracy under noise."),
		heading(1, "Discussion"),
		caption(docmodel.CaptionTable, 2, "Table 2: Runtime comparison."),
	}
	h := BuildHierarchy(blocks, "fallback")

	figures := DetectFigures(blocks, h)
	require.Len(t, figures, 2)

	fig := figures[0]
	assert.Equal(t, docmodel.FigureTypeFigure, fig.Type)
	assert.Equal(t, "Accuracy under noise.", fig.Caption)
	assert.Equal(t, "Figure 1", fig.ReferenceID)
	require.NotNil(t, fig.SectionID)
	assert.Equal(t, h.Sections[0].ID, *fig.SectionID)

	tbl := figures[1]
	assert.Equal(t, docmodel.FigureTypeTable, tbl.Type)
	assert.Equal(t, "Table 2", tbl.ReferenceID)
	require.NotNil(t, tbl.SectionID)
	assert.Equal(t, h.Sections[1].ID, *tbl.SectionID)
}

func TestDetectFiguresBeforeAnyHeading(t *testing.T) {
	// A caption ahead of the first heading attaches to the document root.
	blocks := []docmodel.ClassifiedBlock{
		caption(docmodel.CaptionFigure, 1, "Figure 1: Teaser."),
		heading(1, "Introduction"),
	}
	h := BuildHierarchy(blocks, "fallback")

	figures := DetectFigures(blocks, h)
	require.Len(t, figures, 1)
	assert.Nil(t, figures[0].SectionID)
}

func TestDetectFiguresOrderAndKinds(t *testing.T) {
	blocks := []docmodel.ClassifiedBlock{
		heading(1, "Results"),
		caption(docmodel.CaptionEquation, 3, "Equation 3: Update rule."),
		caption(docmodel.CaptionFigure, 2, "Fig. 2: Loss curve."),
	}
	h := BuildHierarchy(blocks, "fallback")

	figures := DetectFigures(blocks, h)
	require.Len(t, figures, 2)
	assert.Equal(t, 0, figures[0].Order)
	assert.Equal(t, 1, figures[1].Order)
	assert.Equal(t, "Equation 3", figures[0].ReferenceID)
	assert.Equal(t, docmodel.FigureTypeEquation, figures[0].Type)
	assert.Equal(t, "Figure 2", figures[1].ReferenceID)
	assert.Equal(t, "Loss curve.", figures[1].Caption)
}
