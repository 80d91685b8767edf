package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

func TestNormalizeHeading(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"References", "references"},
		{"2. References:", "references"},
		{"3.1 Related Work", "related work"},
		{"  Conclusion.  ", "conclusion"},
		{"7) Appendix -", "appendix"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeHeading(tt.in), "input %q", tt.in)
	}
}

func TestIsReferenceHeading(t *testing.T) {
	assert.True(t, IsReferenceHeading("References"))
	assert.True(t, IsReferenceHeading("6. Bibliography"))
	assert.False(t, IsReferenceHeading("Related Work"))
	assert.False(t, IsReferenceHeading("Reference counting in Go"))
}

func TestHeadingLevelNumberingDepth(t *testing.T) {
	c := NewDefault()
	tests := []struct {
		text string
		want int
	}{
		{"2 Method", 1},
		{"2.3 Ablations", 2},
		{"2.3.1 Small models", 3},
		{"1.2.3.4.5 Way too deep", 4}, // clamped
	}
	for _, tt := range tests {
		b := docmodel.TextBlock{Text: tt.text, FontSize: 10}
		assert.Equal(t, tt.want, c.headingLevel(b, 10, 0, false), "input %q", tt.text)
	}
}

func TestHeadingLevelNumberedCitationInsideReferences(t *testing.T) {
	c := NewDefault()
	cite := docmodel.TextBlock{Text: "1. Smith, A. On noise. 2019.", FontSize: 10}

	assert.Equal(t, 0, c.headingLevel(cite, 10, 0, true), "citation numbering is not a heading")
	assert.Equal(t, 1, c.headingLevel(cite, 10, 0, false))

	// Numbering plus a typographic cue still breaks the run.
	bold := docmodel.TextBlock{Text: "8 Supplementary Proofs", FontSize: 10, Bold: true}
	assert.Equal(t, 1, c.headingLevel(bold, 10, 0, true))
	large := docmodel.TextBlock{Text: "8 Supplementary Proofs", FontSize: 12}
	assert.Equal(t, 1, c.headingLevel(large, 10, 0, true))
}

func TestHeadingLevelFontRatios(t *testing.T) {
	c := NewDefault()
	body := 10.0
	tests := []struct {
		name string
		size float64
		bold bool
		want int
	}{
		{"very large", 15.0, false, 1},
		{"large", 12.6, false, 2},
		{"slightly large", 11.3, false, 3},
		{"bold same size", 10.0, true, 4},
		{"plain body", 10.0, false, 0},
		{"smaller than body", 8.0, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := docmodel.TextBlock{Text: "Some Heading Text", FontSize: tt.size, Bold: tt.bold}
			assert.Equal(t, tt.want, c.headingLevel(b, body, 0, false))
		})
	}
}

func TestHeadingLevelRejectsLongText(t *testing.T) {
	c := NewDefault()
	b := docmodel.TextBlock{
		Text:     "This sentence carries far too many words to plausibly be a heading in any academic paper layout style known",
		FontSize: 15,
	}
	assert.Equal(t, 0, c.headingLevel(b, 10, 0, false))
}

func TestHeadingLevelCanonicalBeatsTypography(t *testing.T) {
	c := NewDefault()
	// Small font, but the canonical name wins.
	b := docmodel.TextBlock{Text: "Acknowledgements", FontSize: 9}
	assert.Equal(t, 1, c.headingLevel(b, 10, 0, false))
}
