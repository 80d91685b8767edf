package assemble

import "github.com/scholarlab/paperparse/internal/docmodel"

// BuildDocument runs the three builders over a classified block sequence
// and assembles the structured-document aggregate. The extraction outcome
// is stamped later by the pipeline controller.
func BuildDocument(blocks []docmodel.ClassifiedBlock, fallbackTitle string) *docmodel.StructuredDocument {
	md := ExtractMetadata(blocks, fallbackTitle)

	h := BuildHierarchy(blocks, md.Title)

	return &docmodel.StructuredDocument{
		Metadata:   md,
		Sections:   h.Sections,
		References: ExtractReferences(blocks),
		Figures:    DetectFigures(blocks, h),
	}
}
