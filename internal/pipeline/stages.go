package pipeline

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/scholarlab/paperparse/internal/assemble"
	"github.com/scholarlab/paperparse/internal/docmodel"
	"github.com/scholarlab/paperparse/internal/layout"
	"github.com/scholarlab/paperparse/internal/markdown"
	"github.com/scholarlab/paperparse/internal/pdfsource"
	"github.com/scholarlab/paperparse/internal/remoteparse"
)

// academicInstruction is the parsing directive sent to the remote service
// in structured mode. It asks for faithful section headings and verbatim
// bibliography entries, which is what the downstream builders need.
const academicInstruction = "This is an academic paper. Preserve the section " +
	"heading hierarchy exactly, keep bibliography entries as separate lines, " +
	"and keep figure and table captions on their own lines."

// DefaultStages assembles the standard four-stage fallback chain for one
// loaded document. A nil remote client drops the two remote stages, which
// covers offline operation.
func DefaultStages(doc *pdfsource.Document, remote *remoteparse.Client, cls *layout.Classifier) []Stage {
	var stages []Stage

	if remote != nil {
		stages = append(stages,
			Stage{
				Method: MethodRemoteStructured,
				Run: func(ctx context.Context) (*docmodel.StructuredDocument, []string, error) {
					payload, err := remote.Parse(ctx, doc.Data, doc.Filename, doc.Pages,
						remoteparse.FormatMarkdown, academicInstruction)
					if err != nil {
						return nil, nil, err
					}
					return markdown.Parse(payload, doc.Title()), nil, nil
				},
			},
			Stage{
				Method: MethodRemoteGeneric,
				Run: func(ctx context.Context) (*docmodel.StructuredDocument, []string, error) {
					payload, err := remote.Parse(ctx, doc.Data, doc.Filename, doc.Pages,
						remoteparse.FormatText, "")
					if err != nil {
						return nil, nil, err
					}
					return markdown.Parse(payload, doc.Title()), nil, nil
				},
			},
		)
	}

	stages = append(stages,
		Stage{
			Method: MethodLocalHeuristic,
			Run: func(ctx context.Context) (*docmodel.StructuredDocument, []string, error) {
				classified, warns := cls.Classify(doc.Blocks)
				warnings := make([]string, 0, len(warns))
				for _, w := range warns {
					warnings = append(warnings, w.Message)
				}
				return assemble.BuildDocument(classified, doc.Title()), warnings, nil
			},
		},
		Stage{
			Method: MethodRawText,
			Run: func(ctx context.Context) (*docmodel.StructuredDocument, []string, error) {
				return rawTextDocument(doc), []string{
					"document stored as an unstructured text dump",
				}, nil
			},
		},
	)
	return stages
}

// rawTextDocument is the last-resort aggregate: the filename as title and
// the whole extracted text as a single root section.
func rawTextDocument(doc *pdfsource.Document) *docmodel.StructuredDocument {
	text := doc.Text()
	return &docmodel.StructuredDocument{
		Metadata: docmodel.Metadata{Title: doc.Title()},
		Sections: []docmodel.Section{{
			ID:        uuid.New(),
			Title:     doc.Title(),
			Level:     1,
			Order:     0,
			Content:   text,
			WordCount: len(strings.Fields(text)),
		}},
	}
}
