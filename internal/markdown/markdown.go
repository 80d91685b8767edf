// Package markdown converts a markdown rendering of a paper — the payload
// the remote parse service returns — into the same structured-document
// aggregate the local pipeline produces. Headings map to section blocks,
// list items inside the bibliography become reference entries, and caption
// lines and image alt texts become figure captions.
package markdown

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/scholarlab/paperparse/internal/assemble"
	"github.com/scholarlab/paperparse/internal/docmodel"
	"github.com/scholarlab/paperparse/internal/layout"
)

var authorsLineRe = regexp.MustCompile(`(?i)^\**authors?\**\s*:\s*(.+)$`)

// Parse builds a structured document from markdown source. fallbackTitle
// is used when the document carries no level-1 heading.
func Parse(src []byte, fallbackTitle string) *docmodel.StructuredDocument {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	meta := docmodel.Metadata{Title: fallbackTitle}
	var blocks []docmodel.ClassifiedBlock

	inRefs := false
	titleFromH1 := false

	appendBody := func(t string) {
		if kind, num, ok := layout.ParseCaption(t); ok {
			blocks = append(blocks, docmodel.ClassifiedBlock{
				TextBlock: docmodel.TextBlock{Text: t},
				Role:      docmodel.RoleCaption,
				Kind:      kind,
				Number:    num,
			})
			return
		}
		if inRefs {
			// Reference runs keep line granularity so the boundary vote in
			// the extractor sees individual entries.
			for _, line := range strings.Split(t, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					blocks = append(blocks, docmodel.ClassifiedBlock{
						TextBlock: docmodel.TextBlock{Text: line},
						Role:      docmodel.RoleReferenceEntry,
					})
				}
			}
			return
		}
		blocks = append(blocks, docmodel.ClassifiedBlock{
			TextBlock: docmodel.TextBlock{Text: t},
			Role:      docmodel.RoleParagraph,
		})
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(string(node.Text(src)))
			if title == "" {
				continue
			}
			level := node.Level
			if level < 1 {
				level = 1
			}
			if level > 6 {
				level = 6
			}

			// The first H1 is the paper title, not a section. Once it is
			// consumed, the remaining headings shift up one level: H2
			// chapters become top-level sections.
			if level == 1 && !titleFromH1 {
				titleFromH1 = true
				meta.Title = title
				continue
			}
			if titleFromH1 && level > 1 {
				level--
			}

			if layout.IsReferenceHeading(title) {
				inRefs = true
			} else if level <= 2 {
				inRefs = false
			}
			blocks = append(blocks, docmodel.ClassifiedBlock{
				TextBlock: docmodel.TextBlock{Text: title},
				Role:      docmodel.RoleHeading,
				Level:     level,
			})

		case *ast.List:
			// Bibliographies frequently arrive as ordered lists; each item
			// is one entry.
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				if t := extractText(item, src); t != "" {
					appendBody(t)
				}
			}

		default:
			t := extractText(n, src)
			if t == "" {
				continue
			}
			if m := authorsLineRe.FindStringSubmatch(t); m != nil && len(meta.Authors) == 0 {
				meta.Authors = splitAuthors(m[1])
				continue
			}
			appendBody(t)
		}
	}

	doc := buildFromBlocks(blocks, meta)
	return doc
}

func buildFromBlocks(blocks []docmodel.ClassifiedBlock, meta docmodel.Metadata) *docmodel.StructuredDocument {
	h := assemble.BuildHierarchy(blocks, meta.Title)

	if meta.Abstract == "" {
		meta.Abstract = abstractFromSections(h.Sections)
	}

	return &docmodel.StructuredDocument{
		Metadata:   meta,
		Sections:   h.Sections,
		References: assemble.ExtractReferences(blocks),
		Figures:    assemble.DetectFigures(blocks, h),
	}
}

func abstractFromSections(sections []docmodel.Section) string {
	for _, s := range sections {
		t := strings.ToLower(strings.TrimSpace(s.Title))
		if t == "abstract" {
			return s.Content
		}
	}
	return ""
}

var authorSplitRe = regexp.MustCompile(`\s*(?:,|;| and )\s*`)

func splitAuthors(list string) []string {
	parts := authorSplitRe.Split(list, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// extractText collects the text content of a goldmark node. Inline
// children are preferred over raw source lines so image alt text surfaces
// without markdown syntax; soft line breaks are preserved.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		if sub := extractText(c, src); sub != "" {
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(sub)
		}
	}
	if buf.Len() == 0 && n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
	}
	return strings.TrimSpace(buf.String())
}
