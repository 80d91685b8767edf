// Package pdfsource is the text block source: it opens a PDF, validates
// it, and yields positioned line-level text blocks for the layout
// classifier. pdfcpu handles structural validation and the page count;
// ledongthuc/pdf supplies the positioned text fragments, which are merged
// into baseline rows here.
package pdfsource

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

// Document is a loaded, validated PDF with its extracted text blocks.
type Document struct {
	Path     string
	Filename string
	Size     int64
	Pages    int
	Data     []byte
	Blocks   []docmodel.TextBlock
}

// Title returns the filename without its extension, the last-resort
// document title.
func (d *Document) Title() string {
	return strings.TrimSuffix(d.Filename, filepath.Ext(d.Filename))
}

// Text concatenates all block text in raster order.
func (d *Document) Text() string {
	var b strings.Builder
	for _, blk := range d.Blocks {
		b.WriteString(blk.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Source loads PDFs from disk.
type Source struct {
	maxFileSize int64
	log         *slog.Logger
}

// New creates a source enforcing the given file-size limit.
func New(maxFileSize int64, log *slog.Logger) *Source {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Source{maxFileSize: maxFileSize, log: log}
}

// Load reads, validates, and extracts a PDF. Pages whose text cannot be
// decoded are skipped rather than failing the whole document.
func (s *Source) Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return nil, fmt.Errorf("file is not a PDF: %s", path)
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), s.maxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	pages, err := validate(data)
	if err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}

	blocks, err := extractBlocks(data, info.Size())
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	s.log.Debug("loaded pdf", "path", path, "pages", pages, "blocks", len(blocks))

	return &Document{
		Path:     path,
		Filename: filepath.Base(path),
		Size:     info.Size(),
		Pages:    pages,
		Data:     data,
		Blocks:   blocks,
	}, nil
}

// validate runs a relaxed pdfcpu read and returns the page count.
func validate(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("read context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return ctx.PageCount, nil
}

// extractBlocks pulls positioned text fragments page by page and merges
// them into baseline rows.
func extractBlocks(data []byte, size int64) ([]docmodel.TextBlock, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), size)
	if err != nil {
		return nil, err
	}

	var blocks []docmodel.TextBlock
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		blocks = append(blocks, mergeRows(content.Text, pageNum-1)...)
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("no text content could be extracted")
	}
	return blocks, nil
}

// rowTolerance is the max baseline Y delta for fragments to share a row.
const rowTolerance = 2.0

// mergeRows groups fragments by baseline and joins them left to right
// into one TextBlock per visual line.
func mergeRows(texts []pdf.Text, page int) []docmodel.TextBlock {
	frags := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t.S) != "" {
			frags = append(frags, t)
		}
	}
	if len(frags) == 0 {
		return nil
	}

	sort.SliceStable(frags, func(i, j int) bool {
		if frags[i].Y != frags[j].Y {
			return frags[i].Y > frags[j].Y
		}
		return frags[i].X < frags[j].X
	})

	var blocks []docmodel.TextBlock
	row := []pdf.Text{frags[0]}
	for _, f := range frags[1:] {
		if row[0].Y-f.Y <= rowTolerance {
			row = append(row, f)
			continue
		}
		blocks = append(blocks, buildRow(row, page))
		row = []pdf.Text{f}
	}
	blocks = append(blocks, buildRow(row, page))
	return blocks
}

func buildRow(row []pdf.Text, page int) docmodel.TextBlock {
	sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })

	var sb strings.Builder
	var widest pdf.Text
	x0, x1 := row[0].X, row[0].X+row[0].W
	y := row[0].Y
	maxSize := 0.0

	for i, f := range row {
		if i > 0 {
			prev := row[i-1]
			// Insert a space for real gaps between fragments; glyph runs
			// inside a word arrive nearly contiguous.
			if f.X-(prev.X+prev.W) > prev.FontSize*0.15 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(f.S)

		if f.X < x0 {
			x0 = f.X
		}
		if f.X+f.W > x1 {
			x1 = f.X + f.W
		}
		if f.FontSize > maxSize {
			maxSize = f.FontSize
		}
		if f.W > widest.W {
			widest = f
		}
	}

	font := strings.ToLower(widest.Font)
	return docmodel.TextBlock{
		Page:     page,
		X0:       x0,
		Y0:       y,
		X1:       x1,
		Y1:       y + maxSize,
		Text:     strings.TrimSpace(sb.String()),
		FontSize: widest.FontSize,
		Bold:     strings.Contains(font, "bold"),
		Italic:   strings.Contains(font, "italic") || strings.Contains(font, "oblique"),
	}
}
