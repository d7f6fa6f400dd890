package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

const (
	// maxPDFPages bounds how many pages are read from a single document.
	maxPDFPages = 120
	// maxSheetRows bounds how many rows are serialized per spreadsheet sheet.
	maxSheetRows = 200
)

// plainTextExts are read raw, tolerating invalid encodings.
var plainTextExts = map[string]struct{}{
	".txt": {}, ".py": {}, ".js": {}, ".ts": {}, ".html": {}, ".css": {},
}

// Extractor converts supported files into flat text for indexing.
type Extractor struct {
	markdown goldmark.Markdown
}

// NewExtractor creates an extractor. The markdown parser is configured with
// table support so table rows survive as pipe-joined cell text.
func NewExtractor() *Extractor {
	return &Extractor{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// Extract converts a file into flat text. Unsupported extensions yield an
// empty string and a nil error. A non-nil error means extraction failed; the
// caller logs it and indexes the file as empty; a single bad file must never
// abort an index build.
func (e *Extractor) Extract(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".md":
		return e.extractMarkdown(path)
	case ext == ".docx":
		return extractDocx(path)
	case ext == ".xlsx":
		return extractSpreadsheet(path)
	case ext == ".pdf":
		return extractPDF(path)
	default:
		if _, ok := plainTextExts[ext]; ok {
			return extractPlainText(path)
		}
		return "", nil
	}
}

// extractPlainText reads the raw bytes. Invalid UTF-8 is passed through
// untouched; the chunker and retriever operate on bytes, not runes.
func extractPlainText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(raw), nil
}

// extractMarkdown walks the goldmark AST and emits non-empty paragraph text
// plus pipe-joined table-row cell text in document order.
func (e *Extractor) extractMarkdown(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc := e.markdown.Parser().Parse(text.NewReader(raw))

	var parts []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.Heading, *ast.Paragraph:
			if t := strings.TrimSpace(nodeText(n, raw)); t != "" {
				parts = append(parts, t)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			var sb strings.Builder
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				sb.Write(line.Value(raw))
			}
			if t := strings.TrimSpace(sb.String()); t != "" {
				parts = append(parts, t)
			}
			return ast.WalkSkipChildren, nil
		}
		// Table rows come from the extension; match on kind name as the node
		// types live in a separate package.
		kind := n.Kind().String()
		if kind == "TableRow" || kind == "TableHeader" {
			cells := tableRowCells(n, raw)
			if anyNonEmpty(cells) {
				parts = append(parts, strings.Join(cells, " | "))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(parts, "\n"), nil
}

// nodeText collects the literal text under a node.
func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(source))
		case *ast.String:
			sb.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

func tableRowCells(row ast.Node, source []byte) []string {
	var cells []string
	_ = ast.Walk(row, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind().String() == "TableCell" {
			cells = append(cells, strings.TrimSpace(nodeText(node, source)))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return cells
}

func anyNonEmpty(ss []string) bool {
	for _, s := range ss {
		if s != "" {
			return true
		}
	}
	return false
}

// extractDocx emits non-empty paragraph text, then one line per table row of
// " | "-joined cell text. Quotation templates carry most of their content in
// tables, so rows must survive as keyword-searchable lines.
func extractDocx(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open document %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat document %s: %w", path, err)
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("failed to parse document %s: %w", path, err)
	}

	var parts []string
	for _, item := range doc.Document.Body.Items {
		if p, ok := item.(*docx.Paragraph); ok {
			if t := strings.TrimSpace(p.String()); t != "" {
				parts = append(parts, t)
			}
		}
	}
	for _, item := range doc.Document.Body.Items {
		tbl, ok := item.(*docx.Table)
		if !ok {
			continue
		}
		for _, row := range tbl.TableRows {
			cells := make([]string, 0, len(row.TableCells))
			for _, cell := range row.TableCells {
				var cellParts []string
				for _, p := range cell.Paragraphs {
					if t := strings.TrimSpace(p.String()); t != "" {
						cellParts = append(cellParts, t)
					}
				}
				cells = append(cells, strings.Join(cellParts, " "))
			}
			if anyNonEmpty(cells) {
				parts = append(parts, strings.Join(cells, " | "))
			}
		}
	}
	return strings.Join(parts, "\n"), nil
}

// extractSpreadsheet serializes each sheet as a header marker line followed
// by up to maxSheetRows rows of comma-separated cell text.
func extractSpreadsheet(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open spreadsheet %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var out []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			// A bad sheet does not discard the others.
			continue
		}
		out = append(out, fmt.Sprintf("### Sheet: %s", sheet))
		limit := len(rows)
		if limit > maxSheetRows {
			limit = maxSheetRows
		}
		for _, row := range rows[:limit] {
			out = append(out, strings.Join(row, ","))
		}
	}
	return strings.Join(out, "\n"), nil
}

// extractPDF reads text from at most maxPDFPages pages. Pages whose
// extraction fails or yields only whitespace are skipped. The pdf library
// panics on some malformed files; that is recovered into an error here.
func extractPDF(path string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = fmt.Errorf("pdf extraction panicked on %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	pages := reader.NumPage()
	if pages > maxPDFPages {
		pages = maxPDFPages
	}

	var parts []string
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		txt, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if txt = strings.TrimSpace(txt); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, "\n"), nil
}
