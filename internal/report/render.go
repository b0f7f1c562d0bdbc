package report

import (
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/salesloom/internal/utils"
	"github.com/go-pdf/fpdf"
)

// DefaultOutputPath is where gerar_relatorio_pdf writes when no path is given.
const DefaultOutputPath = "reports/relatorio_executivo.pdf"

// Renderer writes report text to outputPath and returns the written path.
// The first line of text is the title; the rest is split into blocks on
// blank lines and rendered verbatim in a monospaced font.
type Renderer interface {
	Render(text, outputPath string) (string, error)
}

// RendererFor picks a renderer by file extension (.html/.htm, otherwise PDF).
func RendererFor(path string) Renderer {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return HTMLRenderer{}
	}
	return PDFRenderer{}
}

func splitBlocks(text string) (title string, blocks []string) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) == 0 {
		return "", nil
	}
	title = strings.TrimSpace(lines[0])
	for _, b := range strings.Split(strings.Join(lines[1:], "\n"), "\n\n") {
		b = strings.Trim(b, "\n")
		if strings.TrimSpace(b) == "" {
			continue
		}
		blocks = append(blocks, b)
	}
	return title, blocks
}

func ensureParent(path string) error {
	return utils.EnsureDir(filepath.Dir(path))
}

// PDFRenderer writes an A4 PDF with 2 cm margins.
type PDFRenderer struct{}

func (PDFRenderer) Render(text, outputPath string) (string, error) {
	if outputPath == "" {
		outputPath = DefaultOutputPath
	}
	if err := ensureParent(outputPath); err != nil {
		return "", err
	}
	title, blocks := splitBlocks(text)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 8, tr(title), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Courier", "", 9)
	for _, b := range blocks {
		pdf.MultiCell(0, 4, tr(b), "", "L", false)
		pdf.Ln(3.5)
	}
	if err := pdf.OutputFileAndClose(outputPath); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return outputPath, nil
}

// HTMLRenderer writes a standalone HTML page with one <pre> per block.
type HTMLRenderer struct{}

func (HTMLRenderer) Render(text, outputPath string) (string, error) {
	if outputPath == "" {
		outputPath = strings.TrimSuffix(DefaultOutputPath, ".pdf") + ".html"
	}
	if err := ensureParent(outputPath); err != nil {
		return "", err
	}
	title, blocks := splitBlocks(text)
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("<style>pre{font-family:Courier,monospace;font-size:9pt}</style>\n</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	for _, blk := range blocks {
		fmt.Fprintf(&b, "<pre>%s</pre>\n", html.EscapeString(blk))
	}
	b.WriteString("</body>\n</html>\n")
	if err := utils.SafeWriteFile(outputPath, []byte(b.String())); err != nil {
		return "", err
	}
	return outputPath, nil
}
