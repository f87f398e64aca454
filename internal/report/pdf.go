package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// ════════════════════════════════════════════════════════════════════
// PDF renderer: line-prefix markdown to US Letter PDF
// ════════════════════════════════════════════════════════════════════

// BlockKind is the style a markdown line is rendered with.
type BlockKind string

const (
	BlockTitle     BlockKind = "title"
	BlockHeading3  BlockKind = "heading3"
	BlockBullet    BlockKind = "bullet"
	BlockParagraph BlockKind = "paragraph"
)

// Bullet replaces the leading "- " of list lines.
const Bullet = "•"

// Block is one classified input line. Text has its marker stripped.
type Block struct {
	Kind BlockKind
	Text string
}

// Page geometry in points.
const (
	marginLeft   = 72
	marginRight  = 72
	marginTop    = 72
	marginBottom = 18
	lineSpacer   = 6
)

// Classify splits markdown on "\n" and classifies each line by prefix, in
// priority order "# ", "### ", "- ". Everything else, blank lines included,
// is a paragraph. Inline markdown is left untouched.
func Classify(markdown string) []Block {
	lines := strings.Split(markdown, "\n")
	blocks := make([]Block, 0, len(lines))
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "# "):
			blocks = append(blocks, Block{Kind: BlockTitle, Text: line[2:]})
		case strings.HasPrefix(line, "### "):
			blocks = append(blocks, Block{Kind: BlockHeading3, Text: line[4:]})
		case strings.HasPrefix(line, "- "):
			blocks = append(blocks, Block{Kind: BlockBullet, Text: Bullet + " " + line[2:]})
		default:
			blocks = append(blocks, Block{Kind: BlockParagraph, Text: line})
		}
	}
	return blocks
}

// RenderPDF lays out markdown on US Letter pages and returns the document bytes.
func RenderPDF(markdown string) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.SetCreator("Investa", true)
	pdf.AddPage()

	// Core fonts are cp1252; the translator maps the bullet glyph.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, b := range Classify(markdown) {
		switch b.Kind {
		case BlockTitle:
			pdf.SetFont("Helvetica", "B", 18)
			pdf.MultiCell(0, 22, tr(b.Text), "", "C", false)
			pdf.Ln(12)
		case BlockHeading3:
			pdf.SetFont("Helvetica", "BI", 12)
			pdf.MultiCell(0, 15, tr(b.Text), "", "L", false)
			pdf.Ln(6)
		case BlockBullet:
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 12, tr(b.Text), "", "L", false)
		default:
			if strings.TrimSpace(b.Text) != "" {
				pdf.SetFont("Helvetica", "", 10)
				pdf.MultiCell(0, 12, tr(b.Text), "", "J", false)
			}
		}
		pdf.Ln(lineSpacer)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName is the download name for a report on ticker generated on date.
func FileName(ticker string, date time.Time) string {
	return fmt.Sprintf("%s_%s_Report.pdf", strings.ToUpper(strings.TrimSpace(ticker)), date.Format("2006-01-02"))
}
