package export

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"report_renderer/internal/render"
	"report_renderer/internal/template"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin    = 15.0
	pdfLineRatio = 0.5
	pdfEllipsis  = "..."
)

// documentDate is written into PDF and XLSX metadata so identical input
// produces identical bytes.
var documentDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

type pdfExporter struct{}

func (pdfExporter) GetMimeType() string      { return "application/pdf" }
func (pdfExporter) GetFileExtension() string { return "pdf" }

// Generate рисует документ постранично. Страницы задает render,
// автоматический перенос страниц отключен.
func (pdfExporter) Generate(ctx context.Context, doc *render.Document, w io.Writer) error {
	orientation := "P"
	if doc.Landscape() {
		orientation = "L"
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "mm",
		Size: fpdf.SizeType{
			Wd: math.Min(doc.Width, doc.Height),
			Ht: math.Max(doc.Width, doc.Height),
		},
	})
	pdf.SetCreationDate(documentDate)
	pdf.SetModificationDate(documentDate)
	pdf.SetCatalogSort(true)
	pdf.SetCreator("report_renderer", false)
	pdf.SetTitle(doc.Title, true)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	lineHeight := doc.FontSize * pdfLineRatio
	widths := columnWidths(doc, doc.Width-2*pdfMargin)

	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		pdf.AddPage()

		if page.Number == 1 && doc.Title != "" {
			pdf.SetFont("Helvetica", "B", doc.FontSize+4)
			pdf.CellFormat(0, lineHeight*1.6, tr(doc.Title), "", 1, "C", false, 0, "")
			pdf.Ln(lineHeight * 0.5)
		}
		writePDFLines(pdf, tr, page.Header, doc.FontSize, lineHeight)

		pdf.SetFont("Helvetica", "B", doc.FontSize)
		pdf.SetFillColor(230, 230, 250)
		for i, col := range doc.Columns {
			pdf.CellFormat(widths[i], lineHeight*1.4, fitText(pdf, tr, col.Label, widths[i]), "1", 0,
				pdfAlign(col.Align), true, 0, "")
		}
		pdf.Ln(lineHeight * 1.4)

		pdf.SetFont("Helvetica", "", doc.FontSize)
		for _, row := range page.Rows {
			for i, cell := range row.Cells {
				pdf.CellFormat(widths[i], lineHeight*1.4, fitText(pdf, tr, cell.Text, widths[i]), "1", 0,
					pdfAlign(doc.Columns[i].Align), false, 0, "")
			}
			pdf.Ln(lineHeight * 1.4)
		}

		if len(page.Summary) > 0 {
			pdf.Ln(lineHeight * 0.5)
			writePDFLines(pdf, tr, page.Summary, doc.FontSize, lineHeight)
		}

		if page.Footer != "" {
			pdf.SetY(doc.Height - pdfMargin)
			pdf.SetFont("Helvetica", "I", doc.FontSize-1)
			pdf.CellFormat(0, lineHeight, tr(page.Footer), "", 0, "C", false, 0, "")
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf layout: %w", err)
	}
	return pdf.Output(w)
}

func writePDFLines(pdf *fpdf.Fpdf, tr func(string) string, lines []render.TextLine, fontSize, lineHeight float64) {
	for _, line := range lines {
		if line.Style == template.StyleHeading {
			pdf.SetFont("Helvetica", "B", fontSize+2)
		} else {
			pdf.SetFont("Helvetica", "", fontSize)
		}
		pdf.MultiCell(0, lineHeight*1.2, tr(line.Text), "", "L", false)
	}
}

// columnWidths scales declared widths down so the table fits the printable width.
func columnWidths(doc *render.Document, printable float64) []float64 {
	total := 0.0
	for _, col := range doc.Columns {
		total += col.Width
	}
	scale := 1.0
	if total > printable && total > 0 {
		scale = printable / total
	}
	widths := make([]float64, len(doc.Columns))
	for i, col := range doc.Columns {
		widths[i] = col.Width * scale
	}
	return widths
}

// fitText translates s to the font code page and truncates it with an
// ellipsis when it does not fit into width.
func fitText(pdf *fpdf.Fpdf, tr func(string) string, s string, width float64) string {
	limit := width - 2*pdf.GetCellMargin()
	if text := tr(s); pdf.GetStringWidth(text) <= limit {
		return text
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := tr(string(runes) + pdfEllipsis)
		if pdf.GetStringWidth(candidate) <= limit {
			return candidate
		}
	}
	return ""
}

func pdfAlign(align string) string {
	switch align {
	case template.AlignCenter:
		return "C"
	case template.AlignRight:
		return "R"
	default:
		return "L"
	}
}
