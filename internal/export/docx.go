package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"

	"report_renderer/internal/render"
	"report_renderer/internal/template"
)

const (
	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
		`</Types>`

	packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
		`</Relationships>`

	wordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	twipsPerMM = 1440 / 25.4
	docxMargin = 850 // ~15 mm
)

type docxExporter struct{}

func (docxExporter) GetMimeType() string {
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

func (docxExporter) GetFileExtension() string { return "docx" }

// Generate пишет минимальный OOXML пакет. Записи zip создаются без
// времени модификации.
func (docxExporter) Generate(ctx context.Context, doc *render.Document, w io.Writer) error {
	body, err := docxDocument(ctx, doc)
	if err != nil {
		return err
	}

	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(packageRelsXML)},
		{"docProps/core.xml", docxCoreProps(doc)},
		{"word/document.xml", body},
	}

	zw := zip.NewWriter(w)
	for _, part := range parts {
		fw, err := zw.Create(part.name)
		if err != nil {
			return fmt.Errorf("create %s: %w", part.name, err)
		}
		if _, err := fw.Write(part.data); err != nil {
			return fmt.Errorf("write %s: %w", part.name, err)
		}
	}
	return zw.Close()
}

func docxCoreProps(doc *render.Document) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/"` +
		` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`)
	b.WriteString(`<dc:title>`)
	escape(&b, doc.Title)
	b.WriteString(`</dc:title><dc:creator>report_renderer</dc:creator>`)
	date := documentDate.Format("2006-01-02T15:04:05Z")
	fmt.Fprintf(&b, `<dcterms:created xsi:type="dcterms:W3CDTF">%s</dcterms:created>`, date)
	fmt.Fprintf(&b, `<dcterms:modified xsi:type="dcterms:W3CDTF">%s</dcterms:modified>`, date)
	b.WriteString(`</cp:coreProperties>`)
	return b.Bytes()
}

func docxDocument(ctx context.Context, doc *render.Document) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	fmt.Fprintf(&b, `<w:document xmlns:w="%s"><w:body>`, wordNamespace)

	widths := columnWidths(doc, doc.Width-30)
	for i, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 {
			b.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
		}

		if page.Number == 1 && doc.Title != "" {
			docxParagraph(&b, doc.Title, "center", true, halfPoints(doc.FontSize+4))
		}
		docxLines(&b, page.Header, doc.FontSize)
		docxTable(&b, doc, page.Rows, widths)
		docxLines(&b, page.Summary, doc.FontSize)
		if page.Footer != "" {
			docxParagraph(&b, page.Footer, "center", false, halfPoints(doc.FontSize-1))
		}
	}

	width, height := twips(doc.Width), twips(doc.Height)
	orient := template.OrientationPortrait
	if doc.Landscape() {
		orient = template.OrientationLandscape
	}
	fmt.Fprintf(&b, `<w:sectPr><w:pgSz w:w="%d" w:h="%d" w:orient="%s"/>`, width, height, orient)
	fmt.Fprintf(&b, `<w:pgMar w:top="%d" w:right="%d" w:bottom="%d" w:left="%d" w:header="0" w:footer="0" w:gutter="0"/>`,
		docxMargin, docxMargin, docxMargin, docxMargin)
	b.WriteString(`</w:sectPr></w:body></w:document>`)
	return b.Bytes(), nil
}

func docxLines(b *bytes.Buffer, lines []render.TextLine, fontSize float64) {
	for _, line := range lines {
		if line.Style == template.StyleHeading {
			docxParagraph(b, line.Text, "left", true, halfPoints(fontSize+2))
		} else {
			docxParagraph(b, line.Text, "left", false, halfPoints(fontSize))
		}
	}
}

func docxTable(b *bytes.Buffer, doc *render.Document, rows []render.Row, widths []float64) {
	b.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/><w:tblBorders>`)
	for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		fmt.Fprintf(b, `<w:%s w:val="single" w:sz="4" w:space="0" w:color="000000"/>`, side)
	}
	b.WriteString(`</w:tblBorders></w:tblPr><w:tblGrid>`)
	for _, w := range widths {
		fmt.Fprintf(b, `<w:gridCol w:w="%d"/>`, twips(w))
	}
	b.WriteString(`</w:tblGrid>`)

	size := halfPoints(doc.FontSize)
	b.WriteString(`<w:tr><w:trPr><w:tblHeader/></w:trPr>`)
	for i, col := range doc.Columns {
		docxCell(b, col.Label, docxAlign(col.Align), true, size, twips(widths[i]))
	}
	b.WriteString(`</w:tr>`)

	for _, row := range rows {
		b.WriteString(`<w:tr>`)
		for i, cell := range row.Cells {
			docxCell(b, cell.Text, docxAlign(doc.Columns[i].Align), false, size, twips(widths[i]))
		}
		b.WriteString(`</w:tr>`)
	}
	b.WriteString(`</w:tbl>`)
}

func docxCell(b *bytes.Buffer, text, align string, bold bool, size, width int) {
	fmt.Fprintf(b, `<w:tc><w:tcPr><w:tcW w:w="%d" w:type="dxa"/></w:tcPr>`, width)
	docxParagraph(b, text, align, bold, size)
	b.WriteString(`</w:tc>`)
}

func docxParagraph(b *bytes.Buffer, text, align string, bold bool, size int) {
	fmt.Fprintf(b, `<w:p><w:pPr><w:jc w:val="%s"/></w:pPr><w:r><w:rPr>`, align)
	if bold {
		b.WriteString(`<w:b/>`)
	}
	fmt.Fprintf(b, `<w:sz w:val="%d"/></w:rPr><w:t xml:space="preserve">`, size)
	escape(b, text)
	b.WriteString(`</w:t></w:r></w:p>`)
}

func docxAlign(align string) string {
	switch align {
	case template.AlignCenter:
		return "center"
	case template.AlignRight:
		return "right"
	default:
		return "left"
	}
}

func escape(b *bytes.Buffer, s string) {
	// bytes.Buffer never fails to write
	_ = xml.EscapeText(b, []byte(s))
}

func twips(mm float64) int {
	return int(math.Round(mm * twipsPerMM))
}

func halfPoints(pt float64) int {
	return int(math.Round(pt * 2))
}
