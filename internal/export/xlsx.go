package export

import (
	"context"
	"fmt"
	"io"

	"report_renderer/internal/render"
	"report_renderer/internal/template"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Report"

type xlsxExporter struct{}

func (xlsxExporter) GetMimeType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (xlsxExporter) GetFileExtension() string { return "xlsx" }

// Generate выводит все страницы документа на один лист: заголовок,
// строки шапки, таблицу и итоговые строки. Числовые ячейки остаются числами.
func (xlsxExporter) Generate(ctx context.Context, doc *render.Document, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	date := documentDate.Format("2006-01-02T15:04:05Z")
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:    doc.Title,
		Creator:  "report_renderer",
		Created:  date,
		Modified: date,
	}); err != nil {
		return fmt.Errorf("set document properties: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: doc.FontSize + 1,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6E6FA"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: doc.FontSize + 4},
	})
	if err != nil {
		return fmt.Errorf("create title style: %w", err)
	}
	headingStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: doc.FontSize + 2},
	})
	if err != nil {
		return fmt.Errorf("create heading style: %w", err)
	}

	sw := &sheetWriter{file: f, row: 1}

	if doc.Title != "" {
		sw.text(doc.Title, titleStyle)
	}

	var header, summary []render.TextLine
	var rows []render.Row
	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		header = append(header, page.Header...)
		rows = append(rows, page.Rows...)
		summary = append(summary, page.Summary...)
	}

	sw.lines(header, headingStyle)
	if sw.row > 1 {
		sw.row++
	}

	for i, col := range doc.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, sw.row)
		sw.set(cell, col.Label)
		sw.style(cell, headerStyle)

		name, _ := excelize.ColumnNumberToName(i + 1)
		// ширина колонки в символах, примерно 2 мм на символ
		sw.check(f.SetColWidth(xlsxSheet, name, name, col.Width/2))
	}
	sw.row++

	for _, row := range rows {
		for i, cell := range row.Cells {
			ref, _ := excelize.CoordinatesToCellName(i+1, sw.row)
			if cell.Value == nil {
				continue
			}
			sw.set(ref, cell.Value)
		}
		sw.row++
	}

	if len(summary) > 0 {
		sw.row++
		sw.lines(summary, headingStyle)
	}

	if sw.err != nil {
		return sw.err
	}
	return f.Write(w)
}

// sheetWriter keeps the current row and the first error.
type sheetWriter struct {
	file *excelize.File
	row  int
	err  error
}

func (s *sheetWriter) check(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}

func (s *sheetWriter) set(cell string, value interface{}) {
	s.check(s.file.SetCellValue(xlsxSheet, cell, value))
}

func (s *sheetWriter) style(cell string, styleID int) {
	s.check(s.file.SetCellStyle(xlsxSheet, cell, cell, styleID))
}

func (s *sheetWriter) text(text string, styleID int) {
	cell, _ := excelize.CoordinatesToCellName(1, s.row)
	s.set(cell, text)
	s.style(cell, styleID)
	s.row++
}

func (s *sheetWriter) lines(lines []render.TextLine, headingStyle int) {
	for _, line := range lines {
		cell, _ := excelize.CoordinatesToCellName(1, s.row)
		s.set(cell, line.Text)
		if line.Style == template.StyleHeading {
			s.style(cell, headingStyle)
		}
		s.row++
	}
}
