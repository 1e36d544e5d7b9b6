package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"report_renderer/internal/datasource"
	"report_renderer/internal/render"
	"report_renderer/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testLayout = `
title         = "Vehicles"
rows_per_page = 2

header {
  line "company" {
    value = "ACME <Cars> & Co"
    style = "heading"
  }
}

detail {
  field "id" {
    label = "ID"
    value = record.id
    width = 20
    align = "right"
  }
  field "name" {
    label = "Name"
    value = record.name
    width = 80
  }
  field "price" {
    label = "Price"
    value = record.price
    width = 40
    align = "right"
  }
}

summary {
  line "total" { value = "Total: ${row_count}" }
}

footer {
  value = "Page ${page} of ${page_count}"
}
`

type car struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func testDocument(t *testing.T, recs ...any) *render.Document {
	t.Helper()
	tpl, err := template.Compile("test.hcl", []byte(testLayout))
	require.NoError(t, err)
	if recs == nil {
		recs = []any{}
	}
	ds, err := datasource.FromRecords(recs)
	require.NoError(t, err)
	doc, err := render.Fill(context.Background(), tpl, nil, ds)
	require.NoError(t, err)
	return doc
}

func threeCars() []any {
	return []any{
		car{ID: 1, Name: "solaris", Price: 10000},
		car{ID: 2, Name: "i20", Price: 15000.5},
		car{ID: 3, Name: "creta", Price: 21000},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"pdf", FormatPDF},
		{"PDF", FormatPDF},
		{" docx ", FormatDOCX},
		{"Xlsx", FormatXLSX},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("html")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.NotErrorIs(t, err, ErrSerializationFailed)

	var exportErr *Error
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, UnsupportedFormat, exportErr.Kind)
	assert.Equal(t, Format("html"), exportErr.Format)
}

func TestExportUnsupportedFormat(t *testing.T) {
	_, err := Lookup(Format("odt"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	res, err := Export(context.Background(), testDocument(t), Format("odt"))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExportMetadata(t *testing.T) {
	tests := []struct {
		format      Format
		contentType string
	}{
		{FormatPDF, "application/pdf"},
		{FormatDOCX, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{FormatXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	}

	doc := testDocument(t, threeCars()...)
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			res, err := Export(context.Background(), doc, tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.format, res.Format)
			assert.Equal(t, tt.contentType, res.ContentType)
			assert.Equal(t, tt.format.String(), res.Extension)
			assert.NotEmpty(t, res.Data)
		})
	}
}

func TestExportPDF(t *testing.T) {
	doc := testDocument(t, threeCars()...)

	first, err := Export(context.Background(), doc, FormatPDF)
	require.NoError(t, err)
	second, err := Export(context.Background(), doc, FormatPDF)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(first.Data, []byte("%PDF-")))
	assert.True(t, bytes.Equal(first.Data, second.Data), "pdf output must be byte-identical")
	assert.Contains(t, string(first.Data), "D:20000101000000")
}

func TestExportPDFEmptyDocument(t *testing.T) {
	res, err := Export(context.Background(), testDocument(t), FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(res.Data, []byte("%PDF-")))
}

func readZipEntry(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(content)
	}
	t.Fatalf("zip entry %s not found", name)
	return ""
}

func TestExportDOCX(t *testing.T) {
	doc := testDocument(t, threeCars()...)

	first, err := Export(context.Background(), doc, FormatDOCX)
	require.NoError(t, err)
	second, err := Export(context.Background(), doc, FormatDOCX)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first.Data, second.Data), "docx output must be byte-identical")

	body := readZipEntry(t, first.Data, "word/document.xml")
	assert.Contains(t, body, "ACME &lt;Cars&gt; &amp; Co")
	assert.Contains(t, body, `<w:pgSz w:w="11906" w:h="16838" w:orient="portrait"/>`)
	assert.Equal(t, 1, strings.Count(body, `<w:br w:type="page"/>`))
	assert.Equal(t, 2, strings.Count(body, "<w:tbl>"))
	assert.Contains(t, body, "Page 2 of 2")

	solaris := strings.Index(body, "solaris")
	i20 := strings.Index(body, "i20")
	creta := strings.Index(body, "creta")
	assert.True(t, solaris < i20 && i20 < creta, "records must keep their order")

	types := readZipEntry(t, first.Data, "[Content_Types].xml")
	assert.Contains(t, types, "/word/document.xml")
}

func TestExportXLSX(t *testing.T) {
	res, err := Export(context.Background(), testDocument(t, threeCars()...), FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(res.Data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)

	// title, heading, blank, column header, three records, blank, summary
	require.Len(t, rows, 9)
	assert.Equal(t, "Vehicles", rows[0][0])
	assert.Equal(t, "ACME <Cars> & Co", rows[1][0])
	assert.Equal(t, []string{"ID", "Name", "Price"}, rows[3])
	assert.Equal(t, []string{"1", "solaris", "10000"}, rows[4])
	assert.Equal(t, []string{"2", "i20", "15000.5"}, rows[5])
	assert.Equal(t, []string{"3", "creta", "21000"}, rows[6])
	assert.Equal(t, "Total: 3", rows[8][0])

	priceType, err := f.GetCellType(xlsxSheet, "C6")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, priceType)

	nameType, err := f.GetCellType(xlsxSheet, "B6")
	require.NoError(t, err)
	assert.Equal(t, excelize.CellTypeSharedString, nameType)
}

func TestExportHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Export(ctx, testDocument(t, threeCars()...), FormatPDF)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrorMessages(t *testing.T) {
	err := &Error{Kind: SerializationFailed, Format: FormatPDF, Cause: errors.New("disk full")}
	assert.Equal(t, `export "pdf": serialization failed: disk full`, err.Error())
	assert.ErrorIs(t, err, ErrSerializationFailed)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat)
}
