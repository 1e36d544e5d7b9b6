package export

import (
	"bytes"
	"context"
	"io"

	"report_renderer/internal/render"
)

// Exporter serializes a rendered document into one output format.
// Implementations are stateless and safe for concurrent use.
type Exporter interface {
	Generate(ctx context.Context, doc *render.Document, w io.Writer) error
	GetMimeType() string
	GetFileExtension() string
}

// Result holds exported bytes with their HTTP metadata.
type Result struct {
	Format      Format
	Data        []byte
	ContentType string
	Extension   string
}

var exporters = map[Format]Exporter{
	FormatPDF:  pdfExporter{},
	FormatDOCX: docxExporter{},
	FormatXLSX: xlsxExporter{},
}

// Lookup returns the exporter for format.
func Lookup(format Format) (Exporter, error) {
	exp, ok := exporters[format]
	if !ok {
		return nil, &Error{Kind: UnsupportedFormat, Format: format}
	}
	return exp, nil
}

// Export serializes doc. The format is resolved before any serialization
// work starts.
func Export(ctx context.Context, doc *render.Document, format Format) (*Result, error) {
	exp, err := Lookup(format)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := exp.Generate(ctx, doc, &buf); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &Error{Kind: SerializationFailed, Format: format, Cause: err}
	}

	return &Result{
		Format:      format,
		Data:        buf.Bytes(),
		ContentType: exp.GetMimeType(),
		Extension:   exp.GetFileExtension(),
	}, nil
}
