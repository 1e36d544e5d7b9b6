package render

// Document is a rendered, paginated report independent of any output format.
type Document struct {
	Template    string
	Title       string
	PageSize    string
	Orientation string
	// Width and Height are the page dimensions in millimetres.
	Width    float64
	Height   float64
	FontSize float64
	Columns  []Column
	Pages    []Page
	RowCount int
}

// Column describes one detail field as laid out on every page.
type Column struct {
	Name  string
	Label string
	Width float64
	Align string
}

// Page holds the bands printed on one page. Header is set on the first page
// only and Summary on the last page only.
type Page struct {
	Number  int
	Header  []TextLine
	Rows    []Row
	Summary []TextLine
	Footer  string
}

// TextLine is an evaluated header or summary line.
type TextLine struct {
	Name  string
	Text  string
	Style string
}

// Row is one evaluated detail section. Number is 1-based across the document.
type Row struct {
	Number int
	Cells  []Cell
}

// Cell keeps the display text and the typed scalar it was produced from.
// Value is a string, float64, bool or nil.
type Cell struct {
	Text  string
	Value any
}

// Landscape reports whether pages are wider than they are tall.
func (d *Document) Landscape() bool {
	return d.Width > d.Height
}
