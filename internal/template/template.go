// Package template compiles report layouts written in HCL into immutable,
// reusable Compiled values.
//
// A layout looks like this:
//
//	title       = "Cars of ${params.company}"
//	page_size   = "A4"
//	orientation = "portrait"
//
//	parameter "company" {
//	  default = "ACME"
//	}
//
//	header {
//	  line "heading" {
//	    value = "Fleet report"
//	    style = "heading"
//	  }
//	}
//
//	detail {
//	  field "id" {
//	    label = "ID"
//	    value = record.id
//	    width = 20
//	    align = "right"
//	  }
//	}
//
//	summary {
//	  line "total" { value = "Rows: ${row_count}" }
//	}
//
//	footer {
//	  value = "Page ${page} of ${page_count}"
//	}
//
// Expressions are kept unevaluated; the render package evaluates them per
// record against the variables listed in the Var* constants.
package template

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Variables visible to layout expressions.
const (
	VarRecord    = "record"
	VarParams    = "params"
	VarRow       = "row"
	VarRowCount  = "row_count"
	VarPage      = "page"
	VarPageCount = "page_count"
)

// Alignment values accepted by detail fields.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// Line styles accepted by header and summary lines.
const (
	StyleNormal  = "normal"
	StyleHeading = "heading"
)

// Orientation values.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

const (
	DefaultPageSize    = "A4"
	DefaultRowsPerPage = 25
	DefaultFontSize    = 10
	DefaultFieldWidth  = 40
)

// PageSizes lists supported page sizes with their portrait dimensions in millimetres.
var PageSizes = map[string][2]float64{
	"A3":     {297, 420},
	"A4":     {210, 297},
	"A5":     {148, 210},
	"Letter": {215.9, 279.4},
	"Legal":  {215.9, 355.6},
}

// Compiled is the executable form of a layout. It is never mutated after
// Compile returns, so a single value is shared by concurrent renders.
type Compiled struct {
	Name        string
	Digest      string
	Title       hcl.Expression
	PageSize    string
	Orientation string
	RowsPerPage int
	FontSize    float64
	Parameters  []Parameter
	Header      []Line
	Fields      []Field
	Summary     []Line
	Footer      hcl.Expression

	paramRefs []string
}

// Parameter is a declared template parameter.
type Parameter struct {
	Name        string
	Description string
	Default     cty.Value
	HasDefault  bool
}

// Line is a single text line of the header or summary band.
type Line struct {
	Name  string
	Value hcl.Expression
	Style string
}

// Field is a column of the repeating detail section.
type Field struct {
	Name  string
	Label string
	Value hcl.Expression
	Width float64
	Align string

	recordAttrs []string
}

// RecordAttributes returns the record attributes the field expression reads,
// in source order without duplicates.
func (f Field) RecordAttributes() []string {
	return f.recordAttrs
}

// ReferencedParameters returns every parameter name referenced anywhere in
// the layout, sorted.
func (c *Compiled) ReferencedParameters() []string {
	return c.paramRefs
}

// Parameter looks up a declared parameter by name.
func (c *Compiled) Parameter(name string) (Parameter, bool) {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// PageDimensions returns the page width and height in millimetres after
// applying the orientation.
func (c *Compiled) PageDimensions() (float64, float64) {
	size := PageSizes[c.PageSize]
	if c.Orientation == OrientationLandscape {
		return size[1], size[0]
	}
	return size[0], size[1]
}
