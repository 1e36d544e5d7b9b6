package template

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// layoutFile is the top-level structure of a layout file for decoding.
type layoutFile struct {
	Title       hcl.Expression    `hcl:"title,optional"`
	PageSize    *string           `hcl:"page_size,optional"`
	Orientation *string           `hcl:"orientation,optional"`
	RowsPerPage *int              `hcl:"rows_per_page,optional"`
	FontSize    *float64          `hcl:"font_size,optional"`
	Parameters  []*parameterBlock `hcl:"parameter,block"`
	Header      *bandBlock        `hcl:"header,block"`
	Detail      *detailBlock      `hcl:"detail,block"`
	Summary     *bandBlock        `hcl:"summary,block"`
	Footer      *footerBlock      `hcl:"footer,block"`
}

type parameterBlock struct {
	Name        string     `hcl:"name,label"`
	Description *string    `hcl:"description,optional"`
	Default     *cty.Value `hcl:"default,optional"`
	DeclRange   hcl.Range  `hcl:",def_range"`
}

type bandBlock struct {
	Lines []*lineBlock `hcl:"line,block"`
}

type lineBlock struct {
	Name      string         `hcl:"name,label"`
	Value     hcl.Expression `hcl:"value"`
	Style     *string        `hcl:"style,optional"`
	DeclRange hcl.Range      `hcl:",def_range"`
}

type detailBlock struct {
	Fields    []*fieldBlock `hcl:"field,block"`
	DeclRange hcl.Range     `hcl:",def_range"`
}

type fieldBlock struct {
	Name      string         `hcl:"name,label"`
	Label     *string        `hcl:"label,optional"`
	Value     hcl.Expression `hcl:"value"`
	Width     *float64       `hcl:"width,optional"`
	Align     *string        `hcl:"align,optional"`
	DeclRange hcl.Range      `hcl:",def_range"`
}

type footerBlock struct {
	Value hcl.Expression `hcl:"value"`
}

// scope lists the variables an expression may reference.
type scope map[string]bool

var (
	titleScope  = scope{VarParams: true, VarRowCount: true}
	bandScope   = scope{VarParams: true, VarRowCount: true}
	detailScope = scope{VarParams: true, VarRowCount: true, VarRecord: true, VarRow: true}
	footerScope = scope{VarParams: true, VarRowCount: true, VarPage: true, VarPageCount: true}
)

// Compile parses and validates a layout. name is used in error messages
// and as the HCL filename. The result is independent of any previous call.
func Compile(name string, src []byte) (*Compiled, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, name)
	if diags.HasErrors() {
		return nil, diagnosticsError(name, diags)
	}

	var parsed layoutFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, diagnosticsError(name, diags)
	}

	c := &compiler{name: name, params: make(map[string]bool)}
	compiled, err := c.build(&parsed, file.Body.MissingItemRange())
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(src)
	compiled.Digest = hex.EncodeToString(sum[:])
	return compiled, nil
}

type compiler struct {
	name   string
	params map[string]bool
}

func (c *compiler) build(f *layoutFile, fileRange hcl.Range) (*Compiled, error) {
	out := &Compiled{
		Name:        c.name,
		Title:       f.Title,
		PageSize:    DefaultPageSize,
		Orientation: OrientationPortrait,
		RowsPerPage: DefaultRowsPerPage,
		FontSize:    DefaultFontSize,
	}

	if f.PageSize != nil {
		if _, ok := PageSizes[*f.PageSize]; !ok {
			return nil, newCompileError(c.name, nil, "unsupported page_size %q", *f.PageSize)
		}
		out.PageSize = *f.PageSize
	}
	if f.Orientation != nil {
		switch *f.Orientation {
		case OrientationPortrait, OrientationLandscape:
			out.Orientation = *f.Orientation
		default:
			return nil, newCompileError(c.name, nil, "orientation must be %q or %q, got %q",
				OrientationPortrait, OrientationLandscape, *f.Orientation)
		}
	}
	if f.RowsPerPage != nil {
		if *f.RowsPerPage < 1 {
			return nil, newCompileError(c.name, nil, "rows_per_page must be positive, got %d", *f.RowsPerPage)
		}
		out.RowsPerPage = *f.RowsPerPage
	}
	if f.FontSize != nil {
		if *f.FontSize < 4 || *f.FontSize > 72 {
			return nil, newCompileError(c.name, nil, "font_size must be between 4 and 72, got %g", *f.FontSize)
		}
		out.FontSize = *f.FontSize
	}

	if err := c.checkExpr(f.Title, titleScope, "title"); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(f.Parameters))
	for _, p := range f.Parameters {
		if seen[p.Name] {
			return nil, newCompileError(c.name, &p.DeclRange, "duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true

		param := Parameter{Name: p.Name}
		if p.Description != nil {
			param.Description = *p.Description
		}
		if p.Default != nil && !p.Default.IsNull() {
			param.Default = *p.Default
			param.HasDefault = true
		}
		out.Parameters = append(out.Parameters, param)
	}

	var err error
	if f.Header != nil {
		if out.Header, err = c.lines(f.Header, "header"); err != nil {
			return nil, err
		}
	}
	if f.Summary != nil {
		if out.Summary, err = c.lines(f.Summary, "summary"); err != nil {
			return nil, err
		}
	}

	if f.Detail == nil {
		return nil, newCompileError(c.name, &fileRange, "layout must contain a detail block")
	}
	if len(f.Detail.Fields) == 0 {
		return nil, newCompileError(c.name, &f.Detail.DeclRange, "detail block must declare at least one field")
	}
	if out.Fields, err = c.fields(f.Detail); err != nil {
		return nil, err
	}

	if f.Footer != nil {
		if err := c.checkExpr(f.Footer.Value, footerScope, "footer"); err != nil {
			return nil, err
		}
		out.Footer = f.Footer.Value
	}

	for name := range c.params {
		out.paramRefs = append(out.paramRefs, name)
	}
	sort.Strings(out.paramRefs)

	return out, nil
}

func (c *compiler) lines(band *bandBlock, section string) ([]Line, error) {
	seen := make(map[string]bool, len(band.Lines))
	lines := make([]Line, 0, len(band.Lines))
	for _, l := range band.Lines {
		if seen[l.Name] {
			return nil, newCompileError(c.name, &l.DeclRange, "duplicate %s line %q", section, l.Name)
		}
		seen[l.Name] = true

		style := StyleNormal
		if l.Style != nil {
			style = *l.Style
		}
		if style != StyleNormal && style != StyleHeading {
			return nil, newCompileError(c.name, &l.DeclRange, "line %q: style must be %q or %q, got %q",
				l.Name, StyleNormal, StyleHeading, style)
		}

		if err := c.checkExpr(l.Value, bandScope, section); err != nil {
			return nil, err
		}
		lines = append(lines, Line{Name: l.Name, Value: l.Value, Style: style})
	}
	return lines, nil
}

func (c *compiler) fields(detail *detailBlock) ([]Field, error) {
	seen := make(map[string]bool, len(detail.Fields))
	fields := make([]Field, 0, len(detail.Fields))
	for _, f := range detail.Fields {
		if seen[f.Name] {
			return nil, newCompileError(c.name, &f.DeclRange, "duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		field := Field{
			Name:  f.Name,
			Label: f.Name,
			Value: f.Value,
			Width: DefaultFieldWidth,
			Align: AlignLeft,
		}
		if f.Label != nil {
			field.Label = *f.Label
		}
		if f.Width != nil {
			if *f.Width <= 0 {
				return nil, newCompileError(c.name, &f.DeclRange, "field %q: width must be positive", f.Name)
			}
			field.Width = *f.Width
		}
		if f.Align != nil {
			switch *f.Align {
			case AlignLeft, AlignCenter, AlignRight:
				field.Align = *f.Align
			default:
				return nil, newCompileError(c.name, &f.DeclRange, "field %q: align must be left, center or right, got %q",
					f.Name, *f.Align)
			}
		}

		if err := c.checkExpr(f.Value, detailScope, "detail"); err != nil {
			return nil, err
		}
		field.recordAttrs = recordAttributes(f.Value)
		fields = append(fields, field)
	}
	return fields, nil
}

// checkExpr rejects variables outside the section scope, unknown functions
// and bare references to record or params. Parameter names are collected
// for the fill-time presence check.
func (c *compiler) checkExpr(expr hcl.Expression, allowed scope, section string) error {
	if expr == nil {
		return nil
	}

	for _, trav := range expr.Variables() {
		root := trav.RootName()
		rng := trav.SourceRange()
		if !allowed[root] {
			return newCompileError(c.name, &rng, "variable %q is not available in %s", root, section)
		}
		if root != VarParams && root != VarRecord {
			continue
		}
		attr, ok := traversalAttr(trav)
		if !ok {
			return newCompileError(c.name, &rng, "%s must be followed by an attribute name", root)
		}
		if root == VarParams {
			c.params[attr] = true
		}
	}

	node, ok := expr.(hclsyntax.Node)
	if !ok {
		return nil
	}
	var unknown *hclsyntax.FunctionCallExpr
	hclsyntax.VisitAll(node, func(n hclsyntax.Node) hcl.Diagnostics {
		if call, ok := n.(*hclsyntax.FunctionCallExpr); ok && unknown == nil {
			if _, known := functions[call.Name]; !known {
				unknown = call
			}
		}
		return nil
	})
	if unknown != nil {
		rng := unknown.NameRange
		return newCompileError(c.name, &rng, "call to unknown function %q", unknown.Name)
	}
	return nil
}

// traversalAttr returns the attribute name following the root of a traversal,
// accepting both record.name and record["name"] forms.
func traversalAttr(trav hcl.Traversal) (string, bool) {
	if len(trav) < 2 {
		return "", false
	}
	switch step := trav[1].(type) {
	case hcl.TraverseAttr:
		return step.Name, true
	case hcl.TraverseIndex:
		if step.Key.Type() == cty.String && step.Key.IsKnown() && !step.Key.IsNull() {
			return step.Key.AsString(), true
		}
	}
	return "", false
}

func recordAttributes(expr hcl.Expression) []string {
	var attrs []string
	seen := make(map[string]bool)
	for _, trav := range expr.Variables() {
		if trav.RootName() != VarRecord {
			continue
		}
		if attr, ok := traversalAttr(trav); ok && !seen[attr] {
			seen[attr] = true
			attrs = append(attrs, attr)
		}
	}
	return attrs
}
