// Package render fills compiled templates with data and produces
// format-independent paginated documents.
package render

import (
	"context"
	"sort"

	"report_renderer/internal/datasource"
	"report_renderer/internal/template"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Fill evaluates tpl against params and every row of ds in order.
// It returns either a complete document or an error, never a partial
// document. The result depends only on its inputs.
func Fill(ctx context.Context, tpl *template.Compiled, params Params, ds *datasource.DataSource) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paramsVal, err := resolveParams(tpl, params)
	if err != nil {
		return nil, err
	}

	rows := ds.All()
	rowCount := cty.NumberIntVal(int64(len(rows)))
	base := map[string]cty.Value{
		template.VarParams:   paramsVal,
		template.VarRowCount: rowCount,
	}

	width, height := tpl.PageDimensions()
	doc := &Document{
		Template:    tpl.Name,
		PageSize:    tpl.PageSize,
		Orientation: tpl.Orientation,
		Width:       width,
		Height:      height,
		FontSize:    tpl.FontSize,
		RowCount:    len(rows),
		Columns:     make([]Column, 0, len(tpl.Fields)),
	}
	for _, f := range tpl.Fields {
		doc.Columns = append(doc.Columns, Column{Name: f.Name, Label: f.Label, Width: f.Width, Align: f.Align})
	}

	if doc.Title, _, err = evalText(tpl.Title, base, "title", 0); err != nil {
		return nil, err
	}

	header, err := evalLines(tpl.Header, base, "header")
	if err != nil {
		return nil, err
	}

	filled := make([]Row, 0, len(rows))
	for i, rec := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := fillRow(tpl.Fields, base, rec, i+1)
		if err != nil {
			return nil, err
		}
		filled = append(filled, row)
	}

	summary, err := evalLines(tpl.Summary, base, "summary")
	if err != nil {
		return nil, err
	}

	pageCount := (len(filled) + tpl.RowsPerPage - 1) / tpl.RowsPerPage
	if pageCount == 0 {
		pageCount = 1
	}

	doc.Pages = make([]Page, pageCount)
	for p := 0; p < pageCount; p++ {
		start := p * tpl.RowsPerPage
		end := start + tpl.RowsPerPage
		if end > len(filled) {
			end = len(filled)
		}

		page := Page{Number: p + 1}
		if start < end {
			page.Rows = filled[start:end]
		}
		if p == 0 {
			page.Header = header
		}
		if p == pageCount-1 {
			page.Summary = summary
		}

		vars := withVars(base, map[string]cty.Value{
			template.VarPage:      cty.NumberIntVal(int64(p + 1)),
			template.VarPageCount: cty.NumberIntVal(int64(pageCount)),
		})
		if page.Footer, _, err = evalText(tpl.Footer, vars, "footer", 0); err != nil {
			return nil, err
		}
		doc.Pages[p] = page
	}

	return doc, nil
}

// resolveParams merges declared defaults with supplied values and checks that
// every parameter referenced by the template is bound.
func resolveParams(tpl *template.Compiled, params Params) (cty.Value, error) {
	resolved := make(map[string]cty.Value, len(tpl.Parameters)+len(params))
	for _, p := range tpl.Parameters {
		if p.HasDefault {
			resolved[p.Name] = p.Default
		}
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := paramValue(params[name])
		if err != nil {
			return cty.NilVal, &FillError{Binding: template.VarParams + "." + name, Err: err}
		}
		resolved[name] = v
	}

	for _, name := range tpl.ReferencedParameters() {
		if _, ok := resolved[name]; !ok {
			return cty.NilVal, &FillError{Binding: template.VarParams + "." + name}
		}
	}

	if len(resolved) == 0 {
		return cty.EmptyObjectVal, nil
	}
	return cty.ObjectVal(resolved), nil
}

func fillRow(fields []template.Field, base map[string]cty.Value, rec cty.Value, number int) (Row, error) {
	for _, f := range fields {
		for _, attr := range f.RecordAttributes() {
			if !rec.Type().IsObjectType() || !rec.Type().HasAttribute(attr) {
				return Row{}, &FillError{Binding: template.VarRecord + "." + attr, Row: number}
			}
		}
	}

	vars := withVars(base, map[string]cty.Value{
		template.VarRecord: rec,
		template.VarRow:    cty.NumberIntVal(int64(number)),
	})

	row := Row{Number: number, Cells: make([]Cell, 0, len(fields))}
	for _, f := range fields {
		text, value, err := evalText(f.Value, vars, "detail."+f.Name, number)
		if err != nil {
			return Row{}, err
		}
		row.Cells = append(row.Cells, Cell{Text: text, Value: value})
	}
	return row, nil
}

func evalLines(lines []template.Line, vars map[string]cty.Value, band string) ([]TextLine, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	out := make([]TextLine, 0, len(lines))
	for _, l := range lines {
		text, _, err := evalText(l.Value, vars, band+"."+l.Name, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, TextLine{Name: l.Name, Text: text, Style: l.Style})
	}
	return out, nil
}

func evalText(expr hcl.Expression, vars map[string]cty.Value, binding string, row int) (string, any, error) {
	if expr == nil {
		return "", nil, nil
	}

	evalCtx := &hcl.EvalContext{
		Variables: vars,
		Functions: template.Functions(),
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", nil, &FillError{Binding: binding, Row: row, Err: diags}
	}

	text, value, err := display(val)
	if err != nil {
		return "", nil, &FillError{Binding: binding, Row: row, Err: err}
	}
	return text, value, nil
}

func withVars(base, extra map[string]cty.Value) map[string]cty.Value {
	vars := make(map[string]cty.Value, len(base)+len(extra))
	for k, v := range base {
		vars[k] = v
	}
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}
