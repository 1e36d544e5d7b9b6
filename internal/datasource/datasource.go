// Package datasource adapts caller records into the ordered row sequence
// consumed by the render engine.
package datasource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// RecordError reports a record that cannot be exposed as a row.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// DataSource is an ordered, finite sequence of rows with a forward cursor.
// Every row is a cty object whose attributes mirror the record's JSON fields.
type DataSource struct {
	rows []cty.Value
	pos  int
}

// FromRecord wraps a single record into a one-row data source.
func FromRecord(rec any) (*DataSource, error) {
	row, err := toRow(rec)
	if err != nil {
		return nil, &RecordError{Index: 0, Err: err}
	}
	return &DataSource{rows: []cty.Value{row}}, nil
}

// FromRecords wraps records preserving their order. An empty slice yields
// an empty data source.
func FromRecords(recs []any) (*DataSource, error) {
	rows := make([]cty.Value, 0, len(recs))
	for i, rec := range recs {
		row, err := toRow(rec)
		if err != nil {
			return nil, &RecordError{Index: i, Err: err}
		}
		rows = append(rows, row)
	}
	return &DataSource{rows: rows}, nil
}

// Next advances the cursor and reports whether a row is available.
func (d *DataSource) Next() bool {
	if d.pos >= len(d.rows) {
		return false
	}
	d.pos++
	return true
}

// Row returns the row under the cursor. It panics if Next was not called
// or returned false.
func (d *DataSource) Row() cty.Value {
	if d.pos == 0 {
		panic("datasource: Row called before Next")
	}
	return d.rows[d.pos-1]
}

// Reset rewinds the cursor to the start.
func (d *DataSource) Reset() {
	d.pos = 0
}

// Len returns the total number of rows.
func (d *DataSource) Len() int {
	return len(d.rows)
}

// All returns a copy of every row in order, independent of the cursor.
func (d *DataSource) All() []cty.Value {
	out := make([]cty.Value, len(d.rows))
	copy(out, d.rows)
	return out
}

// toRow converts rec into a cty object through its JSON encoding so that
// json tags decide attribute names. Numbers keep their exact decimal form.
func toRow(rec any) (cty.Value, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return cty.NilVal, fmt.Errorf("encode record: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return cty.NilVal, fmt.Errorf("decode record: %w", err)
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return cty.NilVal, fmt.Errorf("record must be an object, got %s", jsonKind(decoded))
	}
	return toValue(obj)
}

func toValue(v any) (cty.Value, error) {
	switch v := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case bool:
		return cty.BoolVal(v), nil
	case string:
		return cty.StringVal(v), nil
	case json.Number:
		n, err := cty.ParseNumberVal(v.String())
		if err != nil {
			return cty.NilVal, fmt.Errorf("number %s: %w", v, err)
		}
		return n, nil
	case []any:
		if len(v) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(v))
		for i, e := range v {
			ev, err := toValue(e)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = ev
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		if len(v) == 0 {
			return cty.EmptyObjectVal, nil
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs := make(map[string]cty.Value, len(v))
		for _, k := range keys {
			av, err := toValue(v[k])
			if err != nil {
				return cty.NilVal, fmt.Errorf("attribute %q: %w", k, err)
			}
			attrs[k] = av
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported value of type %T", v)
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
