package render

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Params are named scalar values supplied by the caller. Values may be
// strings, booleans, integers, floats or json.Number.
type Params map[string]any

func paramValue(v any) (cty.Value, error) {
	switch v := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return v, nil
	case string:
		return cty.StringVal(v), nil
	case bool:
		return cty.BoolVal(v), nil
	case int:
		return cty.NumberIntVal(int64(v)), nil
	case int32:
		return cty.NumberIntVal(int64(v)), nil
	case int64:
		return cty.NumberIntVal(v), nil
	case uint:
		return cty.NumberUIntVal(uint64(v)), nil
	case uint64:
		return cty.NumberUIntVal(v), nil
	case float32:
		return cty.NumberFloatVal(float64(v)), nil
	case float64:
		return cty.NumberFloatVal(v), nil
	case json.Number:
		return cty.ParseNumberVal(v.String())
	default:
		return cty.NilVal, fmt.Errorf("unsupported parameter type %T", v)
	}
}

// display renders an evaluated expression as cell text plus its scalar form.
func display(v cty.Value) (string, any, error) {
	if v.IsNull() {
		return "", nil, nil
	}
	if !v.IsWhollyKnown() {
		return "", nil, fmt.Errorf("value is not known")
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		s := v.AsString()
		return s, s, nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		f, _ := bf.Float64()
		return formatNumber(bf), f, nil
	case ty == cty.Bool:
		if v.True() {
			return "true", true, nil
		}
		return "false", false, nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		parts := make([]string, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			text, _, err := display(ev)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, text)
		}
		s := strings.Join(parts, ", ")
		return s, s, nil
	default:
		// объекты и map приводим к строке, если это возможно
		if sv, err := convert.Convert(v, cty.String); err == nil {
			return display(sv)
		}
		return "", nil, fmt.Errorf("value of type %s cannot be displayed", ty.FriendlyName())
	}
}

func formatNumber(bf *big.Float) string {
	if bf.IsInt() {
		return bf.Text('f', 0)
	}
	return bf.Text('f', -1)
}
