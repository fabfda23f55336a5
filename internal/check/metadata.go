package check

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Metadata holds the diagnostic values attached to a check result. Values
// must be primitive (string, number or bool) so that results serialize
// without loss; Evaluate rejects anything else.
type Metadata map[string]cty.Value

// Int returns a metadata number for n.
func Int(n int) cty.Value { return cty.NumberIntVal(int64(n)) }

// Float returns a metadata number for v. NaN and infinities have no number
// form and are stored as their text.
func Float(v float64) cty.Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return cty.StringVal(fmt.Sprint(v))
	}
	return cty.NumberFloatVal(v)
}

// Str returns a metadata string.
func Str(s string) cty.Value { return cty.StringVal(s) }

// Bool returns a metadata boolean.
func Bool(b bool) cty.Value { return cty.BoolVal(b) }

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Number returns the value of key if it is a number.
func (m Metadata) Number(key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v.IsNull() || !v.IsKnown() || v.Type() != cty.Number {
		return 0, false
	}
	f, _ := v.AsBigFloat().Float64()
	return f, true
}

// String returns the value of key if it is a string.
func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v.IsNull() || !v.IsKnown() || v.Type() != cty.String {
		return "", false
	}
	return v.AsString(), true
}

// Bool returns the value of key if it is a bool.
func (m Metadata) Bool(key string) (bool, bool) {
	v, ok := m[key]
	if !ok || v.IsNull() || !v.IsKnown() || v.Type() != cty.Bool {
		return false, false
	}
	return v.True(), true
}

// validate checks that every value is a known primitive.
func (m Metadata) validate() error {
	for _, k := range m.Keys() {
		v := m[k]
		if !v.IsKnown() || !v.Type().IsPrimitiveType() {
			return fmt.Errorf("metadata %q: unsupported value of type %s", k, v.Type().FriendlyName())
		}
	}
	return nil
}

// Interface converts the metadata to plain Go values: string, float64, bool
// or nil for a null value.
func (m Metadata) Interface() (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		iv, err := primitiveToInterface(v)
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
		out[k] = iv
	}
	return out, nil
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	out, err := m.Interface()
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (m Metadata) MarshalYAML() (any, error) {
	return m.Interface()
}

// primitiveToInterface converts a primitive cty.Value to a Go value.
func primitiveToInterface(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	switch val.Type() {
	case cty.String:
		return val.AsString(), nil
	case cty.Number:
		if bf := val.AsBigFloat(); bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case cty.Bool:
		return val.True(), nil
	default:
		return nil, fmt.Errorf("unsupported type %s", val.Type().FriendlyName())
	}
}
