// Package value defines the runtime Value type that flows along graph
// edges between task invocations (SPEC_FULL.md §2 "Domain stack").
//
// A Value wraps a cty.Value rather than a bare interface{}: cty gives the
// engine a typed, structurally-comparable representation that round-trips
// cleanly between the HCL task manifests (internal/manifest) and whatever
// native Go data a task handler (registry.HandlerFunc) passes to FromGo.
// The conversion helpers below are adapted from the corpus's socket.io request handler,
// which faced the same problem translating wire JSON into cty and back.
package value

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Value is the payload carried along a Seq/Broadcast edge; Parallel and
// Conditional edges carry none.
type Value struct {
	cty cty.Value
}

// Nil is the zero Value, representing "no output" (e.g. a Skipped node).
var Nil = Value{cty: cty.NilVal}

// FromCty wraps an existing cty.Value.
func FromCty(v cty.Value) Value { return Value{cty: v} }

// Cty unwraps the underlying cty.Value.
func (v Value) Cty() cty.Value { return v.cty }

// FromGo converts an arbitrary Go value produced by a task handler into a
// Value. Supported shapes mirror encoding/json's decode targets: nil,
// string, bool, float64, map[string]any, []any, plus cty.Value itself for
// handlers that already speak cty natively.
func FromGo(data any) (Value, error) {
	if cv, ok := data.(cty.Value); ok {
		return Value{cty: cv}, nil
	}
	cv, err := interfaceToCty(data)
	if err != nil {
		return Nil, err
	}
	return Value{cty: cv}, nil
}

// ToGo converts a Value back into plain Go data (map[string]any,
// []any, string, float64, bool, or nil), suitable for JSON encoding onto a
// Remote transport wire request.
func (v Value) ToGo() (any, error) {
	return ctyToInterface(v.cty)
}

func interfaceToCty(data any) (cty.Value, error) {
	if data == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	switch v := data.(type) {
	case string:
		return cty.StringVal(v), nil
	case bool:
		return cty.BoolVal(v), nil
	case float64:
		return cty.NumberFloatVal(v), nil
	case int:
		return cty.NumberIntVal(int64(v)), nil
	case map[string]any:
		if len(v) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(v))
		for key, val := range v {
			cv, err := interfaceToCty(val)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[key] = cv
		}
		return cty.ObjectVal(attrs), nil
	case []any:
		if len(v) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, 0, len(v))
		for _, val := range v {
			cv, err := interfaceToCty(val)
			if err != nil {
				return cty.NilVal, err
			}
			elems = append(elems, cv)
		}
		return cty.TupleVal(elems), nil
	default:
		return cty.NilVal, fmt.Errorf("value: unsupported Go type %T", v)
	}
}

func ctyToInterface(val cty.Value) (any, error) {
	if val == cty.NilVal || !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	t := val.Type()
	switch {
	case t.IsPrimitiveType():
		switch t {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			f, _ := val.AsBigFloat().Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("value: unsupported primitive type %s", t.FriendlyName())
		}
	case t.IsObjectType(), t.IsMapType():
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			converted, err := ctyToInterface(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = converted
		}
		return out, nil
	case t.IsTupleType(), t.IsListType(), t.IsSetType():
		var out []any
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			converted, err := ctyToInterface(v)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value: unsupported cty.Type %s", t.FriendlyName())
	}
}

// String returns a human-readable rendering for logs and error messages.
func (v Value) String() string {
	if v.cty == cty.NilVal {
		return "<nil>"
	}
	return v.cty.GoString()
}
