// Package domain provides the core types for combinatorial experiment
// execution: input records, variation combinations, per-invocation results,
// evaluator outputs, and the aggregated experiment report. The types are
// designed so that grouping identity is stable and deterministic: two equal
// inputs (or combinations) always serialize to the same key, which is what
// keeps per-input grouping and per-combination aggregation correct.
package domain

import (
	"sort"
	"strconv"
	"strings"
)

// ValueKind discriminates the variants of a Value.
// Using typed constants instead of raw interface{} inspection provides
// compile-time safety and keeps canonical serialization exhaustive.
type ValueKind uint8

const (
	// ValueNull is the zero Value; it carries no payload.
	ValueNull ValueKind = iota

	// ValueString holds a text payload in Str.
	ValueString

	// ValueNumber holds a numeric payload in Num.
	ValueNumber

	// ValueBool holds a boolean payload in Bool.
	ValueBool

	// ValueList holds an ordered sequence of Values in List.
	ValueList

	// ValueMap holds named Values in Map.
	ValueMap
)

// String returns the string representation of a ValueKind.
func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueString:
		return "string"
	case ValueNumber:
		return "number"
	case ValueBool:
		return "bool"
	case ValueList:
		return "list"
	case ValueMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a tagged variant covering the content shapes an experiment moves
// around: user-function arguments, variation values, raw outputs, and
// evaluator results. Only the field matching Kind is meaningful.
//
// Value replaces the untyped content mapping of earlier harness designs with
// an explicit closed set of shapes, so canonical serialization and numeric
// extraction never depend on reflection.
type Value struct {
	Kind ValueKind `json:"kind"`

	Str  string           `json:"str,omitempty"`
	Num  float64          `json:"num,omitempty"`
	Bool bool             `json:"bool,omitempty"`
	List []Value          `json:"list,omitempty"`
	Map  map[string]Value `json:"map,omitempty"`
}

// StringValue returns a Value holding s.
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// NumberValue returns a Value holding n.
func NumberValue(n float64) Value { return Value{Kind: ValueNumber, Num: n} }

// BoolValue returns a Value holding b.
func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// ListValue returns a Value holding the given elements.
func ListValue(elems ...Value) Value { return Value{Kind: ValueList, List: elems} }

// MapValue returns a Value holding the given named values.
// The map is stored by reference; callers that need isolation should copy first.
func MapValue(m map[string]Value) Value { return Value{Kind: ValueMap, Map: m} }

// AsNumber extracts the numeric payload of a Value.
// Returns (n, true) for number values and (0, false) for every other kind.
// Categorical results intentionally do not coerce: a non-numeric evaluator
// output contributes nothing to numeric aggregation.
func (v Value) AsNumber() (float64, bool) {
	if v.Kind == ValueNumber {
		return v.Num, true
	}
	return 0, false
}

// Canonical returns the deterministic textual form of a Value.
// Map keys are emitted in sorted order and floats use the shortest exact
// representation, so equal values always produce identical strings. This is
// the identity used for grouping results by input and by combination.
func (v Value) Canonical() string {
	var b strings.Builder
	v.appendCanonical(&b)
	return b.String()
}

func (v Value) appendCanonical(b *strings.Builder) {
	switch v.Kind {
	case ValueString:
		b.WriteString(strconv.Quote(v.Str))
	case ValueNumber:
		b.WriteString(strconv.FormatFloat(v.Num, 'g', -1, 64))
	case ValueBool:
		b.WriteString(strconv.FormatBool(v.Bool))
	case ValueList:
		b.WriteByte('[')
		for i, elem := range v.List {
			if i > 0 {
				b.WriteByte(',')
			}
			elem.appendCanonical(b)
		}
		b.WriteByte(']')
	case ValueMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			v.Map[k].appendCanonical(b)
		}
		b.WriteByte('}')
	default:
		b.WriteString("null")
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	return v.Canonical() == other.Canonical()
}
