package domain

// Combination is one fully-specified assignment of values to variation
// points: variation-point name to the value selected for that point.
// Identity for aggregation bucketing is the canonical serialized form.
type Combination map[string]Value

// Key returns the stable bucketing identity of the combination.
// Equal combinations always produce identical keys regardless of map
// iteration order.
func (c Combination) Key() string { return MapValue(c).Canonical() }

// Clone returns an independent copy of the combination.
func (c Combination) Clone() Combination {
	if c == nil {
		return nil
	}
	out := make(Combination, len(c))
	for name, v := range c {
		out[name] = v
	}
	return out
}
