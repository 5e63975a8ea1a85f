package qdrant

// =============================================================================
// FILTERS
// =============================================================================

// Filter is the Qdrant boolean filter clause. Only the pieces the pipeline
// needs are modeled.
type Filter struct {
	Must    []Condition `json:"must,omitempty"`
	MustNot []Condition `json:"must_not,omitempty"`
}

// Condition matches one payload field.
type Condition struct {
	Key   string      `json:"key,omitempty"`
	Match *MatchValue `json:"match,omitempty"`
	Range *RangeValue `json:"range,omitempty"`
}

// MatchValue is an exact-value match.
type MatchValue struct {
	Value any `json:"value"`
}

// RangeValue is a numeric range on a payload field.
type RangeValue struct {
	GTE *float64 `json:"gte,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// MustMatch builds a filter requiring key == value.
func MustMatch(key string, value any) *Filter {
	return &Filter{Must: []Condition{Match(key, value)}}
}

// Match builds an exact-match condition.
func Match(key string, value any) Condition {
	return Condition{Key: key, Match: &MatchValue{Value: value}}
}

// GTE builds a condition requiring key >= value.
func GTE(key string, value float64) Condition {
	return Condition{Key: key, Range: &RangeValue{GTE: &value}}
}

// LTE builds a condition requiring key <= value.
func LTE(key string, value float64) Condition {
	return Condition{Key: key, Range: &RangeValue{LTE: &value}}
}

// And appends conditions to the filter's must clause, allocating the filter
// when needed.
func (f *Filter) And(conds ...Condition) *Filter {
	if f == nil {
		f = &Filter{}
	}
	f.Must = append(f.Must, conds...)
	return f
}
