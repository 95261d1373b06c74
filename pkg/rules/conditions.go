package rules

import (
	"reflect"
	"sort"
	"strings"
)

// PredicateKind identifies how a condition is evaluated.
type PredicateKind string

const (
	// PredicateEquals requires strict equality between the claim field and
	// the condition value.
	PredicateEquals PredicateKind = "equals"

	// PredicateNumericMin requires claimData[field] >= threshold. A missing
	// field is treated as 0.
	PredicateNumericMin PredicateKind = "numeric_min"

	// PredicateNumericMax requires claimData[field] <= threshold. A missing
	// field is treated as 0.
	PredicateNumericMax PredicateKind = "numeric_max"

	// PredicateBoolean requires the claim field to be a bool strictly equal
	// to the condition value.
	PredicateBoolean PredicateKind = "boolean"
)

// Predicate is one decoded condition. Rules persist conditions as a loose
// field-name to value map; decoding them into a tagged variant makes the
// evaluator's contract explicit instead of inferring semantics from
// key-name suffixes at match time.
type Predicate struct {
	// Field is the claim data field the predicate inspects.
	Field string

	// Kind selects the comparison.
	Kind PredicateKind

	// Value is the expected value for equals/boolean predicates.
	Value any

	// Threshold is the numeric bound for numeric_min/numeric_max predicates.
	Threshold float64
}

// DecodeConditions decodes a persisted condition map into predicates.
// Keys suffixed "_min"/"_max" with numeric values become numeric bounds on
// the unsuffixed field; boolean values become boolean predicates; everything
// else is exact match. Predicates come back in sorted key order so
// evaluation and logging are deterministic.
func DecodeConditions(spec map[string]any) []Predicate {
	if len(spec) == 0 {
		return nil
	}

	keys := make([]string, 0, len(spec))
	for k := range spec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]Predicate, 0, len(keys))
	for _, key := range keys {
		value := spec[key]

		if threshold, ok := toFloat(value); ok {
			if field, found := strings.CutSuffix(key, "_min"); found && field != "" {
				preds = append(preds, Predicate{Field: field, Kind: PredicateNumericMin, Threshold: threshold})
				continue
			}
			if field, found := strings.CutSuffix(key, "_max"); found && field != "" {
				preds = append(preds, Predicate{Field: field, Kind: PredicateNumericMax, Threshold: threshold})
				continue
			}
		}

		if b, ok := value.(bool); ok {
			preds = append(preds, Predicate{Field: key, Kind: PredicateBoolean, Value: b})
			continue
		}

		preds = append(preds, Predicate{Field: key, Kind: PredicateEquals, Value: value})
	}
	return preds
}

// Matches evaluates the predicate against claim data.
func (p Predicate) Matches(data map[string]any) bool {
	switch p.Kind {
	case PredicateNumericMin:
		actual, _ := toFloat(data[p.Field]) // missing field defaults to 0
		return actual >= p.Threshold

	case PredicateNumericMax:
		actual, _ := toFloat(data[p.Field])
		return actual <= p.Threshold

	case PredicateBoolean:
		actual, ok := data[p.Field].(bool)
		return ok && actual == p.Value.(bool)

	case PredicateEquals:
		return equalValues(data[p.Field], p.Value)
	}
	return false
}

// MatchesAll reports whether every predicate matches (AND semantics).
// An empty predicate list always matches.
func MatchesAll(preds []Predicate, data map[string]any) bool {
	for _, p := range preds {
		if !p.Matches(data) {
			return false
		}
	}
	return true
}

// equalValues compares two values, treating numeric types as equal when
// their float values coincide (JSON decoding hands back float64 where the
// caller may hold an int).
func equalValues(actual, expected any) bool {
	af, aok := toFloat(actual)
	ef, eok := toFloat(expected)
	if aok && eok {
		return af == ef
	}
	return reflect.DeepEqual(actual, expected)
}

// toFloat coerces the numeric types that reach us from JSON decoding and
// direct Go callers.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
