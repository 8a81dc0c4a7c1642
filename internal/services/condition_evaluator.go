package services

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// undefinedValue marks a field path that does not resolve in the event data.
// Distinct from an explicit null so that `equals: null` does not match a
// missing field.
type undefinedValue struct{}

var undefined = undefinedValue{}

// EvaluateConditions folds the condition list left to right. The connector
// for position i+1 comes from conditions[i].Logic and defaults to AND. Every
// condition is evaluated even when the accumulator already decides the
// outcome; condition reads are side-effect free, and evaluating them all
// keeps malformed conditions visible during testing.
func EvaluateConditions(conditions []RuleCondition, eventData map[string]interface{}) bool {
	if len(conditions) == 0 {
		return true
	}
	result := evaluateSingle(conditions[0], eventData)
	connector := ConnectorAnd
	if conditions[0].Logic != "" {
		connector = conditions[0].Logic
	}
	for i := 1; i < len(conditions); i++ {
		r := evaluateSingle(conditions[i], eventData)
		if connector == ConnectorOr {
			result = result || r
		} else {
			result = result && r
		}
		if conditions[i].Logic != "" {
			connector = conditions[i].Logic
		}
	}
	return result
}

func evaluateSingle(cond RuleCondition, eventData map[string]interface{}) bool {
	fieldValue := resolveFieldPath(cond.Field, eventData)

	switch cond.Operator {
	case OpEquals:
		return strictEquals(fieldValue, cond.Value)
	case OpNotEquals:
		return !strictEquals(fieldValue, cond.Value)
	case OpGreaterThan:
		a, b := toNumber(fieldValue), toNumber(cond.Value)
		return !math.IsNaN(a) && !math.IsNaN(b) && a > b
	case OpLessThan:
		a, b := toNumber(fieldValue), toNumber(cond.Value)
		return !math.IsNaN(a) && !math.IsNaN(b) && a < b
	case OpContains:
		return containsFold(fieldValue, cond.Value)
	case OpNotContains:
		return !containsFold(fieldValue, cond.Value)
	default:
		return false
	}
}

// resolveFieldPath walks a dot-separated path into nested maps. Any miss
// along the way yields the undefined sentinel.
func resolveFieldPath(path string, data map[string]interface{}) interface{} {
	if path == "" {
		return undefined
	}
	var current interface{} = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return undefined
		}
		current, ok = m[part]
		if !ok {
			return undefined
		}
	}
	return current
}

// strictEquals compares without cross-type coercion: "5" never equals 5.
func strictEquals(a, b interface{}) bool {
	if _, ok := a.(undefinedValue); ok {
		return false
	}
	an, aIsNum := numericValue(a)
	bn, bIsNum := numericValue(b)
	if aIsNum || bIsNum {
		return aIsNum && bIsNum && an == bn
	}
	return reflect.DeepEqual(a, b)
}

// toNumber coerces like a dynamic language would: numeric strings parse,
// booleans map to 0/1, null is 0, anything else is NaN.
func toNumber(v interface{}) float64 {
	if n, ok := numericValue(v); ok {
		return n
	}
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return math.NaN()
		}
		return n
	case bool:
		if t {
			return 1
		}
		return 0
	case nil:
		return 0
	default:
		return math.NaN()
	}
}

func numericValue(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return math.NaN(), false
		}
		return n, true
	default:
		return 0, false
	}
}

// containsFold stringifies both operands and does a case-insensitive
// substring test.
func containsFold(haystack, needle interface{}) bool {
	if _, ok := haystack.(undefinedValue); ok {
		return false
	}
	h := strings.ToLower(stringify(haystack))
	n := strings.ToLower(stringify(needle))
	return strings.Contains(h, n)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
