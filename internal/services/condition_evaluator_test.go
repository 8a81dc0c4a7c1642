package services

import (
	"testing"
)

func TestEvaluateConditions_Operators(t *testing.T) {
	event := map[string]interface{}{
		"priority": "high",
		"score":    float64(10),
		"category": "Food Safety",
		"user": map[string]interface{}{
			"role": "server",
		},
		"note": nil,
	}

	tests := []struct {
		name string
		cond RuleCondition
		want bool
	}{
		{"equals match", RuleCondition{Field: "priority", Operator: OpEquals, Value: "high"}, true},
		{"equals mismatch", RuleCondition{Field: "priority", Operator: OpEquals, Value: "low"}, false},
		{"equals no cross-type coercion", RuleCondition{Field: "score", Operator: OpEquals, Value: "10"}, false},
		{"equals numeric widening", RuleCondition{Field: "score", Operator: OpEquals, Value: 10}, true},
		{"equals missing field", RuleCondition{Field: "missing", Operator: OpEquals, Value: "high"}, false},
		{"equals null does not match missing", RuleCondition{Field: "missing", Operator: OpEquals, Value: nil}, false},
		{"equals null matches explicit null", RuleCondition{Field: "note", Operator: OpEquals, Value: nil}, true},
		{"not_equals", RuleCondition{Field: "priority", Operator: OpNotEquals, Value: "low"}, true},
		{"not_equals missing field matches", RuleCondition{Field: "missing", Operator: OpNotEquals, Value: "x"}, true},
		{"greater_than", RuleCondition{Field: "score", Operator: OpGreaterThan, Value: 5}, true},
		{"greater_than equal is false", RuleCondition{Field: "score", Operator: OpGreaterThan, Value: 10}, false},
		{"greater_than numeric string", RuleCondition{Field: "priority", Operator: OpGreaterThan, Value: 5}, false},
		{"less_than", RuleCondition{Field: "score", Operator: OpLessThan, Value: 20}, true},
		{"less_than non-numeric is false", RuleCondition{Field: "category", Operator: OpLessThan, Value: 5}, false},
		{"contains case-insensitive", RuleCondition{Field: "category", Operator: OpContains, Value: "food"}, true},
		{"contains substring", RuleCondition{Field: "category", Operator: OpContains, Value: "safety"}, true},
		{"contains miss", RuleCondition{Field: "category", Operator: OpContains, Value: "hygiene"}, false},
		{"contains missing field", RuleCondition{Field: "missing", Operator: OpContains, Value: "x"}, false},
		{"not_contains", RuleCondition{Field: "category", Operator: OpNotContains, Value: "hygiene"}, true},
		{"nested path", RuleCondition{Field: "user.role", Operator: OpEquals, Value: "server"}, true},
		{"nested path miss", RuleCondition{Field: "user.name", Operator: OpEquals, Value: "x"}, false},
		{"path through non-map", RuleCondition{Field: "priority.x", Operator: OpEquals, Value: "x"}, false},
		{"unknown operator", RuleCondition{Field: "priority", Operator: "between", Value: "high"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateConditions([]RuleCondition{tt.cond}, event)
			if got != tt.want {
				t.Fatalf("EvaluateConditions(%+v) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestEvaluateConditions_NumericStrings(t *testing.T) {
	event := map[string]interface{}{
		"count": "10",
		"label": "abc",
	}

	// numeric strings coerce for ordering comparisons
	if !EvaluateConditions([]RuleCondition{{Field: "count", Operator: OpGreaterThan, Value: 5}}, event) {
		t.Fatal(`expected "10" > 5 to hold`)
	}
	// non-numeric strings become NaN and every comparison fails
	if EvaluateConditions([]RuleCondition{{Field: "label", Operator: OpGreaterThan, Value: 5}}, event) {
		t.Fatal(`expected "abc" > 5 to be false`)
	}
	if EvaluateConditions([]RuleCondition{{Field: "label", Operator: OpLessThan, Value: 5}}, event) {
		t.Fatal(`expected "abc" < 5 to be false`)
	}
}

func TestEvaluateConditions_Connectors(t *testing.T) {
	event := map[string]interface{}{
		"a": "1",
		"b": "2",
		"c": "3",
	}
	eq := func(field, value string, logic Connector) RuleCondition {
		return RuleCondition{Field: field, Operator: OpEquals, Value: value, Logic: logic}
	}

	tests := []struct {
		name  string
		conds []RuleCondition
		want  bool
	}{
		{"empty list matches", nil, true},
		{"single true", []RuleCondition{eq("a", "1", "")}, true},
		{"single false", []RuleCondition{eq("a", "2", "")}, false},
		{"default AND", []RuleCondition{eq("a", "1", ""), eq("b", "2", "")}, true},
		{"default AND one false", []RuleCondition{eq("a", "1", ""), eq("b", "9", "")}, false},
		{"explicit OR rescues", []RuleCondition{eq("a", "9", ConnectorOr), eq("b", "2", "")}, true},
		{"OR both false", []RuleCondition{eq("a", "9", ConnectorOr), eq("b", "9", "")}, false},
		// connector on condition i applies between i and i+1: (false OR true) AND true
		{"mixed connectors", []RuleCondition{eq("a", "9", ConnectorOr), eq("b", "2", ConnectorAnd), eq("c", "3", "")}, true},
		// (true OR false) AND false
		{"mixed connectors false tail", []RuleCondition{eq("a", "1", ConnectorOr), eq("b", "9", ConnectorAnd), eq("c", "9", "")}, false},
		// left fold, not precedence: ((false AND true) OR true)
		{"left fold no precedence", []RuleCondition{eq("a", "9", ConnectorAnd), eq("b", "2", ConnectorOr), eq("c", "3", "")}, true},
		// connector persists until overridden: second condition has no Logic
		{"connector carries forward", []RuleCondition{eq("a", "9", ConnectorOr), eq("b", "9", ""), eq("c", "3", "")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateConditions(tt.conds, event)
			if got != tt.want {
				t.Fatalf("EvaluateConditions = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveFieldPath(t *testing.T) {
	data := map[string]interface{}{
		"outer": map[string]interface{}{
			"inner": "v",
			"null":  nil,
		},
	}

	if got := resolveFieldPath("outer.inner", data); got != "v" {
		t.Fatalf("expected v, got %v", got)
	}
	if got := resolveFieldPath("outer.null", data); got != nil {
		t.Fatalf("expected explicit nil, got %v", got)
	}
	if _, ok := resolveFieldPath("outer.missing", data).(undefinedValue); !ok {
		t.Fatal("expected undefined sentinel for missing key")
	}
	if _, ok := resolveFieldPath("", data).(undefinedValue); !ok {
		t.Fatal("expected undefined sentinel for empty path")
	}
	if _, ok := resolveFieldPath("outer.inner.deeper", data).(undefinedValue); !ok {
		t.Fatal("expected undefined sentinel when walking through a scalar")
	}
}
