package models

import "testing"

func TestParseCondition(t *testing.T) {
	tests := []struct {
		input    string
		expected Condition
	}{
		{"NM", ConditionNM},
		{"near mint", ConditionNM},
		{"Mint", ConditionNM},
		{"lp", ConditionLP},
		{"Lightly Played", ConditionLP},
		{"MP", ConditionMP},
		{"HP", ConditionHP},
		{"played", ConditionHP},
		{"DMG", ConditionDMG},
		{"Damaged", ConditionDMG},
		{"  ", Condition("")},
		{"Sealed", Condition("Sealed")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseCondition(tt.input)
			if result != tt.expected {
				t.Errorf("ParseCondition(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestConditionIsValid(t *testing.T) {
	for _, c := range AllConditions() {
		if !c.IsValid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if !Condition("").IsValid() {
		t.Error("empty condition should be valid (undeclared)")
	}
	if Condition("Sealed").IsValid() {
		t.Error("Sealed should not be a valid condition")
	}
	if len(AllConditions()) != 5 {
		t.Errorf("AllConditions() returned %d conditions, want 5", len(AllConditions()))
	}
}
