package models

import "strings"

// Condition is the grading condition a customer declares for a traded card
type Condition string

const (
	ConditionNM  Condition = "NM"  // Near Mint
	ConditionLP  Condition = "LP"  // Lightly Played
	ConditionMP  Condition = "MP"  // Moderately Played
	ConditionHP  Condition = "HP"  // Heavily Played
	ConditionDMG Condition = "DMG" // Damaged
)

// AllConditions returns all valid conditions, best first
func AllConditions() []Condition {
	return []Condition{
		ConditionNM,
		ConditionLP,
		ConditionMP,
		ConditionHP,
		ConditionDMG,
	}
}

// IsValid reports whether c is one of the known conditions. The empty
// condition is valid and means "not declared".
func (c Condition) IsValid() bool {
	if c == "" {
		return true
	}
	for _, known := range AllConditions() {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCondition maps the spellings kiosk staff actually type to a Condition.
// Returns the input unchanged (and invalid) when it is not recognized.
func ParseCondition(s string) Condition {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return ""
	case "NM", "NEAR MINT", "MINT":
		return ConditionNM
	case "LP", "LIGHTLY PLAYED", "EXCELLENT":
		return ConditionLP
	case "MP", "MODERATELY PLAYED", "GOOD":
		return ConditionMP
	case "HP", "HEAVILY PLAYED", "PLAYED":
		return ConditionHP
	case "DMG", "DAMAGED", "POOR":
		return ConditionDMG
	default:
		return Condition(s)
	}
}
