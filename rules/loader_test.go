package rules

import (
	"strings"
	"testing"

	"github.com/liamcoop/triage/action"
)

func activeRule(name string, priority int) Rule {
	return Rule{
		Name:       name,
		Priority:   priority,
		Active:     true,
		Conditions: Conditions{Categories: []string{"important"}},
		Actions:    []action.Descriptor{{Type: action.TypeFlag, Priority: 5}},
	}
}

func hasNoteContaining(notes []string, substr string) bool {
	for _, n := range notes {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

func TestNewRuleSetSkipsInactiveSilently(t *testing.T) {
	inactive := activeRule("off", 5)
	inactive.Active = false

	set := NewRuleSet([]Rule{activeRule("on", 5), inactive})

	if set.Len() != 1 {
		t.Errorf("expected 1 rule, got %d", set.Len())
	}
	if len(set.Notes()) != 0 {
		t.Errorf("expected no notes for inactive rules, got %v", set.Notes())
	}
}

func TestNewRuleSetQuarantinesMissingName(t *testing.T) {
	nameless := activeRule("", 5)

	set := NewRuleSet([]Rule{nameless, activeRule("ok", 5)})

	if set.Len() != 1 {
		t.Errorf("expected 1 rule, got %d", set.Len())
	}
	if !hasNoteContaining(set.Notes(), "missing name") {
		t.Errorf("expected a missing-name note, got %v", set.Notes())
	}
}

func TestNewRuleSetQuarantinesDuplicateName(t *testing.T) {
	set := NewRuleSet([]Rule{activeRule("dup", 9), activeRule("dup", 1)})

	if set.Len() != 1 {
		t.Errorf("expected 1 rule, got %d", set.Len())
	}
	if set.Rules()[0].Priority != 9 {
		t.Errorf("expected the first definition to win, got priority %d", set.Rules()[0].Priority)
	}
	if !hasNoteContaining(set.Notes(), "duplicate name") {
		t.Errorf("expected a duplicate-name note, got %v", set.Notes())
	}
}

func TestNewRuleSetQuarantinesBadConfidence(t *testing.T) {
	mc := 2.0
	bad := activeRule("bad threshold", 5)
	bad.Conditions.MinConfidence = &mc

	set := NewRuleSet([]Rule{bad})

	if set.Len() != 0 {
		t.Errorf("expected no rules, got %d", set.Len())
	}
	if !hasNoteContaining(set.Notes(), "min_confidence") {
		t.Errorf("expected a min_confidence note, got %v", set.Notes())
	}
}

func TestNewRuleSetQuarantinesBadExpression(t *testing.T) {
	bad := activeRule("bad expr", 5)
	bad.Conditions.Expression = "confidence >"

	set := NewRuleSet([]Rule{bad})

	if set.Len() != 0 {
		t.Errorf("expected no rules, got %d", set.Len())
	}
	if !hasNoteContaining(set.Notes(), "invalid expression") {
		t.Errorf("expected an invalid-expression note, got %v", set.Notes())
	}
}

func TestNewRuleSetDropsInvalidActionsKeepsRule(t *testing.T) {
	r := activeRule("mixed actions", 5)
	r.Actions = []action.Descriptor{
		{Type: action.TypeLabel, Priority: 5}, // missing label parameter
		{Type: action.TypeFlag, Priority: 8},
	}

	set := NewRuleSet([]Rule{r})

	if set.Len() != 1 {
		t.Fatalf("expected the rule to survive, got %d rules", set.Len())
	}
	kept := set.Rules()[0].Actions
	if len(kept) != 1 || kept[0].Type != action.TypeFlag {
		t.Errorf("expected only the valid action kept, got %v", kept)
	}
	if !hasNoteContaining(set.Notes(), "action dropped") {
		t.Errorf("expected an action-dropped note, got %v", set.Notes())
	}
}

func TestNewRuleSetWarnsOnCatchAll(t *testing.T) {
	catchAll := Rule{
		Name:     "match everything",
		Priority: 1,
		Active:   true,
		Actions:  []action.Descriptor{{Type: action.TypeFlag, Priority: 1}},
	}

	set := NewRuleSet([]Rule{catchAll})

	if set.Len() != 1 {
		t.Errorf("expected the catch-all to load, got %d rules", set.Len())
	}
	if !hasNoteContaining(set.Notes(), "matches every message") {
		t.Errorf("expected a catch-all warning, got %v", set.Notes())
	}
}

func TestNewRuleSetOrdering(t *testing.T) {
	set := NewRuleSet([]Rule{
		activeRule("beta", 5),
		activeRule("alpha", 5),
		activeRule("top", 9),
	})

	got := set.Rules()
	wantOrder := []string{"top", "alpha", "beta"}
	for i, name := range wantOrder {
		if got[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, got[i].Name)
		}
	}
}

func TestCheckExpression(t *testing.T) {
	if err := CheckExpression(""); err != nil {
		t.Errorf("expected empty expression to pass, got: %v", err)
	}
	if err := CheckExpression(`confidence > 0.5`); err != nil {
		t.Errorf("expected valid expression to pass, got: %v", err)
	}
	if err := CheckExpression(`confidence >`); err == nil {
		t.Error("expected malformed expression to fail")
	}
	if err := CheckExpression(`unknown_var == 1`); err == nil {
		t.Error("expected unknown variable to fail compilation")
	}
}
