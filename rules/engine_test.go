package rules

import (
	"reflect"
	"strings"
	"testing"

	"github.com/liamcoop/triage/action"
)

func newTestEngine(defs []Rule) *Engine {
	return NewEngine(NewRuleSet(defs))
}

func TestEvaluateMatchesOnAllPredicates(t *testing.T) {
	mc := 0.7
	engine := newTestEngine([]Rule{
		{
			Name:     "vendor invoices",
			Priority: 10,
			Active:   true,
			Conditions: Conditions{
				Categories:      []string{"actionable"},
				MinConfidence:   &mc,
				SenderPatterns:  []string{"*@vendor.example.com"},
				SubjectKeywords: []string{"invoice"},
				Labels:          []string{"finance"},
			},
			Actions: []action.Descriptor{
				{Type: action.TypeFlag, Priority: 8, Reason: "invoice needs review"},
			},
		},
	})

	match := Message{
		Category:   "actionable",
		Confidence: 0.9,
		Sender:     "billing@vendor.example.com",
		Subject:    "Your INVOICE for August",
		Labels:     []string{"finance", "external"},
	}

	result := engine.Evaluate(match)
	if len(result.MatchedRules) != 1 {
		t.Fatalf("expected 1 matched rule, got %d", len(result.MatchedRules))
	}
	if result.MatchedRules[0].Name != "vendor invoices" {
		t.Errorf("expected vendor invoices to match, got %s", result.MatchedRules[0].Name)
	}

	// Each predicate is a conjunct: breaking any one of them must unmatch.
	tests := []struct {
		name   string
		mutate func(m Message) Message
	}{
		{"wrong category", func(m Message) Message { m.Category = "promotional"; return m }},
		{"low confidence", func(m Message) Message { m.Confidence = 0.5; return m }},
		{"wrong sender", func(m Message) Message { m.Sender = "billing@other.example.com"; return m }},
		{"missing keyword", func(m Message) Message { m.Subject = "August statement"; return m }},
		{"disjoint labels", func(m Message) Message { m.Labels = []string{"external"}; return m }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Evaluate(tt.mutate(match))
			if len(result.MatchedRules) != 0 {
				t.Errorf("expected no match, matched %v", result.MatchedRules)
			}
		})
	}
}

func TestEvaluateEmptyPredicatesAreIgnored(t *testing.T) {
	engine := newTestEngine([]Rule{
		{
			Name:     "category only",
			Priority: 5,
			Active:   true,
			Conditions: Conditions{
				Categories: []string{"spam"},
			},
			Actions: []action.Descriptor{
				{Type: action.TypeMarkRead, Priority: 5},
			},
		},
	})

	result := engine.Evaluate(Message{Category: "spam", Confidence: 0.2})
	if len(result.MatchedRules) != 1 {
		t.Errorf("expected rule with only a category predicate to match, got %v", result.MatchedRules)
	}
}

func TestEvaluateOrdersMatchesByPriorityThenName(t *testing.T) {
	mkRule := func(name string, priority int) Rule {
		return Rule{
			Name:       name,
			Priority:   priority,
			Active:     true,
			Conditions: Conditions{Categories: []string{"important"}},
			Actions:    []action.Descriptor{{Type: action.TypeFlag, Priority: 5}},
		}
	}
	engine := newTestEngine([]Rule{
		mkRule("zeta", 5),
		mkRule("alpha", 5),
		mkRule("low", 1),
		mkRule("high", 9),
	})

	result := engine.Evaluate(Message{Category: "important", Confidence: 0.9})

	var names []string
	for _, ref := range result.MatchedRules {
		names = append(names, ref.Name)
	}
	want := []string{"high", "alpha", "zeta", "low"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("expected match order %v, got %v", want, names)
	}
}

func TestEvaluateDeduplicatesActionTypes(t *testing.T) {
	engine := newTestEngine([]Rule{
		{
			Name:       "high priority flagger",
			Priority:   9,
			Active:     true,
			Conditions: Conditions{Categories: []string{"important"}},
			Actions: []action.Descriptor{
				{Type: action.TypeFlag, Priority: 9, Reason: "from high"},
			},
		},
		{
			Name:       "low priority flagger",
			Priority:   2,
			Active:     true,
			Conditions: Conditions{Categories: []string{"important"}},
			Actions: []action.Descriptor{
				{Type: action.TypeFlag, Priority: 1, Reason: "from low"},
				{Type: action.TypeArchive, Priority: 3},
			},
		},
	})

	result := engine.Evaluate(Message{Category: "important", Confidence: 0.9})

	if len(result.RecommendedActions) != 2 {
		t.Fatalf("expected 2 deduplicated actions, got %d", len(result.RecommendedActions))
	}

	var flag *action.Descriptor
	for i := range result.RecommendedActions {
		if result.RecommendedActions[i].Type == action.TypeFlag {
			flag = &result.RecommendedActions[i]
		}
	}
	if flag == nil {
		t.Fatal("expected a flag action")
	}
	if flag.Reason != "from high" {
		t.Errorf("expected the higher-priority rule's descriptor to win, got %q", flag.Reason)
	}
}

func TestEvaluateRanksActionsByDescriptorPriority(t *testing.T) {
	engine := newTestEngine([]Rule{
		{
			Name:       "spam handler",
			Priority:   7,
			Active:     true,
			Conditions: Conditions{Categories: []string{"spam"}},
			Actions: []action.Descriptor{
				{Type: action.TypeReportSpam, Priority: 8},
				{Type: action.TypeMarkRead, Priority: 9},
			},
		},
	})

	result := engine.Evaluate(Message{Category: "spam", Confidence: 0.9})

	if len(result.RecommendedActions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(result.RecommendedActions))
	}
	if result.RecommendedActions[0].Type != action.TypeMarkRead {
		t.Errorf("expected mark_read first (priority 9), got %s", result.RecommendedActions[0].Type)
	}
}

func TestEvaluateConfidenceScore(t *testing.T) {
	tests := []struct {
		name    string
		conf    float64
		matched int
		want    int
	}{
		{"no match scores zero", 0.95, 0, 0},
		{"single match", 0.75, 1, 85},
		{"boost caps at 30", 0.60, 5, 90},
		{"low confidence penalty", 0.50, 1, 40},
		{"clamped at 100", 0.95, 3, 100},
		{"clamped at 0", 0.05, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confidenceScore(tt.conf, tt.matched); got != tt.want {
				t.Errorf("confidenceScore(%v, %d): expected %d, got %d", tt.conf, tt.matched, tt.want, got)
			}
		})
	}
}

func TestEvaluateClampsGarbageConfidence(t *testing.T) {
	engine := newTestEngine([]Rule{
		{
			Name:       "catchless",
			Priority:   5,
			Active:     true,
			Conditions: Conditions{Categories: []string{"important"}},
			Actions:    []action.Descriptor{{Type: action.TypeFlag, Priority: 5}},
		},
	})

	result := engine.Evaluate(Message{Category: "important", Confidence: 17.5})
	if result.ConfidenceScore < 0 || result.ConfidenceScore > 100 {
		t.Errorf("expected score in [0,100], got %d", result.ConfidenceScore)
	}

	result = engine.Evaluate(Message{Category: "important", Confidence: -3})
	if result.ConfidenceScore < 0 || result.ConfidenceScore > 100 {
		t.Errorf("expected score in [0,100], got %d", result.ConfidenceScore)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	engine := newTestEngine(DefaultRules())
	msg := Message{
		Category:   "promotional",
		Confidence: 0.88,
		Sender:     "deals@shop.example.com",
		Subject:    "Huge sale this weekend",
	}

	first := engine.Evaluate(msg)
	second := engine.Evaluate(msg)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical results across evaluations:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestEvaluateNoMatchResult(t *testing.T) {
	engine := newTestEngine(DefaultRules())

	result := engine.Evaluate(Message{Category: "unclassified", Confidence: 0.9})

	if len(result.MatchedRules) != 0 {
		t.Errorf("expected no matched rules, got %v", result.MatchedRules)
	}
	if len(result.RecommendedActions) != 0 {
		t.Errorf("expected no actions, got %v", result.RecommendedActions)
	}
	if result.ConfidenceScore != 0 {
		t.Errorf("expected zero confidence score, got %d", result.ConfidenceScore)
	}
	if !strings.Contains(result.Reasoning, "No rule matched") {
		t.Errorf("expected reasoning to say no rule matched, got %q", result.Reasoning)
	}
}

func TestEvaluateReasoningFormat(t *testing.T) {
	engine := newTestEngine([]Rule{
		{
			Name:       "Flag important messages",
			Priority:   9,
			Active:     true,
			Conditions: Conditions{Categories: []string{"important"}},
			Actions:    []action.Descriptor{{Type: action.TypeFlag, Priority: 9}},
		},
	})

	result := engine.Evaluate(Message{Category: "important", Confidence: 0.9})

	want := `Message classified as "important" with 90% confidence.` +
		` Matched 1 rule(s): Flag important messages. Recommending actions: flag.`
	if result.Reasoning != want {
		t.Errorf("expected reasoning %q, got %q", want, result.Reasoning)
	}
}

func TestEvaluateExpressionPredicate(t *testing.T) {
	engine := newTestEngine([]Rule{
		{
			Name:     "urgent by expression",
			Priority: 8,
			Active:   true,
			Conditions: Conditions{
				Expression: `confidence > 0.8 && subject.contains("urgent")`,
			},
			Actions: []action.Descriptor{{Type: action.TypeFlag, Priority: 9}},
		},
	})

	hit := engine.Evaluate(Message{Category: "other", Confidence: 0.9, Subject: "urgent: server down"})
	if len(hit.MatchedRules) != 1 {
		t.Errorf("expected expression rule to match, got %v", hit.MatchedRules)
	}

	miss := engine.Evaluate(Message{Category: "other", Confidence: 0.9, Subject: "weekly report"})
	if len(miss.MatchedRules) != 0 {
		t.Errorf("expected expression rule not to match, got %v", miss.MatchedRules)
	}
}

func TestEvaluateQuarantineNotesSurface(t *testing.T) {
	mc := 1.5 // out of range, quarantines the rule
	engine := newTestEngine([]Rule{
		{
			Name:       "broken threshold",
			Priority:   5,
			Active:     true,
			Conditions: Conditions{MinConfidence: &mc},
			Actions:    []action.Descriptor{{Type: action.TypeFlag, Priority: 5}},
		},
		{
			Name:       "healthy",
			Priority:   5,
			Active:     true,
			Conditions: Conditions{Categories: []string{"important"}},
			Actions:    []action.Descriptor{{Type: action.TypeArchive, Priority: 5}},
		},
	})

	result := engine.Evaluate(Message{Category: "important", Confidence: 0.9})

	if len(result.MatchedRules) != 1 || result.MatchedRules[0].Name != "healthy" {
		t.Errorf("expected only the healthy rule to match, got %v", result.MatchedRules)
	}
	found := false
	for _, note := range result.ValidationNotes {
		if strings.Contains(note, "broken threshold") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a validation note about the quarantined rule, got %v", result.ValidationNotes)
	}
}
