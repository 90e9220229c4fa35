package rules

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/liamcoop/triage/action"
)

// Engine evaluates a rule set against classified messages and produces
// action recommendations. It holds only immutable state and is safe for
// concurrent use; Evaluate is a pure function of (rule set, message).
type Engine struct {
	set *RuleSet
}

// NewEngine creates an engine over a loaded rule set. The rule set must be
// supplied explicitly; there is no implicit default (callers that want the
// stock rules pass NewRuleSet(DefaultRules())).
func NewEngine(set *RuleSet) *Engine {
	return &Engine{set: set}
}

// Evaluate matches every rule in the set against the message and synthesizes
// a recommendation. It never fails: malformed rules were quarantined at load
// time, expression evaluation errors make the rule not match, and degraded
// input only degrades the confidence score. Repeated calls with the same
// inputs produce identical results.
func (e *Engine) Evaluate(msg Message) *RecommendationResult {
	res := &RecommendationResult{
		MatchedRules:       []RuleRef{},
		RecommendedActions: []action.Descriptor{},
		ValidationNotes:    e.set.Notes(),
	}

	// A missing or out-of-range confidence is clamped rather than rejected
	// so one bad upstream record cannot crash a batch.
	conf := clampConfidence(msg.Confidence)

	seenTypes := make(map[action.Type]bool)
	seenFlags := make(map[string]bool)

	for _, cr := range e.set.rules {
		matched, note := e.ruleMatches(cr, msg, conf)
		if note != "" {
			res.ValidationNotes = append(res.ValidationNotes, note)
		}
		if !matched {
			continue
		}

		res.MatchedRules = append(res.MatchedRules, RuleRef{
			Name:     cr.rule.Name,
			Priority: cr.rule.Priority,
		})

		// First-seen wins: a higher-priority rule's descriptor for a type
		// suppresses later descriptors of the same type.
		for _, a := range cr.rule.Actions {
			if seenTypes[a.Type] {
				continue
			}
			seenTypes[a.Type] = true
			res.RecommendedActions = append(res.RecommendedActions, a)
		}

		for _, flag := range cr.rule.SafetyFlags {
			if seenFlags[flag] {
				continue
			}
			seenFlags[flag] = true
			res.SafetyFlags = append(res.SafetyFlags, flag)
		}
	}

	// Rank recommendations by their own priority; the stable sort keeps
	// rule-priority order among equals so output stays deterministic.
	sort.SliceStable(res.RecommendedActions, func(i, j int) bool {
		return res.RecommendedActions[i].Priority > res.RecommendedActions[j].Priority
	})

	res.ConfidenceScore = confidenceScore(conf, len(res.MatchedRules))
	res.Reasoning = reasoning(msg.Category, conf, res.MatchedRules, res.RecommendedActions)

	return res
}

// ruleMatches applies the rule's predicate conjunction to the message.
// The note return is non-empty when the optional expression failed at
// runtime; such rules do not match.
func (e *Engine) ruleMatches(cr compiledRule, msg Message, conf float64) (bool, string) {
	c := cr.rule.Conditions

	if len(c.Categories) > 0 && !containsString(c.Categories, msg.Category) {
		return false, ""
	}

	if c.MinConfidence != nil && conf < *c.MinConfidence {
		return false, ""
	}

	if len(cr.senders) > 0 {
		anyMatch := false
		for _, p := range cr.senders {
			if p.match(msg.Sender) {
				anyMatch = true
				break
			}
		}
		if !anyMatch {
			return false, ""
		}
	}

	if len(c.SubjectKeywords) > 0 && !containsKeyword(c.SubjectKeywords, msg.Subject) {
		return false, ""
	}

	if len(c.BodyKeywords) > 0 && !containsKeyword(c.BodyKeywords, msg.Body) {
		return false, ""
	}

	if len(c.Labels) > 0 && !intersects(c.Labels, msg.Labels) {
		return false, ""
	}

	if cr.program != nil {
		out, _, err := cr.program.Eval(map[string]any{
			"category":   msg.Category,
			"confidence": conf,
			"sender":     msg.Sender,
			"subject":    msg.Subject,
			"body":       msg.Body,
			"labels":     labelsOrEmpty(msg.Labels),
		})
		if err != nil {
			return false, fmt.Sprintf("rule %q skipped: expression evaluation failed: %v", cr.rule.Name, err)
		}
		b, ok := out.Value().(bool)
		if !ok || !b {
			return false, ""
		}
	}

	return true, ""
}

// confidenceScore blends the upstream classification confidence with rule
// match strength into a 0-100 score. No rule matched means no
// recommendation, which scores zero regardless of classification.
func confidenceScore(conf float64, matched int) int {
	if matched == 0 {
		return 0
	}

	score := int(math.Round(conf * 100))
	boost := 10 * matched
	if boost > 30 {
		boost = 30
	}
	score += boost

	if conf < 0.60 {
		score -= 20
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// reasoning composes the human-readable justification. It is a pure function
// of its inputs so that repeated evaluations stay byte-identical.
func reasoning(category string, conf float64, matched []RuleRef, acts []action.Descriptor) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Message classified as %q with %d%% confidence.", category, int(math.Round(conf*100)))

	if len(matched) == 0 {
		b.WriteString(" No rule matched.")
		return b.String()
	}

	names := make([]string, len(matched))
	for i, r := range matched {
		names[i] = r.Name
	}
	fmt.Fprintf(&b, " Matched %d rule(s): %s.", len(matched), strings.Join(names, ", "))

	if len(acts) > 0 {
		types := make([]string, len(acts))
		for i, a := range acts {
			types[i] = string(a.Type)
		}
		fmt.Fprintf(&b, " Recommending actions: %s.", strings.Join(types, ", "))
	}

	return b.String()
}

// clampConfidence defends against callers that violate the [0,1] contract,
// treating missing or garbage values as zero confidence.
func clampConfidence(conf float64) float64 {
	if math.IsNaN(conf) || conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// containsKeyword reports case-insensitive substring containment of at least
// one keyword in text.
func containsKeyword(keywords []string, text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func intersects(required, have []string) bool {
	for _, r := range required {
		for _, h := range have {
			if r == h {
				return true
			}
		}
	}
	return false
}

// labelsOrEmpty keeps the CEL activation deterministic for nil label sets.
func labelsOrEmpty(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}
