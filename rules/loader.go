package rules

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"
)

// RuleSet is an immutable, validated snapshot of rule definitions, compiled
// and ordered for evaluation. Build one per configuration load and share it
// freely: it is safe for concurrent use and is never mutated.
type RuleSet struct {
	rules []compiledRule
	notes []string
}

// compiledRule pairs a rule with its precompiled sender patterns and
// optional CEL program.
type compiledRule struct {
	rule    Rule
	senders []pattern
	program cel.Program
}

// messageEnv builds the CEL environment rule expressions are compiled in.
// The variables mirror the Message fields the engine evaluates against.
func messageEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("category", cel.StringType),
		cel.Variable("confidence", cel.DoubleType),
		cel.Variable("sender", cel.StringType),
		cel.Variable("subject", cel.StringType),
		cel.Variable("body", cel.StringType),
		cel.Variable("labels", cel.ListType(cel.StringType)),
	)
}

// CheckExpression reports whether expr compiles in the message environment.
// Used at the admin boundary so a bad expression is rejected at save time
// instead of quarantining the rule at load time.
func CheckExpression(expr string) error {
	if expr == "" {
		return nil
	}
	env, err := messageEnv()
	if err != nil {
		return fmt.Errorf("expression environment unavailable: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("invalid expression: %w", issues.Err())
	}
	if _, err := env.Program(ast, cel.CostLimit(1000000)); err != nil {
		return fmt.Errorf("expression program error: %w", err)
	}
	return nil
}

// NewRuleSet validates and compiles rule definitions into an evaluation-ready
// snapshot. Malformed rules are quarantined with a validation note instead of
// failing the load: a single bad rule must not deny evaluation for the rest
// of the set. Inactive rules are dropped silently. Rules are ordered by
// priority descending, ties broken by name ascending.
func NewRuleSet(defs []Rule) *RuleSet {
	rs := &RuleSet{}

	env, envErr := messageEnv()
	if envErr != nil {
		rs.notes = append(rs.notes, fmt.Sprintf("expression environment unavailable: %v", envErr))
	}

	seen := make(map[string]bool, len(defs))
	for i, def := range defs {
		if !def.Active {
			continue
		}

		if def.Name == "" {
			rs.notes = append(rs.notes, fmt.Sprintf("rule at index %d skipped: missing name", i))
			continue
		}
		if seen[def.Name] {
			rs.notes = append(rs.notes, fmt.Sprintf("rule %q skipped: duplicate name", def.Name))
			continue
		}

		if mc := def.Conditions.MinConfidence; mc != nil && (*mc < 0 || *mc > 1) {
			rs.notes = append(rs.notes, fmt.Sprintf("rule %q skipped: min_confidence %v outside [0,1]", def.Name, *mc))
			continue
		}

		cr := compiledRule{rule: def}

		if expr := def.Conditions.Expression; expr != "" {
			if env == nil {
				rs.notes = append(rs.notes, fmt.Sprintf("rule %q skipped: expression cannot be compiled", def.Name))
				continue
			}
			ast, issues := env.Compile(expr)
			if issues != nil && issues.Err() != nil {
				rs.notes = append(rs.notes, fmt.Sprintf("rule %q skipped: invalid expression: %v", def.Name, issues.Err()))
				continue
			}
			prog, err := env.Program(ast, cel.CostLimit(1000000))
			if err != nil {
				rs.notes = append(rs.notes, fmt.Sprintf("rule %q skipped: expression program error: %v", def.Name, err))
				continue
			}
			cr.program = prog
		}

		// Invalid action descriptors are dropped from the rule rather than
		// quarantining the whole rule; the remaining actions still apply.
		kept := def.Actions[:0:0]
		for _, a := range def.Actions {
			if err := a.Validate(); err != nil {
				rs.notes = append(rs.notes, fmt.Sprintf("rule %q: action dropped: %v", def.Name, err))
				continue
			}
			kept = append(kept, a)
		}
		cr.rule.Actions = kept

		if def.Conditions.Empty() {
			// Catch-all rules are allowed but worth surfacing.
			rs.notes = append(rs.notes, fmt.Sprintf("rule %q has no conditions and matches every message", def.Name))
		}

		for _, p := range def.Conditions.SenderPatterns {
			cr.senders = append(cr.senders, compilePattern(p))
		}

		seen[def.Name] = true
		rs.rules = append(rs.rules, cr)
	}

	sort.SliceStable(rs.rules, func(i, j int) bool {
		a, b := rs.rules[i].rule, rs.rules[j].rule
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Name < b.Name
	})

	return rs
}

// Rules returns the loaded rules in evaluation order.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, 0, len(rs.rules))
	for _, cr := range rs.rules {
		out = append(out, cr.rule)
	}
	return out
}

// Notes returns the validation notes recorded while loading the set.
func (rs *RuleSet) Notes() []string {
	return append([]string(nil), rs.notes...)
}

// Len returns the number of rules that survived loading.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}
