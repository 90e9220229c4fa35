package accountengine

import (
	"fmt"
	"strings"

	"github.com/liamcoop/triage/rules"
)

const (
	maxNameLength        = 200
	maxDescriptionLength = 2000
	maxPriority          = 1000
	maxActionsPerRule    = 20
)

// ValidateDefinition checks a rule definition at the admin boundary. The
// evaluation loader quarantines bad rules so evaluation never fails; this
// check runs at save time so bad definitions are rejected before they are
// ever persisted. Returns nil if the definition is acceptable.
func ValidateDefinition(rule *rules.Rule) error {
	if rule == nil {
		return fmt.Errorf("rule cannot be nil")
	}

	if err := validateName(rule.Name); err != nil {
		return err
	}

	if len(rule.Description) > maxDescriptionLength {
		return fmt.Errorf("description length %d exceeds maximum of %d characters",
			len(rule.Description), maxDescriptionLength)
	}

	if rule.Priority < 0 || rule.Priority > maxPriority {
		return fmt.Errorf("priority %d outside allowed range [0, %d]", rule.Priority, maxPriority)
	}

	if mc := rule.Conditions.MinConfidence; mc != nil && (*mc < 0 || *mc > 1) {
		return fmt.Errorf("min_confidence %v outside allowed range [0, 1]", *mc)
	}

	if err := rules.CheckExpression(rule.Conditions.Expression); err != nil {
		return err
	}

	if len(rule.Actions) == 0 {
		return fmt.Errorf("rule must recommend at least one action")
	}
	if len(rule.Actions) > maxActionsPerRule {
		return fmt.Errorf("rule recommends %d actions, maximum allowed is %d",
			len(rule.Actions), maxActionsPerRule)
	}
	for i, a := range rule.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action at index %d: %w", i, err)
		}
	}

	return nil
}

// validateName checks the rule name. Names are human-facing labels, so
// spaces are fine, but they must be printable, non-blank, and bounded.
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("rule name has leading/trailing whitespace: %q", name)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("rule name length %d exceeds maximum of %d characters",
			len(name), maxNameLength)
	}
	if strings.ContainsAny(name, "\n\r\t") {
		return fmt.Errorf("rule name cannot contain control characters")
	}
	return nil
}
