package rules

import (
	"time"

	"github.com/liamcoop/triage/action"
)

// Message holds the classified attributes of an inbound message, as supplied
// by the classification pipeline. The engine reads it and never mutates it.
type Message struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Sender     string   `json:"sender"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Labels     []string `json:"labels,omitempty"`
}

// Conditions is the conjunction of predicates a message must satisfy for a
// rule to match. A zero-value predicate (empty list, nil threshold, empty
// expression) means "don't care".
type Conditions struct {
	// Categories the message classification must be a member of.
	Categories []string `json:"category,omitempty"`
	// MinConfidence is the minimum classification confidence (0.0-1.0).
	MinConfidence *float64 `json:"min_confidence,omitempty"`
	// SenderPatterns are matched against the sender address. Each pattern is
	// a case-insensitive literal, a glob (* and ?), or a regular expression.
	SenderPatterns []string `json:"sender_pattern,omitempty"`
	// SubjectKeywords match case-insensitively as substrings of the subject.
	SubjectKeywords []string `json:"subject_keywords,omitempty"`
	// BodyKeywords match case-insensitively as substrings of the body.
	BodyKeywords []string `json:"body_keywords,omitempty"`
	// Labels must intersect the message's label set.
	Labels []string `json:"labels,omitempty"`
	// Expression is an optional CEL expression over the message attributes
	// (category, confidence, sender, subject, body, labels). It is compiled
	// at load time and AND-ed with the predicates above.
	Expression string `json:"expression,omitempty"`
}

// Empty reports whether no predicate is configured, i.e. the rule matches
// every message.
func (c Conditions) Empty() bool {
	return len(c.Categories) == 0 &&
		c.MinConfidence == nil &&
		len(c.SenderPatterns) == 0 &&
		len(c.SubjectKeywords) == 0 &&
		len(c.BodyKeywords) == 0 &&
		len(c.Labels) == 0 &&
		c.Expression == ""
}

// Rule is a named, prioritized policy unit. Higher priority rules are
// evaluated and reported first; ties break by name ascending.
type Rule struct {
	ID          string              `json:"id,omitempty"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Priority    int                 `json:"priority"`
	Active      bool                `json:"is_active"`
	Conditions  Conditions          `json:"conditions"`
	Actions     []action.Descriptor `json:"actions"`
	SafetyFlags []string            `json:"safety_flags,omitempty"`
	CreatedAt   time.Time           `json:"created_at,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at,omitempty"`
}

// RuleRef identifies a matched rule in a recommendation.
type RuleRef struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

// RecommendationResult is the immutable output of evaluating a rule set
// against one message.
type RecommendationResult struct {
	MatchedRules       []RuleRef           `json:"matched_rules"`
	RecommendedActions []action.Descriptor `json:"recommended_actions"`
	ConfidenceScore    int                 `json:"confidence_score"`
	Reasoning          string              `json:"reasoning"`
	SafetyFlags        []string            `json:"safety_flags,omitempty"`
	// ValidationNotes records rules that were skipped as malformed, both at
	// load time and during evaluation. Notes are informational; they never
	// indicate a failed evaluation.
	ValidationNotes []string `json:"validation_notes,omitempty"`
}

// Recommendation is a stored recommendation: the evaluation result plus the
// identifiers and review lifecycle the persistence layer tracks.
type Recommendation struct {
	ID         string               `json:"id"`
	AccountID  string               `json:"account_id"`
	MessageID  string               `json:"message_id"`
	Result     RecommendationResult `json:"result"`
	Status     RecommendationStatus `json:"status"`
	CreatedAt  time.Time            `json:"created_at"`
	ReviewedAt *time.Time           `json:"reviewed_at,omitempty"`
}

// RecommendationStatus tracks the review lifecycle of a stored
// recommendation. Transitions are append-only: generated recommendations
// may be accepted or rejected exactly once.
type RecommendationStatus string

const (
	StatusGenerated RecommendationStatus = "generated"
	StatusAccepted  RecommendationStatus = "accepted"
	StatusRejected  RecommendationStatus = "rejected"
)
