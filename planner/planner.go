package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/triage/action"
	"github.com/liamcoop/triage/internal/logger"
)

// Config is the planner's immutable allow-list configuration. It must be
// supplied explicitly; load it once and treat it as read-only for the
// lifetime of a batch (reload is copy-and-swap by the caller).
type Config struct {
	// Allowed lists the action types eligible for execution.
	Allowed []action.Type
	// Denied lists action types explicitly denied by policy. Denial wins
	// over the allow-list.
	Denied []action.Type
	// ApprovalThresholds maps an action type to the descriptor priority at
	// or above which a step requires manual approval instead of automatic
	// continuation.
	ApprovalThresholds map[action.Type]int
}

// DefaultConfig returns the stock allow-list: the low-risk mailbox actions
// the surrounding product supports today. Destructive or outward-facing
// types (delegate, draft_reply, notify, snooze, set_priority) stay off the
// list until an execution layer exists for them.
func DefaultConfig() Config {
	return Config{
		Allowed: []action.Type{
			action.TypeFlag,
			action.TypeArchive,
			action.TypeLabel,
			action.TypeMarkRead,
			action.TypeReportSpam,
		},
	}
}

// PlanRequest identifies the recommendation being planned and the acting
// subject, for the audit trail. RuleNames and ConfidenceScore feed the
// plan-level reasoning and come from the recommendation being planned.
type PlanRequest struct {
	RecommendationID string
	AccountID        string
	MessageID        string
	RuleNames        []string
	ConfidenceScore  int
	Simulate         bool
}

// Planner decides action eligibility against an immutable allow-list
// configuration. It performs no network or storage calls; a plan is pure
// data derived from its inputs. Safe for concurrent use.
type Planner struct {
	allowed    map[action.Type]bool
	denied     map[action.Type]bool
	thresholds map[action.Type]int
}

// New creates a planner over the given configuration snapshot.
func New(cfg Config) *Planner {
	p := &Planner{
		allowed:    make(map[action.Type]bool, len(cfg.Allowed)),
		denied:     make(map[action.Type]bool, len(cfg.Denied)),
		thresholds: make(map[action.Type]int, len(cfg.ApprovalThresholds)),
	}
	for _, t := range cfg.Allowed {
		p.allowed[t] = true
	}
	for _, t := range cfg.Denied {
		p.denied[t] = true
	}
	for t, threshold := range cfg.ApprovalThresholds {
		p.thresholds[t] = threshold
	}
	return p
}

// Plan builds an execution plan for the supplied actions. Every action gets
// a step and an explicit decision; an invalid or disallowed action blocks
// its own step only, never the rest of the plan. Actions are re-deduplicated
// by type defensively (first occurrence wins) since the caller is not
// guaranteed to be the rule engine. Planning the same inputs twice yields
// structurally identical plans apart from the ID and timestamp.
func (p *Planner) Plan(req PlanRequest, actions []action.Descriptor) *ExecutionPlan {
	plan := &ExecutionPlan{
		ID:               uuid.NewString(),
		RecommendationID: req.RecommendationID,
		AccountID:        req.AccountID,
		MessageID:        req.MessageID,
		CreatedAt:        time.Now().UTC(),
		Simulated:        req.Simulate,
		Steps:            []ExecutionStep{},
		Reasoning:        planReasoning(req, actions),
	}

	seen := make(map[action.Type]bool, len(actions))
	for _, a := range actions {
		if seen[a.Type] {
			continue
		}
		seen[a.Type] = true

		decision, reason := p.decide(a)
		if req.Simulate {
			// The downgrade is unconditional so the simulation guarantee
			// holds structurally; the reason preserves the audit trail.
			reason = fmt.Sprintf("simulated (would be %s): %s", decision, reason)
			decision = DecisionSimulated
		}

		plan.Steps = append(plan.Steps, ExecutionStep{
			Action:   a,
			Decision: decision,
			Reason:   reason,
		})

		logger.Debug("action eligibility decided",
			"action", string(a.Type), "decision", string(decision),
			"recommendation_id", req.RecommendationID)
	}

	plan.OverallStatus = deriveOverallStatus(req.Simulate, plan.Steps)

	logger.Info("execution plan created",
		"plan_id", plan.ID,
		"recommendation_id", req.RecommendationID,
		"steps", len(plan.Steps),
		"approved", len(plan.ApprovedActions()),
		"blocked", len(plan.BlockedActions()),
		"status", string(plan.OverallStatus))

	return plan
}

// decide maps one validated action descriptor to its eligibility decision.
// Pure: the outcome depends only on the descriptor and the planner's
// configuration.
func (p *Planner) decide(a action.Descriptor) (Decision, string) {
	if err := a.Validate(); err != nil {
		return DecisionBlocked, fmt.Sprintf("action %q failed validation: %v", a.Type, err)
	}

	if p.denied[a.Type] {
		return DecisionBlocked, fmt.Sprintf("action type %q is denied by policy", a.Type)
	}

	if !p.allowed[a.Type] {
		return DecisionBlocked, fmt.Sprintf("action type %q is not on the allow-list; blocked for safety", a.Type)
	}

	if threshold, ok := p.thresholds[a.Type]; ok && a.Priority >= threshold {
		return DecisionRequiresApproval,
			fmt.Sprintf("action %q priority %d meets approval threshold %d; manual approval required", a.Type, a.Priority, threshold)
	}

	return DecisionApproved, fmt.Sprintf("action %q is allowed and approved (priority=%d)", a.Type, a.Priority)
}

// planReasoning composes the plan-level audit summary.
func planReasoning(req PlanRequest, actions []action.Descriptor) string {
	var b strings.Builder
	if req.Simulate {
		b.WriteString("[SIMULATION] ")
	}
	fmt.Fprintf(&b, "Plan for %d recommended action(s)", len(actions))
	if len(req.RuleNames) > 0 {
		fmt.Fprintf(&b, " based on rules: %s", strings.Join(req.RuleNames, ", "))
	}
	fmt.Fprintf(&b, ". Confidence: %d/100", req.ConfidenceScore)
	return b.String()
}
