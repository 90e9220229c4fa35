package planner

import (
	"time"

	"github.com/liamcoop/triage/action"
)

// ExecutionStep is a single planned action with its eligibility decision.
// Once a plan is constructed its steps are never rewritten; state changes
// such as an approval arriving are modeled by collaborators as new status
// layered on top.
type ExecutionStep struct {
	Action   action.Descriptor `json:"action"`
	Decision Decision          `json:"decision"`
	Reason   string            `json:"reason"`
}

// ExecutionPlan records what would happen if a recommendation's actions
// were executed. It carries the acting subject's identifiers for audit and
// the simulation flag structurally, so an execution layer that forgets to
// check the caller's intent still cannot act on a simulated plan.
type ExecutionPlan struct {
	ID               string          `json:"id"`
	RecommendationID string          `json:"recommendation_id"`
	AccountID        string          `json:"account_id"`
	MessageID        string          `json:"message_id"`
	CreatedAt        time.Time       `json:"created_at"`
	Simulated        bool            `json:"is_simulated"`
	Steps            []ExecutionStep `json:"steps"`
	Reasoning        string          `json:"reasoning"`
	OverallStatus    OverallStatus   `json:"overall_status"`
}

// ApprovedActions returns the actions of every approved step.
func (p *ExecutionPlan) ApprovedActions() []action.Descriptor {
	return p.actionsWithDecision(DecisionApproved)
}

// BlockedActions returns the actions of every blocked step.
func (p *ExecutionPlan) BlockedActions() []action.Descriptor {
	return p.actionsWithDecision(DecisionBlocked)
}

func (p *ExecutionPlan) actionsWithDecision(d Decision) []action.Descriptor {
	var out []action.Descriptor
	for _, step := range p.Steps {
		if step.Decision == d {
			out = append(out, step.Action)
		}
	}
	return out
}

// deriveOverallStatus computes the plan summary from its steps. Simulation
// dominates; an empty plan is vacuously approved.
func deriveOverallStatus(simulated bool, steps []ExecutionStep) OverallStatus {
	if simulated {
		return StatusSimulated
	}
	if len(steps) == 0 {
		return StatusApproved
	}

	allApproved := true
	allBlocked := true
	for _, step := range steps {
		if step.Decision != DecisionApproved {
			allApproved = false
		}
		if step.Decision != DecisionBlocked {
			allBlocked = false
		}
	}

	switch {
	case allApproved:
		return StatusApproved
	case allBlocked:
		return StatusFullyBlocked
	default:
		return StatusPartiallyApproved
	}
}
