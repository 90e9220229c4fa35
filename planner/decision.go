// Package planner converts accepted recommendations into execution plans.
// Every planned step carries an explicit eligibility decision; nothing in
// this package ever contacts the messaging system the actions target.
package planner

// Decision is the terminal eligibility outcome for one planned action.
// Downstream consumers must handle every member: an execution layer may
// only act on Approved steps, and must treat Simulated and Blocked steps
// as inert.
type Decision string

const (
	// DecisionApproved marks a step eligible for execution.
	DecisionApproved Decision = "approved"
	// DecisionBlocked marks a step ineligible: the action failed validation,
	// is not on the allow-list, or is denied by policy.
	DecisionBlocked Decision = "blocked"
	// DecisionRequiresApproval marks a step that needs an external approval
	// signal before it may be executed. Terminal for this component; the
	// approval workflow layers its own state on top.
	DecisionRequiresApproval Decision = "requires_approval"
	// DecisionSimulated marks a step planned under simulation. Simulated
	// steps are guaranteed to have zero external effect.
	DecisionSimulated Decision = "simulated"
)

// OverallStatus summarizes a plan's steps.
type OverallStatus string

const (
	// StatusSimulated means the plan was produced in simulation mode.
	StatusSimulated OverallStatus = "simulated"
	// StatusApproved means every step is approved (vacuously true for an
	// empty plan).
	StatusApproved OverallStatus = "approved"
	// StatusFullyBlocked means every step is blocked.
	StatusFullyBlocked OverallStatus = "fully_blocked"
	// StatusPartiallyApproved means the steps carry mixed decisions.
	StatusPartiallyApproved OverallStatus = "partially_approved"
)
